package prompts

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverEpisodes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ep02_cold_war", "msp_01_execution.txt"), "segment one prompt\n")
	writeFile(t, filepath.Join(root, "ep02_cold_war", "msp_01_fix_template.txt"), "fix: {ISSUE_LIST}\n")
	writeFile(t, filepath.Join(root, "ep02_cold_war", "msp_02_execution.txt"), "segment two prompt\n")
	writeFile(t, filepath.Join(root, "ep01_origins", "msp_01_execution.txt"), "origins prompt\n")
	writeFile(t, filepath.Join(root, "ep01_origins", "notes.md"), "ignored\n")

	episodes, err := Discover(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(episodes) != 2 {
		t.Fatalf("episodes = %d", len(episodes))
	}

	if episodes[0].Name != "ep01_origins" || episodes[1].Name != "ep02_cold_war" {
		t.Errorf("episode order = %q, %q", episodes[0].Name, episodes[1].Name)
	}
	if episodes[0].Topic != "ep01 origins" {
		t.Errorf("Topic = %q", episodes[0].Topic)
	}

	coldWar := episodes[1]
	if len(coldWar.Segments) != 2 {
		t.Fatalf("segments = %d", len(coldWar.Segments))
	}
	if coldWar.Segments[0].Index != 1 || coldWar.Segments[1].Index != 2 {
		t.Errorf("segment order = %d, %d", coldWar.Segments[0].Index, coldWar.Segments[1].Index)
	}
	if coldWar.Segments[0].Prompt != "segment one prompt" {
		t.Errorf("Prompt = %q", coldWar.Segments[0].Prompt)
	}
	if coldWar.Segments[0].FixTemplate != "fix: {ISSUE_LIST}" {
		t.Errorf("FixTemplate = %q", coldWar.Segments[0].FixTemplate)
	}
	if coldWar.Segments[1].FixTemplate != "" {
		t.Errorf("segment 2 picked up a fix template: %q", coldWar.Segments[1].FixTemplate)
	}
}

func TestDiscoverEpisodeContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ep05", "msp_01_execution.txt"), "prompt\n")
	writeFile(t, filepath.Join(root, "ep05", "episode.yaml"),
		"topic: the space race\ntarget_words: 650\ntolerance_pct: 5\n")

	episodes, err := Discover(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(episodes) != 1 {
		t.Fatalf("episodes = %d", len(episodes))
	}
	ep := episodes[0]
	if ep.Topic != "the space race" {
		t.Errorf("Topic = %q", ep.Topic)
	}
	if ep.TargetWords != 650 || ep.TolerancePct != 5 {
		t.Errorf("overrides = %d/%d", ep.TargetWords, ep.TolerancePct)
	}
}

func TestDiscoverFlatLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "standalone_episode")
	writeFile(t, filepath.Join(root, "msp_01_execution.txt"), "only prompt\n")

	episodes, err := Discover(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(episodes) != 1 {
		t.Fatalf("episodes = %d", len(episodes))
	}
	if episodes[0].Name != "standalone_episode" {
		t.Errorf("Name = %q", episodes[0].Name)
	}
	if len(episodes[0].Segments) != 1 {
		t.Errorf("segments = %d", len(episodes[0].Segments))
	}
}

func TestDiscoverEmpty(t *testing.T) {
	if _, err := Discover(t.TempDir()); err == nil {
		t.Fatal("expected error for empty prompts dir")
	}
}
