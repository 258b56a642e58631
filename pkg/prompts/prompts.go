// Package prompts discovers episode prompt files on disk. An episode is a
// directory of numbered execution prompts, each optionally paired with a fix
// template used to build repair prompts.
package prompts

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// executionPattern matches segment execution prompts like
// msp_01_execution.txt.
var executionPattern = regexp.MustCompile(`^msp_(\d+)_execution\.txt$`)

// fixTemplateName returns the fix-template filename paired with a segment
// number as written in the execution filename.
func fixTemplateName(number string) string {
	return fmt.Sprintf("msp_%s_fix_template.txt", number)
}

// SegmentPrompt is one discovered segment: its execution prompt and the fix
// template, when one exists alongside it.
type SegmentPrompt struct {
	Index       int
	Prompt      string
	FixTemplate string
}

// Episode is a named, ordered set of segment prompts, plus per-episode
// generation overrides from an optional episode.yaml context file.
type Episode struct {
	Name     string
	Topic    string
	Segments []SegmentPrompt

	// TargetWords and TolerancePct override run-level settings when
	// non-zero.
	TargetWords  int
	TolerancePct int
}

// episodeContext is the on-disk shape of episode.yaml.
type episodeContext struct {
	Topic        string `yaml:"topic"`
	TargetWords  int    `yaml:"target_words"`
	TolerancePct int    `yaml:"tolerance_pct"`
}

// Discover reads episodes under root. Each subdirectory containing
// execution prompts becomes an episode; execution prompts directly under
// root form a single episode named after the root directory. Episodes and
// segments come back sorted.
func Discover(root string) ([]Episode, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading prompts dir: %w", err)
	}

	var episodes []Episode
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ep, err := readEpisode(filepath.Join(root, entry.Name()), entry.Name())
		if err != nil {
			return nil, err
		}
		if len(ep.Segments) > 0 {
			episodes = append(episodes, ep)
		}
	}

	// Loose prompt files under root form a single unnamed episode.
	if len(episodes) == 0 {
		ep, err := readEpisode(root, filepath.Base(root))
		if err != nil {
			return nil, err
		}
		if len(ep.Segments) > 0 {
			episodes = append(episodes, ep)
		}
	}

	if len(episodes) == 0 {
		return nil, fmt.Errorf("no execution prompts found under %s", root)
	}
	sort.Slice(episodes, func(i, j int) bool { return episodes[i].Name < episodes[j].Name })
	return episodes, nil
}

func readEpisode(dir, name string) (Episode, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Episode{}, fmt.Errorf("reading episode dir %s: %w", name, err)
	}

	ep := Episode{Name: name, Topic: topicFromName(name)}
	if err := applyContext(dir, &ep); err != nil {
		return Episode{}, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := executionPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		index, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		prompt, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return Episode{}, fmt.Errorf("reading prompt %s: %w", entry.Name(), err)
		}
		seg := SegmentPrompt{Index: index, Prompt: strings.TrimSpace(string(prompt))}

		fix, err := os.ReadFile(filepath.Join(dir, fixTemplateName(m[1])))
		if err == nil {
			seg.FixTemplate = strings.TrimSpace(string(fix))
		} else if !os.IsNotExist(err) {
			return Episode{}, fmt.Errorf("reading fix template for %s: %w", entry.Name(), err)
		}

		ep.Segments = append(ep.Segments, seg)
	}

	sort.Slice(ep.Segments, func(i, j int) bool { return ep.Segments[i].Index < ep.Segments[j].Index })
	return ep, nil
}

// applyContext overlays episode.yaml onto the episode when the file exists.
func applyContext(dir string, ep *Episode) error {
	data, err := os.ReadFile(filepath.Join(dir, "episode.yaml"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading episode context for %s: %w", ep.Name, err)
	}

	var ctx episodeContext
	if err := yaml.Unmarshal(data, &ctx); err != nil {
		return fmt.Errorf("parsing episode context for %s: %w", ep.Name, err)
	}
	if ctx.Topic != "" {
		ep.Topic = ctx.Topic
	}
	ep.TargetWords = ctx.TargetWords
	ep.TolerancePct = ctx.TolerancePct
	return nil
}

// topicFromName turns a directory name like "ep03_berlin_wall" into a
// human-readable topic.
func topicFromName(name string) string {
	topic := strings.ReplaceAll(name, "_", " ")
	topic = strings.ReplaceAll(topic, "-", " ")
	return strings.TrimSpace(topic)
}
