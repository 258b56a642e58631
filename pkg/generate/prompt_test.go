package generate

import (
	"strings"
	"testing"

	"github.com/longform-ai/longform/pkg/models"
)

func TestBuildRepairPromptWithTemplate(t *testing.T) {
	req := models.GenerationRequest{
		Prompt:         "base prompt",
		RepairTemplate: "Fix the issues below:\n{ISSUE_LIST}\nThen rewrite.",
		Topic:          "the fall of the Berlin Wall",
	}
	req.TargetWords = 500
	req.TolerancePct = 3
	issues := []string{"word count 430 outside required range 485-515", "opening hook missing"}

	prompt := buildRepairPrompt(req, "previous text here", 430, issues)

	if !strings.HasPrefix(prompt, "Stay strictly on the assigned topic: the fall of the Berlin Wall") {
		t.Errorf("missing topic prefix: %q", prompt[:80])
	}
	if !strings.Contains(prompt, "- word count 430 outside required range 485-515\n- opening hook missing") {
		t.Error("issue list not interpolated")
	}
	if strings.Contains(prompt, "{ISSUE_LIST}") {
		t.Error("placeholder survived interpolation")
	}
	if !strings.Contains(prompt, lengthInstruction) {
		t.Error("length instruction missing")
	}
	if !strings.HasSuffix(prompt, "Previous output:\nprevious text here") {
		t.Error("previous output not appended")
	}
}

func TestBuildRepairPromptWithoutTemplate(t *testing.T) {
	req := models.GenerationRequest{Prompt: "base prompt", TargetWords: 500, TolerancePct: 3}
	prompt := buildRepairPrompt(req, "old", 500, []string{"output truncated before completion"})

	if !strings.Contains(prompt, "base prompt") {
		t.Error("base prompt missing from fallback")
	}
	if !strings.Contains(prompt, "- output truncated before completion") {
		t.Error("issue list missing from fallback")
	}
	if strings.Contains(prompt, "Stay strictly") {
		t.Error("topic prefix added without a topic")
	}
	if strings.Contains(prompt, lengthInstruction) {
		t.Error("length instruction added though previous attempt was not short")
	}
}
