package generate

import (
	"fmt"
	"strings"

	"github.com/longform-ai/longform/pkg/models"
)

// issueListPlaceholder is substituted with the bullet list of acceptance
// issues when building a repair prompt from a fix template.
const issueListPlaceholder = "{ISSUE_LIST}"

// lengthInstruction is appended when the previous attempt fell short;
// undershooting the word window is by far the most common rejection.
const lengthInstruction = "Ensure the output meets the full target word count. Extend narrative depth where needed."

// buildRepairPrompt constructs the prompt for a retry attempt from the
// request's fix template, the issues found in the previous attempt, and the
// previous output itself. Falls back to the base prompt with the issue list
// appended when no template is configured. The length instruction is added
// only when the previous attempt undershot the window.
func buildRepairPrompt(req models.GenerationRequest, previous string, prevWords int, issues []string) string {
	var sb strings.Builder

	if req.Topic != "" {
		fmt.Fprintf(&sb, "Stay strictly on the assigned topic: %s\n\n", req.Topic)
	}

	list := formatIssueList(issues)
	if req.RepairTemplate != "" {
		sb.WriteString(strings.ReplaceAll(req.RepairTemplate, issueListPlaceholder, list))
	} else {
		sb.WriteString(req.Prompt)
		sb.WriteString("\n\nThe previous attempt had these issues:\n")
		sb.WriteString(list)
	}

	if prevWords < req.MinWords() {
		sb.WriteString("\n\n")
		sb.WriteString(lengthInstruction)
	}
	sb.WriteString("\n\nPrevious output:\n")
	sb.WriteString(previous)
	return sb.String()
}

func formatIssueList(issues []string) string {
	var sb strings.Builder
	for i, issue := range issues {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("- ")
		sb.WriteString(issue)
	}
	return sb.String()
}
