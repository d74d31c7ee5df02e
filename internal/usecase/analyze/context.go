package analyze

import (
	"fmt"
	"strings"

	"github.com/contextwizard/wizardd/internal/domain"
	"github.com/contextwizard/wizardd/internal/redaction"
)

var secrets = redaction.NewEngine()

// Clipping limits keep prompts bounded regardless of how large the PR or
// its comments are.
const (
	maxPRBodyLength   = 1200
	maxCommentLength  = 1500
	maxDiffHunkLength = 1200
)

// clip truncates s to at most n characters with a marker when truncated.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n…(truncated)…"
}

// BuildContext renders the normalized event into the prompt context block
// shared by every assistant call.
func BuildContext(event domain.CommentEvent) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Repo: %s\n", event.Repo)
	fmt.Fprintf(&b, "PR: #%d %s\n", event.PullNumber, event.PullTitle)
	fmt.Fprintf(&b, "PR author: %s\n", event.PullAuthor)
	fmt.Fprintf(&b, "PR description (truncated):\n%s\n", clip(event.PullBody, maxPRBodyLength))

	switch event.Comment.Kind {
	case domain.CommentKindInline:
		fmt.Fprintf(&b, "\nEvent: inline review comment\n")
		fmt.Fprintf(&b, "Reviewer: %s\n", event.SenderLogin)
		fmt.Fprintf(&b, "File path: %s\n", event.Path)
		fmt.Fprintf(&b, "Original comment: %s\n", clip(event.Body, maxCommentLength))
		if event.DiffHunk != "" {
			fmt.Fprintf(&b, "Diff hunk (truncated):\n%s\n", clip(event.DiffHunk, maxDiffHunkLength))
		}
	default:
		fmt.Fprintf(&b, "\nEvent: PR conversation comment\n")
		fmt.Fprintf(&b, "Commenter: %s\n", event.SenderLogin)
		fmt.Fprintf(&b, "Comment text: %s\n", clip(event.Body, maxCommentLength))
		b.WriteString("\nContext: this is a general comment on the PR, not tied to a specific line of code.\n")
	}

	// Reviewer text and diff hunks may carry leaked credentials. They must
	// be scrubbed before the context leaves the process.
	return secrets.Redact(strings.TrimSpace(b.String()))
}

// ExtractFirstFencedCodeBlock pulls the first fenced code block out of model
// output, wrapping bare text in a fence when the model ignored instructions.
func ExtractFirstFencedCodeBlock(text string) string {
	if text == "" {
		return "```diff\n```"
	}

	if m := fencedBlockRe.FindString(text); m != "" {
		return strings.TrimSpace(m)
	}

	if idx := strings.Index(text, "```"); idx >= 0 {
		return strings.TrimSpace(text[idx:])
	}

	return fmt.Sprintf("```\n%s\n```", strings.TrimSpace(text))
}
