// Package markdown renders wizardd's comment bodies.
package markdown

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// CategoryLabel turns an UPPER_SNAKE category into a human heading,
// e.g. "GOOD_QUESTION" -> "Good Question".
func CategoryLabel(category string) string {
	return titleCaser.String(strings.ToLower(strings.ReplaceAll(category, "_", " ")))
}

// DebugComment renders the classification-only response used for praise,
// good questions, and low-confidence or failed verdicts.
func DebugComment(original, category string, confidence float64) string {
	var builder strings.Builder
	builder.WriteString("🧙‍♂️ **ContextWizard**\n\n")
	builder.WriteString(fmt.Sprintf("**Classification:** %s (confidence %.2f)\n\n", CategoryLabel(category), confidence))
	builder.WriteString("> ")
	builder.WriteString(quoteLines(original))
	builder.WriteString("\n")
	return builder.String()
}

// ClarifiedQuestionComment renders the response to a question the model
// judged unanswerable as asked, pairing the verdict with a sharper rewrite.
func ClarifiedQuestionComment(original, category string, confidence float64, clarified string, clarifiedConfidence float64) string {
	var builder strings.Builder
	builder.WriteString("🧙‍♂️ **ContextWizard**\n\n")
	builder.WriteString(fmt.Sprintf("**Classification:** %s (confidence %.2f)\n\n", CategoryLabel(category), confidence))
	builder.WriteString("The question as asked is hard to act on. A clearer version:\n\n")
	builder.WriteString(fmt.Sprintf("> %s\n\n", quoteLines(clarified)))
	builder.WriteString(fmt.Sprintf("_(rewrite confidence %.2f)_\n", clarifiedConfidence))
	return builder.String()
}

// BadChangeComment renders the response to a change request the model
// judged misguided: the clarified intent plus a concrete suggestion.
func BadChangeComment(clarified, suggestion string) string {
	var builder strings.Builder
	builder.WriteString("🧙‍♂️ **ContextWizard**\n\n")
	builder.WriteString("Reading that request as:\n\n")
	builder.WriteString(fmt.Sprintf("> %s\n\n", quoteLines(clarified)))
	if suggestion != "" {
		builder.WriteString("Here is how that could look:\n\n")
		builder.WriteString(suggestion)
		builder.WriteString("\n")
	}
	return builder.String()
}

// WizardReviewComment wraps the autonomous review body. An empty body means
// the review could not be produced.
func WizardReviewComment(review string) string {
	var builder strings.Builder
	builder.WriteString("🧙‍♂️ **ContextWizard Autonomous Review**\n\n")
	if strings.TrimSpace(review) == "" {
		builder.WriteString("The review could not be completed. Please retry with `/wizard-review`.\n")
		return builder.String()
	}
	builder.WriteString(review)
	builder.WriteString("\n")
	return builder.String()
}

// DecisionFooter is appended to every tracked annotation. The code inside it
// is what HandleCommand resolves against.
func DecisionFooter(code string) string {
	return fmt.Sprintf("\n\n---\n✅ `/accept %s` &nbsp;·&nbsp; ❌ `/reject %s`\n", code, code)
}

// quoteLines keeps multi-line quoted text inside the blockquote.
func quoteLines(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n> ")
}
