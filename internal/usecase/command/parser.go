// Package command recognizes the decision commands humans type in PR
// comments: /accept CODE, /reject CODE, and the /wizard-review trigger.
package command

import (
	"regexp"
	"strings"
)

// Kind classifies a parsed comment body.
type Kind int

const (
	// KindNone means the text carries no command and should flow to the
	// feedback classification pipeline instead.
	KindNone Kind = iota

	// KindAccept resolves a pending annotation and keeps the comment.
	KindAccept

	// KindReject resolves a pending annotation and deletes the comment.
	KindReject

	// KindWizardReview triggers a full-diff autonomous review. It carries
	// no code; its output annotations re-enter the registry on their own.
	KindWizardReview
)

// String returns the command name for logging.
func (k Kind) String() string {
	switch k {
	case KindAccept:
		return "accept"
	case KindReject:
		return "reject"
	case KindWizardReview:
		return "wizard-review"
	default:
		return "none"
	}
}

// Command is the result of parsing a comment body.
type Command struct {
	Kind Kind

	// Code is the 6-character annotation code, normalized to uppercase.
	// Empty unless Kind is KindAccept or KindReject.
	Code string
}

// decisionRe matches a line consisting solely of the verb and a 6-character
// alphanumeric code. Anything else on the line disqualifies it.
var decisionRe = regexp.MustCompile(`(?i)^/(accept|reject)\s+([a-z0-9]{6})$`)

// Parse scans a comment body for a recognized command. Commands must occupy
// a line of their own; surrounding whitespace is trimmed. Non-matching input
// yields KindNone, which callers treat as ordinary reviewer feedback.
func Parse(body string) Command {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := decisionRe.FindStringSubmatch(line); m != nil {
			kind := KindAccept
			if strings.EqualFold(m[1], "reject") {
				kind = KindReject
			}
			return Command{Kind: kind, Code: strings.ToUpper(m[2])}
		}

		if isWizardReview(line) {
			return Command{Kind: KindWizardReview}
		}
	}

	return Command{Kind: KindNone}
}

// isWizardReview matches "/wizard-review" exactly or as a prefix followed by
// whitespace, so trailing free text does not disarm the trigger.
func isWizardReview(line string) bool {
	const trigger = "/wizard-review"
	if len(line) < len(trigger) || !strings.EqualFold(line[:len(trigger)], trigger) {
		return false
	}
	if len(line) == len(trigger) {
		return true
	}
	return line[len(trigger)] == ' ' || line[len(trigger)] == '\t'
}
