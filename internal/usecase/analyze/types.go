// Package analyze classifies free-text reviewer feedback and produces the
// AI response comments that enter the pending annotation registry.
package analyze

import "context"

// Category is the classification of a reviewer comment. "Bad" means unclear
// or underspecified, not rude.
type Category string

const (
	CategoryPraise       Category = "PRAISE"
	CategoryGoodChange   Category = "GOOD_CHANGE"
	CategoryBadChange    Category = "BAD_CHANGE"
	CategoryGoodQuestion Category = "GOOD_QUESTION"
	CategoryBadQuestion  Category = "BAD_QUESTION"
	CategoryUnknown      Category = "UNKNOWN"
)

// Valid reports whether c is one of the defined categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryPraise, CategoryGoodChange, CategoryBadChange,
		CategoryGoodQuestion, CategoryBadQuestion, CategoryUnknown:
		return true
	}
	return false
}

// Confidence thresholds below which a classification falls back to the
// debug-only response.
const (
	GoodChangeConfidenceThreshold  = 0.7
	BadQuestionConfidenceThreshold = 0.55
	BadChangeConfidenceThreshold   = 0.55
)

// Classification is the structured verdict on a reviewer comment.
type Classification struct {
	Category           Category `json:"category"`
	NeedsReply         bool     `json:"needs_reply"`
	NeedsClarification bool     `json:"needs_clarification"`
	Confidence         float64  `json:"confidence"`
	ShortReason        string   `json:"short_reason"`
}

// Clarified is a rewritten, clearer version of an unclear question or
// change request.
type Clarified struct {
	Text        string  `json:"text"`
	Confidence  float64 `json:"confidence"`
	ShortReason string  `json:"short_reason"`
}

// Assistant is the LLM collaborator behind the pipeline.
type Assistant interface {
	// Classify sorts a comment into a Category.
	Classify(ctx context.Context, contextText string) (Classification, error)

	// ClarifyQuestion rewrites an unclear question.
	ClarifyQuestion(ctx context.Context, contextText string) (Clarified, error)

	// ClarifyChange rewrites an unclear change request.
	ClarifyChange(ctx context.Context, contextText string) (Clarified, error)

	// SuggestCode produces a single fenced code block satisfying a change
	// request.
	SuggestCode(ctx context.Context, contextText, request string) (string, error)

	// WizardReview performs the autonomous full-diff review.
	WizardReview(ctx context.Context, contextText string) (string, error)
}
