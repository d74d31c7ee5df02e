package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/contextwizard/wizardd/internal/usecase/analyze"
)

const classifyPrompt = `You are a code review assistant that classifies GitHub PR comments into exactly ONE category.

You will receive comments from THREE different contexts:
1. Inline review comments (tied to specific code lines)
2. PR conversation comments (general comments on the PR)
3. Review summaries (submitted reviews)

Decision priority:
1) Determine intent: praise / question / request change
2) Determine clarity: good / bad

Categories: PRAISE, GOOD_CHANGE, BAD_CHANGE, GOOD_QUESTION, BAD_QUESTION, UNKNOWN

Rules:
- PRAISE: positive feedback, appreciation, acknowledgment (e.g., "nice work", "LGTM", "looks good")
- GOOD_CHANGE: clear, actionable change request with sufficient context
- BAD_CHANGE: unclear/underspecified change request (missing details like which file, which function, what exactly to change)
- GOOD_QUESTION: clear question with enough context to understand what's being asked
- BAD_QUESTION: unclear question (vague, missing context, ambiguous)
- UNKNOWN: intent cannot be determined with confidence

Important:
- "bad" = unclear/underspecified (NOT rude or negative tone)
- needs_reply = true ONLY for: GOOD_CHANGE, BAD_CHANGE, BAD_QUESTION
- needs_clarification = true ONLY for: BAD_CHANGE, BAD_QUESTION
- For conversation comments without specific code context, be more lenient in classification
- Single word comments like "wow", "nice", "thanks" should be PRAISE
- Questions about "why", "how", "what" are questions, not change requests
- Requests with words like "can you", "please add", "should we" are change requests

Return ONLY valid JSON with fields: "category" (string), "needs_reply" (bool), "needs_clarification" (bool), "confidence" (number 0-1), "short_reason" (string).`

const clarifyQuestionPrompt = `Rewrite an unclear PR question into a clarified question.

Rules:
- 1-2 short sentences max, end with "?".
- Do NOT answer. Do NOT invent facts.
- Use placeholders if missing: "<which file?>", "<which function?>", "<expected behavior?>"

Return ONLY valid JSON with fields: "text" (string), "confidence" (number 0-1), "short_reason" (string).`

const clarifyChangePrompt = `Rewrite an unclear PR change request into a clarified, actionable request.

Rules:
- Do NOT propose code. Do NOT invent facts.
- "text" must be 1-2 short sentences max.
- Use placeholders if missing: "<which file?>", "<which function?>", "<acceptance criteria?>"

Return ONLY valid JSON with fields: "text" (string), "confidence" (number 0-1), "short_reason" (string).`

const wizardReviewPrompt = `You are the 'ContextWizard' AI Reviewer performing an autonomous code review.

Your task:
1. Analyze the provided PR diff hunks and changed files
2. Identify potential issues in these categories:
   - Bugs or logic errors
   - Security vulnerabilities
   - Performance problems
   - Code quality issues
   - Best practice violations

Output format (use markdown):
For each issue found, provide:

### [Issue Title]
**Severity**: High/Medium/Low
**Description**: Clear explanation of the problem and why it matters
**Suggestion**: Specific actionable fix

Rules:
- Be concise but thorough
- Focus on real issues, not style preferences
- Provide specific line references when possible
- If no issues found, say "No significant issues detected"
- Maximum 5 issues per review to stay focused`

// Assistant implements analyze.Assistant on top of the Gemini API. The
// classify/clarify calls and the code-suggestion call may target different
// models.
type Assistant struct {
	chat *HTTPClient
	code *HTTPClient
}

// NewAssistant builds an Assistant. codeClient may equal chatClient when a
// single model serves both roles.
func NewAssistant(chatClient, codeClient *HTTPClient) *Assistant {
	return &Assistant{chat: chatClient, code: codeClient}
}

// Classify sorts a reviewer comment into a category.
func (a *Assistant) Classify(ctx context.Context, contextText string) (analyze.Classification, error) {
	prompt := fmt.Sprintf("%s\n\nCONTEXT:\n%s", classifyPrompt, contextText)

	resp, err := a.chat.Call(ctx, prompt, CallOptions{Temperature: 0.2, JSONResponse: true})
	if err != nil {
		return analyze.Classification{}, fmt.Errorf("classify comment: %w", err)
	}

	var cls analyze.Classification
	if err := json.Unmarshal([]byte(resp.Text), &cls); err != nil {
		return analyze.Classification{}, fmt.Errorf("failed to parse classification: %w", err)
	}
	if !cls.Category.Valid() {
		cls.Category = analyze.CategoryUnknown
	}
	return cls, nil
}

// ClarifyQuestion rewrites an unclear question.
func (a *Assistant) ClarifyQuestion(ctx context.Context, contextText string) (analyze.Clarified, error) {
	return a.clarify(ctx, clarifyQuestionPrompt, contextText)
}

// ClarifyChange rewrites an unclear change request.
func (a *Assistant) ClarifyChange(ctx context.Context, contextText string) (analyze.Clarified, error) {
	return a.clarify(ctx, clarifyChangePrompt, contextText)
}

func (a *Assistant) clarify(ctx context.Context, instructions, contextText string) (analyze.Clarified, error) {
	prompt := fmt.Sprintf("%s\n\nCONTEXT:\n%s", instructions, contextText)

	resp, err := a.chat.Call(ctx, prompt, CallOptions{Temperature: 0.2, JSONResponse: true})
	if err != nil {
		return analyze.Clarified{}, fmt.Errorf("clarify comment: %w", err)
	}

	var out analyze.Clarified
	if err := json.Unmarshal([]byte(resp.Text), &out); err != nil {
		return analyze.Clarified{}, fmt.Errorf("failed to parse clarification: %w", err)
	}
	return out, nil
}

// SuggestCode produces a single fenced code block for a change request.
func (a *Assistant) SuggestCode(ctx context.Context, contextText, request string) (string, error) {
	instructions := fmt.Sprintf(`You are a GitHub code review assistant.
Goal: produce a SHORT, STRICT code suggestion for the requested change.

Hard rules:
- Output MUST be ONLY ONE fenced code block and NOTHING else.
- The code block language MUST be either:
  1) `+"```diff"+`  (preferred)
  2) `+"```suggestion"+` (only if diff isn't possible)
- Keep it minimal: change ONLY the smallest relevant lines.
- Do NOT rewrite whole files. Do NOT include unrelated context.
- If unsure, output a SMALL diff that adds TODOs/placeholders rather than guessing.

Comment to satisfy (source of truth):
%s`, strings.TrimSpace(request))

	prompt := fmt.Sprintf("%s\n\nCONTEXT (reference only):\n---\n%s\n---\n\nReturn ONLY the single fenced code block now.", instructions, contextText)

	resp, err := a.code.Call(ctx, prompt, CallOptions{Temperature: 0.2})
	if err != nil {
		return "", fmt.Errorf("generate code suggestion: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// WizardReview performs the autonomous full review.
func (a *Assistant) WizardReview(ctx context.Context, contextText string) (string, error) {
	prompt := fmt.Sprintf("%s\n\n%s", wizardReviewPrompt, contextText)

	resp, err := a.chat.Call(ctx, prompt, CallOptions{Temperature: 0.3, MaxTokens: 2048})
	if err != nil {
		return "", fmt.Errorf("wizard review: %w", err)
	}

	result := strings.TrimSpace(resp.Text)
	if result == "" {
		return "✅ No significant issues detected in this PR.", nil
	}
	return result, nil
}
