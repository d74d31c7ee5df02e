package analyze

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/contextwizard/wizardd/internal/adapter/markdown"
	"github.com/contextwizard/wizardd/internal/domain"
	"github.com/contextwizard/wizardd/internal/usecase/registry"
)

var fencedBlockRe = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*\n.*?\n```")

// CommentPoster is the slice of the platform API the pipeline needs to
// publish its responses.
type CommentPoster interface {
	PostIssueComment(ctx context.Context, creds registry.Credentials, repo domain.RepoRef, pullNumber int, body string) (int64, error)
	PostReviewCommentReply(ctx context.Context, creds registry.Credentials, repo domain.RepoRef, pullNumber int, inReplyTo int64, body string) (int64, error)
	UpdateComment(ctx context.Context, creds registry.Credentials, repo domain.RepoRef, ref domain.CommentRef, body string) error
}

// Registrar tracks posted annotations so humans can accept or reject them.
type Registrar interface {
	RegisterAnnotation(ctx context.Context, comment domain.CommentRef, repo domain.RepoRef, pullNumber int, installationID int64) (string, error)
}

// Pipeline turns reviewer feedback into posted, registry-tracked responses.
type Pipeline struct {
	assistant Assistant
	poster    CommentPoster
	registrar Registrar
	creds     registry.CredentialProvider
	log       *zap.Logger
}

// NewPipeline wires the analysis pipeline.
func NewPipeline(assistant Assistant, poster CommentPoster, registrar Registrar, creds registry.CredentialProvider, log *zap.Logger) *Pipeline {
	return &Pipeline{
		assistant: assistant,
		poster:    poster,
		registrar: registrar,
		creds:     creds,
		log:       log,
	}
}

// HandleFeedback classifies a non-command comment and posts the appropriate
// response. Classification failures degrade to the debug comment rather than
// dropping the event silently.
func (p *Pipeline) HandleFeedback(ctx context.Context, event domain.CommentEvent) error {
	contextText := BuildContext(event)

	cls, err := p.assistant.Classify(ctx, contextText)
	if err != nil {
		p.log.Warn("classification failed", zap.Error(err))
		cls = Classification{
			Category:    CategoryUnknown,
			NeedsReply:  true,
			Confidence:  0,
			ShortReason: "classification failed",
		}
		return p.respond(ctx, event, markdown.DebugComment(event.Body, string(cls.Category), cls.Confidence))
	}

	p.log.Info("feedback classified",
		zap.String("category", string(cls.Category)),
		zap.Float64("confidence", cls.Confidence),
		zap.String("repo", event.Repo.String()),
		zap.Int("pr", event.PullNumber))

	switch {
	case cls.Category == CategoryGoodChange && cls.Confidence >= GoodChangeConfidenceThreshold:
		suggestion, err := p.assistant.SuggestCode(ctx, contextText, event.Body)
		if err != nil {
			p.log.Warn("code suggestion failed", zap.Error(err))
			return p.respond(ctx, event, markdown.DebugComment(event.Body, string(CategoryUnknown), 0))
		}
		return p.respond(ctx, event, ExtractFirstFencedCodeBlock(suggestion))

	case cls.Category == CategoryBadQuestion && cls.Confidence >= BadQuestionConfidenceThreshold:
		cq, err := p.assistant.ClarifyQuestion(ctx, contextText)
		if err != nil {
			p.log.Warn("question clarification failed", zap.Error(err))
			return p.respond(ctx, event, markdown.DebugComment(event.Body, string(CategoryUnknown), 0))
		}
		return p.respond(ctx, event, markdown.ClarifiedQuestionComment(event.Body, string(cls.Category), cls.Confidence, cq.Text, cq.Confidence))

	case cls.Category == CategoryBadChange && cls.Confidence >= BadChangeConfidenceThreshold:
		cc, err := p.assistant.ClarifyChange(ctx, contextText)
		if err != nil {
			p.log.Warn("change clarification failed", zap.Error(err))
			return p.respond(ctx, event, markdown.DebugComment(event.Body, string(CategoryUnknown), 0))
		}
		suggestion, err := p.assistant.SuggestCode(ctx, contextText, cc.Text)
		if err != nil {
			p.log.Warn("code suggestion failed", zap.Error(err))
			return p.respond(ctx, event, markdown.DebugComment(event.Body, string(CategoryUnknown), 0))
		}
		return p.respond(ctx, event, markdown.BadChangeComment(cc.Text, ExtractFirstFencedCodeBlock(suggestion)))

	default:
		// PRAISE, GOOD_QUESTION, UNKNOWN, and low-confidence verdicts all
		// get the classification-only debug comment.
		return p.respond(ctx, event, markdown.DebugComment(event.Body, string(cls.Category), cls.Confidence))
	}
}

// HandleWizardReview runs the autonomous full review and posts its findings
// as a conversation comment.
func (p *Pipeline) HandleWizardReview(ctx context.Context, event domain.CommentEvent) error {
	contextText := BuildContext(event)

	review, err := p.assistant.WizardReview(ctx, contextText)
	if err != nil {
		p.log.Warn("wizard review failed", zap.Error(err))
		review = ""
	}

	return p.respond(ctx, event, markdown.WizardReviewComment(review))
}

// respond posts the body as a comment, registers it as a pending annotation,
// and appends the decision footer carrying the minted code. Registration or
// footer failures leave the comment up untracked, which is the documented
// degraded state: a comment that exists but never becomes rejectable beats
// an annotation that was silently never posted.
func (p *Pipeline) respond(ctx context.Context, event domain.CommentEvent, body string) error {
	creds, err := p.creds.Credentials(ctx, event.InstallationID)
	if err != nil {
		return fmt.Errorf("credentials for installation %d: %w", event.InstallationID, err)
	}

	ref, err := p.post(ctx, creds, event, body)
	if err != nil {
		return fmt.Errorf("post response comment: %w", err)
	}

	code, err := p.registrar.RegisterAnnotation(ctx, ref, event.Repo, event.PullNumber, event.InstallationID)
	if err != nil {
		p.log.Error("annotation left untracked: registration failed",
			zap.Int64("comment_id", ref.ID),
			zap.Error(err))
		return nil
	}

	footered := body + markdown.DecisionFooter(code)
	if err := p.poster.UpdateComment(ctx, creds, event.Repo, ref, footered); err != nil {
		p.log.Warn("failed to append decision footer",
			zap.String("code", code),
			zap.Int64("comment_id", ref.ID),
			zap.Error(err))
	}

	return nil
}

// post replies in kind: inline feedback gets an inline reply, conversation
// feedback gets a conversation comment.
func (p *Pipeline) post(ctx context.Context, creds registry.Credentials, event domain.CommentEvent, body string) (domain.CommentRef, error) {
	if event.Comment.Kind == domain.CommentKindInline {
		id, err := p.poster.PostReviewCommentReply(ctx, creds, event.Repo, event.PullNumber, event.Comment.ID, body)
		if err != nil {
			return domain.CommentRef{}, err
		}
		return domain.CommentRef{ID: id, Kind: domain.CommentKindInline}, nil
	}

	id, err := p.poster.PostIssueComment(ctx, creds, event.Repo, event.PullNumber, body)
	if err != nil {
		return domain.CommentRef{}, err
	}
	return domain.CommentRef{ID: id, Kind: domain.CommentKindThread}, nil
}
