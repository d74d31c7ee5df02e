// Package registry tracks AI-posted review annotations awaiting a human
// decision and reconciles accept/reject commands and expiry sweeps against
// that tracking state exactly once per annotation.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/contextwizard/wizardd/internal/domain"
	"github.com/contextwizard/wizardd/internal/store"
	"github.com/contextwizard/wizardd/internal/usecase/command"
)

// ErrCodeAllocationFailed is returned when every code-generation attempt
// collided with an already pending code. The posted comment stays up but is
// untracked; this is fatal only for the single registration attempt.
var ErrCodeAllocationFailed = errors.New("could not allocate a unique annotation code")

// DefaultTTL is the decision window applied when no TTL is configured.
const DefaultTTL = 120 * time.Second

// DefaultCodeAttempts bounds the regenerate-and-retry loop around Put.
const DefaultCodeAttempts = 5

// Credentials authenticate calls to the comment platform API.
type Credentials struct {
	Token string
}

// CredentialProvider mints credentials scoped to a GitHub App installation.
// The sweeper runs outside any webhook's auth context, so it depends on this
// capability explicitly instead of reusing request credentials.
type CredentialProvider interface {
	Credentials(ctx context.Context, installationID int64) (Credentials, error)
}

// CommentAPI is the slice of the comment platform the engine consumes.
// DeleteComment must tolerate an already-deleted comment as success.
type CommentAPI interface {
	DeleteComment(ctx context.Context, creds Credentials, repo domain.RepoRef, ref domain.CommentRef) error
}

// Registry is the reconciliation engine. All state lives in the store; the
// registry itself is stateless and safe for concurrent use.
type Registry struct {
	store    store.PendingStore
	comments CommentAPI
	creds    CredentialProvider
	log      *zap.Logger

	ttl          time.Duration
	codeAttempts int
	newCode      func() string
	now          func() time.Time
}

// Option customizes a Registry.
type Option func(*Registry)

// WithTTL sets the default decision window for registered annotations.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithCodeAttempts bounds the code regeneration loop.
func WithCodeAttempts(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.codeAttempts = n
		}
	}
}

// WithCodeSource injects the code generator, letting tests force collisions.
func WithCodeSource(src func() string) Option {
	return func(r *Registry) { r.newCode = src }
}

// WithClock injects the time source used for expiry stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a reconciliation engine over the given collaborators.
func New(st store.PendingStore, comments CommentAPI, creds CredentialProvider, log *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		store:        st,
		comments:     comments,
		creds:        creds,
		log:          log,
		ttl:          DefaultTTL,
		codeAttempts: DefaultCodeAttempts,
		newCode:      defaultCodeSource(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterAnnotation starts tracking a freshly posted annotation and returns
// the code a human can use to resolve it. The comment must already exist on
// the platform; if registration fails the comment stays up untracked, which
// is the accepted degraded state.
func (r *Registry) RegisterAnnotation(ctx context.Context, comment domain.CommentRef, repo domain.RepoRef, pullNumber int, installationID int64) (string, error) {
	expiresAt := r.now().Add(r.ttl).Unix()

	for attempt := 0; attempt < r.codeAttempts; attempt++ {
		code := r.newCode()

		err := r.store.Put(ctx, domain.PendingAnnotation{
			Code:           code,
			Comment:        comment,
			Repo:           repo,
			PullNumber:     pullNumber,
			InstallationID: installationID,
			ExpiresAt:      expiresAt,
		})
		if errors.Is(err, store.ErrDuplicateCode) {
			r.log.Debug("annotation code collision, regenerating",
				zap.String("code", code),
				zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return "", fmt.Errorf("register annotation: %w", err)
		}

		r.log.Info("annotation registered",
			zap.String("code", code),
			zap.String("repo", repo.String()),
			zap.Int("pr", pullNumber),
			zap.Int64("comment_id", comment.ID),
			zap.Int64("expires_at", expiresAt))
		return code, nil
	}

	return "", ErrCodeAllocationFailed
}

// HandleCommand resolves an /accept or /reject command against the store.
// Unknown or stale codes are a silent no-op. Other command kinds are
// rejected as a programming error.
func (r *Registry) HandleCommand(ctx context.Context, event domain.CommentEvent, cmd command.Command) error {
	switch cmd.Kind {
	case command.KindAccept:
		return r.accept(ctx, event, cmd.Code)
	case command.KindReject:
		return r.reject(ctx, event, cmd.Code)
	default:
		return fmt.Errorf("command %q is not a registry command", cmd.Kind)
	}
}

// accept resolves a code to ACCEPTED: the store record goes away, the
// annotated comment stays, and the command comment is cleaned up.
func (r *Registry) accept(ctx context.Context, event domain.CommentEvent, code string) error {
	// The store delete is the whole decision. No lookup first: whoever
	// wins the delete owns the transition, everyone else sees NotFound.
	if err := r.store.Delete(ctx, code); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.log.Debug("accept for unknown or already resolved code",
				zap.String("code", code))
			return nil
		}
		return fmt.Errorf("accept %s: %w", code, err)
	}

	r.log.Info("annotation accepted",
		zap.String("code", code),
		zap.String("repo", event.Repo.String()),
		zap.Int("pr", event.PullNumber))

	r.deleteCommandComment(ctx, event)
	return nil
}

// reject resolves a code to REJECTED: the store record goes away, then the
// annotated comment is deleted, then the command comment is cleaned up.
func (r *Registry) reject(ctx context.Context, event domain.CommentEvent, code string) error {
	rec, err := r.store.Get(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.log.Debug("reject for unknown or already resolved code",
				zap.String("code", code))
			return nil
		}
		return fmt.Errorf("reject %s: %w", code, err)
	}

	if err := r.retire(ctx, rec, domain.ResolutionRejected); err != nil {
		return err
	}

	r.deleteCommandComment(ctx, event)
	return nil
}

// Expire retires a lapsed annotation on behalf of the sweeper. Semantically
// a reject, but system-initiated and with no command comment to clean up.
func (r *Registry) Expire(ctx context.Context, rec domain.PendingAnnotation) error {
	return r.retire(ctx, rec, domain.ResolutionExpired)
}

// retire performs the shared reject/expire sequence. Credentials are fetched
// before the store delete: failing to authenticate must leave the record in
// place for a later sweep rather than strand an undeletable comment. The
// store delete itself is the tie-break — a loser takes no remote action.
func (r *Registry) retire(ctx context.Context, rec domain.PendingAnnotation, res domain.Resolution) error {
	creds, err := r.creds.Credentials(ctx, rec.InstallationID)
	if err != nil {
		return fmt.Errorf("credentials for installation %d: %w", rec.InstallationID, err)
	}

	if err := r.store.Delete(ctx, rec.Code); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.log.Debug("annotation already resolved by another path",
				zap.String("code", rec.Code),
				zap.String("resolution", string(res)))
			return nil
		}
		return fmt.Errorf("retire %s: %w", rec.Code, err)
	}

	// We own the transition now. A failed remote delete is logged and
	// accepted: an orphaned comment beats a permanently stuck record.
	if err := r.comments.DeleteComment(ctx, creds, rec.Repo, rec.Comment); err != nil {
		r.log.Warn("remote comment delete failed, record already retired",
			zap.String("code", rec.Code),
			zap.Int64("comment_id", rec.Comment.ID),
			zap.Error(err))
	}

	r.log.Info("annotation retired",
		zap.String("code", rec.Code),
		zap.String("resolution", string(res)),
		zap.String("repo", rec.Repo.String()),
		zap.Int("pr", rec.PullNumber))
	return nil
}

// deleteCommandComment removes the human's /accept or /reject comment to
// keep the thread clean. Best effort only.
func (r *Registry) deleteCommandComment(ctx context.Context, event domain.CommentEvent) {
	creds, err := r.creds.Credentials(ctx, event.InstallationID)
	if err != nil {
		r.log.Warn("credentials for command comment cleanup failed",
			zap.Int64("installation_id", event.InstallationID),
			zap.Error(err))
		return
	}

	if err := r.comments.DeleteComment(ctx, creds, event.Repo, event.Comment); err != nil {
		r.log.Warn("command comment cleanup failed",
			zap.Int64("comment_id", event.Comment.ID),
			zap.Error(err))
	}
}
