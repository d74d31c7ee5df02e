package domain

import (
	"fmt"
	"time"
)

// CommentKind distinguishes the two GitHub comment surfaces an annotation
// can live on. Inline comments hang off a diff line and are deleted through
// the pulls API; thread comments live on the conversation tab and are
// deleted through the issues API.
type CommentKind string

const (
	CommentKindInline CommentKind = "inline"
	CommentKindThread CommentKind = "thread"
)

// Valid reports whether k is one of the known comment kinds.
func (k CommentKind) Valid() bool {
	return k == CommentKindInline || k == CommentKindThread
}

// CommentRef identifies a single comment on GitHub.
type CommentRef struct {
	ID   int64
	Kind CommentKind
}

// RepoRef identifies the repository an annotation belongs to.
type RepoRef struct {
	Owner string
	Name  string
}

// String renders the usual owner/name form.
func (r RepoRef) String() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// PendingAnnotation is a posted AI review comment whose fate has not been
// decided yet. It is immutable once stored: the record is created after the
// comment is posted and removed by exactly one of accept, reject, or the
// expiry sweep.
type PendingAnnotation struct {
	// Code is the short human-typable token identifying this annotation.
	// Unique among currently pending annotations only; retired codes may
	// be reissued.
	Code string

	// Comment is the platform comment to delete on rejection or expiry.
	Comment CommentRef

	// Repo scopes the delete call.
	Repo RepoRef

	// PullNumber is the pull request the annotation was posted on.
	PullNumber int

	// InstallationID is the GitHub App installation used to re-authenticate
	// outside the original webhook's auth context (the sweeper runs there).
	InstallationID int64

	// ExpiresAt is the decision deadline in epoch seconds.
	ExpiresAt int64
}

// Expired reports whether the decision window has lapsed as of now.
func (p PendingAnnotation) Expired(now time.Time) bool {
	return p.ExpiresAt <= now.Unix()
}

// Resolution is the terminal outcome of a pending annotation. PENDING has no
// representation here: a record in the store is pending, and the moment it
// resolves the record is gone.
type Resolution string

const (
	// ResolutionAccepted keeps the comment and forgets the record.
	ResolutionAccepted Resolution = "accepted"

	// ResolutionRejected deletes the comment and forgets the record.
	ResolutionRejected Resolution = "rejected"

	// ResolutionExpired is a system-initiated reject driven by the sweeper.
	ResolutionExpired Resolution = "expired"
)
