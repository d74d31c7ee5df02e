package domain

// CommentEvent is the normalized form of an inbound webhook comment event.
// The gateway translates raw GitHub payloads into this shape before any of
// the registry machinery runs.
type CommentEvent struct {
	// DeliveryID is the webhook delivery identifier, carried through for
	// log correlation.
	DeliveryID string

	// Body is the raw comment text.
	Body string

	// SenderLogin is the login of the account that wrote the comment.
	SenderLogin string

	// SenderIsBot is set when GitHub reports the sender as a Bot account.
	SenderIsBot bool

	Repo           RepoRef
	PullNumber     int
	Comment        CommentRef
	InstallationID int64

	// PullTitle, PullBody and PullAuthor give the analysis pipeline enough
	// context to build an LLM prompt without another API round trip.
	PullTitle  string
	PullBody   string
	PullAuthor string

	// Path and DiffHunk are populated for inline review comments.
	Path     string
	DiffHunk string
}
