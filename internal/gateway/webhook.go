package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contextwizard/wizardd/internal/domain"
)

const signaturePrefix = "sha256="

// handleWebhook verifies the delivery signature, normalizes the payload and
// queues it for processing. It answers 202 before any model or platform call
// happens so GitHub never sees a slow response.
func (s *Server) handleWebhook(c *fiber.Ctx) error {
	if !s.verifySignature(c.Body(), c.Get("X-Hub-Signature-256")) {
		s.log.Warn("webhook signature verification failed",
			zap.String("delivery", c.Get("X-GitHub-Delivery")))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid signature"})
	}

	eventType := c.Get("X-GitHub-Event")
	deliveryID := c.Get("X-GitHub-Delivery")
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}

	event, ok, err := normalizeEvent(eventType, deliveryID, c.Body())
	if err != nil {
		s.log.Warn("failed to decode webhook payload",
			zap.String("event", eventType),
			zap.String("delivery", deliveryID),
			zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed payload"})
	}
	if !ok {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "ignored"})
	}

	s.dispatcher.Enqueue(event)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "queued", "delivery": deliveryID})
}

// verifySignature checks the X-Hub-Signature-256 HMAC over the raw body.
func (s *Server) verifySignature(body []byte, header string) bool {
	if len(s.webhookSecret) == 0 {
		// No secret configured means verification is disabled, which is
		// only sensible in local development.
		return true
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}

	mac := hmac.New(sha256.New, s.webhookSecret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(header, signaturePrefix)))
}

// GitHub webhook payload shapes, trimmed to the fields wizardd reads.

type ghUser struct {
	Login string `json:"login"`
	Type  string `json:"type"`
}

type ghRepository struct {
	Name  string `json:"name"`
	Owner ghUser `json:"owner"`
}

type ghInstallation struct {
	ID int64 `json:"id"`
}

type ghPullRequest struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	User   ghUser `json:"user"`
}

type ghComment struct {
	ID       int64  `json:"id"`
	Body     string `json:"body"`
	User     ghUser `json:"user"`
	Path     string `json:"path"`
	DiffHunk string `json:"diff_hunk"`
}

type issueCommentPayload struct {
	Action  string    `json:"action"`
	Comment ghComment `json:"comment"`
	Issue   struct {
		Number      int             `json:"number"`
		Title       string          `json:"title"`
		Body        string          `json:"body"`
		User        ghUser          `json:"user"`
		PullRequest json.RawMessage `json:"pull_request"`
	} `json:"issue"`
	Repository   ghRepository   `json:"repository"`
	Installation ghInstallation `json:"installation"`
}

type reviewCommentPayload struct {
	Action       string         `json:"action"`
	Comment      ghComment      `json:"comment"`
	PullRequest  ghPullRequest  `json:"pull_request"`
	Repository   ghRepository   `json:"repository"`
	Installation ghInstallation `json:"installation"`
}

type reviewPayload struct {
	Action string `json:"action"`
	Review struct {
		ID   int64  `json:"id"`
		Body string `json:"body"`
		User ghUser `json:"user"`
	} `json:"review"`
	PullRequest  ghPullRequest  `json:"pull_request"`
	Repository   ghRepository   `json:"repository"`
	Installation ghInstallation `json:"installation"`
}

// normalizeEvent flattens a supported webhook payload into a CommentEvent.
// ok is false for event types, actions, or payloads that carry nothing to
// process (unsupported events, edits/deletions, empty bodies, issue comments
// outside pull requests).
func normalizeEvent(eventType, deliveryID string, body []byte) (domain.CommentEvent, bool, error) {
	switch eventType {
	case "issue_comment":
		var p issueCommentPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return domain.CommentEvent{}, false, err
		}
		if p.Action != "created" || len(p.Issue.PullRequest) == 0 || strings.TrimSpace(p.Comment.Body) == "" {
			return domain.CommentEvent{}, false, nil
		}
		return domain.CommentEvent{
			DeliveryID:     deliveryID,
			Body:           p.Comment.Body,
			SenderLogin:    p.Comment.User.Login,
			SenderIsBot:    p.Comment.User.Type == "Bot",
			Repo:           domain.RepoRef{Owner: p.Repository.Owner.Login, Name: p.Repository.Name},
			PullNumber:     p.Issue.Number,
			Comment:        domain.CommentRef{ID: p.Comment.ID, Kind: domain.CommentKindThread},
			InstallationID: p.Installation.ID,
			PullTitle:      p.Issue.Title,
			PullBody:       p.Issue.Body,
			PullAuthor:     p.Issue.User.Login,
		}, true, nil

	case "pull_request_review_comment":
		var p reviewCommentPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return domain.CommentEvent{}, false, err
		}
		if p.Action != "created" || strings.TrimSpace(p.Comment.Body) == "" {
			return domain.CommentEvent{}, false, nil
		}
		return domain.CommentEvent{
			DeliveryID:     deliveryID,
			Body:           p.Comment.Body,
			SenderLogin:    p.Comment.User.Login,
			SenderIsBot:    p.Comment.User.Type == "Bot",
			Repo:           domain.RepoRef{Owner: p.Repository.Owner.Login, Name: p.Repository.Name},
			PullNumber:     p.PullRequest.Number,
			Comment:        domain.CommentRef{ID: p.Comment.ID, Kind: domain.CommentKindInline},
			InstallationID: p.Installation.ID,
			PullTitle:      p.PullRequest.Title,
			PullBody:       p.PullRequest.Body,
			PullAuthor:     p.PullRequest.User.Login,
			Path:           p.Comment.Path,
			DiffHunk:       p.Comment.DiffHunk,
		}, true, nil

	case "pull_request_review":
		var p reviewPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return domain.CommentEvent{}, false, err
		}
		if p.Action != "submitted" || strings.TrimSpace(p.Review.Body) == "" {
			return domain.CommentEvent{}, false, nil
		}
		return domain.CommentEvent{
			DeliveryID:     deliveryID,
			Body:           p.Review.Body,
			SenderLogin:    p.Review.User.Login,
			SenderIsBot:    p.Review.User.Type == "Bot",
			Repo:           domain.RepoRef{Owner: p.Repository.Owner.Login, Name: p.Repository.Name},
			PullNumber:     p.PullRequest.Number,
			Comment:        domain.CommentRef{ID: p.Review.ID, Kind: domain.CommentKindThread},
			InstallationID: p.Installation.ID,
			PullTitle:      p.PullRequest.Title,
			PullBody:       p.PullRequest.Body,
			PullAuthor:     p.PullRequest.User.Login,
		}, true, nil

	default:
		return domain.CommentEvent{}, false, nil
	}
}
