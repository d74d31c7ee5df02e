package gateway

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/contextwizard/wizardd/internal/domain"
	"github.com/contextwizard/wizardd/internal/usecase/botguard"
	"github.com/contextwizard/wizardd/internal/usecase/command"
)

// DefaultProcessTimeout bounds the handling of one webhook delivery,
// including any model calls it triggers.
const DefaultProcessTimeout = 2 * time.Minute

// CommandHandler resolves /accept and /reject commands.
type CommandHandler interface {
	HandleCommand(ctx context.Context, event domain.CommentEvent, cmd command.Command) error
}

// FeedbackHandler analyzes free-text feedback and runs wizard reviews.
type FeedbackHandler interface {
	HandleFeedback(ctx context.Context, event domain.CommentEvent) error
	HandleWizardReview(ctx context.Context, event domain.CommentEvent) error
}

// Dispatcher routes normalized comment events: bot senders are dropped,
// commands go to the registry, everything else to the analysis pipeline.
// Processing is asynchronous so the webhook endpoint can answer immediately.
type Dispatcher struct {
	guard    *botguard.Guard
	commands CommandHandler
	feedback FeedbackHandler
	timeout  time.Duration
	log      *zap.Logger

	wg sync.WaitGroup
}

// NewDispatcher wires a dispatcher with the default processing timeout.
func NewDispatcher(guard *botguard.Guard, commands CommandHandler, feedback FeedbackHandler, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		guard:    guard,
		commands: commands,
		feedback: feedback,
		timeout:  DefaultProcessTimeout,
		log:      log,
	}
}

// SetTimeout overrides the per-event processing timeout.
func (d *Dispatcher) SetTimeout(timeout time.Duration) {
	d.timeout = timeout
}

// Enqueue processes the event on its own goroutine.
func (d *Dispatcher) Enqueue(event domain.CommentEvent) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		d.Process(ctx, event)
	}()
}

// Wait blocks until all enqueued events finish, for graceful shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Process handles one event synchronously.
func (d *Dispatcher) Process(ctx context.Context, event domain.CommentEvent) {
	log := d.log.With(
		zap.String("delivery", event.DeliveryID),
		zap.String("repo", event.Repo.String()),
		zap.Int("pr", event.PullNumber),
		zap.String("sender", event.SenderLogin),
	)

	if d.guard.IsBot(event.SenderLogin, event.SenderIsBot) {
		log.Debug("dropping event from bot sender")
		return
	}

	cmd := command.Parse(event.Body)
	switch cmd.Kind {
	case command.KindAccept, command.KindReject:
		log.Info("handling decision command",
			zap.String("command", cmd.Kind.String()),
			zap.String("code", cmd.Code))
		if err := d.commands.HandleCommand(ctx, event, cmd); err != nil {
			log.Error("command handling failed",
				zap.String("command", cmd.Kind.String()),
				zap.String("code", cmd.Code),
				zap.Error(err))
		}

	case command.KindWizardReview:
		log.Info("handling wizard review request")
		if err := d.feedback.HandleWizardReview(ctx, event); err != nil {
			log.Error("wizard review failed", zap.Error(err))
		}

	default:
		if err := d.feedback.HandleFeedback(ctx, event); err != nil {
			log.Error("feedback handling failed", zap.Error(err))
		}
	}
}
