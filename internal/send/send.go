package send

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nhle/inbox-sweep/internal/model"
	"github.com/nhle/inbox-sweep/internal/session"
)

// Capability is the external transmission boundary. The orchestrator
// does not know or care how a message actually leaves the machine.
type Capability interface {
	// Send delivers body to the conversation identified by recipient.
	Send(ctx context.Context, recipient, body string) error
}

// Result is the outcome of one attempted send.
type Result struct {
	// ConversationID is the stable conversation identifier.
	ConversationID string

	// Name is the conversation's display name at send time.
	Name string

	// Err is nil on success. Failures are independent: one failed
	// item never aborts the rest of the batch.
	Err error
}

// Report aggregates the per-item outcomes of one send-all batch.
type Report struct {
	// BatchID uniquely identifies this batch for logging.
	BatchID string

	// Started is when the batch began.
	Started time.Time

	// Results holds one entry per attempted conversation, in the
	// order they were attempted.
	Results []Result
}

// Succeeded returns the number of successful sends.
func (r *Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of failed sends.
func (r *Report) Failed() int {
	return len(r.Results) - r.Succeeded()
}

// Orchestrator drains the committed drafts of a session through a send
// capability, one at a time. The underlying transmission mechanism is
// a single-consumer interface, so sends are never issued concurrently.
type Orchestrator struct {
	capability Capability
	limiter    *rate.Limiter
	timeout    time.Duration
}

// NewOrchestrator creates an Orchestrator around capability with the
// given send configuration.
func NewOrchestrator(capability Capability, cfg model.SendConfig) *Orchestrator {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.PerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.PerMinute)/60.0), 1)
	}

	return &Orchestrator{
		capability: capability,
		limiter:    limiter,
		timeout:    timeout,
	}
}

// SendAll sends every committed draft in sess in priority order.
// Successful conversations have their draft cleared; failed ones stay
// Committed so the user can retry. Every selected conversation is
// attempted unless ctx is cancelled, in which case the partial report
// is returned along with the context error. Drafts not in the
// Committed phase are never sent.
func (o *Orchestrator) SendAll(ctx context.Context, sess *session.Session) (*Report, error) {
	report := &Report{
		BatchID: uuid.New().String(),
		Started: time.Now(),
	}

	for _, entry := range sess.Committed() {
		// Cancellation is honored between items, never mid-send.
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := o.limiter.Wait(ctx); err != nil {
			return report, err
		}

		conv := entry.Conversation
		err := o.sendOne(ctx, conv.ID, entry.Draft.Text)
		if err == nil {
			sess.ClearDraft(conv.ID)
		}
		report.Results = append(report.Results, Result{
			ConversationID: conv.ID,
			Name:           conv.Name(),
			Err:            err,
		})
	}

	return report, nil
}

func (o *Orchestrator) sendOne(ctx context.Context, recipient, body string) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	if err := o.capability.Send(ctx, recipient, body); err != nil {
		return fmt.Errorf("sending to %s: %w", recipient, err)
	}
	return nil
}
