package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nhle/inbox-sweep/internal/chatdb"
	"github.com/nhle/inbox-sweep/internal/session"
	"github.com/nhle/inbox-sweep/internal/triage"
)

// RefreshState represents the current state of the refresh loop.
type RefreshState int

const (
	RefreshIdle RefreshState = iota
	RefreshRunning
	RefreshError
)

// Status holds the outcome of the most recent refresh.
type Status struct {
	State       RefreshState
	LastRefresh time.Time
	Error       error
}

// Snapshotter produces the current unread chat snapshot. A failed
// fetch is distinct from an empty snapshot: an error leaves the
// session untouched, while a successful empty result clears it.
type Snapshotter interface {
	UnreadChats(ctx context.Context) ([]chatdb.Chat, error)
}

// fetchTimeout is the maximum time allowed for a single snapshot read.
const fetchTimeout = 30 * time.Second

// Refresher periodically rebuilds the triage view from the message
// store and reconciles it into the session. Concurrent refresh
// requests are coalesced so the store sees at most one read at a time.
type Refresher struct {
	snap   Snapshotter
	agg    *triage.Aggregator
	sess   *session.Session
	log    *slog.Logger
	group  singleflight.Group
	mu     gosync.Mutex
	status Status
}

// New creates a Refresher reading snapshots from snap, building
// conversations with agg, and reconciling into sess.
func New(snap Snapshotter, agg *triage.Aggregator, sess *session.Session, log *slog.Logger) *Refresher {
	if log == nil {
		log = slog.Default()
	}
	return &Refresher{
		snap: snap,
		agg:  agg,
		sess: sess,
		log:  log,
	}
}

// Refresh performs one fetch-build-reconcile cycle. Overlapping calls
// share a single in-flight cycle and all observe its result.
func (r *Refresher) Refresh(ctx context.Context) (session.ReconcileResult, error) {
	v, err, _ := r.group.Do("refresh", func() (interface{}, error) {
		return r.refresh(ctx)
	})
	if err != nil {
		return session.ReconcileResult{}, err
	}
	return v.(session.ReconcileResult), nil
}

func (r *Refresher) refresh(ctx context.Context) (session.ReconcileResult, error) {
	r.setStatus(RefreshRunning, nil)

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	chats, err := r.snap.UnreadChats(ctx)
	if err != nil {
		r.setStatus(RefreshError, err)
		return session.ReconcileResult{}, fmt.Errorf("fetching unread chats: %w", err)
	}

	conversations := r.agg.Build(chats)
	result := r.sess.Reconcile(conversations)

	r.setStatus(RefreshIdle, nil)
	r.log.Debug("refreshed session",
		"conversations", len(conversations),
		"inserted", result.Inserted,
		"updated", result.Updated,
		"removed", result.Removed,
	)
	return result, nil
}

// Run refreshes immediately and then on every tick of interval until
// ctx is cancelled. Refresh errors are logged and the loop continues.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 120 * time.Second
	}

	if _, err := r.Refresh(ctx); err != nil {
		r.log.Error("refresh failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Refresh(ctx); err != nil {
				r.log.Error("refresh failed", "error", err)
			}
		}
	}
}

// GetStatus returns the state of the most recent refresh.
func (r *Refresher) GetStatus() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Refresher) setStatus(state RefreshState, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.State = state
	r.status.Error = err
	if state == RefreshIdle && err == nil {
		r.status.LastRefresh = time.Now()
	}
}
