package schedule

import (
	"context"
	"log"
	"time"

	"github.com/getsentry/sentry-go"

	"wavebot/internal/broadcast"
)

// Reporter is notified about each dispatched post so the admin can see the
// outcome (and retract it) without having asked at that moment.
type Reporter interface {
	ReportDispatch(ctx context.Context, post Post, outcome *broadcast.Outcome, err error)
}

// Reconciler drains due posts and broadcasts them. It is driven externally:
// by the cron HTTP endpoint, by an optional internal ticker, or by both.
type Reconciler struct {
	queue    *Queue
	engine   *broadcast.Engine
	reporter Reporter
}

// NewReconciler creates a Reconciler. reporter may be nil.
func NewReconciler(queue *Queue, engine *broadcast.Engine, reporter Reporter) *Reconciler {
	return &Reconciler{queue: queue, engine: engine, reporter: reporter}
}

// Run dispatches every post due at now and returns how many were processed.
// Posts are consumed before dispatch, so a post that fails to broadcast is
// not retried on the next run.
func (r *Reconciler) Run(ctx context.Context, now time.Time) (int, error) {
	due, err := r.queue.ConsumeDue(ctx, now)
	if err != nil {
		return 0, err
	}

	for _, post := range due {
		outcome, err := r.engine.Broadcast(ctx, post.Payload, true)
		if err != nil {
			log.Printf("[Reconciler] Failed to dispatch post %s: %v", post.ID, err)
			sentry.CaptureException(err)
		} else {
			log.Printf("[Reconciler] Dispatched post %s: sent=%d failed=%d", post.ID, len(outcome.Sent), len(outcome.Failed))
		}
		if r.reporter != nil {
			r.reporter.ReportDispatch(ctx, post, outcome, err)
		}
	}
	return len(due), nil
}
