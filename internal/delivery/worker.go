package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fusesell/fusesell/internal/store"
	"github.com/fusesell/fusesell/pkg/schema"
)

// DefaultPollSpec fires the poll every minute.
const DefaultPollSpec = "* * * * *"

// Worker polls the store for due pending events and pushes them
// through the Gateway. The poll cadence is a standard 5-field cron
// expression.
type Worker struct {
	store   store.Store
	gateway Gateway
	spec    cron.Schedule
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	inflightMu sync.Mutex
	inflight   map[string]struct{} // event IDs currently executing (dedup)
}

// NewWorker creates a Worker polling on the given cron spec
// (DefaultPollSpec when empty).
func NewWorker(s store.Store, gateway Gateway, pollSpec string, logger *slog.Logger) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if pollSpec == "" {
		pollSpec = DefaultPollSpec
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	spec, err := parser.Parse(pollSpec)
	if err != nil {
		return nil, fmt.Errorf("parse poll spec %q: %w", pollSpec, err)
	}
	return &Worker{
		store:    s,
		gateway:  gateway,
		spec:     spec,
		logger:   logger,
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}, nil
}

// Start launches the background polling loop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.done != nil {
		w.mu.Unlock()
		return fmt.Errorf("delivery worker already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.loop(loopCtx)
	w.logger.Info("delivery worker started")
	return nil
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)

	// Run an initial tick immediately.
	w.Tick(ctx)

	for {
		next := w.spec.Next(w.now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			w.Tick(ctx)
		}
	}
}

// Stop gracefully shuts down the worker.
func (w *Worker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel == nil {
		return nil
	}
	w.cancel()
	<-w.done
	w.cancel = nil
	w.done = nil

	w.logger.Info("delivery worker stopped")
	return nil
}

// Tick processes every pending event that is due. Exported so the CLI
// can run a single drain pass.
func (w *Worker) Tick(ctx context.Context) {
	now := w.now().UTC()
	pending := schema.EventStatusPending
	events, err := w.store.ListScheduledEvents(ctx, store.EventFilter{Status: &pending, DueBefore: &now})
	if err != nil {
		w.logger.Error("failed to list due events", slog.Any("error", err))
		return
	}

	for _, ev := range events {
		if !w.tryAcquire(ev.ID) {
			continue // already running (dedup)
		}
		if err := w.deliver(ctx, ev, now); err != nil {
			w.logger.Error("failed to deliver event",
				slog.String("event_id", ev.ID),
				slog.Any("error", err),
			)
		}
		w.release(ev.ID)
	}
}

// deliver pushes one event through the gateway and records the
// outcome. Gateway failure keeps the event pending with the error
// message recorded, so the next tick retries it.
func (w *Worker) deliver(ctx context.Context, ev *store.ScheduledEvent, now time.Time) error {
	draft, err := w.store.GetDraft(ctx, ev.DraftID)
	if err != nil {
		msg := fmt.Sprintf("load draft: %v", err)
		return w.store.UpdateScheduledEvent(ctx, ev.ID, store.EventUpdate{ErrorMessage: msg})
	}

	d := Delivery{
		EventID:          ev.ID,
		Kind:             ev.Kind,
		DraftID:          ev.DraftID,
		ProcessID:        ev.ProcessID,
		OrgID:            ev.OrgID,
		RecipientAddress: ev.RecipientAddress,
		RecipientName:    ev.RecipientName,
		Subject:          draft.Subject,
		Body:             draft.Content,
		Payload:          ev.Payload,
	}
	if err := w.gateway.Send(ctx, d); err != nil {
		return w.store.UpdateScheduledEvent(ctx, ev.ID, store.EventUpdate{
			ErrorMessage: err.Error(),
		})
	}

	executed := schema.EventStatusExecuted
	if err := w.store.UpdateScheduledEvent(ctx, ev.ID, store.EventUpdate{
		Status:     &executed,
		ExecutedAt: &now,
	}); err != nil {
		return err
	}

	if ev.Kind == schema.EventKindEmailSend {
		if err := w.store.UpdateDraftStatus(ctx, ev.DraftID, schema.DraftStatusSent); err != nil {
			// Tracking write: the send already happened.
			w.logger.Warn("failed to mark draft sent",
				slog.String("draft_id", ev.DraftID), slog.Any("error", err))
		}
	}

	w.logger.InfoContext(ctx, "event executed",
		slog.String("event_id", ev.ID),
		slog.String("kind", string(ev.Kind)),
	)
	return nil
}

func (w *Worker) tryAcquire(id string) bool {
	w.inflightMu.Lock()
	defer w.inflightMu.Unlock()
	if _, ok := w.inflight[id]; ok {
		return false
	}
	w.inflight[id] = struct{}{}
	return true
}

func (w *Worker) release(id string) {
	w.inflightMu.Lock()
	defer w.inflightMu.Unlock()
	delete(w.inflight, id)
}
