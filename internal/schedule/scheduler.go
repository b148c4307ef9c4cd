package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fusesell/fusesell/internal/store"
	"github.com/fusesell/fusesell/pkg/schema"
)

// ScheduleRequest carries everything needed to defer one draft send.
// The override fields, when non-zero, take precedence over the
// resolved rule for this request only.
type ScheduleRequest struct {
	OrgID            string
	TeamID           string
	CustomerID       string
	ProcessID        string
	Draft            *store.Draft
	RecipientAddress string
	RecipientName    string
	CustomerTimezone string
	Payload          json.RawMessage

	BusinessHoursStart string
	BusinessHoursEnd   string
	DelayHours         int
	FollowUpDelayHours int
}

// applyOverrides layers per-request overrides on top of a resolved
// rule, returning a copy when anything changes.
func (req ScheduleRequest) applyOverrides(rule *store.SchedulingRule) *store.SchedulingRule {
	if req.BusinessHoursStart == "" && req.BusinessHoursEnd == "" &&
		req.DelayHours == 0 && req.FollowUpDelayHours == 0 {
		return rule
	}
	out := *rule
	if req.BusinessHoursStart != "" {
		out.BusinessHoursStart = req.BusinessHoursStart
	}
	if req.BusinessHoursEnd != "" {
		out.BusinessHoursEnd = req.BusinessHoursEnd
	}
	if req.DelayHours > 0 {
		out.DefaultDelayHours = req.DelayHours
	}
	if req.FollowUpDelayHours > 0 {
		out.FollowUpDelayHours = req.FollowUpDelayHours
	}
	return &out
}

// ScheduleResult reports what was persisted for one request.
type ScheduleResult struct {
	Event         *store.ScheduledEvent
	FollowUpEvent *store.ScheduledEvent
}

// Scheduler computes deferred send times and persists scheduled events
// with their reminder-task mirrors.
type Scheduler struct {
	store    store.Store
	resolver *Resolver
	logger   *slog.Logger
	now      func() time.Time
}

// NewScheduler creates a Scheduler. The now function defaults to
// time.Now and exists for tests.
func NewScheduler(s store.Store, resolver *Resolver, logger *slog.Logger, now func() time.Time) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Scheduler{store: s, resolver: resolver, logger: logger, now: now}
}

// ScheduleSend resolves the effective rule, computes the send time,
// and persists the email_send event plus its reminder task. For the
// first ever deferred send of an initial draft it also chains exactly
// one follow_up event at the raw follow-up offset.
func (s *Scheduler) ScheduleSend(ctx context.Context, req ScheduleRequest) (*ScheduleResult, error) {
	if req.Draft == nil {
		return nil, schema.NewError(schema.ErrCodeScheduling, "schedule request has no draft")
	}
	if req.RecipientAddress == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "recipient_address is required for a deferred send")
	}

	rule := req.applyOverrides(s.resolver.Resolve(ctx, req.OrgID, req.TeamID))
	now := s.now()
	sendAt := ComputeSendTime(rule, req.CustomerTimezone, now)

	// The follow-up is chained only when this is the draft's first
	// deferred send: any prior email_send event, whatever its status,
	// suppresses the chain.
	chainFollowUp := false
	if req.Draft.Kind == schema.DraftKindInitial {
		kind := schema.EventKindEmailSend
		prior, err := s.store.ListScheduledEvents(ctx, store.EventFilter{DraftID: req.Draft.ID, Kind: &kind})
		if err != nil {
			return nil, schema.NewError(schema.ErrCodeStore, "list prior events").WithCause(err)
		}
		chainFollowUp = len(prior) == 0
	}

	event := &store.ScheduledEvent{
		ID:               uuid.NewString(),
		Kind:             schema.EventKindEmailSend,
		ScheduledTime:    sendAt,
		Status:           schema.EventStatusPending,
		DraftID:          req.Draft.ID,
		ProcessID:        req.ProcessID,
		OrgID:            req.OrgID,
		TeamID:           req.TeamID,
		RecipientAddress: req.RecipientAddress,
		RecipientName:    req.RecipientName,
		CustomerTimezone: req.CustomerTimezone,
		Payload:          req.Payload,
	}
	if err := s.store.InsertScheduledEvent(ctx, event); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "insert scheduled event").WithCause(err)
	}
	s.insertReminder(ctx, req, event, schema.ReminderContentDraftSend)

	result := &ScheduleResult{Event: event}

	if chainFollowUp {
		followAt := FollowUpTime(rule, now)
		follow := &store.ScheduledEvent{
			ID:               uuid.NewString(),
			Kind:             schema.EventKindFollowUp,
			ScheduledTime:    followAt,
			Status:           schema.EventStatusPending,
			DraftID:          req.Draft.ID,
			ProcessID:        req.ProcessID,
			OrgID:            req.OrgID,
			TeamID:           req.TeamID,
			RecipientAddress: req.RecipientAddress,
			RecipientName:    req.RecipientName,
			CustomerTimezone: req.CustomerTimezone,
		}
		if err := s.store.InsertScheduledEvent(ctx, follow); err != nil {
			// The initial send is already committed; the chain is
			// best-effort bookkeeping on top of it.
			s.logger.ErrorContext(ctx, "insert chained follow-up event failed",
				slog.String("draft_id", req.Draft.ID), slog.Any("error", err))
		} else {
			s.insertReminder(ctx, req, follow, schema.ReminderContentFollowUp)
			result.FollowUpEvent = follow
		}
	}

	return result, nil
}

// Cancel moves a pending event to cancelled. Cancelling an already
// cancelled event is a no-op; executed events cannot be cancelled.
// Events are never deleted and cancellation never cascades.
func (s *Scheduler) Cancel(ctx context.Context, eventID string) error {
	event, err := s.store.GetScheduledEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.Status == schema.EventStatusCancelled {
		return nil
	}
	if !schema.CanTransitionEvent(event.Status, schema.EventStatusCancelled) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"scheduled event %q is %s and cannot be cancelled", eventID, event.Status)
	}
	cancelled := schema.EventStatusCancelled
	return s.store.UpdateScheduledEvent(ctx, eventID, store.EventUpdate{Status: &cancelled})
}

// insertReminder writes the denormalized reminder-task mirror for an
// event. Duplicate import UUIDs and store faults are logged, not
// propagated: reminders are derived state.
func (s *Scheduler) insertReminder(ctx context.Context, req ScheduleRequest, event *store.ScheduledEvent, content schema.ReminderContent) {
	label := fmt.Sprintf("Send outreach draft to %s", recipientLabel(req))
	dedupKey := importUUID(req.OrgID, req.CustomerID, req.ProcessID, req.Draft.ID)
	if content == schema.ReminderContentFollowUp {
		label = fmt.Sprintf("Send follow-up email to %s", recipientLabel(req))
		// The chained follow-up shares the initial draft's id, so its
		// dedup key carries a discriminating suffix.
		dedupKey += "_follow_up"
	}

	task := &store.ReminderTask{
		ID:            uuid.NewString(),
		Status:        "active",
		Task:          label,
		Cron:          cronSpec(event.ScheduledTime),
		Tags:          []string{"fusesell", string(event.Kind)},
		Content:       content,
		OrgID:         req.OrgID,
		CustomerID:    req.CustomerID,
		ProcessID:     req.ProcessID,
		DraftID:       req.Draft.ID,
		ImportUUID:    dedupKey,
		ScheduledTime: event.ScheduledTime,
		Extra:         req.Payload,
	}
	if err := s.store.InsertReminderTask(ctx, task); err != nil {
		s.logger.WarnContext(ctx, "insert reminder task failed",
			slog.String("import_uuid", task.ImportUUID), slog.Any("error", err))
	}
}

// cronSpec renders a one-shot cron expression for the given instant.
func cronSpec(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%d %d %d %d *", t.Minute(), t.Hour(), t.Day(), int(t.Month()))
}

func recipientLabel(req ScheduleRequest) string {
	if req.RecipientName != "" {
		return req.RecipientName
	}
	return req.RecipientAddress
}
