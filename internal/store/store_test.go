package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusesell/fusesell/pkg/schema"
)

func newTestProcess(orgID string) *Process {
	return &Process{
		ID:     uuid.NewString(),
		OrgID:  orgID,
		Status: schema.ProcessStatusRunning,
	}
}

func TestProcessLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p := newTestProcess("org-1")
	require.NoError(t, s.CreateProcess(ctx, p))

	got, err := s.GetProcess(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.ProcessStatusRunning, got.Status)
	assert.Equal(t, int64(1), got.Version)

	completed := schema.ProcessStatusCompleted
	idx := 4
	require.NoError(t, s.UpdateProcess(ctx, p.ID, ProcessUpdate{Status: &completed, RuntimeIndex: &idx}))

	got, err = s.GetProcess(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.ProcessStatusCompleted, got.Status)
	assert.Equal(t, 4, got.CurrentRuntimeIndex)
	assert.Equal(t, int64(2), got.Version)
}

func TestUpdateProcessVersionConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p := newTestProcess("org-1")
	require.NoError(t, s.CreateProcess(ctx, p))

	continued := schema.ProcessStatusContinued
	v1 := int64(1)
	require.NoError(t, s.UpdateProcess(ctx, p.ID, ProcessUpdate{Status: &continued, ExpectedVersion: &v1}))

	// Second writer still holds version 1; the row has moved on.
	err := s.UpdateProcess(ctx, p.ID, ProcessUpdate{Status: &continued, ExpectedVersion: &v1})
	require.Error(t, err)
	var serr *schema.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, schema.ErrCodeConflict, serr.Code)
}

func TestGetProcessNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.GetProcess(context.Background(), "missing")
	var serr *schema.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, schema.ErrCodeNotFound, serr.Code)
}

func TestListOperationsOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p := newTestProcess("org-1")
	require.NoError(t, s.CreateProcess(ctx, p))

	for _, spec := range []struct {
		stage   string
		runtime int
		chain   int
	}{
		{"initial_outreach", 3, 0},
		{"data_acquisition", 0, 0},
		{"lead_scoring", 2, 0},
		{"data_preparation", 1, 0},
	} {
		require.NoError(t, s.CreateOperation(ctx, &Operation{
			ID:              uuid.NewString(),
			ProcessID:       p.ID,
			StageName:       spec.stage,
			RuntimeIndex:    spec.runtime,
			ChainIndex:      spec.chain,
			ExecutionStatus: schema.OperationStatusDone,
		}))
	}

	ops, err := s.ListOperations(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, ops, 4)
	assert.Equal(t, "data_acquisition", ops[0].StageName)
	assert.Equal(t, "initial_outreach", ops[3].StageName)
}

func TestDraftFilterByKindAndStatus(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	drafts := []*Draft{
		{ID: "d1", ProcessID: "p1", Kind: schema.DraftKindInitial, Status: schema.DraftStatusDraft, CreatedAt: base},
		{ID: "d2", ProcessID: "p1", Kind: schema.DraftKindInitial, Status: schema.DraftStatusSent, CreatedAt: base.Add(time.Minute)},
		{ID: "d3", ProcessID: "p1", Kind: schema.DraftKindFollowUp, Status: schema.DraftStatusDraft, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "d4", ProcessID: "p2", Kind: schema.DraftKindInitial, Status: schema.DraftStatusDraft, CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, d := range drafts {
		require.NoError(t, s.SaveDraft(ctx, d))
	}

	kind := schema.DraftKindInitial
	status := schema.DraftStatusDraft
	got, err := s.ListDrafts(ctx, DraftFilter{ProcessID: "p1", Kind: &kind, Status: &status})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d1", got[0].ID)
}

func TestScheduledEventDueBefore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{-time.Hour, -time.Minute, time.Hour} {
		require.NoError(t, s.InsertScheduledEvent(ctx, &ScheduledEvent{
			ID:            uuid.NewString(),
			Kind:          schema.EventKindEmailSend,
			ScheduledTime: now.Add(offset),
			Status:        schema.EventStatusPending,
			DraftID:       "d1",
			ProcessID:     "p1",
			OrgID:         "org-1",
			CreatedAt:     now.Add(time.Duration(i) * time.Second),
		}))
	}

	pending := schema.EventStatusPending
	due, err := s.ListScheduledEvents(ctx, EventFilter{Status: &pending, DueBefore: &now})
	require.NoError(t, err)
	assert.Len(t, due, 2)
	for _, ev := range due {
		assert.False(t, ev.ScheduledTime.After(now))
	}
}

func TestReminderTaskImportUUIDDedup(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	task := &ReminderTask{
		ID:            uuid.NewString(),
		Status:        "active",
		Task:          "send follow-up email to Dana Reyes",
		Cron:          "30 9 5 3 *",
		Content:       schema.ReminderContentFollowUp,
		OrgID:         "org-1",
		ImportUUID:    "org-1_cust-9_p1_d1",
		ScheduledTime: time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, s.InsertReminderTask(ctx, task))

	dup := *task
	dup.ID = uuid.NewString()
	err := s.InsertReminderTask(ctx, &dup)
	require.Error(t, err)
	var serr *schema.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, schema.ErrCodeConflict, serr.Code)
}

func TestSchedulingRulePrecedence(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.UpsertSchedulingRule(ctx, &SchedulingRule{
		ID: uuid.NewString(), OrgID: "org-1", Name: "org-default", Active: true,
		BusinessHoursStart: "09:00", BusinessHoursEnd: "18:00",
		DefaultDelayHours: 2, Timezone: "America/New_York", FollowUpDelayHours: 96,
	}))

	r, err := s.GetSchedulingRule(ctx, "org-1", "")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", r.Timezone)

	// No team-scoped rule exists for this team.
	_, err = s.GetSchedulingRule(ctx, "org-1", "team-7")
	require.Error(t, err)
}

func TestTeamSettings(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.SetTeamSetting(ctx, "team-1", "email_scheduling", []byte(`{"delay_hours":6}`)))
	v, err := s.GetTeamSetting(ctx, "team-1", "email_scheduling")
	require.NoError(t, err)
	assert.JSONEq(t, `{"delay_hours":6}`, string(v))

	_, err = s.GetTeamSetting(ctx, "team-1", "unknown")
	require.Error(t, err)
}
