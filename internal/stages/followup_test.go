package stages

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusesell/fusesell/internal/config"
	"github.com/fusesell/fusesell/internal/content"
	"github.com/fusesell/fusesell/internal/stage"
	"github.com/fusesell/fusesell/internal/store"
	"github.com/fusesell/fusesell/pkg/schema"
)

func followUpContext(processID string) *stage.Context {
	sc := stage.NewContext(&config.RunConfig{OrgID: "org-1"}, processID)
	sc.Input = map[string]any{
		"data": map[string]any{
			"prospect": content.Prospect{
				CompanyName: "Acme Logistics",
				ContactName: "Dana Reyes",
			},
			"org_name": "FuseSell Labs",
			"recommended_product": map[string]any{
				"product_name": "RouteMax",
			},
		},
	}
	return sc
}

func seedFollowUps(t *testing.T, ms *store.MemoryStore, processID string, total, sent int, createdAt time.Time) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < total; i++ {
		status := schema.DraftStatusDraft
		if i < sent {
			status = schema.DraftStatusSent
		}
		require.NoError(t, ms.SaveDraft(ctx, &store.Draft{
			ID:             fmt.Sprintf("fu-%d", i+1),
			ProcessID:      processID,
			Kind:           schema.DraftKindFollowUp,
			Version:        1,
			Status:         status,
			SequenceNumber: i + 1,
			CreatedAt:      createdAt.Add(time.Duration(i) * time.Hour),
		}))
	}
}

func TestFollowUpWritesNextInSequence(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	s := NewFollowUp(testDeps(ms, now))

	// One follow-up sent ten days ago: gate open, next sequence is 2.
	seedFollowUps(t, ms, "p1", 1, 1, now.Add(-10*24*time.Hour))

	res, err := s.ExecuteAction(ctx, followUpContext("p1"), schema.ActionDraftWrite)
	require.NoError(t, err)
	require.True(t, res.Success(), "result: %+v", res)
	assert.Equal(t, 2, res.Data["sequence_number"])

	draft, err := ms.GetDraft(ctx, res.Data["draft_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, schema.DraftKindFollowUp, draft.Kind)
	assert.Equal(t, 2, draft.SequenceNumber)
}

func TestFollowUpGateMaxAttempts(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	s := NewFollowUp(testDeps(ms, now))

	// Five follow-ups already exist; the sixth exceeds the cap.
	// Keep sent below the sentiment threshold so the cap is what fires.
	seedFollowUps(t, ms, "p1", 5, 3, now.Add(-30*24*time.Hour))

	res, err := s.ExecuteAction(ctx, followUpContext("p1"), schema.ActionDraftWrite)
	require.NoError(t, err)
	assert.Equal(t, schema.StageResultSkipped, res.Status)
	assert.True(t, res.Stop)
	assert.Contains(t, res.Reason, "maximum follow-up attempts")

	drafts, err := ms.ListDrafts(ctx, store.DraftFilter{ProcessID: "p1"})
	require.NoError(t, err)
	assert.Len(t, drafts, 5, "no new draft written")
}

func TestFollowUpGateNegativeSentiment(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	s := NewFollowUp(testDeps(ms, now))

	// Four sent without a reply trips the sentiment heuristic.
	seedFollowUps(t, ms, "p1", 4, 4, now.Add(-30*24*time.Hour))

	res, err := s.ExecuteAction(ctx, followUpContext("p1"), schema.ActionDraftWrite)
	require.NoError(t, err)
	assert.Equal(t, schema.StageResultSkipped, res.Status)
	assert.Contains(t, res.Reason, "negative sentiment")
}

func TestFollowUpGateTooSoon(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	s := NewFollowUp(testDeps(ms, now))

	// One follow-up sent yesterday: under the 3-day gap.
	seedFollowUps(t, ms, "p1", 1, 1, now.Add(-24*time.Hour))

	res, err := s.ExecuteAction(ctx, followUpContext("p1"), schema.ActionDraftWrite)
	require.NoError(t, err)
	assert.Equal(t, schema.StageResultSkipped, res.Status)
	assert.Contains(t, res.Reason, "too soon")
}

func TestFollowUpFirstDraftNeedsNoGap(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	s := NewFollowUp(testDeps(ms, now))

	// No follow-ups yet: the gap rule does not apply.
	res, err := s.ExecuteAction(ctx, followUpContext("p1"), schema.ActionDraftWrite)
	require.NoError(t, err)
	require.True(t, res.Success(), "result: %+v", res)
	assert.Equal(t, 1, res.Data["sequence_number"])
}

func TestFollowUpUsesExecutedEventForLastInteraction(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	s := NewFollowUp(testDeps(ms, now))

	// A follow-up sent long ago, but an executed event yesterday.
	seedFollowUps(t, ms, "p1", 1, 1, now.Add(-30*24*time.Hour))
	executedAt := now.Add(-12 * time.Hour)
	executed := schema.EventStatusExecuted
	require.NoError(t, ms.InsertScheduledEvent(ctx, &store.ScheduledEvent{
		ID: "ev1", Kind: schema.EventKindEmailSend, ScheduledTime: executedAt,
		Status: schema.EventStatusPending, DraftID: "fu-1", ProcessID: "p1",
		OrgID: "org-1", RecipientAddress: "dana@example.com",
	}))
	require.NoError(t, ms.UpdateScheduledEvent(ctx, "ev1", store.EventUpdate{
		Status: &executed, ExecutedAt: &executedAt,
	}))

	res, err := s.ExecuteAction(ctx, followUpContext("p1"), schema.ActionDraftWrite)
	require.NoError(t, err)
	assert.Equal(t, schema.StageResultSkipped, res.Status)
	assert.Contains(t, res.Reason, "too soon")
}
