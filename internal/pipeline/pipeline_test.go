package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusesell/fusesell/internal/config"
	"github.com/fusesell/fusesell/internal/content"
	"github.com/fusesell/fusesell/internal/delivery"
	"github.com/fusesell/fusesell/internal/schedule"
	"github.com/fusesell/fusesell/internal/stage"
	"github.com/fusesell/fusesell/internal/stages"
	"github.com/fusesell/fusesell/internal/store"
	"github.com/fusesell/fusesell/pkg/schema"
)

// scriptedStage records its executions and returns a canned result.
type scriptedStage struct {
	name string
	log  *[]string
	run  func(sc *stage.Context) *stage.Result
}

func (s *scriptedStage) Name() string { return s.name }

func (s *scriptedStage) Validate(*stage.Context) bool { return true }

func (s *scriptedStage) Execute(_ context.Context, sc *stage.Context) (*stage.Result, error) {
	*s.log = append(*s.log, s.name)
	if s.run != nil {
		return s.run(sc), nil
	}
	return &stage.Result{
		Stage:  s.name,
		Status: schema.StageResultSuccess,
		Data:   map[string]any{"data": map[string]any{"from": s.name}},
	}, nil
}

type scriptedActionStage struct {
	scriptedStage
}

func (s *scriptedActionStage) ExecuteAction(_ context.Context, sc *stage.Context, action schema.Action) (*stage.Result, error) {
	*s.log = append(*s.log, fmt.Sprintf("%s:%s", s.name, action))
	if s.run != nil {
		return s.run(sc), nil
	}
	return &stage.Result{
		Stage:  s.name,
		Status: schema.StageResultSuccess,
		Action: action,
		Data:   map[string]any{"data": map[string]any{"from": s.name}},
	}, nil
}

// scriptedRegistry builds a registry with all five stage names scripted
// against the shared execution log. Overrides replace individual runs.
func scriptedRegistry(t *testing.T, log *[]string, overrides map[string]func(sc *stage.Context) *stage.Result) *stage.Registry {
	t.Helper()
	reg := stage.NewRegistry()
	for _, name := range stage.CanonicalOrder {
		base := scriptedStage{name: name, log: log, run: overrides[name]}
		var st stage.Stage = &base
		if name == stage.NameInitialOutreach || name == stage.NameFollowUp {
			st = &scriptedActionStage{scriptedStage: base}
		}
		require.NoError(t, reg.Register(st))
	}
	return reg
}

func newTestRunner(t *testing.T, ms store.Store, reg *stage.Registry) *Runner {
	t.Helper()
	validator, err := config.NewValidator()
	require.NoError(t, err)
	r := NewRunner(ms, reg, validator, slog.Default())
	r.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }
	return r
}

func TestRunSkipStages(t *testing.T) {
	ctx := context.Background()
	var executed []string
	ms := store.NewMemoryStore()
	r := newTestRunner(t, ms, scriptedRegistry(t, &executed, nil))

	res, err := r.Execute(ctx, &config.RunConfig{
		OrgID:      "org-1",
		SkipStages: []string{stage.NameLeadScoring},
	})
	require.NoError(t, err)
	assert.Equal(t, schema.ProcessStatusCompleted, res.Status)
	assert.Equal(t, []string{
		stage.NameDataAcquisition,
		stage.NameDataPreparation,
		stage.NameInitialOutreach,
		stage.NameFollowUp,
	}, executed, "skipped stage never invoked")
}

func TestRunStopAfter(t *testing.T) {
	ctx := context.Background()
	var executed []string
	ms := store.NewMemoryStore()
	r := newTestRunner(t, ms, scriptedRegistry(t, &executed, nil))

	res, err := r.Execute(ctx, &config.RunConfig{
		OrgID:     "org-1",
		StopAfter: stage.NameDataPreparation,
	})
	require.NoError(t, err)
	assert.Equal(t, schema.ProcessStatusCompleted, res.Status)
	assert.Equal(t, 2, res.StagesExecuted)
	assert.Equal(t, []string{stage.NameDataAcquisition, stage.NameDataPreparation}, executed)

	p, err := ms.GetProcess(ctx, res.ProcessID)
	require.NoError(t, err)
	assert.Equal(t, schema.ProcessStatusCompleted, p.Status)
}

func TestRunPausesAfterOutreachDraft(t *testing.T) {
	ctx := context.Background()
	var executed []string
	overrides := map[string]func(sc *stage.Context) *stage.Result{
		stage.NameInitialOutreach: func(*stage.Context) *stage.Result {
			return &stage.Result{
				Stage:  stage.NameInitialOutreach,
				Status: schema.StageResultSuccess,
				Action: schema.ActionDraftWrite,
				Data:   map[string]any{"data": map[string]any{}},
			}
		},
	}
	ms := store.NewMemoryStore()
	r := newTestRunner(t, ms, scriptedRegistry(t, &executed, overrides))

	res, err := r.Execute(ctx, &config.RunConfig{OrgID: "org-1"})
	require.NoError(t, err)
	assert.Equal(t, schema.ProcessStatusCompleted, res.Status)
	assert.Equal(t, 4, res.StagesExecuted)
	assert.NotContains(t, executed, stage.NameFollowUp, "review pause keeps follow-up out of the run")
}

func TestRunFailureSkipsSuccessors(t *testing.T) {
	ctx := context.Background()
	var executed []string
	overrides := map[string]func(sc *stage.Context) *stage.Result{
		stage.NameDataPreparation: func(*stage.Context) *stage.Result {
			return &stage.Result{
				Stage:  stage.NameDataPreparation,
				Status: schema.StageResultError,
				Error:  schema.NewError(schema.ErrCodeStageExecution, "boom"),
			}
		},
	}
	ms := store.NewMemoryStore()
	r := newTestRunner(t, ms, scriptedRegistry(t, &executed, overrides))

	res, err := r.Execute(ctx, &config.RunConfig{OrgID: "org-1"})
	require.NoError(t, err)
	assert.Equal(t, schema.ProcessStatusFailed, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, schema.ErrCodeStageExecution, res.Error.Code)

	assert.Equal(t, []string{stage.NameDataAcquisition, stage.NameDataPreparation}, executed)
	require.Len(t, res.StageResults, 5)
	for _, sr := range res.StageResults[2:] {
		assert.Equal(t, schema.StageResultSkipped, sr.Status)
		assert.Contains(t, sr.Reason, stage.NameDataPreparation)
	}
}

func TestRunStopFlagHaltsPipeline(t *testing.T) {
	ctx := context.Background()
	var executed []string
	overrides := map[string]func(sc *stage.Context) *stage.Result{
		stage.NameLeadScoring: func(*stage.Context) *stage.Result {
			return &stage.Result{
				Stage:  stage.NameLeadScoring,
				Status: schema.StageResultSkipped,
				Stop:   true,
				Reason: "nothing to score",
			}
		},
	}
	ms := store.NewMemoryStore()
	r := newTestRunner(t, ms, scriptedRegistry(t, &executed, overrides))

	res, err := r.Execute(ctx, &config.RunConfig{OrgID: "org-1"})
	require.NoError(t, err)
	assert.Equal(t, schema.ProcessStatusCompleted, res.Status)
	assert.Len(t, res.StageResults, 3, "stop ends the run without skip records")
	assert.NotContains(t, executed, stage.NameInitialOutreach)
}

func TestRunPanicBecomesFailedResult(t *testing.T) {
	ctx := context.Background()
	var executed []string
	overrides := map[string]func(sc *stage.Context) *stage.Result{
		stage.NameDataAcquisition: func(*stage.Context) *stage.Result {
			panic("unexpected shape")
		},
	}
	ms := store.NewMemoryStore()
	r := newTestRunner(t, ms, scriptedRegistry(t, &executed, overrides))

	res, err := r.Execute(ctx, &config.RunConfig{OrgID: "org-1"})
	require.NoError(t, err)
	assert.Equal(t, schema.ProcessStatusFailed, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, schema.ErrCodeStageExecution, res.Error.Code)
	assert.Contains(t, res.Error.Message, "unexpected shape")

	p, err := ms.GetProcess(ctx, res.ProcessID)
	require.NoError(t, err)
	assert.Equal(t, schema.ProcessStatusFailed, p.Status)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	ctx := context.Background()
	var executed []string
	ms := store.NewMemoryStore()
	r := newTestRunner(t, ms, scriptedRegistry(t, &executed, nil))

	_, err := r.Execute(ctx, &config.RunConfig{})
	require.Error(t, err)
	serr, ok := err.(*schema.Error)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, serr.Code)
	assert.Empty(t, executed, "nothing runs on invalid config")
}

func TestRunRecordsOperations(t *testing.T) {
	ctx := context.Background()
	var executed []string
	ms := store.NewMemoryStore()
	r := newTestRunner(t, ms, scriptedRegistry(t, &executed, nil))

	res, err := r.Execute(ctx, &config.RunConfig{OrgID: "org-1", StopAfter: stage.NameLeadScoring})
	require.NoError(t, err)

	ops, err := ms.ListOperations(ctx, res.ProcessID)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	for i, op := range ops {
		assert.Equal(t, stage.CanonicalOrder[i], op.StageName)
		assert.Equal(t, schema.OperationStatusDone, op.ExecutionStatus)
		assert.NotEmpty(t, op.Output)
	}
}

func TestContinuationSendRoutesToOutreach(t *testing.T) {
	ctx := context.Background()
	var executed []string
	ms := store.NewMemoryStore()
	r := newTestRunner(t, ms, scriptedRegistry(t, &executed, nil))

	require.NoError(t, ms.CreateProcess(ctx, &store.Process{
		ID: "prior-1", OrgID: "org-1", Status: schema.ProcessStatusCompleted,
	}))

	res, err := r.Execute(ctx, &config.RunConfig{
		OrgID:             "org-1",
		ContinueProcessID: "prior-1",
		Action:            "send",
		SelectedDraftID:   "d1",
		RecipientAddress:  "dana@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, schema.ProcessStatusCompleted, res.Status)
	assert.Equal(t, "prior-1", res.ProcessID)
	assert.Equal(t, []string{"initial_outreach:send"}, executed)

	p, err := ms.GetProcess(ctx, "prior-1")
	require.NoError(t, err)
	assert.Equal(t, schema.ProcessStatusContinued, p.Status)
}

func TestContinuationDraftAfterOutreachRoutesToFollowUp(t *testing.T) {
	ctx := context.Background()
	var executed []string
	ms := store.NewMemoryStore()
	r := newTestRunner(t, ms, scriptedRegistry(t, &executed, nil))

	require.NoError(t, ms.CreateProcess(ctx, &store.Process{
		ID: "prior-1", OrgID: "org-1", Status: schema.ProcessStatusCompleted,
	}))

	// Prior run completed outreach; its persisted output drives routing.
	output, err := json.Marshal(&stage.Result{
		Stage:  stage.NameInitialOutreach,
		Status: schema.StageResultSuccess,
		Data:   map[string]any{"data": map[string]any{"org_name": "FuseSell Labs"}},
	})
	require.NoError(t, err)
	require.NoError(t, ms.CreateOperation(ctx, &store.Operation{
		ID: "op-1", ProcessID: "prior-1", StageName: stage.NameInitialOutreach,
		RuntimeIndex: 3, ExecutionStatus: schema.OperationStatusDone, Output: output,
	}))

	res, err := r.Execute(ctx, &config.RunConfig{
		OrgID:             "org-1",
		ContinueProcessID: "prior-1",
		Action:            "draft_write",
	})
	require.NoError(t, err)
	assert.Equal(t, schema.ProcessStatusCompleted, res.Status)
	assert.Equal(t, []string{"follow_up:draft_write"}, executed)
}

func TestContinuationDraftWithoutOutreachStaysOnOutreach(t *testing.T) {
	ctx := context.Background()
	var executed []string
	ms := store.NewMemoryStore()
	r := newTestRunner(t, ms, scriptedRegistry(t, &executed, nil))

	require.NoError(t, ms.CreateProcess(ctx, &store.Process{
		ID: "prior-1", OrgID: "org-1", Status: schema.ProcessStatusFailed,
	}))

	_, err := r.Execute(ctx, &config.RunConfig{
		OrgID:             "org-1",
		ContinueProcessID: "prior-1",
		Action:            "draft_write",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"initial_outreach:draft_write"}, executed)
}

func TestContinuationUnknownProcess(t *testing.T) {
	ctx := context.Background()
	var executed []string
	ms := store.NewMemoryStore()
	r := newTestRunner(t, ms, scriptedRegistry(t, &executed, nil))

	_, err := r.Execute(ctx, &config.RunConfig{
		OrgID:             "org-1",
		ContinueProcessID: "missing",
		Action:            "send",
	})
	require.Error(t, err)
	serr, ok := err.(*schema.Error)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeNotFound, serr.Code)
	assert.Empty(t, executed)
}

// conflictStore simulates losing the continuation claim race.
type conflictStore struct {
	store.Store
}

func (c *conflictStore) UpdateProcess(ctx context.Context, id string, update store.ProcessUpdate) error {
	if update.ExpectedVersion != nil {
		return schema.NewError(schema.ErrCodeConflict, "process version changed")
	}
	return c.Store.UpdateProcess(ctx, id, update)
}

func TestContinuationClaimConflictStopsExecution(t *testing.T) {
	ctx := context.Background()
	var executed []string
	ms := store.NewMemoryStore()
	require.NoError(t, ms.CreateProcess(ctx, &store.Process{
		ID: "prior-1", OrgID: "org-1", Status: schema.ProcessStatusCompleted,
	}))

	r := newTestRunner(t, &conflictStore{Store: ms}, scriptedRegistry(t, &executed, nil))

	_, err := r.Execute(ctx, &config.RunConfig{
		OrgID:             "org-1",
		ContinueProcessID: "prior-1",
		Action:            "send",
	})
	require.Error(t, err)
	serr, ok := err.(*schema.Error)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeConflict, serr.Code)
	assert.Empty(t, executed, "losing the claim race never executes the action")
}

func TestRunEndToEndWithRealStages(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	logger := slog.Default()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	reg := stage.NewRegistry()
	require.NoError(t, stages.RegisterAll(reg, stages.Deps{
		Store:     ms,
		Scheduler: schedule.NewScheduler(ms, schedule.NewResolver(ms, logger), logger, func() time.Time { return now }),
		Gateway:   delivery.NewLogGateway(logger),
		Generator: content.NewTemplateGenerator(),
		Policy:    stages.NewSendPolicy(ms, logger),
		Logger:    logger,
		Now:       func() time.Time { return now },
	}))

	r := newTestRunner(t, ms, reg)

	res, err := r.Execute(ctx, &config.RunConfig{
		OrgID: "org-1",
		InputData: json.RawMessage(`{
			"company_name": "Acme Logistics",
			"contact_name": "Dana Reyes",
			"contact_email": "dana@acme.example",
			"industry": "logistics",
			"pain_points": ["manual route planning"],
			"org_name": "FuseSell Labs",
			"products": [
				{"name": "RouteMax", "description": "Automates route planning for logistics teams"}
			]
		}`),
	})
	require.NoError(t, err)
	require.Equal(t, schema.ProcessStatusCompleted, res.Status, "error: %+v", res.Error)

	// Four stages ran, then the run paused for draft review.
	assert.Equal(t, 4, res.StagesExecuted)
	assert.Equal(t, 4, res.StagesSuccessful)
	last := res.StageResults[len(res.StageResults)-1]
	assert.Equal(t, stage.NameInitialOutreach, last.Stage)
	assert.Equal(t, schema.ActionDraftWrite, last.Action)

	drafts, err := ms.ListDrafts(ctx, store.DraftFilter{ProcessID: res.ProcessID})
	require.NoError(t, err)
	assert.Len(t, drafts, 4, "one draft per outreach approach")
}
