package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/fusesell/fusesell/internal/config"
	"github.com/fusesell/fusesell/internal/logging"
	"github.com/fusesell/fusesell/internal/stage"
	"github.com/fusesell/fusesell/internal/store"
	"github.com/fusesell/fusesell/pkg/schema"
)

// executeContinuation resumes a prior process with a single reviewer
// action instead of a full stage pass. The prior process is claimed
// with an optimistic version check before anything runs, so two
// concurrent continuation calls against the same process cannot both
// act on it.
func (r *Runner) executeContinuation(ctx context.Context, cfg *config.RunConfig) (*Result, error) {
	started := r.now()

	prior, err := r.store.GetProcess(ctx, cfg.ContinueProcessID)
	if err != nil {
		return nil, err
	}

	action, err := schema.ParseAction(cfg.Action)
	if err != nil {
		return nil, err
	}

	ctx = logging.WithIDs(ctx, prior.ID, "", prior.OrgID)
	log := logging.LogWith(ctx, r.logger)

	ops, err := r.store.ListOperations(ctx, prior.ID)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "load prior operations").WithCause(err)
	}

	sc := stage.NewContext(cfg, prior.ID)
	restoreOutputs(sc, ops)

	target := continuationStage(action, sc)
	st, err := r.registry.GetAction(target)
	if err != nil {
		return nil, err
	}

	// Claim the process before executing. Losing the version race means
	// another continuation got here first.
	continued := schema.ProcessStatusContinued
	if err := r.store.UpdateProcess(ctx, prior.ID, store.ProcessUpdate{
		Status:          &continued,
		ExpectedVersion: &prior.Version,
	}); err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "continuing process",
		slog.String("action", string(action)),
		slog.String("stage", target),
	)

	sc.Input = buildInput(target, sc)

	stageCtx := logging.WithStageName(ctx, target)
	op := r.beginOperation(stageCtx, prior.ID, target, len(ops), len(ops), sc.Input)
	res := r.invokeAction(stageCtx, st, sc, action)
	r.finishOperation(stageCtx, op, res)

	result := &Result{
		ProcessID:      prior.ID,
		StageResults:   []*stage.Result{res},
		StagesExecuted: 1,
	}
	if res.Success() {
		result.StagesSuccessful = 1
	}
	result.Status = aggregateStatus(result.StageResults)
	result.Duration = r.now().Sub(started)
	result.Error = res.Error

	log.InfoContext(ctx, "continuation finished",
		slog.String("status", string(result.Status)),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

// invokeAction runs a direct action with the same timing and panic
// capture as a sequential stage invocation.
func (r *Runner) invokeAction(ctx context.Context, st stage.ActionStage, sc *stage.Context, action schema.Action) (res *stage.Result) {
	started := r.now()

	defer func() {
		if rec := recover(); rec != nil {
			serr := schema.NewErrorf(schema.ErrCodeStageExecution, "stage panicked: %v", rec).WithStage(st.Name())
			logging.LogWith(ctx, r.logger).ErrorContext(ctx, "stage panicked", slog.Any("panic", rec))
			res = &stage.Result{
				Stage:     st.Name(),
				Status:    schema.StageResultError,
				Error:     serr,
				StartedAt: started,
				Duration:  r.now().Sub(started),
			}
		}
	}()

	res, err := st.ExecuteAction(ctx, sc, action)
	if err != nil {
		serr := schema.NewError(schema.ErrCodeStageExecution, err.Error()).WithStage(st.Name()).WithCause(err)
		return &stage.Result{
			Stage:     st.Name(),
			Status:    schema.StageResultError,
			Error:     serr,
			StartedAt: started,
			Duration:  r.now().Sub(started),
		}
	}
	if res.StartedAt.IsZero() {
		res.StartedAt = started
	}
	if res.Duration == 0 {
		res.Duration = r.now().Sub(started)
	}
	return res
}

// continuationStage maps a reviewer action onto the stage that handles
// it. Everything routes to initial outreach except a draft request
// against a process whose outreach already completed, which advances
// into the follow-up sequence.
func continuationStage(action schema.Action, sc *stage.Context) string {
	if action == schema.ActionDraftWrite && sc.Output(stage.NameInitialOutreach) != nil {
		return stage.NameFollowUp
	}
	return stage.NameInitialOutreach
}

// restoreOutputs rebuilds the stage output map from the prior run's
// persisted operation records.
func restoreOutputs(sc *stage.Context, ops []*store.Operation) {
	for _, op := range ops {
		if op.ExecutionStatus != schema.OperationStatusDone || len(op.Output) == 0 {
			continue
		}
		var res stage.Result
		if err := json.Unmarshal(op.Output, &res); err != nil {
			continue
		}
		if res.Success() && res.Data != nil {
			sc.Outputs[op.StageName] = res.Data
		}
	}
}
