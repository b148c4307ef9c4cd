package stages

import (
	"context"
	"time"

	"github.com/fusesell/fusesell/internal/schedule"
	"github.com/fusesell/fusesell/internal/stage"
	"github.com/fusesell/fusesell/pkg/schema"
)

// InitialOutreach writes the first outreach drafts for a prospect and
// accepts the four direct actions through the shared router.
type InitialOutreach struct {
	deps   Deps
	router router
}

// NewInitialOutreach creates the stage.
func NewInitialOutreach(deps Deps) *InitialOutreach {
	s := &InitialOutreach{deps: deps}
	s.router = router{deps: deps, stageName: stage.NameInitialOutreach, writeDrafts: s.writeDrafts}
	return s
}

func (s *InitialOutreach) Name() string { return stage.NameInitialOutreach }

func (s *InitialOutreach) Validate(sc *stage.Context) bool {
	return sc != nil && sc.Config != nil
}

// Execute runs the stage in sequential mode: the configured action,
// defaulting to draft_write.
func (s *InitialOutreach) Execute(ctx context.Context, sc *stage.Context) (*stage.Result, error) {
	action, err := schema.ParseAction(sc.Config.Action)
	if err != nil {
		return s.router.errorResult(s.deps.now(), err.(*schema.Error)), nil
	}
	return s.router.dispatch(ctx, sc, action)
}

// ExecuteAction is the direct entry point used by continuation runs.
func (s *InitialOutreach) ExecuteAction(ctx context.Context, sc *stage.Context, action schema.Action) (*stage.Result, error) {
	return s.router.dispatch(ctx, sc, action)
}

func (s *InitialOutreach) writeDrafts(ctx context.Context, sc *stage.Context, started time.Time) (*stage.Result, error) {
	offer := offerFromData(sc.Input)
	if offer.ProductName == "" {
		return &stage.Result{
			Stage:     s.Name(),
			Status:    schema.StageResultFail,
			Action:    schema.ActionDraftWrite,
			Reason:    "no recommended offer from lead scoring",
			StartedAt: started,
			Duration:  time.Since(started),
		}, nil
	}

	data, _ := sc.Input["data"].(map[string]any)
	prospect := prospectFromData(data)

	candidates, err := s.deps.Generator.GenerateInitial(ctx, prospect, offer)
	if err != nil {
		return s.router.errorResult(started, wrapStageError(err, s.Name())), nil
	}
	if len(candidates) == 0 {
		return &stage.Result{
			Stage:     s.Name(),
			Status:    schema.StageResultFail,
			Action:    schema.ActionDraftWrite,
			Reason:    "generator produced no candidates",
			StartedAt: started,
			Duration:  time.Since(started),
		}, nil
	}

	drafts, err := s.router.persistRanked(ctx, sc.ProcessID, schema.DraftKindInitial, 0, candidates)
	if err != nil {
		return s.router.errorResult(started, err.(*schema.Error)), nil
	}

	ids := make([]string, len(drafts))
	for i, d := range drafts {
		ids[i] = d.ID
	}

	out := map[string]any{
		"draft_ids": ids,
		"data": map[string]any{
			"prospect":            prospect,
			"org_name":            offer.OrgName,
			"recommended_product": map[string]any{"product_name": offer.ProductName, "description": offer.Description},
		},
	}

	// Auto-send is opt-in per team and only ever considers the
	// top-ranked draft; anything unresolved falls back to manual review.
	top := drafts[0]
	if s.deps.Policy.Allows(ctx, sc.Config.TeamID, PolicyEnv{
		PersonalizationScore: top.PersonalizationScore,
		PriorityOrder:        top.PriorityOrder,
	}) && sc.Config.RecipientAddress != "" {
		res, err := s.deps.Scheduler.ScheduleSend(ctx, schedule.ScheduleRequest{
			OrgID:            sc.Config.OrgID,
			TeamID:           sc.Config.TeamID,
			CustomerID:       sc.Config.CustomerID,
			ProcessID:        sc.ProcessID,
			Draft:            top,
			RecipientAddress: sc.Config.RecipientAddress,
			RecipientName:    sc.Config.RecipientName,
			CustomerTimezone: sc.Config.CustomerTimezone,
			Payload:          draftPayload(top),

			BusinessHoursStart: sc.Config.BusinessHoursStart,
			BusinessHoursEnd:   sc.Config.BusinessHoursEnd,
			DelayHours:         sc.Config.DelayHours,
			FollowUpDelayHours: sc.Config.FollowUpDelayHours,
		})
		if err != nil {
			s.deps.logger().WarnContext(ctx, "auto-send scheduling failed, draft left for review",
				"draft_id", top.ID, "error", err)
		} else {
			out["auto_send"] = true
			out["auto_send_event_id"] = res.Event.ID
		}
	}

	return &stage.Result{
		Stage:     s.Name(),
		Status:    schema.StageResultSuccess,
		Action:    schema.ActionDraftWrite,
		Data:      out,
		StartedAt: started,
		Duration:  time.Since(started),
	}, nil
}

var _ stage.ActionStage = (*InitialOutreach)(nil)
