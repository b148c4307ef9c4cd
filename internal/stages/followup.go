package stages

import (
	"context"
	"time"

	"github.com/fusesell/fusesell/internal/content"
	"github.com/fusesell/fusesell/internal/stage"
	"github.com/fusesell/fusesell/internal/store"
	"github.com/fusesell/fusesell/pkg/schema"
)

// Follow-up gate thresholds.
const (
	maxFollowUpSequence   = 5
	negativeSentimentSent = 4
	minInteractionGap     = 72 * time.Hour
)

// FollowUp writes follow-up drafts for a process that already went
// through initial outreach, guarded by a continuation gate.
type FollowUp struct {
	deps   Deps
	router router
}

// NewFollowUp creates the stage.
func NewFollowUp(deps Deps) *FollowUp {
	s := &FollowUp{deps: deps}
	s.router = router{deps: deps, stageName: stage.NameFollowUp, writeDrafts: s.writeDrafts}
	return s
}

func (s *FollowUp) Name() string { return stage.NameFollowUp }

func (s *FollowUp) Validate(sc *stage.Context) bool {
	return sc != nil && sc.Config != nil
}

func (s *FollowUp) Execute(ctx context.Context, sc *stage.Context) (*stage.Result, error) {
	action, err := schema.ParseAction(sc.Config.Action)
	if err != nil {
		return s.router.errorResult(s.deps.now(), err.(*schema.Error)), nil
	}
	return s.router.dispatch(ctx, sc, action)
}

func (s *FollowUp) ExecuteAction(ctx context.Context, sc *stage.Context, action schema.Action) (*stage.Result, error) {
	return s.router.dispatch(ctx, sc, action)
}

func (s *FollowUp) writeDrafts(ctx context.Context, sc *stage.Context, started time.Time) (*stage.Result, error) {
	gate, err := s.evaluateGate(ctx, sc.ProcessID)
	if err != nil {
		return s.router.errorResult(started, wrapStageError(err, s.Name())), nil
	}
	if gate.blocked {
		s.deps.logger().InfoContext(ctx, "follow-up gate refused drafting",
			"process_id", sc.ProcessID, "reason", gate.reason)
		return &stage.Result{
			Stage:  s.Name(),
			Status: schema.StageResultSkipped,
			Action: schema.ActionDraftWrite,
			Reason: gate.reason,
			Stop:   true,
			Data: map[string]any{
				"gated":  true,
				"reason": gate.reason,
			},
			StartedAt: started,
			Duration:  time.Since(started),
		}, nil
	}

	data, _ := sc.Input["data"].(map[string]any)
	prospect := prospectFromData(data)
	offer := offerFromData(data)

	candidate, err := s.deps.Generator.GenerateFollowUp(ctx, prospect, offer, gate.sequence)
	if err != nil {
		return s.router.errorResult(started, wrapStageError(err, s.Name())), nil
	}

	drafts, err := s.router.persistRanked(ctx, sc.ProcessID, schema.DraftKindFollowUp, gate.sequence, []content.Candidate{*candidate})
	if err != nil {
		return s.router.errorResult(started, err.(*schema.Error)), nil
	}

	return &stage.Result{
		Stage:  s.Name(),
		Status: schema.StageResultSuccess,
		Action: schema.ActionDraftWrite,
		Data: map[string]any{
			"draft_id":        drafts[0].ID,
			"sequence_number": gate.sequence,
			"data":            data,
		},
		StartedAt: started,
		Duration:  time.Since(started),
	}, nil
}

type gateDecision struct {
	blocked  bool
	reason   string
	sequence int
}

// evaluateGate decides whether another follow-up is allowed. Three
// independent stops: the sequence cap, the no-reply sentiment
// heuristic, and the minimum gap since the last interaction.
func (s *FollowUp) evaluateGate(ctx context.Context, processID string) (gateDecision, error) {
	kind := schema.DraftKindFollowUp
	followUps, err := s.deps.Store.ListDrafts(ctx, store.DraftFilter{ProcessID: processID, Kind: &kind})
	if err != nil {
		return gateDecision{}, err
	}

	sequence := len(followUps) + 1
	if sequence > maxFollowUpSequence {
		return gateDecision{blocked: true, reason: "maximum follow-up attempts reached", sequence: sequence}, nil
	}

	sent := 0
	for _, d := range followUps {
		if d.Status == schema.DraftStatusSent {
			sent++
		}
	}
	if sent >= negativeSentimentSent {
		return gateDecision{blocked: true, reason: "negative sentiment: repeated follow-ups without a reply", sequence: sequence}, nil
	}

	if sent >= 1 {
		last, err := s.lastInteraction(ctx, processID)
		if err != nil {
			return gateDecision{}, err
		}
		if !last.IsZero() && s.deps.now().Sub(last) < minInteractionGap {
			return gateDecision{blocked: true, reason: "too soon since last interaction", sequence: sequence}, nil
		}
	}

	return gateDecision{sequence: sequence}, nil
}

// lastInteraction returns the most recent outbound touchpoint for the
// process: the latest executed send event, or failing that the latest
// sent draft's creation time.
func (s *FollowUp) lastInteraction(ctx context.Context, processID string) (time.Time, error) {
	executed := schema.EventStatusExecuted
	events, err := s.deps.Store.ListScheduledEvents(ctx, store.EventFilter{ProcessID: processID, Status: &executed})
	if err != nil {
		return time.Time{}, err
	}
	var last time.Time
	for _, ev := range events {
		if ev.ExecutedAt != nil && ev.ExecutedAt.After(last) {
			last = *ev.ExecutedAt
		}
	}
	if !last.IsZero() {
		return last, nil
	}

	sentStatus := schema.DraftStatusSent
	drafts, err := s.deps.Store.ListDrafts(ctx, store.DraftFilter{ProcessID: processID, Status: &sentStatus})
	if err != nil {
		return time.Time{}, err
	}
	for _, d := range drafts {
		if d.CreatedAt.After(last) {
			last = d.CreatedAt
		}
	}
	return last, nil
}

var _ stage.ActionStage = (*FollowUp)(nil)
