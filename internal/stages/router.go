package stages

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fusesell/fusesell/internal/content"
	"github.com/fusesell/fusesell/internal/delivery"
	"github.com/fusesell/fusesell/internal/schedule"
	"github.com/fusesell/fusesell/internal/stage"
	"github.com/fusesell/fusesell/internal/store"
	"github.com/fusesell/fusesell/pkg/schema"
)

// router is the four-action dispatch shared by the outreach-capable
// stages. Draft state lives in the Store, not here; the embedding
// stage supplies only the draft_write behavior, which is where initial
// outreach and follow-up genuinely differ.
type router struct {
	deps        Deps
	stageName   string
	writeDrafts func(ctx context.Context, sc *stage.Context, started time.Time) (*stage.Result, error)
}

// dispatch routes one action. Validation failures surface before any
// Store write.
func (r *router) dispatch(ctx context.Context, sc *stage.Context, action schema.Action) (*stage.Result, error) {
	started := r.deps.now()
	cfg := sc.Config

	if err := r.validate(action, cfg.SelectedDraftID, cfg.RecipientAddress); err != nil {
		return r.errorResult(started, err), nil
	}

	switch action {
	case schema.ActionDraftWrite:
		return r.writeDrafts(ctx, sc, started)
	case schema.ActionDraftRewrite:
		return r.rewrite(ctx, sc, started)
	case schema.ActionSend:
		return r.send(ctx, sc, started)
	case schema.ActionClose:
		return r.close(ctx, sc, started)
	default:
		return r.errorResult(started,
			schema.NewErrorf(schema.ErrCodeInvalidAction, "unknown action %q", action)), nil
	}
}

// validate enforces the per-action required fields before any write.
func (r *router) validate(action schema.Action, selectedDraftID, recipientAddress string) *schema.Error {
	switch action {
	case schema.ActionDraftRewrite:
		if selectedDraftID == "" {
			return schema.NewError(schema.ErrCodeValidation, "draft_rewrite requires selected_draft_id").WithStage(r.stageName)
		}
	case schema.ActionSend:
		if selectedDraftID == "" {
			return schema.NewError(schema.ErrCodeValidation, "send requires selected_draft_id").WithStage(r.stageName)
		}
		if recipientAddress == "" {
			return schema.NewError(schema.ErrCodeValidation, "send requires recipient_address").WithStage(r.stageName)
		}
	}
	return nil
}

func (r *router) rewrite(ctx context.Context, sc *stage.Context, started time.Time) (*stage.Result, error) {
	original, err := r.deps.Store.GetDraft(ctx, sc.Config.SelectedDraftID)
	if err != nil {
		return r.errorResult(started, wrapStageError(err, r.stageName)), nil
	}

	prospect := r.prospect(sc)
	candidate, err := r.deps.Generator.Rewrite(ctx, prospect, original.Subject, original.Content)
	if err != nil {
		return r.errorResult(started, wrapStageError(err, r.stageName)), nil
	}

	draft := &store.Draft{
		ID:                   uuid.NewString(),
		ProcessID:            original.ProcessID,
		Kind:                 schema.DraftKindRewrite,
		Version:              original.Version + 1,
		Status:               schema.DraftStatusDraft,
		Subject:              candidate.Subject,
		Content:              candidate.Content,
		Approach:             candidate.Approach,
		PriorityOrder:        original.PriorityOrder,
		PersonalizationScore: candidate.PersonalizationScore,
		SequenceNumber:       original.SequenceNumber,
		OriginalDraftID:      original.ID,
	}
	if err := r.deps.Store.SaveDraft(ctx, draft); err != nil {
		return r.errorResult(started, schema.NewError(schema.ErrCodeStore, "save rewritten draft").WithStage(r.stageName).WithCause(err)), nil
	}

	return &stage.Result{
		Stage:  r.stageName,
		Status: schema.StageResultSuccess,
		Action: schema.ActionDraftRewrite,
		Data: map[string]any{
			"draft_id":          draft.ID,
			"version":           draft.Version,
			"original_draft_id": original.ID,
		},
		StartedAt: started,
		Duration:  time.Since(started),
	}, nil
}

func (r *router) send(ctx context.Context, sc *stage.Context, started time.Time) (*stage.Result, error) {
	cfg := sc.Config
	draft, err := r.deps.Store.GetDraft(ctx, cfg.SelectedDraftID)
	if err != nil {
		return r.errorResult(started, wrapStageError(err, r.stageName)), nil
	}

	if cfg.SendImmediately {
		d := delivery.Delivery{
			Kind:             schema.EventKindEmailSend,
			DraftID:          draft.ID,
			ProcessID:        draft.ProcessID,
			OrgID:            cfg.OrgID,
			RecipientAddress: cfg.RecipientAddress,
			RecipientName:    cfg.RecipientName,
			Subject:          draft.Subject,
			Body:             draft.Content,
		}
		if err := r.deps.Gateway.Send(ctx, d); err != nil {
			return r.errorResult(started,
				schema.NewError(schema.ErrCodeStageExecution, "immediate send failed").WithStage(r.stageName).WithCause(err)), nil
		}
		if err := r.deps.Store.UpdateDraftStatus(ctx, draft.ID, schema.DraftStatusSent); err != nil {
			r.deps.logger().WarnContext(ctx, "failed to mark draft sent", "draft_id", draft.ID, "error", err)
		}
		return &stage.Result{
			Stage:  r.stageName,
			Status: schema.StageResultSuccess,
			Action: schema.ActionSend,
			Data: map[string]any{
				"draft_id": draft.ID,
				"mode":     "immediate",
			},
			StartedAt: started,
			Duration:  time.Since(started),
		}, nil
	}

	res, err := r.deps.Scheduler.ScheduleSend(ctx, schedule.ScheduleRequest{
		OrgID:            cfg.OrgID,
		TeamID:           cfg.TeamID,
		CustomerID:       cfg.CustomerID,
		ProcessID:        draft.ProcessID,
		Draft:            draft,
		RecipientAddress: cfg.RecipientAddress,
		RecipientName:    cfg.RecipientName,
		CustomerTimezone: cfg.CustomerTimezone,
		Payload:          draftPayload(draft),

		BusinessHoursStart: cfg.BusinessHoursStart,
		BusinessHoursEnd:   cfg.BusinessHoursEnd,
		DelayHours:         cfg.DelayHours,
		FollowUpDelayHours: cfg.FollowUpDelayHours,
	})
	if err != nil {
		return r.errorResult(started, wrapStageError(err, r.stageName)), nil
	}

	data := map[string]any{
		"draft_id":       draft.ID,
		"mode":           "scheduled",
		"event_id":       res.Event.ID,
		"scheduled_time": res.Event.ScheduledTime,
	}
	if res.FollowUpEvent != nil {
		data["follow_up_event_id"] = res.FollowUpEvent.ID
		data["follow_up_time"] = res.FollowUpEvent.ScheduledTime
	}

	return &stage.Result{
		Stage:     r.stageName,
		Status:    schema.StageResultSuccess,
		Action:    schema.ActionSend,
		Data:      data,
		StartedAt: started,
		Duration:  time.Since(started),
	}, nil
}

func (r *router) close(ctx context.Context, sc *stage.Context, started time.Time) (*stage.Result, error) {
	cfg := sc.Config

	open := schema.DraftStatusDraft
	drafts, err := r.deps.Store.ListDrafts(ctx, store.DraftFilter{ProcessID: sc.ProcessID, Status: &open})
	if err != nil {
		return r.errorResult(started, schema.NewError(schema.ErrCodeStore, "list open drafts").WithStage(r.stageName).WithCause(err)), nil
	}

	archived := 0
	for _, d := range drafts {
		if err := r.deps.Store.UpdateDraftStatus(ctx, d.ID, schema.DraftStatusArchived); err != nil {
			r.deps.logger().WarnContext(ctx, "failed to archive draft", "draft_id", d.ID, "error", err)
			continue
		}
		archived++
	}

	reason := cfg.CloseReason
	if reason == "" {
		reason = "closed by operator"
	}

	return &stage.Result{
		Stage:  r.stageName,
		Status: schema.StageResultSuccess,
		Action: schema.ActionClose,
		Reason: reason,
		Stop:   true,
		Data: map[string]any{
			"archived_drafts": archived,
			"reason":          reason,
		},
		StartedAt: started,
		Duration:  time.Since(started),
	}, nil
}

// prospect pulls the normalized prospect from the preparation output
// when the run context has one.
func (r *router) prospect(sc *stage.Context) content.Prospect {
	if out := sc.Output(stage.NameDataPreparation); out != nil {
		if data, ok := out["data"].(map[string]any); ok {
			return prospectFromData(data)
		}
	}
	return content.Prospect{}
}

func (r *router) errorResult(started time.Time, serr *schema.Error) *stage.Result {
	return &stage.Result{
		Stage:     r.stageName,
		Status:    schema.StageResultError,
		Error:     serr,
		StartedAt: started,
		Duration:  time.Since(started),
	}
}

// persistRanked ranks candidates and writes one draft row per
// candidate. Returns the persisted drafts best-first.
func (r *router) persistRanked(ctx context.Context, processID string, kind schema.DraftKind, sequence int, candidates []content.Candidate) ([]*store.Draft, error) {
	ranked := rankCandidates(candidates)

	drafts := make([]*store.Draft, 0, len(ranked))
	for _, c := range ranked {
		d := &store.Draft{
			ID:                   uuid.NewString(),
			ProcessID:            processID,
			Kind:                 kind,
			Version:              1,
			Status:               schema.DraftStatusDraft,
			Subject:              c.Subject,
			Content:              c.Content,
			Approach:             c.Approach,
			PriorityOrder:        c.PriorityOrder,
			PersonalizationScore: c.PersonalizationScore,
			SequenceNumber:       sequence,
		}
		if err := r.deps.Store.SaveDraft(ctx, d); err != nil {
			return nil, schema.NewError(schema.ErrCodeStore, "save draft").WithStage(r.stageName).WithCause(err)
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

// approachBaseRank orders the generation approaches by preference.
var approachBaseRank = map[string]int{
	"professional_direct":   1,
	"consultative":          2,
	"industry_expert":       3,
	"relationship_building": 4,
}

// rankCandidates assigns each candidate its final priority order. An
// explicit positive priority from the generator wins; otherwise the
// approach's base rank is adjusted by the personalization score
// (>=80 keeps it, >=60 adds one, below adds two). Ranks are then
// normalized to 1..n.
func rankCandidates(candidates []content.Candidate) []content.Candidate {
	type rankedCandidate struct {
		content.Candidate
		rank int
	}

	ranked := make([]rankedCandidate, len(candidates))
	for i, c := range candidates {
		rank := c.PriorityOrder
		if rank <= 0 {
			base, ok := approachBaseRank[c.Approach]
			if !ok {
				base = len(approachBaseRank) + 1
			}
			switch {
			case c.PersonalizationScore >= 80:
				rank = base
			case c.PersonalizationScore >= 60:
				rank = base + 1
			default:
				rank = base + 2
			}
		}
		ranked[i] = rankedCandidate{Candidate: c, rank: rank}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].rank < ranked[j].rank })

	out := make([]content.Candidate, len(ranked))
	for i, rc := range ranked {
		rc.Candidate.PriorityOrder = i + 1
		out[i] = rc.Candidate
	}
	return out
}

func draftPayload(d *store.Draft) json.RawMessage {
	b, err := json.Marshal(map[string]any{
		"subject":  d.Subject,
		"approach": d.Approach,
		"kind":     d.Kind,
	})
	if err != nil {
		return nil
	}
	return b
}
