// Package schedule computes business-hour-aware send times and
// persists delivery events with their reminder mirrors.
package schedule

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/fusesell/fusesell/internal/store"
)

// TeamSettingKey is the team_settings key holding per-team scheduling
// overrides as JSON.
const TeamSettingKey = "email_scheduling"

// DefaultRule is the hardcoded fallback applied when no stored rule
// resolves. Bangkok business hours, 2h initial delay, 5-day follow-up.
func DefaultRule() *store.SchedulingRule {
	return &store.SchedulingRule{
		Name:               "hardcoded_default",
		BusinessHoursStart: "08:00",
		BusinessHoursEnd:   "20:00",
		DefaultDelayHours:  2,
		Timezone:           "Asia/Bangkok",
		FollowUpDelayHours: 120,
	}
}

// teamSetting mirrors the JSON shape stored under TeamSettingKey.
type teamSetting struct {
	BusinessHoursStart string `json:"business_hours_start"`
	BusinessHoursEnd   string `json:"business_hours_end"`
	DelayHours         *int   `json:"delay_hours"`
	Timezone           string `json:"timezone"`
	FollowUpDelayHours *int   `json:"follow_up_delay_hours"`
}

// Resolver resolves the effective scheduling rule for an org/team.
// Resolution order: team settings, (org, team) rule, org rule, the
// "default" org's rule, hardcoded fallback. Lookup failures never
// propagate; they fall through to the next source.
type Resolver struct {
	store  store.Store
	logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(s store.Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: s, logger: logger}
}

// Resolve returns the effective rule for the org/team pair. It always
// returns a usable rule.
func (r *Resolver) Resolve(ctx context.Context, orgID, teamID string) *store.SchedulingRule {
	if teamID != "" {
		if raw, err := r.store.GetTeamSetting(ctx, teamID, TeamSettingKey); err == nil {
			if rule := ruleFromTeamSetting(raw, orgID, teamID); rule != nil {
				return rule
			}
			r.logger.WarnContext(ctx, "malformed team scheduling setting, falling through",
				slog.String("team_id", teamID))
		}

		if rule, err := r.store.GetSchedulingRule(ctx, orgID, teamID); err == nil {
			return rule
		}
	}

	if rule, err := r.store.GetSchedulingRule(ctx, orgID, ""); err == nil {
		return rule
	}
	if rule, err := r.store.GetSchedulingRule(ctx, "default", ""); err == nil {
		return rule
	}

	r.logger.InfoContext(ctx, "no scheduling rule found, using hardcoded default",
		slog.String("org_id", orgID), slog.String("team_id", teamID))
	return DefaultRule()
}

// ruleFromTeamSetting builds a rule from a team settings document,
// filling gaps from the hardcoded default. Returns nil when the
// document does not parse or carries nothing usable.
func ruleFromTeamSetting(raw json.RawMessage, orgID, teamID string) *store.SchedulingRule {
	var ts teamSetting
	if err := json.Unmarshal(raw, &ts); err != nil {
		return nil
	}
	if ts.BusinessHoursStart == "" && ts.BusinessHoursEnd == "" &&
		ts.DelayHours == nil && ts.Timezone == "" && ts.FollowUpDelayHours == nil {
		return nil
	}

	rule := DefaultRule()
	rule.Name = "team_settings"
	rule.OrgID = orgID
	rule.TeamID = teamID
	if ts.BusinessHoursStart != "" {
		rule.BusinessHoursStart = ts.BusinessHoursStart
	}
	if ts.BusinessHoursEnd != "" {
		rule.BusinessHoursEnd = ts.BusinessHoursEnd
	}
	if ts.DelayHours != nil {
		rule.DefaultDelayHours = *ts.DelayHours
	}
	if ts.Timezone != "" {
		rule.Timezone = ts.Timezone
	}
	if ts.FollowUpDelayHours != nil {
		rule.FollowUpDelayHours = *ts.FollowUpDelayHours
	}
	return rule
}
