// Package config defines the run configuration accepted by the
// pipeline and its JSON-schema validation.
package config

import (
	"encoding/json"

	"github.com/google/uuid"
)

// RunConfig carries everything one pipeline invocation needs: identity,
// stage selection, continuation routing, and action-specific fields.
type RunConfig struct {
	// ExecutionID identifies the run. Generated when empty.
	ExecutionID string `json:"execution_id,omitempty"`
	OrgID       string `json:"org_id"`
	TeamID      string `json:"team_id,omitempty"`
	CustomerID  string `json:"customer_id,omitempty"`

	// Stage selection for normal runs.
	SkipStages []string `json:"skip_stages,omitempty"`
	StopAfter  string   `json:"stop_after,omitempty"`

	// ContinueProcessID switches the runner into continuation mode
	// against a prior process.
	ContinueProcessID string `json:"continue_execution,omitempty"`

	// Action-specific fields (see the outreach stages).
	Action           string `json:"action,omitempty"`
	SelectedDraftID  string `json:"selected_draft_id,omitempty"`
	RecipientAddress string `json:"recipient_address,omitempty"`
	RecipientName    string `json:"recipient_name,omitempty"`
	SendImmediately  bool   `json:"send_immediately,omitempty"`
	CloseReason      string `json:"close_reason,omitempty"`

	// Scheduling overrides. Zero values defer to the resolved rule.
	CustomerTimezone   string `json:"customer_timezone,omitempty"`
	BusinessHoursStart string `json:"business_hours_start,omitempty"`
	BusinessHoursEnd   string `json:"business_hours_end,omitempty"`
	DelayHours         int    `json:"delay_hours,omitempty"`
	FollowUpDelayHours int    `json:"follow_up_delay_hours,omitempty"`

	// InputData is the raw prospect payload handed to data acquisition.
	InputData json.RawMessage `json:"input_data,omitempty"`
}

// Normalize fills generated defaults. Called once by the runner before
// validation.
func (c *RunConfig) Normalize() {
	if c.ExecutionID == "" {
		c.ExecutionID = uuid.NewString()
	}
}

// IsContinuation reports whether this config targets a prior process.
func (c *RunConfig) IsContinuation() bool {
	return c.ContinueProcessID != ""
}
