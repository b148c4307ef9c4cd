package store

import (
	"encoding/json"
	"time"

	"github.com/fusesell/fusesell/pkg/schema"
)

// Process is the persisted representation of one end-to-end pipeline
// run for a single prospect. Owned exclusively by the orchestrator.
type Process struct {
	ID                  string               `json:"id"`
	OrgID               string               `json:"org_id"`
	TeamID              string               `json:"team_id,omitempty"`
	Status              schema.ProcessStatus `json:"status"`
	CurrentRuntimeIndex int                  `json:"current_runtime_index"`
	Version             int64                `json:"version"`
	RequestBody         json.RawMessage      `json:"request_body,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// Operation is a tracked invocation of one stage within one process.
type Operation struct {
	ID              string                 `json:"id"`
	ProcessID       string                 `json:"process_id"`
	StageName       string                 `json:"stage_name"`
	RuntimeIndex    int                    `json:"runtime_index"`
	ChainIndex      int                    `json:"chain_index"`
	ExecutionStatus schema.OperationStatus `json:"execution_status"`
	Input           json.RawMessage        `json:"input,omitempty"`
	Output          json.RawMessage        `json:"output,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// Draft is a generated outbound message artifact. Rewrites create new
// rows linked through OriginalDraftID; a draft row is never mutated
// except for its status.
type Draft struct {
	ID                   string             `json:"id"`
	ProcessID            string             `json:"process_id"`
	Kind                 schema.DraftKind   `json:"kind"`
	Version              int                `json:"version"`
	Status               schema.DraftStatus `json:"status"`
	Subject              string             `json:"subject"`
	Content              string             `json:"content"`
	Approach             string             `json:"approach,omitempty"`
	PriorityOrder        int                `json:"priority_order"`
	PersonalizationScore int                `json:"personalization_score"`
	SequenceNumber       int                `json:"sequence_number,omitempty"`
	OriginalDraftID      string             `json:"original_draft_id,omitempty"`
	Metadata             json.RawMessage    `json:"metadata,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
}

// ScheduledEvent is a persisted instruction to deliver a draft at a
// future UTC instant. Terminal on executed or cancelled, never deleted.
type ScheduledEvent struct {
	ID               string             `json:"id"`
	Kind             schema.EventKind   `json:"kind"`
	ScheduledTime    time.Time          `json:"scheduled_time"`
	Status           schema.EventStatus `json:"status"`
	DraftID          string             `json:"draft_id"`
	ProcessID        string             `json:"process_id"`
	OrgID            string             `json:"org_id"`
	TeamID           string             `json:"team_id,omitempty"`
	RecipientAddress string             `json:"recipient_address"`
	RecipientName    string             `json:"recipient_name,omitempty"`
	CustomerTimezone string             `json:"customer_timezone,omitempty"`
	Payload          json.RawMessage    `json:"payload,omitempty"`
	ErrorMessage     string             `json:"error_message,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	ExecutedAt       *time.Time         `json:"executed_at,omitempty"`
}

// ReminderTask is a denormalized mirror of a ScheduledEvent for the
// external delivery consumer; it needs no joins to act on.
type ReminderTask struct {
	ID            string                 `json:"id"`
	Status        string                 `json:"status"`
	Task          string                 `json:"task"`
	Cron          string                 `json:"cron"`
	Tags          []string               `json:"tags,omitempty"`
	Content       schema.ReminderContent `json:"content"`
	OrgID         string                 `json:"org_id"`
	CustomerID    string                 `json:"customer_id,omitempty"`
	ProcessID     string                 `json:"process_id,omitempty"`
	DraftID       string                 `json:"draft_id,omitempty"`
	ImportUUID    string                 `json:"import_uuid"`
	ScheduledTime time.Time              `json:"scheduled_time"`
	Extra         json.RawMessage        `json:"extra,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// SchedulingRule holds the business-hours policy for an org or team.
type SchedulingRule struct {
	ID                 string    `json:"id"`
	OrgID              string    `json:"org_id"`
	TeamID             string    `json:"team_id,omitempty"`
	Name               string    `json:"rule_name"`
	Active             bool      `json:"is_active"`
	BusinessHoursStart string    `json:"business_hours_start"`
	BusinessHoursEnd   string    `json:"business_hours_end"`
	DefaultDelayHours  int       `json:"default_delay_hours"`
	Timezone           string    `json:"timezone"`
	FollowUpDelayHours int       `json:"follow_up_delay_hours"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// --- Filter and update types ---

// ProcessUpdate specifies mutable fields of a process. When
// ExpectedVersion is set, the update only applies while the stored row
// still carries that version (optimistic concurrency for concurrent
// continuation calls against the same process).
type ProcessUpdate struct {
	Status          *schema.ProcessStatus `json:"status,omitempty"`
	RuntimeIndex    *int                  `json:"runtime_index,omitempty"`
	ExpectedVersion *int64                `json:"expected_version,omitempty"`
}

// OperationUpdate specifies mutable fields of an operation.
type OperationUpdate struct {
	ExecutionStatus *schema.OperationStatus `json:"execution_status,omitempty"`
	Output          json.RawMessage         `json:"output,omitempty"`
}

// DraftFilter specifies criteria for listing drafts.
type DraftFilter struct {
	ProcessID       string              `json:"process_id,omitempty"`
	Kind            *schema.DraftKind   `json:"kind,omitempty"`
	Status          *schema.DraftStatus `json:"status,omitempty"`
	OriginalDraftID string              `json:"original_draft_id,omitempty"`
	Limit           int                 `json:"limit,omitempty"`
}

// EventFilter specifies criteria for listing scheduled events.
type EventFilter struct {
	OrgID     string              `json:"org_id,omitempty"`
	ProcessID string              `json:"process_id,omitempty"`
	DraftID   string              `json:"draft_id,omitempty"`
	Kind      *schema.EventKind   `json:"kind,omitempty"`
	Status    *schema.EventStatus `json:"status,omitempty"`
	DueBefore *time.Time          `json:"due_before,omitempty"`
	Limit     int                 `json:"limit,omitempty"`
}

// EventUpdate specifies mutable fields of a scheduled event.
type EventUpdate struct {
	Status       *schema.EventStatus `json:"status,omitempty"`
	ExecutedAt   *time.Time          `json:"executed_at,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
}

// ReminderFilter specifies criteria for listing reminder tasks.
type ReminderFilter struct {
	OrgID     string `json:"org_id,omitempty"`
	ProcessID string `json:"process_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}
