package store

import (
	"context"
	"encoding/json"

	"github.com/fusesell/fusesell/pkg/schema"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Processes
	CreateProcess(ctx context.Context, p *Process) error
	GetProcess(ctx context.Context, id string) (*Process, error)
	UpdateProcess(ctx context.Context, id string, update ProcessUpdate) error

	// Operations
	CreateOperation(ctx context.Context, op *Operation) error
	GetOperation(ctx context.Context, id string) (*Operation, error)
	UpdateOperation(ctx context.Context, id string, update OperationUpdate) error
	ListOperations(ctx context.Context, processID string) ([]*Operation, error)

	// Drafts
	SaveDraft(ctx context.Context, d *Draft) error
	GetDraft(ctx context.Context, id string) (*Draft, error)
	UpdateDraftStatus(ctx context.Context, id string, status schema.DraftStatus) error
	ListDrafts(ctx context.Context, filter DraftFilter) ([]*Draft, error)

	// Scheduled events
	InsertScheduledEvent(ctx context.Context, ev *ScheduledEvent) error
	GetScheduledEvent(ctx context.Context, id string) (*ScheduledEvent, error)
	UpdateScheduledEvent(ctx context.Context, id string, update EventUpdate) error
	ListScheduledEvents(ctx context.Context, filter EventFilter) ([]*ScheduledEvent, error)

	// Reminder tasks
	InsertReminderTask(ctx context.Context, task *ReminderTask) error
	ListReminderTasks(ctx context.Context, filter ReminderFilter) ([]*ReminderTask, error)

	// Scheduling rules and team settings
	GetSchedulingRule(ctx context.Context, orgID, teamID string) (*SchedulingRule, error)
	UpsertSchedulingRule(ctx context.Context, rule *SchedulingRule) error
	GetTeamSetting(ctx context.Context, teamID, key string) (json.RawMessage, error)
	SetTeamSetting(ctx context.Context, teamID, key string, value json.RawMessage) error

	// Maintenance
	Migrate(ctx context.Context) error

	// Lifecycle
	Close() error
}
