package schema

// ProcessStatus is the lifecycle state of an end-to-end pipeline run.
type ProcessStatus string

const (
	ProcessStatusRunning   ProcessStatus = "running"
	ProcessStatusCompleted ProcessStatus = "completed"
	ProcessStatusFailed    ProcessStatus = "failed"
	ProcessStatusContinued ProcessStatus = "continued"
)

// OperationStatus is the execution state of one tracked stage invocation.
type OperationStatus string

const (
	OperationStatusRunning OperationStatus = "running"
	OperationStatusDone    OperationStatus = "done"
	OperationStatusFailed  OperationStatus = "failed"
)

// DraftKind distinguishes how a draft was produced.
type DraftKind string

const (
	DraftKindInitial  DraftKind = "initial"
	DraftKindFollowUp DraftKind = "follow_up"
	DraftKindRewrite  DraftKind = "rewrite"
)

// DraftStatus is the review state of a generated draft.
type DraftStatus string

const (
	DraftStatusDraft    DraftStatus = "draft"
	DraftStatusSent     DraftStatus = "sent"
	DraftStatusArchived DraftStatus = "archived"
)

// EventKind is the delivery intent of a scheduled event.
type EventKind string

const (
	EventKindEmailSend EventKind = "email_send"
	EventKindFollowUp  EventKind = "follow_up"
)

// EventStatus is the state of a scheduled event. Executed and cancelled
// are terminal; rows are never deleted.
type EventStatus string

const (
	EventStatusPending   EventStatus = "pending"
	EventStatusExecuted  EventStatus = "executed"
	EventStatusCancelled EventStatus = "cancelled"
)

// ReminderContent discriminates reminder tasks for the delivery consumer.
type ReminderContent string

const (
	ReminderContentDraftSend ReminderContent = "draft_send"
	ReminderContentFollowUp  ReminderContent = "follow_up"
)

// StageResultStatus is the outcome status a stage reports.
type StageResultStatus string

const (
	StageResultSuccess StageResultStatus = "success"
	StageResultError   StageResultStatus = "error"
	StageResultFail    StageResultStatus = "fail"
	StageResultSkipped StageResultStatus = "skipped"
)

// ValidProcessTransitions defines the allowed state transitions for processes.
var ValidProcessTransitions = map[ProcessStatus][]ProcessStatus{
	ProcessStatusRunning:   {ProcessStatusCompleted, ProcessStatusFailed},
	ProcessStatusCompleted: {ProcessStatusContinued},
	ProcessStatusFailed:    {ProcessStatusContinued},
	ProcessStatusContinued: {ProcessStatusContinued},
}

// ValidEventTransitions defines the allowed state transitions for
// scheduled events. pending -> {executed, cancelled}, both terminal.
var ValidEventTransitions = map[EventStatus][]EventStatus{
	EventStatusPending:   {EventStatusExecuted, EventStatusCancelled},
	EventStatusExecuted:  {},
	EventStatusCancelled: {},
}

// CanTransitionProcess reports whether a process may move from one
// status to another.
func CanTransitionProcess(from, to ProcessStatus) bool {
	for _, a := range ValidProcessTransitions[from] {
		if a == to {
			return true
		}
	}
	return false
}

// CanTransitionEvent reports whether a scheduled event may move from
// one status to another.
func CanTransitionEvent(from, to EventStatus) bool {
	for _, a := range ValidEventTransitions[from] {
		if a == to {
			return true
		}
	}
	return false
}
