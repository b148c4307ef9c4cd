package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/fusesell/fusesell/pkg/schema"
)

// MemoryStore is an in-memory Store implementation used by tests and
// short-lived embedded runs. It mirrors the semantics of LibSQLStore,
// including the import_uuid uniqueness constraint on reminder tasks.
type MemoryStore struct {
	mu sync.RWMutex

	processes   map[string]*Process
	operations  map[string]*Operation
	drafts      map[string]*Draft
	events      map[string]*ScheduledEvent
	reminders   map[string]*ReminderTask
	importUUIDs map[string]bool
	rules       map[string]*SchedulingRule
	settings    map[string]json.RawMessage
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		processes:   make(map[string]*Process),
		operations:  make(map[string]*Operation),
		drafts:      make(map[string]*Draft),
		events:      make(map[string]*ScheduledEvent),
		reminders:   make(map[string]*ReminderTask),
		importUUIDs: make(map[string]bool),
		rules:       make(map[string]*SchedulingRule),
		settings:    make(map[string]json.RawMessage),
	}
}

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                      { return nil }

// --- Processes ---

func (s *MemoryStore) CreateProcess(ctx context.Context, p *Process) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	if cp.Version <= 0 {
		cp.Version = 1
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = cp.CreatedAt
	s.processes[cp.ID] = &cp
	return nil
}

func (s *MemoryStore) GetProcess(ctx context.Context, id string) (*Process, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.processes[id]
	if !ok {
		return nil, storeNotFound("process", id)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) UpdateProcess(ctx context.Context, id string, update ProcessUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.processes[id]
	if !ok {
		return storeNotFound("process", id)
	}
	if update.ExpectedVersion != nil && p.Version != *update.ExpectedVersion {
		return schema.NewErrorf(schema.ErrCodeConflict,
			"process %q modified concurrently (expected version %d)", id, *update.ExpectedVersion)
	}
	if update.Status != nil {
		p.Status = *update.Status
	}
	if update.RuntimeIndex != nil {
		p.CurrentRuntimeIndex = *update.RuntimeIndex
	}
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// --- Operations ---

func (s *MemoryStore) CreateOperation(ctx context.Context, op *Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *op
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = cp.CreatedAt
	s.operations[cp.ID] = &cp
	return nil
}

func (s *MemoryStore) GetOperation(ctx context.Context, id string) (*Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.operations[id]
	if !ok {
		return nil, storeNotFound("operation", id)
	}
	cp := *op
	return &cp, nil
}

func (s *MemoryStore) UpdateOperation(ctx context.Context, id string, update OperationUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.operations[id]
	if !ok {
		return storeNotFound("operation", id)
	}
	if update.ExecutionStatus != nil {
		op.ExecutionStatus = *update.ExecutionStatus
	}
	if update.Output != nil {
		op.Output = update.Output
	}
	op.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ListOperations(ctx context.Context, processID string) ([]*Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ops []*Operation
	for _, op := range s.operations {
		if op.ProcessID == processID {
			cp := *op
			ops = append(ops, &cp)
		}
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].RuntimeIndex != ops[j].RuntimeIndex {
			return ops[i].RuntimeIndex < ops[j].RuntimeIndex
		}
		return ops[i].ChainIndex < ops[j].ChainIndex
	})
	return ops, nil
}

// --- Drafts ---

func (s *MemoryStore) SaveDraft(ctx context.Context, d *Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	if cp.Version <= 0 {
		cp.Version = 1
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.drafts[cp.ID] = &cp
	return nil
}

func (s *MemoryStore) GetDraft(ctx context.Context, id string) (*Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[id]
	if !ok {
		return nil, storeNotFound("draft", id)
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) UpdateDraftStatus(ctx context.Context, id string, status schema.DraftStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[id]
	if !ok {
		return storeNotFound("draft", id)
	}
	d.Status = status
	return nil
}

func (s *MemoryStore) ListDrafts(ctx context.Context, filter DraftFilter) ([]*Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var drafts []*Draft
	for _, d := range s.drafts {
		if filter.ProcessID != "" && d.ProcessID != filter.ProcessID {
			continue
		}
		if filter.Kind != nil && d.Kind != *filter.Kind {
			continue
		}
		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}
		if filter.OriginalDraftID != "" && d.OriginalDraftID != filter.OriginalDraftID {
			continue
		}
		cp := *d
		drafts = append(drafts, &cp)
	}
	sort.Slice(drafts, func(i, j int) bool {
		if !drafts[i].CreatedAt.Equal(drafts[j].CreatedAt) {
			return drafts[i].CreatedAt.Before(drafts[j].CreatedAt)
		}
		return drafts[i].PriorityOrder < drafts[j].PriorityOrder
	})
	if filter.Limit > 0 && len(drafts) > filter.Limit {
		drafts = drafts[:filter.Limit]
	}
	return drafts, nil
}

// --- Scheduled events ---

func (s *MemoryStore) InsertScheduledEvent(ctx context.Context, ev *ScheduledEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ev
	cp.ScheduledTime = cp.ScheduledTime.UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = cp.CreatedAt
	s.events[cp.ID] = &cp
	return nil
}

func (s *MemoryStore) GetScheduledEvent(ctx context.Context, id string) (*ScheduledEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, storeNotFound("scheduled_event", id)
	}
	cp := *ev
	return &cp, nil
}

func (s *MemoryStore) UpdateScheduledEvent(ctx context.Context, id string, update EventUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return storeNotFound("scheduled_event", id)
	}
	if update.Status != nil {
		ev.Status = *update.Status
	}
	if update.ExecutedAt != nil {
		ev.ExecutedAt = update.ExecutedAt
	}
	if update.ErrorMessage != "" {
		ev.ErrorMessage = update.ErrorMessage
	}
	ev.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ListScheduledEvents(ctx context.Context, filter EventFilter) ([]*ScheduledEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var events []*ScheduledEvent
	for _, ev := range s.events {
		if filter.OrgID != "" && ev.OrgID != filter.OrgID {
			continue
		}
		if filter.ProcessID != "" && ev.ProcessID != filter.ProcessID {
			continue
		}
		if filter.DraftID != "" && ev.DraftID != filter.DraftID {
			continue
		}
		if filter.Kind != nil && ev.Kind != *filter.Kind {
			continue
		}
		if filter.Status != nil && ev.Status != *filter.Status {
			continue
		}
		if filter.DueBefore != nil && ev.ScheduledTime.After(*filter.DueBefore) {
			continue
		}
		cp := *ev
		events = append(events, &cp)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].ScheduledTime.Before(events[j].ScheduledTime)
	})
	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[:filter.Limit]
	}
	return events, nil
}

// --- Reminder tasks ---

func (s *MemoryStore) InsertReminderTask(ctx context.Context, task *ReminderTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.ImportUUID != "" && s.importUUIDs[task.ImportUUID] {
		return schema.NewErrorf(schema.ErrCodeConflict,
			"reminder task with import_uuid %q already exists", task.ImportUUID)
	}
	cp := *task
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.reminders[cp.ID] = &cp
	if cp.ImportUUID != "" {
		s.importUUIDs[cp.ImportUUID] = true
	}
	return nil
}

func (s *MemoryStore) ListReminderTasks(ctx context.Context, filter ReminderFilter) ([]*ReminderTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var tasks []*ReminderTask
	for _, t := range s.reminders {
		if filter.OrgID != "" && t.OrgID != filter.OrgID {
			continue
		}
		if filter.ProcessID != "" && t.ProcessID != filter.ProcessID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		cp := *t
		tasks = append(tasks, &cp)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].ScheduledTime.Before(tasks[j].ScheduledTime)
	})
	if filter.Limit > 0 && len(tasks) > filter.Limit {
		tasks = tasks[:filter.Limit]
	}
	return tasks, nil
}

// --- Scheduling rules and team settings ---

func ruleKey(orgID, teamID, name string) string {
	return orgID + "\x00" + teamID + "\x00" + name
}

func (s *MemoryStore) GetSchedulingRule(ctx context.Context, orgID, teamID string) (*SchedulingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *SchedulingRule
	for _, r := range s.rules {
		if !r.Active || r.OrgID != orgID {
			continue
		}
		if teamID != "" && r.TeamID != teamID {
			continue
		}
		if best == nil || r.UpdatedAt.After(best.UpdatedAt) {
			best = r
		}
	}
	if best == nil {
		return nil, storeNotFound("scheduling_rule", orgID+"/"+teamID)
	}
	cp := *best
	return &cp, nil
}

func (s *MemoryStore) UpsertSchedulingRule(ctx context.Context, rule *SchedulingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rule
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = time.Now().UTC()
	s.rules[ruleKey(cp.OrgID, cp.TeamID, cp.Name)] = &cp
	return nil
}

func (s *MemoryStore) GetTeamSetting(ctx context.Context, teamID, key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings[teamID+"\x00"+key]
	if !ok {
		return nil, storeNotFound("team_setting", teamID+"/"+key)
	}
	return append(json.RawMessage(nil), v...), nil
}

func (s *MemoryStore) SetTeamSetting(ctx context.Context, teamID, key string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[teamID+"\x00"+key] = append(json.RawMessage(nil), value...)
	return nil
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*LibSQLStore)(nil)
