package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/fusesell/fusesell/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/fusesell.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// --- Processes ---

func (s *LibSQLStore) CreateProcess(ctx context.Context, p *Process) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processes (id, org_id, team_id, status, current_runtime_index, version, request_body, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrgID, nullStr(p.TeamID), string(p.Status), p.CurrentRuntimeIndex,
		versionOrOne(p.Version), nullRaw(p.RequestBody), timeOrNow(p.CreatedAt), timeOrNow(p.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetProcess(ctx context.Context, id string) (*Process, error) {
	p := &Process{}
	var teamID, requestBody sql.NullString
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, org_id, team_id, status, current_runtime_index, version, request_body, created_at, updated_at
		 FROM processes WHERE id = ?`, id,
	).Scan(&p.ID, &p.OrgID, &teamID, &status, &p.CurrentRuntimeIndex, &p.Version, &requestBody, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("process", id)
	}
	if err != nil {
		return nil, err
	}
	p.TeamID = teamID.String
	p.Status = schema.ProcessStatus(status)
	p.RequestBody = rawOrNil(requestBody)
	return p, nil
}

func (s *LibSQLStore) UpdateProcess(ctx context.Context, id string, update ProcessUpdate) error {
	var sets []string
	var args []any

	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.RuntimeIndex != nil {
		sets = append(sets, "current_runtime_index = ?")
		args = append(args, *update.RuntimeIndex)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "version = version + 1", "updated_at = CURRENT_TIMESTAMP")

	query := fmt.Sprintf("UPDATE processes SET %s WHERE id = ?", strings.Join(sets, ", "))
	args = append(args, id)
	if update.ExpectedVersion != nil {
		query += " AND version = ?"
		args = append(args, *update.ExpectedVersion)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if update.ExpectedVersion != nil {
			// Distinguish a stale version from a missing row.
			var exists int
			if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM processes WHERE id = ?`, id).Scan(&exists); err == nil && exists > 0 {
				return schema.NewErrorf(schema.ErrCodeConflict,
					"process %q modified concurrently (expected version %d)", id, *update.ExpectedVersion)
			}
		}
		return storeNotFound("process", id)
	}
	return nil
}

// --- Operations ---

func (s *LibSQLStore) CreateOperation(ctx context.Context, op *Operation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO operations (id, process_id, stage_name, runtime_index, chain_index, execution_status, input, output, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, op.ProcessID, op.StageName, op.RuntimeIndex, op.ChainIndex,
		string(op.ExecutionStatus), nullRaw(op.Input), nullRaw(op.Output),
		timeOrNow(op.CreatedAt), timeOrNow(op.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetOperation(ctx context.Context, id string) (*Operation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, process_id, stage_name, runtime_index, chain_index, execution_status, input, output, created_at, updated_at
		 FROM operations WHERE id = ?`, id)
	op, err := scanOperation(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("operation", id)
	}
	return op, err
}

func (s *LibSQLStore) UpdateOperation(ctx context.Context, id string, update OperationUpdate) error {
	var sets []string
	var args []any

	if update.ExecutionStatus != nil {
		sets = append(sets, "execution_status = ?")
		args = append(args, string(*update.ExecutionStatus))
	}
	if update.Output != nil {
		sets = append(sets, "output = ?")
		args = append(args, string(update.Output))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE operations SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "operation", id)
}

func (s *LibSQLStore) ListOperations(ctx context.Context, processID string) ([]*Operation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, process_id, stage_name, runtime_index, chain_index, execution_status, input, output, created_at, updated_at
		 FROM operations WHERE process_id = ? ORDER BY runtime_index ASC, chain_index ASC`, processID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (*Operation, error) {
	op := &Operation{}
	var status string
	var input, output sql.NullString
	if err := row.Scan(&op.ID, &op.ProcessID, &op.StageName, &op.RuntimeIndex, &op.ChainIndex,
		&status, &input, &output, &op.CreatedAt, &op.UpdatedAt); err != nil {
		return nil, err
	}
	op.ExecutionStatus = schema.OperationStatus(status)
	op.Input = rawOrNil(input)
	op.Output = rawOrNil(output)
	return op, nil
}

// --- Drafts ---

func (s *LibSQLStore) SaveDraft(ctx context.Context, d *Draft) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO drafts (id, process_id, kind, version, status, subject, content, approach, priority_order,
		                     personalization_score, sequence_number, original_draft_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ProcessID, string(d.Kind), versionIntOrOne(d.Version), string(d.Status),
		d.Subject, d.Content, nullStr(d.Approach), d.PriorityOrder,
		d.PersonalizationScore, nullInt(d.SequenceNumber), nullStr(d.OriginalDraftID),
		nullRaw(d.Metadata), timeOrNow(d.CreatedAt),
	)
	return err
}

func (s *LibSQLStore) GetDraft(ctx context.Context, id string) (*Draft, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, process_id, kind, version, status, subject, content, approach, priority_order,
		        personalization_score, sequence_number, original_draft_id, metadata, created_at
		 FROM drafts WHERE id = ?`, id)
	d, err := scanDraft(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("draft", id)
	}
	return d, err
}

func (s *LibSQLStore) UpdateDraftStatus(ctx context.Context, id string, status schema.DraftStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE drafts SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "draft", id)
}

func (s *LibSQLStore) ListDrafts(ctx context.Context, filter DraftFilter) ([]*Draft, error) {
	var where []string
	var args []any

	if filter.ProcessID != "" {
		where = append(where, "process_id = ?")
		args = append(args, filter.ProcessID)
	}
	if filter.Kind != nil {
		where = append(where, "kind = ?")
		args = append(args, string(*filter.Kind))
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.OriginalDraftID != "" {
		where = append(where, "original_draft_id = ?")
		args = append(args, filter.OriginalDraftID)
	}

	query := `SELECT id, process_id, kind, version, status, subject, content, approach, priority_order,
	                 personalization_score, sequence_number, original_draft_id, metadata, created_at FROM drafts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, priority_order ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drafts []*Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

func scanDraft(row rowScanner) (*Draft, error) {
	d := &Draft{}
	var kind, status string
	var approach, originalID, metadata sql.NullString
	var sequence sql.NullInt64
	if err := row.Scan(&d.ID, &d.ProcessID, &kind, &d.Version, &status, &d.Subject, &d.Content,
		&approach, &d.PriorityOrder, &d.PersonalizationScore, &sequence, &originalID, &metadata, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Kind = schema.DraftKind(kind)
	d.Status = schema.DraftStatus(status)
	d.Approach = approach.String
	d.OriginalDraftID = originalID.String
	d.Metadata = rawOrNil(metadata)
	if sequence.Valid {
		d.SequenceNumber = int(sequence.Int64)
	}
	return d, nil
}

// --- Scheduled events ---

func (s *LibSQLStore) InsertScheduledEvent(ctx context.Context, ev *ScheduledEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_events (id, kind, scheduled_time, status, draft_id, process_id, org_id, team_id,
		                               recipient_address, recipient_name, customer_timezone, payload, error_message,
		                               created_at, updated_at, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Kind), ev.ScheduledTime.UTC(), string(ev.Status), ev.DraftID, ev.ProcessID,
		ev.OrgID, nullStr(ev.TeamID), ev.RecipientAddress, nullStr(ev.RecipientName),
		nullStr(ev.CustomerTimezone), nullRaw(ev.Payload), nullStr(ev.ErrorMessage),
		timeOrNow(ev.CreatedAt), timeOrNow(ev.UpdatedAt), nullTime(ev.ExecutedAt),
	)
	return err
}

func (s *LibSQLStore) GetScheduledEvent(ctx context.Context, id string) (*ScheduledEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, scheduled_time, status, draft_id, process_id, org_id, team_id,
		        recipient_address, recipient_name, customer_timezone, payload, error_message,
		        created_at, updated_at, executed_at
		 FROM scheduled_events WHERE id = ?`, id)
	ev, err := scanScheduledEvent(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("scheduled_event", id)
	}
	return ev, err
}

func (s *LibSQLStore) UpdateScheduledEvent(ctx context.Context, id string, update EventUpdate) error {
	var sets []string
	var args []any

	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.ExecutedAt != nil {
		sets = append(sets, "executed_at = ?")
		args = append(args, *update.ExecutedAt)
	}
	if update.ErrorMessage != "" {
		sets = append(sets, "error_message = ?")
		args = append(args, update.ErrorMessage)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE scheduled_events SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "scheduled_event", id)
}

func (s *LibSQLStore) ListScheduledEvents(ctx context.Context, filter EventFilter) ([]*ScheduledEvent, error) {
	var where []string
	var args []any

	if filter.OrgID != "" {
		where = append(where, "org_id = ?")
		args = append(args, filter.OrgID)
	}
	if filter.ProcessID != "" {
		where = append(where, "process_id = ?")
		args = append(args, filter.ProcessID)
	}
	if filter.DraftID != "" {
		where = append(where, "draft_id = ?")
		args = append(args, filter.DraftID)
	}
	if filter.Kind != nil {
		where = append(where, "kind = ?")
		args = append(args, string(*filter.Kind))
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.DueBefore != nil {
		where = append(where, "scheduled_time <= ?")
		args = append(args, filter.DueBefore.UTC())
	}

	query := `SELECT id, kind, scheduled_time, status, draft_id, process_id, org_id, team_id,
	                 recipient_address, recipient_name, customer_timezone, payload, error_message,
	                 created_at, updated_at, executed_at FROM scheduled_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY scheduled_time ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*ScheduledEvent
	for rows.Next() {
		ev, err := scanScheduledEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanScheduledEvent(row rowScanner) (*ScheduledEvent, error) {
	ev := &ScheduledEvent{}
	var kind, status string
	var teamID, recipientName, tz, payload, errMsg sql.NullString
	var executedAt sql.NullTime
	if err := row.Scan(&ev.ID, &kind, &ev.ScheduledTime, &status, &ev.DraftID, &ev.ProcessID,
		&ev.OrgID, &teamID, &ev.RecipientAddress, &recipientName, &tz, &payload, &errMsg,
		&ev.CreatedAt, &ev.UpdatedAt, &executedAt); err != nil {
		return nil, err
	}
	ev.Kind = schema.EventKind(kind)
	ev.Status = schema.EventStatus(status)
	ev.TeamID = teamID.String
	ev.RecipientName = recipientName.String
	ev.CustomerTimezone = tz.String
	ev.Payload = rawOrNil(payload)
	ev.ErrorMessage = errMsg.String
	if executedAt.Valid {
		ev.ExecutedAt = &executedAt.Time
	}
	return ev, nil
}

// --- Reminder tasks ---

func (s *LibSQLStore) InsertReminderTask(ctx context.Context, task *ReminderTask) error {
	tags, err := json.Marshal(task.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reminder_tasks (id, status, task, cron, tags, content, org_id, customer_id,
		                             process_id, draft_id, import_uuid, scheduled_time, extra, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Status, task.Task, task.Cron, string(tags), string(task.Content),
		nullStr(task.OrgID), nullStr(task.CustomerID), nullStr(task.ProcessID), nullStr(task.DraftID),
		task.ImportUUID, task.ScheduledTime.UTC(), nullRaw(task.Extra), timeOrNow(task.CreatedAt),
	)
	return err
}

func (s *LibSQLStore) ListReminderTasks(ctx context.Context, filter ReminderFilter) ([]*ReminderTask, error) {
	var where []string
	var args []any

	if filter.OrgID != "" {
		where = append(where, "org_id = ?")
		args = append(args, filter.OrgID)
	}
	if filter.ProcessID != "" {
		where = append(where, "process_id = ?")
		args = append(args, filter.ProcessID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT id, status, task, cron, tags, content, org_id, customer_id,
	                 process_id, draft_id, import_uuid, scheduled_time, extra, created_at FROM reminder_tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY scheduled_time ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*ReminderTask
	for rows.Next() {
		t := &ReminderTask{}
		var tags, content string
		var orgID, customerID, processID, draftID, extra sql.NullString
		if err := rows.Scan(&t.ID, &t.Status, &t.Task, &t.Cron, &tags, &content,
			&orgID, &customerID, &processID, &draftID, &t.ImportUUID, &t.ScheduledTime, &extra, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Content = schema.ReminderContent(content)
		t.OrgID = orgID.String
		t.CustomerID = customerID.String
		t.ProcessID = processID.String
		t.DraftID = draftID.String
		t.Extra = rawOrNil(extra)
		if tags != "" {
			_ = json.Unmarshal([]byte(tags), &t.Tags)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// --- Scheduling rules and team settings ---

func (s *LibSQLStore) GetSchedulingRule(ctx context.Context, orgID, teamID string) (*SchedulingRule, error) {
	query := `SELECT id, org_id, team_id, rule_name, is_active, business_hours_start, business_hours_end,
	                 default_delay_hours, timezone, follow_up_delay_hours, created_at, updated_at
	          FROM scheduling_rules WHERE org_id = ? AND is_active = 1`
	args := []any{orgID}
	if teamID != "" {
		query += " AND team_id = ?"
		args = append(args, teamID)
	}
	query += " ORDER BY updated_at DESC LIMIT 1"

	r := &SchedulingRule{}
	var team sql.NullString
	var active int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&r.ID, &r.OrgID, &team, &r.Name, &active, &r.BusinessHoursStart, &r.BusinessHoursEnd,
		&r.DefaultDelayHours, &r.Timezone, &r.FollowUpDelayHours, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("scheduling_rule", orgID+"/"+teamID)
	}
	if err != nil {
		return nil, err
	}
	r.TeamID = team.String
	r.Active = active != 0
	return r, nil
}

func (s *LibSQLStore) UpsertSchedulingRule(ctx context.Context, rule *SchedulingRule) error {
	active := 0
	if rule.Active {
		active = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduling_rules (id, org_id, team_id, rule_name, is_active, business_hours_start,
		                               business_hours_end, default_delay_hours, timezone, follow_up_delay_hours, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(org_id, team_id, rule_name) DO UPDATE SET
		   is_active=excluded.is_active, business_hours_start=excluded.business_hours_start,
		   business_hours_end=excluded.business_hours_end, default_delay_hours=excluded.default_delay_hours,
		   timezone=excluded.timezone, follow_up_delay_hours=excluded.follow_up_delay_hours,
		   updated_at=CURRENT_TIMESTAMP`,
		rule.ID, rule.OrgID, nullStr(rule.TeamID), rule.Name, active, rule.BusinessHoursStart,
		rule.BusinessHoursEnd, rule.DefaultDelayHours, rule.Timezone, rule.FollowUpDelayHours,
		timeOrNow(rule.CreatedAt),
	)
	return err
}

func (s *LibSQLStore) GetTeamSetting(ctx context.Context, teamID, key string) (json.RawMessage, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT setting_value FROM team_settings WHERE team_id = ? AND setting_key = ?`, teamID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("team_setting", teamID+"/"+key)
	}
	if err != nil {
		return nil, err
	}
	return rawOrNil(value), nil
}

func (s *LibSQLStore) SetTeamSetting(ctx context.Context, teamID, key string, value json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO team_settings (team_id, setting_key, setting_value, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(team_id, setting_key) DO UPDATE SET setting_value=excluded.setting_value, updated_at=CURRENT_TIMESTAMP`,
		teamID, key, nullRaw(value),
	)
	return err
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func versionOrOne(v int64) int64 {
	if v <= 0 {
		return 1
	}
	return v
}

func versionIntOrOne(v int) int {
	if v <= 0 {
		return 1
	}
	return v
}
