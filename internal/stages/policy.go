package stages

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/fusesell/fusesell/internal/store"
)

// PolicySettingKey is the team_settings key holding the auto-send
// policy expression.
const PolicySettingKey = "auto_send_policy"

// PolicyEnv is the variable set an auto-send expression sees.
type PolicyEnv struct {
	PersonalizationScore int
	PriorityOrder        int
	SequenceNumber       int
}

func (e PolicyEnv) vars() map[string]any {
	return map[string]any{
		"personalization_score": e.PersonalizationScore,
		"priority_order":        e.PriorityOrder,
		"sequence_number":       e.SequenceNumber,
	}
}

// SendPolicy evaluates a per-team expression deciding whether a
// freshly written draft is auto-submitted for sending. A missing or
// invalid expression always means manual review.
type SendPolicy struct {
	store  store.Store
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*vm.Program
}

// NewSendPolicy creates a SendPolicy.
func NewSendPolicy(s store.Store, logger *slog.Logger) *SendPolicy {
	if logger == nil {
		logger = slog.Default()
	}
	return &SendPolicy{store: s, logger: logger, cache: make(map[string]*vm.Program)}
}

// Allows reports whether the team's policy approves auto-sending a
// draft with the given attributes. Any failure along the way (no
// team, no setting, malformed expression, non-boolean result)
// resolves to false.
func (p *SendPolicy) Allows(ctx context.Context, teamID string, env PolicyEnv) bool {
	if p == nil || teamID == "" {
		return false
	}

	raw, err := p.store.GetTeamSetting(ctx, teamID, PolicySettingKey)
	if err != nil {
		return false
	}
	var src string
	if err := json.Unmarshal(raw, &src); err != nil || src == "" {
		return false
	}

	program, err := p.compile(src)
	if err != nil {
		p.logger.WarnContext(ctx, "invalid auto-send policy expression",
			slog.String("team_id", teamID), slog.Any("error", err))
		return false
	}

	out, err := expr.Run(program, env.vars())
	if err != nil {
		p.logger.WarnContext(ctx, "auto-send policy evaluation failed",
			slog.String("team_id", teamID), slog.Any("error", err))
		return false
	}
	allowed, ok := out.(bool)
	return ok && allowed
}

func (p *SendPolicy) compile(src string) (*vm.Program, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if program, ok := p.cache[src]; ok {
		return program, nil
	}
	program, err := expr.Compile(src, expr.Env(PolicyEnv{}.vars()), expr.AsBool())
	if err != nil {
		return nil, err
	}
	p.cache[src] = program
	return program, nil
}
