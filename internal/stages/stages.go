// Package stages implements the five pipeline stages: data
// acquisition, data preparation, lead scoring, initial outreach, and
// follow-up. The two outreach-capable stages share one action router.
package stages

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/fusesell/fusesell/internal/content"
	"github.com/fusesell/fusesell/internal/delivery"
	"github.com/fusesell/fusesell/internal/schedule"
	"github.com/fusesell/fusesell/internal/stage"
	"github.com/fusesell/fusesell/internal/store"
)

// Deps bundles the collaborators the stages share.
type Deps struct {
	Store     store.Store
	Scheduler *schedule.Scheduler
	Gateway   delivery.Gateway
	Generator content.Generator
	Policy    *SendPolicy
	Logger    *slog.Logger
	Now       func() time.Time
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d *Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// RegisterAll registers the five stages in canonical order.
func RegisterAll(reg *stage.Registry, deps Deps) error {
	all := []stage.Stage{
		NewDataAcquisition(deps, nil),
		NewDataPreparation(deps),
		NewLeadScoring(deps),
		NewInitialOutreach(deps),
		NewFollowUp(deps),
	}
	for _, s := range all {
		if err := reg.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// --- shared context helpers ---

// prospectFromData decodes a normalized prospect out of a stage data
// map (under the "prospect" key).
func prospectFromData(data map[string]any) content.Prospect {
	var p content.Prospect
	raw, ok := data["prospect"]
	if !ok {
		return p
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return p
	}
	_ = json.Unmarshal(b, &p)
	return p
}

// offerFromData decodes the recommended offer out of scoring output.
func offerFromData(data map[string]any) content.Offer {
	var o content.Offer
	raw, ok := data["recommended_product"]
	if !ok {
		return o
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return o
	}
	_ = json.Unmarshal(b, &o)
	if name, ok := data["org_name"].(string); ok && o.OrgName == "" {
		o.OrgName = name
	}
	return o
}

func stringField(data map[string]any, key string) string {
	v, _ := data[key].(string)
	return v
}

func stringSlice(data map[string]any, key string) []string {
	raw, ok := data[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
