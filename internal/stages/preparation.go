package stages

import (
	"context"
	"strings"
	"time"

	"github.com/fusesell/fusesell/internal/content"
	"github.com/fusesell/fusesell/internal/stage"
	"github.com/fusesell/fusesell/pkg/schema"
)

// DataPreparation normalizes the raw acquisition document into the
// prospect shape the downstream stages consume.
type DataPreparation struct {
	deps Deps
}

// NewDataPreparation creates the stage.
func NewDataPreparation(deps Deps) *DataPreparation {
	return &DataPreparation{deps: deps}
}

func (s *DataPreparation) Name() string { return stage.NameDataPreparation }

func (s *DataPreparation) Validate(sc *stage.Context) bool {
	return sc != nil && sc.Input != nil
}

func (s *DataPreparation) Execute(ctx context.Context, sc *stage.Context) (*stage.Result, error) {
	started := s.deps.now()

	raw, _ := sc.Input["data"].(map[string]any)
	if raw == nil {
		return &stage.Result{
			Stage:     s.Name(),
			Status:    schema.StageResultError,
			Error:     schema.NewError(schema.ErrCodeStageExecution, "no acquisition data to prepare").WithStage(s.Name()),
			StartedAt: started,
			Duration:  time.Since(started),
		}, nil
	}

	prospect := normalizeProspect(raw)
	data := map[string]any{
		"prospect": prospect,
		"org_name": stringField(raw, "org_name"),
		"products": raw["products"],
	}

	return &stage.Result{
		Stage:     s.Name(),
		Status:    schema.StageResultSuccess,
		Data:      map[string]any{"data": data},
		StartedAt: started,
		Duration:  time.Since(started),
	}, nil
}

// normalizeProspect maps the loosely keyed acquisition document onto
// the normalized prospect. Both flat keys and the nested
// companyInfo/primaryContact shape of upstream exports are accepted.
func normalizeProspect(raw map[string]any) content.Prospect {
	p := content.Prospect{
		CompanyName:  firstString(raw, "company_name", "company"),
		ContactName:  firstString(raw, "contact_name", "contact"),
		ContactEmail: firstString(raw, "contact_email", "email"),
		Industry:     firstString(raw, "industry"),
		CompanySize:  firstString(raw, "company_size", "size"),
		Location:     firstString(raw, "location", "address"),
		PainPoints:   stringSlice(raw, "pain_points"),
	}

	if company, ok := raw["companyInfo"].(map[string]any); ok {
		fillIfEmpty(&p.CompanyName, firstString(company, "name"))
		fillIfEmpty(&p.Industry, firstString(company, "industry"))
		fillIfEmpty(&p.CompanySize, firstString(company, "size"))
		fillIfEmpty(&p.Location, firstString(company, "location", "address"))
	}
	if contact, ok := raw["primaryContact"].(map[string]any); ok {
		fillIfEmpty(&p.ContactName, firstString(contact, "name"))
		fillIfEmpty(&p.ContactEmail, firstString(contact, "email"))
	}
	if len(p.PainPoints) == 0 {
		if points, ok := raw["painPoints"].([]any); ok {
			for _, entry := range points {
				if m, ok := entry.(map[string]any); ok {
					if desc := strings.TrimSpace(firstString(m, "description")); desc != "" {
						p.PainPoints = append(p.PainPoints, desc)
					}
				}
			}
		}
	}

	p.CompanyName = strings.TrimSpace(p.CompanyName)
	p.ContactName = strings.TrimSpace(p.ContactName)
	p.ContactEmail = strings.TrimSpace(strings.ToLower(p.ContactEmail))
	p.Industry = strings.TrimSpace(strings.ToLower(p.Industry))
	return p
}

func firstString(data map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := data[k].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func fillIfEmpty(dst *string, v string) {
	if strings.TrimSpace(*dst) == "" && v != "" {
		*dst = v
	}
}
