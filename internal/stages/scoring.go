package stages

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/fusesell/fusesell/internal/stage"
	"github.com/fusesell/fusesell/pkg/schema"
)

// LeadScoring ranks the org's products against the prepared prospect
// and picks the recommended offer.
type LeadScoring struct {
	deps Deps
}

// NewLeadScoring creates the stage.
func NewLeadScoring(deps Deps) *LeadScoring {
	return &LeadScoring{deps: deps}
}

func (s *LeadScoring) Name() string { return stage.NameLeadScoring }

func (s *LeadScoring) Validate(sc *stage.Context) bool {
	return sc != nil && sc.Input != nil
}

type productScore struct {
	Name        string `json:"product_name"`
	Description string `json:"description,omitempty"`
	Score       int    `json:"score"`
}

func (s *LeadScoring) Execute(ctx context.Context, sc *stage.Context) (*stage.Result, error) {
	started := s.deps.now()

	data, _ := sc.Input["data"].(map[string]any)
	if data == nil {
		return &stage.Result{
			Stage:     s.Name(),
			Status:    schema.StageResultError,
			Error:     schema.NewError(schema.ErrCodeStageExecution, "no prepared data to score").WithStage(s.Name()),
			StartedAt: started,
			Duration:  time.Since(started),
		}, nil
	}

	prospect := prospectFromData(data)
	products := decodeProducts(data["products"])
	if len(products) == 0 {
		return &stage.Result{
			Stage:     s.Name(),
			Status:    schema.StageResultFail,
			Reason:    "no products to score against",
			StartedAt: started,
			Duration:  time.Since(started),
		}, nil
	}

	scores := make([]productScore, len(products))
	for i, p := range products {
		scores[i] = productScore{
			Name:        p.name,
			Description: p.description,
			Score:       fitScore(p, prospect.Industry, prospect.PainPoints),
		}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Name < scores[j].Name
	})

	best := scores[0]
	out := map[string]any{
		"scores": scores,
		"recommended_product": map[string]any{
			"product_name": best.Name,
			"description":  best.Description,
			"score":        best.Score,
		},
		"org_name": stringField(data, "org_name"),
	}

	return &stage.Result{
		Stage:     s.Name(),
		Status:    schema.StageResultSuccess,
		Data:      out,
		StartedAt: started,
		Duration:  time.Since(started),
	}, nil
}

type product struct {
	name        string
	description string
}

func decodeProducts(raw any) []product {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []product
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name := firstString(m, "name", "product_name")
		if name == "" {
			continue
		}
		out = append(out, product{name: name, description: firstString(m, "description")})
	}
	return out
}

// fitScore is a deterministic heuristic: a neutral base, a bonus per
// pain point the product text mentions (up to three), and a bonus when
// the product text references the prospect's industry.
func fitScore(p product, industry string, painPoints []string) int {
	text := strings.ToLower(p.name + " " + p.description)
	score := 50

	matches := 0
	for _, point := range painPoints {
		point = strings.ToLower(strings.TrimSpace(point))
		if point != "" && containsAnyWord(text, point) {
			matches++
			if matches == 3 {
				break
			}
		}
	}
	score += matches * 10

	if industry != "" && strings.Contains(text, industry) {
		score += 20
	}

	if score > 100 {
		return 100
	}
	return score
}

// containsAnyWord reports whether any word of the phrase (longer than
// three characters) appears in the text.
func containsAnyWord(text, phrase string) bool {
	for _, w := range strings.Fields(phrase) {
		if len(w) > 3 && strings.Contains(text, w) {
			return true
		}
	}
	return false
}
