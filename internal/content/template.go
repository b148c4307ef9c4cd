package content

import (
	"context"
	"fmt"
	"strings"
)

// approach describes one outreach style the template generator emits.
type approach struct {
	name  string
	tone  string
	focus string
}

var approaches = []approach{
	{name: "professional_direct", tone: "professional and direct", focus: "business value and ROI"},
	{name: "consultative", tone: "consultative and helpful", focus: "solving specific pain points"},
	{name: "industry_expert", tone: "industry expert and insightful", focus: "industry trends and challenges"},
	{name: "relationship_building", tone: "warm and relationship-focused", focus: "building connection and trust"},
}

// TemplateGenerator renders drafts from fixed templates. It is the
// default Generator when no LLM backend is configured.
type TemplateGenerator struct{}

// NewTemplateGenerator creates a TemplateGenerator.
func NewTemplateGenerator() *TemplateGenerator { return &TemplateGenerator{} }

func (g *TemplateGenerator) GenerateInitial(ctx context.Context, prospect Prospect, offer Offer) ([]Candidate, error) {
	candidates := make([]Candidate, 0, len(approaches))
	for _, a := range approaches {
		body := g.renderBody(prospect, offer, a)
		candidates = append(candidates, Candidate{
			Subject:              g.renderSubject(prospect, offer, a),
			Content:              body,
			Approach:             a.name,
			PersonalizationScore: PersonalizationScore(body, prospect),
		})
	}
	return candidates, nil
}

func (g *TemplateGenerator) GenerateFollowUp(ctx context.Context, prospect Prospect, offer Offer, sequence int) (*Candidate, error) {
	contact := orDefault(prospect.ContactName, "there")
	company := orDefault(prospect.CompanyName, "your company")

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", contact)
	if sequence <= 1 {
		fmt.Fprintf(&b, "I wanted to follow up on my earlier note about %s and what it could do for %s.\n\n",
			offer.ProductName, company)
	} else {
		fmt.Fprintf(&b, "Following up once more on %s — I know priorities shift, so I'll keep this short.\n\n",
			offer.ProductName)
	}
	if len(prospect.PainPoints) > 0 {
		fmt.Fprintf(&b, "Teams dealing with %s usually see the impact within the first weeks.\n\n", prospect.PainPoints[0])
	}
	b.WriteString("Would a quick call this week work for you?\n\nBest regards")

	body := b.String()
	return &Candidate{
		Subject:              fmt.Sprintf("Re: %s for %s", offer.ProductName, company),
		Content:              body,
		Approach:             "follow_up",
		PersonalizationScore: PersonalizationScore(body, prospect),
	}, nil
}

func (g *TemplateGenerator) Rewrite(ctx context.Context, prospect Prospect, subject, body string) (*Candidate, error) {
	contact := orDefault(prospect.ContactName, "there")

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", contact)
	b.WriteString(rewriteLead(body))
	b.WriteString("\n\nWould it make sense to connect for 15 minutes?\n\nBest regards")

	rewritten := b.String()
	return &Candidate{
		Subject:              subject,
		Content:              rewritten,
		Approach:             "rewrite",
		PersonalizationScore: PersonalizationScore(rewritten, prospect),
	}, nil
}

func (g *TemplateGenerator) renderSubject(prospect Prospect, offer Offer, a approach) string {
	company := orDefault(prospect.CompanyName, "your team")
	switch a.name {
	case "professional_direct":
		return fmt.Sprintf("%s for %s", offer.ProductName, company)
	case "consultative":
		return fmt.Sprintf("A thought on %s's priorities", company)
	case "industry_expert":
		return fmt.Sprintf("What we're seeing across %s", orDefault(prospect.Industry, "your industry"))
	default:
		return fmt.Sprintf("Quick introduction — %s", orDefault(offer.OrgName, offer.ProductName))
	}
}

func (g *TemplateGenerator) renderBody(prospect Prospect, offer Offer, a approach) string {
	contact := orDefault(prospect.ContactName, "there")
	company := orDefault(prospect.CompanyName, "your company")
	org := orDefault(offer.OrgName, "our team")

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", contact)
	fmt.Fprintf(&b, "I'm reaching out from %s regarding a potential opportunity for %s.\n\n", org, company)

	switch a.name {
	case "professional_direct":
		fmt.Fprintf(&b, "%s helps companies like %s improve outcomes measurably. ", offer.ProductName, company)
		if offer.Description != "" {
			b.WriteString(offer.Description)
		}
	case "consultative":
		if len(prospect.PainPoints) > 0 {
			fmt.Fprintf(&b, "From what I understand, %s is a real challenge for you right now. %s was built for exactly that.",
				prospect.PainPoints[0], offer.ProductName)
		} else {
			fmt.Fprintf(&b, "I'd love to understand your current priorities and see whether %s can help.", offer.ProductName)
		}
	case "industry_expert":
		fmt.Fprintf(&b, "Across the %s space we keep seeing the same pressures, and %s addresses the most common ones.",
			orDefault(prospect.Industry, "industry"), offer.ProductName)
	default:
		fmt.Fprintf(&b, "No pitch here — I simply wanted to introduce myself and %s, in case it's ever useful for %s.",
			offer.ProductName, company)
	}

	b.WriteString("\n\nWould you be open to a short conversation?\n\nBest regards")
	return b.String()
}

// rewriteLead keeps the substance of the original body while dropping
// the greeting and signature lines.
func rewriteLead(body string) string {
	lines := strings.Split(body, "\n")
	var kept []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		if strings.HasPrefix(lower, "dear ") || strings.HasPrefix(lower, "hi ") ||
			strings.HasPrefix(lower, "best regards") || strings.HasPrefix(lower, "would you") {
			continue
		}
		kept = append(kept, trimmed)
	}
	if len(kept) == 0 {
		return "I wanted to share a fresh take on my earlier note."
	}
	return strings.Join(kept, " ")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

var _ Generator = (*TemplateGenerator)(nil)
