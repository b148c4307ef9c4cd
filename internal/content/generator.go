// Package content produces outreach draft candidates. The default
// implementation is template-based; LLM-backed generators plug in
// behind the same interface.
package content

import "context"

// Prospect is the normalized customer data a generator personalizes
// against.
type Prospect struct {
	CompanyName  string   `json:"company_name"`
	ContactName  string   `json:"contact_name"`
	ContactEmail string   `json:"contact_email"`
	Industry     string   `json:"industry"`
	CompanySize  string   `json:"company_size"`
	Location     string   `json:"location"`
	PainPoints   []string `json:"pain_points,omitempty"`
}

// Offer is the recommended product the outreach pitches.
type Offer struct {
	ProductName string `json:"product_name"`
	Description string `json:"description,omitempty"`
	OrgName     string `json:"org_name,omitempty"`
}

// Candidate is one generated draft variant before persistence.
type Candidate struct {
	Subject              string `json:"subject"`
	Content              string `json:"content"`
	Approach             string `json:"approach"`
	PriorityOrder        int    `json:"priority_order,omitempty"`
	PersonalizationScore int    `json:"personalization_score"`
}

// Generator produces draft candidates.
type Generator interface {
	// GenerateInitial returns one candidate per outreach approach.
	GenerateInitial(ctx context.Context, prospect Prospect, offer Offer) ([]Candidate, error)
	// GenerateFollowUp returns the next follow-up in a sequence.
	GenerateFollowUp(ctx context.Context, prospect Prospect, offer Offer, sequence int) (*Candidate, error)
	// Rewrite produces a fresh take on an existing draft.
	Rewrite(ctx context.Context, prospect Prospect, subject, body string) (*Candidate, error)
}
