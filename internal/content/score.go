package content

import "strings"

// PersonalizationScore rates how much of the prospect's data a draft
// actually uses: company name and contact name are worth 25 each,
// industry 20, the first referenced pain point 15, and company size or
// location 15, capped at 100.
func PersonalizationScore(body string, prospect Prospect) int {
	lower := strings.ToLower(body)
	score := 0

	if used(lower, prospect.CompanyName) {
		score += 25
	}
	if name := strings.ToLower(strings.TrimSpace(prospect.ContactName)); name != "" && name != "a person" && strings.Contains(lower, name) {
		score += 25
	}
	if used(lower, prospect.Industry) {
		score += 20
	}
	for _, p := range prospect.PainPoints {
		if used(lower, p) {
			score += 15
			break
		}
	}
	if used(lower, prospect.CompanySize) || used(lower, prospect.Location) {
		score += 15
	}

	if score > 100 {
		return 100
	}
	return score
}

func used(lowerBody, detail string) bool {
	d := strings.ToLower(strings.TrimSpace(detail))
	return d != "" && strings.Contains(lowerBody, d)
}
