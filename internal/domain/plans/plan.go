package plans

import "strings"

// PlanType is the subscription tier a user is billed on.
type PlanType string

const (
	Free  PlanType = "FREE"
	Basic PlanType = "BASIC"
	Pro   PlanType = "PRO"
)

// ParsePlan accepts both the stored form ("BASIC") and the label form
// ("Basic") used in checkout requests and processor metadata.
func ParsePlan(s string) (PlanType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(Free):
		return Free, true
	case string(Basic):
		return Basic, true
	case string(Pro):
		return Pro, true
	default:
		return "", false
	}
}

// Label is the human form written to processor metadata.
func (p PlanType) Label() string {
	switch p {
	case Basic:
		return "Basic"
	case Pro:
		return "Pro"
	case Free:
		return "Free"
	default:
		return string(p)
	}
}

// Paid reports whether the plan is billed through the processor.
func (p PlanType) Paid() bool {
	return p == Basic || p == Pro
}

// Rank orders plans so callers can tell upgrades from downgrades.
func (p PlanType) Rank() int {
	switch p {
	case Basic:
		return 1
	case Pro:
		return 2
	default:
		return 0
	}
}
