package stripe

import "strings"

// NormalizeStatus folds processor subscription states into the handful
// the billing core distinguishes.
func NormalizeStatus(s string) string {
	switch s = strings.TrimSpace(s); s {
	case "":
		return "none"
	case "active", "trialing":
		return s
	case "past_due", "unpaid":
		return "past_due"
	case "canceled", "incomplete_expired":
		return "canceled"
	default:
		return s
	}
}

// Entitled reports whether a subscription in this status should drive
// plan changes.
func Entitled(status string) bool {
	switch NormalizeStatus(status) {
	case "active", "trialing":
		return true
	}
	return false
}
