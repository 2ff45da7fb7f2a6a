package plans

import "errors"

var (
	ErrAlreadyBasic        = errors.New("already on the basic plan")
	ErrDowngradeNotAllowed = errors.New("downgrade must be scheduled, not purchased")
	ErrProStillActive      = errors.New("pro plan still has credits; renewal allowed once exhausted")
	ErrUnsupportedPlan     = errors.New("unsupported plan")
)

// IsRejection reports whether err is a checkout business-rule rejection.
func IsRejection(err error) bool {
	return errors.Is(err, ErrAlreadyBasic) ||
		errors.Is(err, ErrDowngradeNotAllowed) ||
		errors.Is(err, ErrProStillActive) ||
		errors.Is(err, ErrUnsupportedPlan)
}

// CheckCheckout applies the purchase rules in order. A nil result means
// a checkout for requested may proceed.
func CheckCheckout(current PlanType, credits int64, requested PlanType) error {
	switch requested {
	case Basic:
		switch current {
		case Basic:
			return ErrAlreadyBasic
		case Pro:
			return ErrDowngradeNotAllowed
		}
		return nil
	case Pro:
		if current == Pro && credits > 0 {
			return ErrProStillActive
		}
		return nil
	default:
		return ErrUnsupportedPlan
	}
}

// IsUpgrade reports the BASIC to PRO move handled in place.
func IsUpgrade(current, requested PlanType) bool {
	return current == Basic && requested == Pro
}
