package billing

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	appbilling "github.com/shahzaibimran219/pdf-scrapper/internal/app/billing"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/plans"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorTable = []errorMapping{
	{plans.ErrUnsupportedPlan, http.StatusBadRequest, "UNSUPPORTED_PLAN"},
	{plans.ErrAlreadyBasic, http.StatusConflict, "ALREADY_BASIC"},
	{plans.ErrDowngradeNotAllowed, http.StatusConflict, "DOWNGRADE_NOT_ALLOWED"},
	{plans.ErrProStillActive, http.StatusConflict, "PRO_STILL_ACTIVE"},
	{appbilling.ErrInvalidReason, http.StatusBadRequest, "INVALID_REASON"},
	{appbilling.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
	{appbilling.ErrNoSubscription, http.StatusConflict, "NO_SUBSCRIPTION"},
	{appbilling.ErrDowngradeIneligible, http.StatusConflict, "DOWNGRADE_INELIGIBLE"},
	{appbilling.ErrNoScheduledDowngrade, http.StatusConflict, "NO_SCHEDULED_DOWNGRADE"},
	{appbilling.ErrCheckoutInProgress, http.StatusConflict, "CHECKOUT_IN_PROGRESS"},
	{appbilling.ErrSessionMismatch, http.StatusNotFound, "SESSION_NOT_FOUND"},
	{appbilling.ErrProcessor, http.StatusBadGateway, "PAYMENT_PROCESSOR_ERROR"},
}

// writeError maps service errors to status codes. Unknown errors are 500s
// and their text is not echoed back.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			c.JSON(m.status, gin.H{"error": m.err.Error(), "code": m.code})
			return
		}
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
}
