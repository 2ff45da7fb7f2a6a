package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	appbilling "github.com/shahzaibimran219/pdf-scrapper/internal/app/billing"
	"github.com/shahzaibimran219/pdf-scrapper/internal/infra/clock"
)

type Handler struct {
	svc   *appbilling.Service
	clock clock.Clock
}

func NewHandler(svc *appbilling.Service, clk clock.Clock) *Handler {
	if clk == nil {
		clk = clock.System{}
	}
	return &Handler{svc: svc, clock: clk}
}

// GET /me
func (h *Handler) GetCurrentUser(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := h.svc.LoadUser(ctx, c.GetUint("user_id"))
	if errors.Is(err, appbilling.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}
	intent, err := h.svc.Intent(ctx, user.ID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load billing state"})
		return
	}

	now := h.clock.Now()
	c.JSON(http.StatusOK, MeResponse{
		User: UserDTO{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
			Role:  user.Role,
		},
		Billing: BillingDTO{
			PlanType:       string(user.PlanType),
			Credits:        user.Credits,
			ScrapingFrozen: user.ScrapingFrozen,
			Subscription:   BuildSubscriptionDTO(now, *user),
			PendingChange:  BuildPendingChangeDTO(*user, intent),
		},
	})
}
