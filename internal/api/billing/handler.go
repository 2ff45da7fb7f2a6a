package billing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appbilling "github.com/shahzaibimran219/pdf-scrapper/internal/app/billing"
)

type Handler struct {
	svc *appbilling.Service
	log *zap.Logger
}

func NewHandler(svc *appbilling.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log.Named("api.billing")}
}

// POST /billing/checkout
func (h *Handler) Checkout(c *gin.Context) {
	var body struct {
		PlanType string `json:"plan_type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid plan_type"})
		return
	}

	res, err := h.svc.Checkout(c.Request.Context(), identity(c), body.PlanType)
	if err != nil {
		writeError(c, err)
		return
	}
	if res.UpgradedInPlace {
		c.JSON(http.StatusOK, gin.H{
			"upgraded":  true,
			"plan_type": res.Plan,
			"credits":   res.Credits,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":        res.URL,
		"session_id": res.SessionID,
		"plan_type":  res.Plan,
		"credits":    res.Credits,
	})
}

// POST /billing/downgrade
func (h *Handler) ScheduleDowngrade(c *gin.Context) {
	res, err := h.svc.ScheduleDowngrade(c.Request.Context(), c.GetUint("user_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /billing/downgrade/cancel
func (h *Handler) CancelDowngrade(c *gin.Context) {
	if err := h.svc.CancelScheduledDowngrade(c.Request.Context(), c.GetUint("user_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// POST /billing/cancel
func (h *Handler) CancelSubscription(c *gin.Context) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed body"})
		return
	}
	if err := h.svc.CancelSubscription(c.Request.Context(), c.GetUint("user_id"), body.Reason); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// POST /billing/portal
func (h *Handler) Portal(c *gin.Context) {
	url, err := h.svc.Portal(c.Request.Context(), c.GetUint("user_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// GET /billing/verify-session?session_id=
func (h *Handler) VerifySession(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing session_id"})
		return
	}
	res, err := h.svc.VerifySession(c.Request.Context(), c.GetUint("user_id"), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /billing/me
func (h *Handler) Me(c *gin.Context) {
	res, err := h.svc.Summary(c.Request.Context(), c.GetUint("user_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func identity(c *gin.Context) appbilling.Identity {
	return appbilling.Identity{
		UserID: c.GetUint("user_id"),
		Email:  c.GetString("email"),
		Name:   c.GetString("name"),
	}
}
