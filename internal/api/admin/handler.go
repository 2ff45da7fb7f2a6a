package admin

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	appcredits "github.com/shahzaibimran219/pdf-scrapper/internal/app/credits"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/billing"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/credits"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/users"
)

type AdminUser struct {
	ID                    uint       `json:"id"`
	Name                  string     `json:"name"`
	Email                 string     `json:"email"`
	Role                  string     `json:"role"`
	PlanType              string     `json:"plan_type"`
	Credits               int64      `json:"credits"`
	ScrapingFrozen        bool       `json:"scraping_frozen"`
	StripeCustomerID      *string    `json:"stripe_customer_id,omitempty"`
	StripeSubID           *string    `json:"stripe_subscription_id,omitempty"`
	SubscriptionStartDate *time.Time `json:"subscription_start_date,omitempty"`
	SubscriptionEndDate   *time.Time `json:"subscription_end_date,omitempty"`
}

type AdminCancellation struct {
	ID        uint   `json:"id"`
	UserID    uint   `json:"user_id"`
	PlanType  string `json:"plan_type"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"created_at"`
}

type Handler struct {
	db     *gorm.DB
	ledger *appcredits.Ledger
}

func NewHandler(db *gorm.DB, ledger *appcredits.Ledger) *Handler {
	return &Handler{db: db, ledger: ledger}
}

// GET /admin/users
func (h *Handler) ListAllUsers(c *gin.Context) {
	var all []users.User
	if err := h.db.WithContext(c.Request.Context()).Order("id ASC").Find(&all).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load users"})
		return
	}

	out := make([]AdminUser, 0, len(all))
	for _, u := range all {
		out = append(out, AdminUser{
			ID:                    u.ID,
			Name:                  u.Name,
			Email:                 u.Email,
			Role:                  u.Role,
			PlanType:              string(u.PlanType),
			Credits:               u.Credits,
			ScrapingFrozen:        u.ScrapingFrozen,
			StripeCustomerID:      u.StripeCustomerID,
			StripeSubID:           u.StripeSubscriptionID,
			SubscriptionStartDate: u.SubscriptionStartDate,
			SubscriptionEndDate:   u.SubscriptionEndDate,
		})
	}
	c.JSON(http.StatusOK, out)
}

// GET /admin/users/:id/ledger returns the entries and whether the cached
// balance still equals their sum.
func (h *Handler) UserLedger(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}
	ctx := c.Request.Context()

	audit, err := h.ledger.Audit(ctx, uint(id))
	if errors.Is(err, appcredits.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to audit ledger"})
		return
	}
	entries, err := h.ledger.History(ctx, uint(id), 500)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load ledger"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit": audit, "entries": entriesOrEmpty(entries)})
}

// GET /admin/cancellations
func (h *Handler) ListCancellations(c *gin.Context) {
	var rows []billing.SubscriptionCancellation
	if err := h.db.WithContext(c.Request.Context()).Order("created_at DESC").Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cancellations"})
		return
	}

	out := make([]AdminCancellation, 0, len(rows))
	for _, r := range rows {
		out = append(out, AdminCancellation{
			ID:        r.ID,
			UserID:    r.UserID,
			PlanType:  r.PlanType,
			Reason:    r.Reason,
			CreatedAt: r.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	c.JSON(http.StatusOK, out)
}

func entriesOrEmpty(e []credits.LedgerEntry) []credits.LedgerEntry {
	if e == nil {
		return []credits.LedgerEntry{}
	}
	return e
}
