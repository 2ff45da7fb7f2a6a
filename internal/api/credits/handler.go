package credits

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appcredits "github.com/shahzaibimran219/pdf-scrapper/internal/app/credits"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/plans"
)

type Handler struct {
	ledger  *appcredits.Ledger
	catalog plans.Catalog
	log     *zap.Logger
}

func NewHandler(ledger *appcredits.Ledger, catalog plans.Catalog, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{ledger: ledger, catalog: catalog, log: log.Named("api.credits")}
}

// POST /credits/debit charges one extraction.
func (h *Handler) Debit(c *gin.Context) {
	var body struct {
		ResumeID string `json:"resume_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed body"})
		return
	}

	userID := c.GetUint("user_id")
	balance, err := h.ledger.Debit(c.Request.Context(), userID, h.catalog.ExtractionCost, body.ResumeID)
	switch {
	case errors.Is(err, appcredits.ErrInsufficientCredits):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":    "Not enough credits for an extraction",
			"code":     "INSUFFICIENT_CREDITS",
			"required": h.catalog.ExtractionCost,
		})
		return
	case errors.Is(err, appcredits.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to debit credits"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"debited": h.catalog.ExtractionCost,
		"credits": balance,
	})
}

// GET /credits/ledger
func (h *Handler) Ledger(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := h.ledger.History(c.Request.Context(), c.GetUint("user_id"), limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load ledger"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
