package stripewebhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appbilling "github.com/shahzaibimran219/pdf-scrapper/internal/app/billing"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/billing"
)

const maxBodyBytes = 65536

// Processor is the slice of the billing service the endpoint needs.
type Processor interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (appbilling.Outcome, error)
}

type Handler struct {
	svc Processor
	log *zap.Logger
}

func NewHandler(svc Processor, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log.Named("api.webhook")}
}

// StripeWebhook acknowledges every verified delivery with 200, including
// duplicates and events whose processing failed. Only a bad signature or
// an unavailable idempotency store asks the sender to retry.
func (h *Handler) StripeWebhook(c *gin.Context) {
	payload, err := readStripeBody(c, maxBodyBytes)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	out, err := h.svc.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case errors.Is(err, billing.ErrInvalidSignature):
		h.log.Warn("stripe signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Event could not be recorded"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"idempotent": out.Duplicate,
		"event_id":   out.EventID,
	})
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
