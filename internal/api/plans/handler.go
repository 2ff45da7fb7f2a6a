package plans

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/plans"
)

type PlanDTO struct {
	PlanType   string `json:"plan_type"`
	Name       string `json:"name"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
	Interval   string `json:"interval"`
	Credits    int64  `json:"credits"`
}

type Handler struct {
	catalog plans.Catalog
}

func NewHandler(catalog plans.Catalog) *Handler {
	return &Handler{catalog: catalog}
}

// GET /plans
func (h *Handler) ListPlans(c *gin.Context) {
	out := make([]PlanDTO, 0, len(h.catalog.Plans))
	for _, spec := range h.catalog.Plans {
		out = append(out, PlanDTO{
			PlanType:   string(spec.Plan),
			Name:       spec.ProductName,
			UnitAmount: spec.UnitAmount,
			Currency:   h.catalog.Currency,
			Interval:   h.catalog.Interval,
			Credits:    spec.Credits,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitAmount < out[j].UnitAmount })
	c.JSON(http.StatusOK, gin.H{
		"plans":           out,
		"extraction_cost": h.catalog.ExtractionCost,
	})
}
