package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/users"
)

// RequireScrapingEnabled blocks extraction for users whose billing froze
// scraping: FREE accounts and cancelled subscriptions.
func RequireScrapingEnabled(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var user users.User
		err := db.WithContext(c.Request.Context()).
			Select("id", "plan_type", "scraping_frozen").
			Where("id = ?", c.GetUint("user_id")).
			Take(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
			return
		}

		if user.ScrapingFrozen {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":     "Scraping is disabled until a plan is active",
				"code":      "BILLING_FROZEN",
				"plan_type": user.PlanType,
			})
			return
		}
		c.Next()
	}
}
