package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
)

// SanitizeInput strips markup from every string in a JSON body, nested
// objects and arrays included. Non-JSON and empty bodies pass through.
func SanitizeInput() gin.HandlerFunc {
	policy := bluemonday.StrictPolicy()
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}
		if !strings.HasPrefix(c.ContentType(), "application/json") || c.Request.Body == nil {
			c.Next()
			return
		}

		buf, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid body"})
			return
		}
		if len(bytes.TrimSpace(buf)) == 0 {
			c.Request.Body = io.NopCloser(bytes.NewReader(buf))
			c.Next()
			return
		}

		var body any
		if err := json.Unmarshal(buf, &body); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Malformed JSON"})
			return
		}
		clean, err := json.Marshal(sanitizeValue(policy, body))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Malformed JSON"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(clean))
		c.Request.ContentLength = int64(len(clean))
		c.Next()
	}
}

func sanitizeValue(policy *bluemonday.Policy, v any) any {
	switch t := v.(type) {
	case string:
		return policy.Sanitize(t)
	case map[string]any:
		for k, inner := range t {
			t[k] = sanitizeValue(policy, inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = sanitizeValue(policy, inner)
		}
		return t
	default:
		return v
	}
}
