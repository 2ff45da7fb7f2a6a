package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/plans"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/users"
	"github.com/shahzaibimran219/pdf-scrapper/internal/infra/dbtest"
)

const secret = "test-secret"

func token(t *testing.T, claims jwt.MapClaims, key string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetUint("user_id"), "email": c.GetString("email")})
	})

	valid := token(t, jwt.MapClaims{"user_id": 7, "email": "a@b.c", "role": "user", "exp": time.Now().Add(time.Hour).Unix()}, secret)
	expired := token(t, jwt.MapClaims{"user_id": 7, "exp": time.Now().Add(-time.Hour).Unix()}, secret)
	forged := token(t, jwt.MapClaims{"user_id": 7, "exp": time.Now().Add(time.Hour).Unix()}, "other")
	noUser := token(t, jwt.MapClaims{"email": "a@b.c", "exp": time.Now().Add(time.Hour).Unix()}, secret)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + valid, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", valid, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "Bearer " + forged, http.StatusUnauthorized},
		{"no user claim", "Bearer " + noUser, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.JSONEq(t, `{"user_id":7,"email":"a@b.c"}`, w.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", AuthMiddleware(secret), RequireRole(users.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for role, want := range map[string]int{users.RoleAdmin: http.StatusNoContent, users.RoleUser: http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, jwt.MapClaims{"user_id": 1, "role": role, "exp": time.Now().Add(time.Hour).Unix()}, secret))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, role)
	}
}

func TestSanitizeInputStripsNestedMarkup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var got string
	r.POST("/echo", SanitizeInput(), func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		got = string(b)
		c.Status(http.StatusOK)
	})

	body := `{"reason":"<script>x</script>too expensive","nested":{"list":["<b>hi</b>", 3]}}`
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"reason":"too expensive","nested":{"list":["hi",3]}}`, got)

	req = httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequireScrapingEnabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)

	frozen := users.NewFreeUser("frozen@example.com", "")
	require.NoError(t, db.Create(&frozen).Error)
	active := users.NewFreeUser("active@example.com", "")
	active.PlanType = plans.Basic
	active.ScrapingFrozen = false
	require.NoError(t, db.Create(&active).Error)

	for _, tc := range []struct {
		id   uint
		want int
	}{{frozen.ID, http.StatusPaymentRequired}, {active.ID, http.StatusOK}, {9999, http.StatusNotFound}} {
		r := gin.New()
		r.POST("/credits/debit", func(c *gin.Context) { c.Set("user_id", tc.id) }, RequireScrapingEnabled(db), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/credits/debit", nil))
		assert.Equal(t, tc.want, w.Code)
		if tc.want == http.StatusPaymentRequired {
			assert.Contains(t, w.Body.String(), "BILLING_FROZEN")
		}
	}
}
