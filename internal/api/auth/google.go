package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/shahzaibimran219/pdf-scrapper/config"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/users"
)

const (
	googleIssuer = "https://accounts.google.com"
	stateCookie  = "oauth_state"
	tokenTTL     = 24 * time.Hour
)

type Handler struct {
	db  *gorm.DB
	cfg config.Config
	log *zap.Logger

	mu       sync.Mutex
	verifier *oidc.IDTokenVerifier
}

func NewHandler(db *gorm.DB, cfg config.Config, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{db: db, cfg: cfg, log: log.Named("api.auth")}
}

func (h *Handler) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.cfg.GoogleClientID,
		ClientSecret: h.cfg.GoogleClientSecret,
		RedirectURL:  h.cfg.GoogleRedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		Endpoint:     google.Endpoint,
	}
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GET /auth/google
func (h *Handler) GoogleStart(c *gin.Context) {
	if !h.cfg.GoogleEnabled() {
		c.JSON(http.StatusNotFound, gin.H{"error": "google sign-in is not configured"})
		return
	}
	state, err := randomState()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate state"})
		return
	}

	secure := h.cfg.AppEnv == "production"
	c.SetCookie(stateCookie, state, 300, "/", "", secure, true)
	c.Redirect(http.StatusFound, h.oauthConfig().AuthCodeURL(state, oauth2.AccessTypeOnline))
}

// GET /auth/google/callback
func (h *Handler) GoogleCallback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code/state"})
		return
	}
	cookieState, err := c.Cookie(stateCookie)
	if err != nil || cookieState != state {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}

	ctx := c.Request.Context()
	tok, err := h.oauthConfig().Exchange(ctx, code)
	if err != nil {
		h.log.Warn("google code exchange failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "failed to exchange code"})
		return
	}
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing id_token"})
		return
	}

	claims, err := h.verifyIDToken(ctx, rawIDToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	user, err := h.findOrCreateGoogleUser(ctx, claims)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	tokenString, err := IssueToken(h.cfg.JWTSecret, user, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create token"})
		return
	}

	redirect := h.cfg.GoogleFrontendRedirect
	if redirect == "" {
		c.JSON(http.StatusOK, gin.H{"token": tokenString})
		return
	}
	c.Redirect(http.StatusFound, redirect+"?token="+url.QueryEscape(tokenString))
}

/* ---------------- helpers ---------------- */

type googleIDClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
}

func (h *Handler) idTokenVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.verifier != nil {
		return h.verifier, nil
	}
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, err
	}
	h.verifier = provider.Verifier(&oidc.Config{ClientID: h.cfg.GoogleClientID})
	return h.verifier, nil
}

func (h *Handler) verifyIDToken(ctx context.Context, rawIDToken string) (*googleIDClaims, error) {
	verifier, err := h.idTokenVerifier(ctx)
	if err != nil {
		h.log.Error("google oidc provider unavailable", zap.Error(err))
		return nil, errors.New("failed to init google oidc provider")
	}
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.New("invalid id_token")
	}

	var claims googleIDClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.New("failed to decode token claims")
	}
	if claims.Email == "" || claims.Sub == "" {
		return nil, errors.New("token missing required claims")
	}
	if !claims.EmailVerified {
		return nil, errors.New("google email is not verified")
	}
	return &claims, nil
}

// findOrCreateGoogleUser links by google sub, then by email. New accounts
// start on FREE with scraping frozen.
func (h *Handler) findOrCreateGoogleUser(ctx context.Context, gc *googleIDClaims) (users.User, error) {
	db := h.db.WithContext(ctx)
	var user users.User

	if err := db.Where("google_sub = ?", gc.Sub).Take(&user).Error; err == nil {
		return user, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return users.User{}, err
	}

	email := strings.ToLower(gc.Email)
	err := db.Where("email = ?", email).Take(&user).Error
	switch {
	case err == nil:
		if user.GoogleSub == nil {
			sub := gc.Sub
			if err := db.Model(&user).Update("google_sub", sub).Error; err != nil {
				return users.User{}, err
			}
			user.GoogleSub = &sub
		}
		return user, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return users.User{}, err
	}

	user = users.NewFreeUser(email, firstNonEmpty(gc.Name, gc.GivenName))
	sub := gc.Sub
	user.GoogleSub = &sub
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = db.Where("email = ?", email).Take(&user).Error
			return user, err
		}
		return users.User{}, err
	}
	h.log.Info("created user from google sign-in", zap.Uint("user_id", user.ID))
	return user, nil
}

// IssueToken signs the session JWT the auth middleware accepts.
func IssueToken(secret string, user users.User, now time.Time) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"name":    user.Name,
		"role":    user.Role,
		"exp":     now.Add(tokenTTL).Unix(),
	})
	return t.SignedString([]byte(secret))
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
