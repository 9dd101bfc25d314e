package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sweenec/Secrets/internal/auth/provider"
	"github.com/sweenec/Secrets/internal/auth/resolver"
	"github.com/sweenec/Secrets/internal/logger"
	"github.com/sweenec/Secrets/internal/session"
	"github.com/sweenec/Secrets/internal/store"
)

type Handler struct {
	providers *provider.Registry
	sessions  *session.Manager
	resolver  *resolver.Resolver
}

func NewHandler(
	registry *provider.Registry,
	sessions *session.Manager,
	resolver *resolver.Resolver,
) *Handler {
	return &Handler{
		providers: registry,
		sessions:  sessions,
		resolver:  resolver,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)
	r.GET("/auth/:provider", h.oauthLogin)
	r.GET("/auth/:provider/callback", h.oauthCallback)
}

// issueSession logs the identity in and sets the session cookie.
func (h *Handler) issueSession(c *gin.Context, ident *store.Identity) error {
	sessionID, expiresAt, err := h.sessions.Login(c.Request.Context(), ident.ID)
	if err != nil {
		return err
	}

	session.SetCookie(c.Writer, sessionID, expiresAt, session.CookieOptions{
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (h *Handler) oauthLogin(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown oauth provider",
		})
		return
	}

	state := generateState(c)
	_, codeChallenge := generatePKCE(c)

	authURL := p.AuthCodeURL(state, codeChallenge)
	c.Redirect(http.StatusFound, authURL)
}

func (h *Handler) oauthCallback(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown oauth provider",
		})
		return
	}

	if !validateState(c) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "invalid state",
		})
		return
	}

	// Provider-side failure (user denied consent, expired code, ...).
	// Abort the flow and send the user back to login.
	if errParam := c.Query("error"); errParam != "" {
		logger.Warn("oauth callback returned error", map[string]any{
			"provider": providerName,
			"error":    errParam,
			"desc":     c.Query("error_description"),
		})
		c.Redirect(http.StatusFound, "/login")
		return
	}

	code := c.Query("code")
	if code == "" {
		logger.Error("oauth callback missing code and error", nil)
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	codeVerifier := getPKCEVerifier(c)
	if codeVerifier == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "missing pkce verifier",
		})
		return
	}

	assertion, err := p.ExchangeCode(c.Request.Context(), code, codeVerifier)
	if err != nil {
		logger.Warn("oauth code exchange failed", map[string]any{
			"provider": providerName,
			"error":    err.Error(),
		})
		c.Redirect(http.StatusFound, "/login")
		return
	}

	ident, err := h.resolver.ResolveOrCreate(c.Request.Context(), *assertion)
	if err != nil {
		logger.Error("failed to resolve identity", map[string]any{
			"provider": providerName,
			"error":    err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to resolve user",
		})
		return
	}

	if err := h.issueSession(c, ident); err != nil {
		logger.Error("failed to create session", map[string]any{
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to create session",
		})
		return
	}

	logger.Info("login success", map[string]any{
		"user_id":  ident.ID,
		"provider": providerName,
		"ip":       c.ClientIP(),
	})

	c.Redirect(http.StatusFound, "/secrets")
}

func (h *Handler) Logout(c *gin.Context) {
	cookie, err := c.Request.Cookie(session.CookieName)
	if err == nil && cookie.Value != "" {
		if err := h.sessions.Logout(c.Request.Context(), cookie.Value); err != nil {
			logger.Warn("failed to delete session", map[string]any{
				"error": err.Error(),
			})
		}
	}

	session.ClearCookie(c.Writer, session.CookieOptions{
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	// Logging out an anonymous session is a no-op, not an error.
	c.Redirect(http.StatusFound, "/")
}
