package app

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sweenec/Secrets/internal/auth/credentials"
	"github.com/sweenec/Secrets/internal/auth/handler"
	"github.com/sweenec/Secrets/internal/auth/provider"
	"github.com/sweenec/Secrets/internal/auth/provider/facebook"
	"github.com/sweenec/Secrets/internal/auth/provider/google"
	"github.com/sweenec/Secrets/internal/auth/resolver"
	"github.com/sweenec/Secrets/internal/config"
	"github.com/sweenec/Secrets/internal/logger"
	"github.com/sweenec/Secrets/internal/middleware"
	"github.com/sweenec/Secrets/internal/secrets"
	"github.com/sweenec/Secrets/internal/session"
	"github.com/sweenec/Secrets/internal/store/postgres"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	identityStore := postgres.New(infra.DB)

	var sessionStore session.Store
	if infra.Redis != nil {
		sessionStore = session.NewRedisStore(infra.Redis.Client)
	} else {
		sessionStore = session.NewMemoryStore()
	}

	sessionManager := session.NewManager(sessionStore, identityStore, cfg.SessionTTL)
	hasher := credentials.NewHasher(cfg.BcryptCost)
	identityResolver := resolver.New(identityStore, hasher)

	registry, err := setupProviders(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	authHandler := handler.NewHandler(registry, sessionManager, identityResolver)
	secretService := secrets.NewService(identityStore)
	secretHandler := secrets.NewHandler(secretService)
	authMiddleware := middleware.NewAuthMiddleware(sessionManager)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())

	// ----------------------------
	// Public Routes
	// ----------------------------

	authHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Page entry points. Rendering belongs to the frontend; these exist
	// so redirects into the auth flow have somewhere to land.
	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"app":       "secrets",
			"login":     "/login",
			"register":  "/register",
			"providers": registry.Names(),
		})
	})

	router.GET("/login", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"prompt":    "POST /login with username and password",
			"providers": registry.Names(),
		})
	})

	router.GET("/register", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"prompt": "POST /register with username and password",
		})
	})

	// The secrets listing is public by design: every submitted secret is
	// shown to anonymous visitors.
	router.GET("/secrets", secretHandler.List)

	// ----------------------------
	// Protected Web Routes
	// ----------------------------

	web := router.Group("/")
	web.Use(middleware.GinRequireLogin(authMiddleware))

	web.POST("/submit", secretHandler.Submit)

	// ----------------------------
	// Protected API Routes
	// ----------------------------

	api := router.Group("/api")
	api.Use(middleware.GinRequireAuth(authMiddleware))

	api.GET("/me", func(c *gin.Context) {
		ident, ok := middleware.IdentityFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.JSON(200, gin.H{
			"user_id": ident.ID,
			"email":   ident.Email,
			"name":    ident.Name,
		})
	})

	// ----------------------------
	// Cleanup
	// ----------------------------

	return router, func() error {
		return infra.DB.Close()
	}, nil
}

func setupProviders(ctx context.Context, cfg config.Config) (*provider.Registry, error) {
	var providers []provider.OAuthProvider

	if cfg.GoogleClientID != "" {
		googleProvider, err := google.New(
			ctx,
			cfg.GoogleClientID,
			cfg.GoogleClientSecret,
			cfg.GoogleRedirectURL,
		)
		if err != nil {
			return nil, err
		}
		providers = append(providers, googleProvider)
	} else {
		logger.Warn("google oauth not configured", nil)
	}

	if cfg.FacebookClientID != "" {
		facebookProvider, err := facebook.New(
			cfg.FacebookClientID,
			cfg.FacebookClientSecret,
			cfg.FacebookRedirectURL,
		)
		if err != nil {
			return nil, err
		}
		providers = append(providers, facebookProvider)
	} else {
		logger.Warn("facebook oauth not configured", nil)
	}

	return provider.NewRegistry(providers...), nil
}
