package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"choti/apps/backend/internal/config"
	"choti/apps/backend/internal/profile"
	"choti/apps/backend/internal/store"
)

type App struct {
	cfg      config.Config
	store    store.Store
	engine   *profile.Engine
	ai       AIClient
	fallback *fallbackResponder
	history  *historyCache
	metrics  *appMetrics
	now      func() time.Time
}

type AuthUser struct {
	ID    string
	Email string
	Name  string
}

// New wires the HTTP application. A nil ai client means every reply comes
// from the fallback responder.
func New(cfg config.Config, st store.Store, ai AIClient) *App {
	return &App{
		cfg:      cfg,
		store:    st,
		engine:   profile.NewEngine(cfg.PersonaName),
		ai:       ai,
		fallback: newFallbackResponder(cfg.PersonaName, nil),
		history:  newHistoryCache(cfg.HistoryMaxUsers, cfg.HistoryMaxTurns),
		metrics:  newAppMetrics(),
		now:      time.Now,
	}
}

func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", a.health)
	router.GET("/metrics", a.metrics.handler())

	public := router.Group(a.cfg.APIPrefix)
	public.GET("/health", a.health)
	public.POST("/auth/register", a.register)
	public.POST("/auth/login", a.login)

	api := router.Group(a.cfg.APIPrefix)
	api.Use(a.authMiddleware())

	api.GET("/auth/verify", a.verify)
	api.GET("/auth/me", a.getMe)
	api.PATCH("/auth/me", a.updateMe)
	api.POST("/chat", a.chat)
	api.POST("/clear-history", a.clearHistory)
	api.GET("/history", a.getHistory)
	api.GET("/conversations", a.listConversations)
	api.GET("/conversations/:id", a.getConversation)
	api.DELETE("/conversations/:id", a.deleteConversation)
	api.GET("/profile", a.getProfile)

	a.mountStatic(router)
	return router
}

func (a *App) health(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := a.store.Ping(ctx); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     status,
		"service":    "choti-api",
		"ai_enabled": a.ai != nil,
	})
}

// mountStatic serves the web client from StaticDir. API routes keep their
// JSON 404s.
func (a *App) mountStatic(router *gin.Engine) {
	dir := strings.TrimSpace(a.cfg.StaticDir)
	if dir == "" {
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return
	}
	fileServer := http.FileServer(http.Dir(dir))
	router.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			writeError(c, http.StatusNotFound, "Not found")
			return
		}
		if strings.HasPrefix(c.Request.URL.Path, a.cfg.APIPrefix+"/") {
			writeError(c, http.StatusNotFound, "Not found")
			return
		}
		target := filepath.Join(dir, filepath.Clean("/"+c.Request.URL.Path))
		if info, err := os.Stat(target); err != nil || info.IsDir() {
			c.File(filepath.Join(dir, "index.html"))
			return
		}
		fileServer.ServeHTTP(c.Writer, c.Request)
	})
}

func (a *App) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}
		tokenString := strings.TrimSpace(authHeader[len("Bearer "):])
		if tokenString == "" {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if token.Method == nil || token.Method.Alg() != a.cfg.JWTAlgorithm {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(a.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(c, http.StatusUnauthorized, "Invalid bearer token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(c, http.StatusUnauthorized, "Invalid token payload")
			return
		}
		if a.cfg.JWTAudience != "" && !claimHasAudience(claims["aud"], a.cfg.JWTAudience) {
			writeError(c, http.StatusUnauthorized, "Invalid token audience")
			return
		}
		if a.cfg.JWTIssuer != "" {
			issuer, _ := claims["iss"].(string)
			if issuer != a.cfg.JWTIssuer {
				writeError(c, http.StatusUnauthorized, "Invalid token issuer")
				return
			}
		}
		sub, _ := claims["sub"].(string)
		sub = strings.TrimSpace(sub)
		if sub == "" {
			writeError(c, http.StatusUnauthorized, "Token subject missing")
			return
		}

		user, err := a.store.GetUserByID(c.Request.Context(), sub)
		if errors.Is(err, store.ErrNotFound) {
			writeError(c, http.StatusUnauthorized, "User not found")
			return
		}
		if err != nil {
			writeError(c, http.StatusInternalServerError, "Failed to load user")
			return
		}

		c.Set("authUser", AuthUser{ID: user.ID, Email: user.Email, Name: user.Name})
		c.Next()
	}
}

func claimHasAudience(value any, audience string) bool {
	switch v := value.(type) {
	case string:
		return v == audience
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == audience {
				return true
			}
		}
	case []string:
		for _, item := range v {
			if item == audience {
				return true
			}
		}
	}
	return false
}

func authUserFromContext(c *gin.Context) (AuthUser, bool) {
	raw, ok := c.Get("authUser")
	if !ok {
		return AuthUser{}, false
	}
	user, ok := raw.(AuthUser)
	return user, ok
}

func writeError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func mustJSON(c *gin.Context, payload any) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}
