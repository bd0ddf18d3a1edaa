package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/starledger/internal/challenge"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies; a star record is well under this.
const maxBodyBytes = 1 << 20

// RouterConfig holds everything NewRouter needs.
type RouterConfig struct {
	Ledger       Ledger
	Challenges   *challenge.Challenger
	Logger       *zap.Logger
	CORSOrigins  []string
	RateLimitRPS int // 0 disables rate limiting
}

// NewRouter builds the notary HTTP router. Background work started by the
// router (rate limiter cleanup) stops when ctx is cancelled.
func NewRouter(ctx context.Context, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())

	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", RequestIDHeader},
			AllowCredentials: !containsWildcard(cfg.CORSOrigins),
			MaxAge:           12 * time.Hour,
		}))
	}

	router.Use(BodyLimit(maxBodyBytes))
	if cfg.RateLimitRPS > 0 {
		router.Use(RateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitRPS*2))
	}
	router.Use(PrometheusMiddleware())
	router.Use(RequestLogger(cfg.Logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", MetricsHandler())

	v1 := router.Group("/api/v1")
	NewStarHandler(cfg.Ledger, cfg.Challenges, cfg.Logger).Register(v1)
	NewLedgerHandler(cfg.Ledger, cfg.Logger).Register(v1)

	return router
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}
