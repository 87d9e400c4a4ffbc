package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dkrylov/shortshare/internal/cache"
	"github.com/dkrylov/shortshare/internal/config"
	"github.com/dkrylov/shortshare/internal/database"
	"github.com/dkrylov/shortshare/internal/handler"
	"github.com/dkrylov/shortshare/internal/identity"
	"github.com/dkrylov/shortshare/internal/repository"
	"github.com/dkrylov/shortshare/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	db, err := database.Connect(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName)
	if err != nil {
		log.Fatal("Failed to connect database: ", err)
	}
	defer db.Close()

	log.Println("Successfully connected to database")

	redisClient, err := cache.NewRedisClient(cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		CacheTTL:     cfg.Redis.CacheTTL,
	})
	if err != nil {
		log.Printf("Failed to connect to Redis (running without cache): %v", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Println("Successfully connected to Redis")
	}

	var snapshotCache cache.Cache = cache.NewNullCache()
	if redisClient != nil {
		snapshotCache = redisClient
	}

	linkRepo := repository.NewCachedLinkRepository(repository.NewPostgresLinkRepository(db), snapshotCache)
	shareRepo := repository.NewCachedShareRepository(repository.NewPostgresShareRepository(db), snapshotCache)

	linkAudit := service.NewAuditLogger(linkRepo, 0)
	shareAudit := service.NewAuditLogger(shareRepo, 0)

	quota := service.NewQuotaService(cfg, linkRepo, shareRepo)

	baseURL := cfg.GetBaseURL()
	linkService := service.NewLinkService(linkRepo, quota, linkAudit, baseURL,
		cfg.App.ShortKeyLength, cfg.App.MaxRetries)
	shareService := service.NewShareService(shareRepo, quota, shareAudit, baseURL,
		cfg.App.ShortKeyLength, cfg.App.MaxRetries)
	slugChecker := service.NewSlugChecker(linkRepo, shareRepo)

	linkHandler := handler.NewLinkHandler(linkService)
	shareHandler := handler.NewShareHandler(shareService)
	slugHandler := handler.NewSlugHandler(slugChecker)

	resolver := identity.NewResolver(
		cfg.Auth.JWTSecret,
		cfg.Auth.GuestCookieName,
		time.Duration(cfg.Auth.GuestTokenTTLDays)*24*time.Hour,
		cfg.IsProduction())

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.GetAllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if redisClient != nil {
		router.Use(RedisRateLimitMiddleware(redisClient, 100, time.Minute))
	} else {
		router.Use(InMemoryRateLimitMiddleware(100, time.Minute))
	}

	router.Use(resolver.Middleware())

	router.GET("/health", func(c *gin.Context) {
		response := gin.H{
			"status": "healthy",
			"services": gin.H{
				"database": "checking",
				"cache":    "checking",
			},
		}

		if err := database.HealthCheck(db); err != nil {
			response["services"].(gin.H)["database"] = "unhealthy"
			response["status"] = "degraded"
		} else {
			response["services"].(gin.H)["database"] = "healthy"
		}

		if redisClient != nil {
			if err := redisClient.HealthCheck(c.Request.Context()); err != nil {
				response["services"].(gin.H)["cache"] = "unhealthy"
				response["status"] = "degraded"
			} else {
				response["services"].(gin.H)["cache"] = "healthy"
			}
		} else {
			response["services"].(gin.H)["cache"] = "disabled"
		}

		statusCode := http.StatusOK
		if response["status"] == "degraded" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, response)
	})

	router.GET("/info", func(c *gin.Context) {
		version, _ := database.GetVersion(db)
		c.JSON(http.StatusOK, gin.H{
			"service":          "ShortShare",
			"version":          "1.0.0",
			"database_driver":  "pgx",
			"database_version": version,
			"cache_enabled":    redisClient != nil,
		})
	})

	api := router.Group("/api")
	{
		api.POST("/links", linkHandler.CreateLink)
		api.GET("/links/:shortKey", linkHandler.GetLink)
		api.DELETE("/links/:shortKey", linkHandler.DeleteLink)
		api.POST("/links/:shortKey/verify-password", linkHandler.VerifyPassword)

		api.POST("/shares", shareHandler.CreateShare)
		api.GET("/shares/:shortKey", shareHandler.GetShare)
		api.DELETE("/shares/:shortKey", shareHandler.DeleteShare)
		api.POST("/shares/:shortKey/verify-password", shareHandler.VerifyPassword)

		api.GET("/slug/check", slugHandler.CheckSlug)

		me := api.Group("/me")
		{
			me.GET("/links", linkHandler.ListLinks)
			me.GET("/shares", shareHandler.ListShares)
		}
	}

	router.GET("/s/:shortKey", shareHandler.ResolveShare)
	router.GET("/:shortKey", linkHandler.Redirect)

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Server starting on %s", cfg.GetServerAddress())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	// Drain queued access-log entries before closing the DB.
	if err := linkAudit.Shutdown(ctx); err != nil {
		log.Printf("Link audit logger did not drain: %v", err)
	}
	if err := shareAudit.Shutdown(ctx); err != nil {
		log.Printf("Share audit logger did not drain: %v", err)
	}

	log.Println("Server gracefully stopped")
}

// RedisRateLimitMiddleware counts requests per client IP in Redis.
func RedisRateLimitMiddleware(redis *cache.RedisClient, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := cache.CacheKeys.RateLimit(c.ClientIP())

		count, err := redis.IncrementRateLimit(ctx, key, window)
		if err != nil {
			log.Printf("Rate limit error: %v", err)
			// Redis trouble must not block traffic.
			c.Next()
			return
		}

		if count > int64(maxRequests) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Too many requests. Please try again later.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// InMemoryRateLimitMiddleware is the fallback limiter when Redis is down.
// Handlers run concurrently, so the request map is mutex-guarded.
func InMemoryRateLimitMiddleware(maxRequests int, window time.Duration) gin.HandlerFunc {
	var mu sync.Mutex
	requests := make(map[string][]time.Time)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		now := time.Now()

		mu.Lock()
		if times, exists := requests[clientIP]; exists {
			validTimes := []time.Time{}
			for _, t := range times {
				if now.Sub(t) < window {
					validTimes = append(validTimes, t)
				}
			}
			requests[clientIP] = validTimes
		}

		if len(requests[clientIP]) >= maxRequests {
			mu.Unlock()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Too many requests. Please try again later.",
			})
			c.Abort()
			return
		}

		requests[clientIP] = append(requests[clientIP], now)
		mu.Unlock()

		c.Next()
	}
}
