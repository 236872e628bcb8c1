package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/skipmechanics/guildpanel/api/rest"
	"github.com/skipmechanics/guildpanel/api/sse"
	apows "github.com/skipmechanics/guildpanel/api/ws"
	"github.com/skipmechanics/guildpanel/audit"
	"github.com/skipmechanics/guildpanel/cache"
	"github.com/skipmechanics/guildpanel/config"
	dbadapter "github.com/skipmechanics/guildpanel/db"
	"github.com/skipmechanics/guildpanel/itemdb"
	"github.com/skipmechanics/guildpanel/loot"
	mw "github.com/skipmechanics/guildpanel/middleware"
	"github.com/skipmechanics/guildpanel/model"
	"github.com/skipmechanics/guildpanel/presence"
	"github.com/skipmechanics/guildpanel/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Core services ----
	registry := loot.NewRegistry(db, auditSvc, logger)
	lootSvc := loot.NewService(db, loot.NewValidator(registry), auditSvc, logger, cfg.Guild.MaxBatchRows)
	tracker := presence.NewTracker(pubsub, c, logger)
	// Drop whatever a previous run left in the roster mirror.
	tracker.Reset(context.Background())
	items := itemdb.New(cfg.ItemDB, logger)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	retention := time.Duration(cfg.Guild.AuditRetentionDays) * 24 * time.Hour
	sched.AddTicker("audit_prune", 12*time.Hour, func() {
		auditSvc.Prune(retention)
	})
	sched.AddTicker("roster_resync", time.Duration(cfg.Guild.RosterResyncS)*time.Second, func() {
		tracker.Resync(context.Background())
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{
			"status": "ok",
			"online": len(tracker.Snapshot()),
			"tasks":  sched.Tasks(),
		})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security)
	reqH := apirest.NewRequestHandler(db, lootSvc)
	resH := apirest.NewReserveHandler(db, registry)
	itemH := apirest.NewItemHandler(items)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)
		authG.GET("/me", mw.Auth(cfg.Security, c), authH.Me)

		// Reads are open: anonymous visitors see decided requests and the
		// reserve list, nothing more.
		openG := api.Group("", mw.OptionalAuth(cfg.Security, c))
		openG.GET("/requests", reqH.List)
		openG.GET("/requests/:id", reqH.Detail)
		openG.GET("/reserves", resH.List)
		openG.GET("/items/:id", itemH.Lookup)

		authedG := api.Group("", mw.Auth(cfg.Security, c))
		authedG.GET("/requests/mine", reqH.Mine)
		authedG.POST("/requests", reqH.Submit)
		authedG.POST("/requests/:id/resubmit", reqH.Resubmit)
		authedG.POST("/requests/:id/decide", reqH.Decide)
		authedG.POST("/requests/:id/lock", reqH.ToggleLock)
		authedG.PATCH("/requests/:id", reqH.Edit)
		authedG.DELETE("/requests/:id", reqH.Delete)
		authedG.POST("/reserves", resH.Add)
		authedG.PATCH("/reserves/:id", resH.Update)
		authedG.DELETE("/reserves/:id", resH.Remove)
	}

	// ---- WebSocket presence ----
	wsH := apows.NewHandler(db, c, pubsub, cfg.Security, tracker, logger)
	r.GET("/ws", wsH.ServeWS)

	// ---- SSE roster stream ----
	sseH := sse.NewHandler(pubsub, c, cfg.Security, tracker, logger)
	r.GET("/sse", sseH.ServeSSE)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
