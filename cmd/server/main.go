package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-lot-service/internal/config"
	"github.com/iliyamo/parking-lot-service/internal/database"
	"github.com/iliyamo/parking-lot-service/internal/handler"
	"github.com/iliyamo/parking-lot-service/internal/middleware"
	"github.com/iliyamo/parking-lot-service/internal/queue"
	"github.com/iliyamo/parking-lot-service/internal/repository"
	"github.com/iliyamo/parking-lot-service/internal/router"
)

func main() {
	// A .env file is a development convenience; in production the
	// variables come from the environment and the file is absent.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	lotRepo := repository.NewLotRepo(db)
	sessionRepo := repository.NewSessionRepo(db)
	auditRepo := repository.NewAuditRepo(db)
	reportRepo := repository.NewReportRepo(db)

	authH := handler.NewAuthHandler(cfg, userRepo, tokenRepo, auditRepo)
	api := &router.API{
		Cars:     handler.NewCarHandler(sessionRepo, lotRepo, auditRepo, cfg.OpenSessionStrict),
		Sessions: handler.NewSessionHandler(sessionRepo, lotRepo, auditRepo),
		Lots:     handler.NewLotHandler(lotRepo, auditRepo),
		Reports:  handler.NewReportHandler(reportRepo),
		Logs:     handler.NewLogHandler(auditRepo),
	}

	// Redis backs the rate limiter and the response cache.  Without a
	// reachable Redis both degrade to no-ops and the API still serves.
	rdb := config.NewRedisClient()
	var limiter, cache echo.MiddlewareFunc
	if rdb != nil {
		if rlCfg := config.LoadRateLimitConfig(); rlCfg.Enabled {
			limiter = middleware.NewTokenBucket(rlCfg, rdb)
		}
		if cCfg := config.LoadCacheConfig(); cCfg.Enabled {
			cache = middleware.NewRedisCache(cCfg, rdb)
		}
	}

	// The consumer mirrors committed audit events from the broker into
	// logs/audit.log.  It reconnects on its own; a missing broker only
	// costs the file mirror, never the API.
	go func() {
		if err := queue.StartAuditConsumer(); err != nil {
			log.Printf("audit consumer: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterAPI(e, api, cfg.JWTSecret, limiter, cache)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
