package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/damoang/angple-messenger/internal/config"
	"github.com/damoang/angple-messenger/internal/events"
	"github.com/damoang/angple-messenger/internal/handler"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/migration"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/internal/routes"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/damoang/angple-messenger/internal/ws"
	pkgcache "github.com/damoang/angple-messenger/pkg/cache"
	pkges "github.com/damoang/angple-messenger/pkg/elasticsearch"
	"github.com/damoang/angple-messenger/pkg/jwt"
	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
	pkgredis "github.com/damoang/angple-messenger/pkg/redis"
	pkgstorage "github.com/damoang/angple-messenger/pkg/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// @title           Angple Inbox API
// @version         1.0
// @description     1:1 문의 inbox - 대화 상태, 읽음 처리, 탭 분류
//
// @license.name    MIT
//
// @host            localhost:8090
// @BasePath        /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Authorization header using the Bearer scheme. Example: "Bearer {token}"

// getConfigPath returns config file path based on APP_ENV environment variable
func getConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	dotenvFiles := config.LoadDotEnv()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)
	pkglogger.Info("APP_ENV=%s, loaded env files: %v", env, dotenvFiles)

	// 설정 로드
	configPath := getConfigPath()
	pkglogger.Info("Loading config from: %s", configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	config.LogResolved(cfg)

	// DB 연결 (inbox는 DB 없이 동작할 수 없다)
	dbLogLevel := gormlogger.Warn
	if cfg.IsDevelopment() {
		dbLogLevel = gormlogger.Info
	}
	db, err := migration.Open(cfg.Database, dbLogLevel)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	pkglogger.Info("Connected to %s", cfg.Database.Driver)
	if err := migration.Run(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	// Redis 연결
	redisClient, err := pkgredis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
	)
	if err != nil {
		pkglogger.Warn("Failed to connect to Redis: %v (continuing without Redis)", err)
		redisClient = nil
	} else {
		pkglogger.Info("Connected to Redis")
	}

	var cacheService pkgcache.Service
	if redisClient != nil {
		cacheService = pkgcache.NewService(redisClient)
	}

	bus := events.NewBus(pkglogger.With("events"))

	// Repositories
	inboxRepo := repository.NewInboxRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	receiptRepo := repository.NewReadReceiptRepository(db)
	markRepo := repository.NewNotificationMarkRepository(db)
	users := service.NewUserDirectory(repository.NewUserRepository(db), cacheService)

	// Services
	mcfg := cfg.Messenger
	svcLogger := pkglogger.With("inbox")
	permission := service.NewLevelStatusPermission(mcfg.AllowStatusManagement, mcfg.StatusManagerMinLevel)
	inboxService := service.NewInboxService(db, inboxRepo, messageRepo, users, permission, bus, mcfg, svcLogger)
	readState := service.NewReadStateService(inboxRepo, receiptRepo, bus, svcLogger)
	syncService := service.NewSyncService(inboxService, inboxRepo, messageRepo, readState, users, mcfg, svcLogger)
	unreadService := service.NewUnreadService(inboxRepo, cacheService, mcfg.UnreadCacheTTL, svcLogger)
	ledger := service.NewNotificationLedgerService(markRepo, inboxRepo, messageRepo, svcLogger)

	// 캐시 무효화가 ws 알림보다 먼저 실행되어야 한다
	unreadService.Subscribe(bus)

	// S3-compatible storage
	if cfg.Storage.Enabled && cfg.Storage.Bucket != "" {
		s3Client, s3Err := pkgstorage.NewS3Client(pkgstorage.S3Config{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Bucket:          cfg.Storage.Bucket,
			CDNURL:          cfg.Storage.CDNURL,
			BasePath:        cfg.Storage.BasePath,
			ForcePathStyle:  cfg.Storage.ForcePathStyle,
			PresignTTL:      time.Duration(cfg.Storage.PresignTTL) * time.Second,
		})
		if s3Err != nil {
			pkglogger.Warn("S3 storage init failed: %v (attachments without URLs)", s3Err)
		} else {
			inboxService.SetAttachmentResolver(s3Client)
		}
	}

	// Elasticsearch 검색 (없으면 DB LIKE 검색)
	var searchBackend service.SearchBackend
	if cfg.Elasticsearch.Enabled && len(cfg.Elasticsearch.Addresses) > 0 {
		esClient, esErr := pkges.NewClient(cfg.Elasticsearch.Addresses, cfg.Elasticsearch.Username, cfg.Elasticsearch.Password)
		if esErr != nil {
			pkglogger.Warn("Elasticsearch connection failed: %v (continuing with database search)", esErr)
		} else {
			esBackend := service.NewESSearchBackend(esClient, cfg.Elasticsearch.Index)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := esBackend.EnsureIndex(ctx); err != nil {
				pkglogger.Warn("Elasticsearch index %s: %v", cfg.Elasticsearch.Index, err)
			}
			cancel()
			service.NewSearchIndexer(esBackend, inboxRepo, messageRepo, pkglogger.With("search-indexer")).Subscribe(bus)
			searchBackend = esBackend
		}
	}
	searchService := service.NewSearchService(searchBackend, inboxRepo, messageRepo, users, mcfg.SearchLimit, svcLogger)

	// WebSocket Hub
	wsHub := ws.NewHub(redisClient, pkglogger.With("ws"))
	go wsHub.Run()
	ws.NewNotifier(wsHub, unreadService, pkglogger.With("ws-notifier")).Subscribe(bus)

	// JWT Manager
	jwtManager := jwt.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.ExpiresIn,
		cfg.JWT.RefreshIn,
	)

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS 설정
	allowOrigins := cfg.CORS.AllowOrigins
	if allowOrigins == "" {
		allowOrigins = "http://localhost:3000"
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     splitAndTrim(allowOrigins, ","),
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:           12 * time.Hour,
	}))

	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger())

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	inboxHandler := handler.NewInboxHandler(inboxService, syncService, unreadService, searchService, ledger)
	wsHandler := handler.NewWSHandler(wsHub, allowOrigins)
	routes.Setup(router, inboxHandler, wsHandler, jwtManager, redisClient)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go reportDBStats(ctx, db)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		pkglogger.Info("Inbox API listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	pkglogger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		pkglogger.Error("HTTP shutdown: %v", err)
	}
	wsHub.Stop()
	closeResources(db, redisClient)
}

// reportDBStats updates the open connection gauge until ctx is cancelled
func reportDBStats(ctx context.Context, db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		middleware.SetDBOpenConnections(sqlDB.Stats().OpenConnections)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func closeResources(db *gorm.DB, redisClient *redis.Client) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}

// splitAndTrim splits a comma separated list and drops blanks
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
