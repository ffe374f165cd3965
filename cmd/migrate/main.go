package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/damoang/angple-messenger/internal/config"
	"github.com/damoang/angple-messenger/internal/migration"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/internal/service"
	pkges "github.com/damoang/angple-messenger/pkg/elasticsearch"
	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "configs/config.local.yaml", "config file path")
	dryRun := flag.Bool("dry-run", false, "list tables that would be created without executing")
	seed := flag.Bool("seed", false, "insert development users when the users table is empty")
	reindex := flag.Bool("reindex", false, "rebuild the elasticsearch message index from the database")
	batchSize := flag.Int("batch-size", 500, "reindex bulk size")
	verbose := flag.Bool("verbose", false, "verbose SQL logging")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	pkglogger.InitStructured(os.Getenv("APP_ENV"))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logLevel := gormlogger.Warn
	if *verbose {
		logLevel = gormlogger.Info
	}

	db, err := migration.Open(cfg.Database, logLevel)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get underlying DB: %v", err)
	}
	defer sqlDB.Close()

	if *dryRun {
		missing, err := migration.Missing(db)
		if err != nil {
			log.Fatalf("Failed to inspect schema: %v", err)
		}
		if len(missing) == 0 {
			log.Println("[dry-run] schema is up to date")
		}
		for _, table := range missing {
			log.Printf("[dry-run] would create table %s", table)
		}
		return
	}

	start := time.Now()
	if err := migration.Run(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Schema migrated in %s", time.Since(start).Round(time.Millisecond))

	if *seed {
		n, err := migration.SeedUsers(db, migration.DevUsers())
		if err != nil {
			log.Fatalf("Seed failed: %v", err)
		}
		log.Printf("Seeded %d users", n)
	}

	if *reindex {
		runReindex(cfg, db, *batchSize)
	}
}

func runReindex(cfg *config.Config, db *gorm.DB, batchSize int) {
	if !cfg.Elasticsearch.Enabled || len(cfg.Elasticsearch.Addresses) == 0 {
		log.Fatal("Reindex requires elasticsearch.enabled and addresses")
	}
	esClient, err := pkges.NewClient(cfg.Elasticsearch.Addresses, cfg.Elasticsearch.Username, cfg.Elasticsearch.Password)
	if err != nil {
		log.Fatalf("Failed to connect to Elasticsearch: %v", err)
	}

	ctx := context.Background()
	backend := service.NewESSearchBackend(esClient, cfg.Elasticsearch.Index)
	if err := backend.EnsureIndex(ctx); err != nil {
		log.Fatalf("Failed to create index %s: %v", cfg.Elasticsearch.Index, err)
	}

	indexer := service.NewSearchIndexer(
		backend,
		repository.NewInboxRepository(db),
		repository.NewMessageRepository(db),
		pkglogger.With("reindex"),
	)
	start := time.Now()
	n, err := indexer.Reindex(ctx, esClient, batchSize)
	if err != nil {
		log.Fatalf("Reindex failed after %d documents: %v", n, err)
	}
	if err := esClient.Refresh(ctx, cfg.Elasticsearch.Index); err != nil {
		log.Printf("Refresh warning: %v", err)
	}
	log.Printf("Reindexed %d messages into %s in %s", n, cfg.Elasticsearch.Index, time.Since(start).Round(time.Millisecond))
}
