package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/gorm"

	"github.com/percytech/platform-data/cache"
	redisCache "github.com/percytech/platform-data/cache/redis"
	"github.com/percytech/platform-data/domain"
	"github.com/percytech/platform-data/internal/config"
	"github.com/percytech/platform-data/persistant/postgresql"
	"github.com/percytech/platform-data/store"
)

var (
	seed = flag.Bool("seed", false, "populate each brand with demo data after migrating")
)

// Postgres-only index statements, kept out of the model tags so the
// models stay dialect-portable.
var postgresIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_customers_tags_gin ON customers USING gin (tags)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_tags_gin ON conversations USING gin (tags)`,
	`CREATE INDEX IF NOT EXISTS idx_customers_search_gin ON customers USING gin (
		to_tsvector('simple', coalesce(first_name, '') || ' ' || coalesce(last_name, '') || ' ' || coalesce(email, ''))
	)`,
}

func main() {
	// listen for terminate signal
	notifyCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	flag.Parse()

	// setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(notifyCtx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := postgresql.Initialize(notifyCtx, cfg.Database.DSN(), store.Entities())
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer postgresql.Close(db)

	for _, stmt := range postgresIndexes {
		if err := db.WithContext(notifyCtx).Exec(stmt).Error; err != nil {
			log.Fatalf("failed to create index: %v", err)
		}
	}
	logger.Info("schema migrated", "brands", len(domain.Brands()))

	if *seed {
		var analyticsCache cache.Cache
		if cfg.Redis.Addr != "" {
			rc, err := redisCache.NewRedisCache(notifyCtx, cfg.Redis.Addr)
			if err != nil {
				log.Fatalf("failed to connect to redis: %v", err)
			}
			defer rc.Close()
			analyticsCache = rc
		}
		if err := seedBrands(notifyCtx, db, analyticsCache, logger); err != nil {
			log.Fatalf("failed to seed demo data: %v", err)
		}
	}
}

// seedBrands creates one demo customer, conversation and message per
// brand, skipping brands that already hold data.
func seedBrands(ctx context.Context, db *gorm.DB, analyticsCache cache.Cache, logger *slog.Logger) error {
	for i, brandCfg := range domain.Brands() {
		s, err := store.New(brandCfg.ID, db, store.Options{Cache: analyticsCache, Logger: logger})
		if err != nil {
			return err
		}

		var count int64
		if err := s.Client.Customers(ctx).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		customerPhone := "+1555000100" + string(rune('0'+i))
		brandPhone := "+1555000200" + string(rune('0'+i))

		customer, err := s.Customers.FindOrCreate(ctx, "demo@"+brandCfg.PrimaryDomain, domain.CreateCustomerInput{
			Phone:     &customerPhone,
			FirstName: "Demo",
			LastName:  brandCfg.DisplayName,
			Tags:      []string{"demo"},
		})
		if err != nil {
			return err
		}

		conversation, err := s.Conversations.FindOrCreate(ctx, customer.ID, customerPhone, brandPhone, nil)
		if err != nil {
			return err
		}

		if _, err := s.Conversations.AddMessage(ctx, domain.CreateMessageInput{
			ConversationID: conversation.ID,
			Direction:      domain.DirectionOutbound,
			Content:        "Welcome to " + brandCfg.DisplayName + "!",
		}); err != nil {
			return err
		}

		// Warm the per-brand analytics snapshot when a cache is attached.
		if _, err := s.Customers.Analytics(ctx); err != nil {
			return err
		}

		logger.Info("seeded demo data", "brand", string(brandCfg.ID))
	}
	return nil
}
