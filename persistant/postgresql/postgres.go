package postgresql

import (
	"context"
	"fmt"

	"github.com/aniladanir/retry"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Initialize opens the db session with connect retries and auto migrates
// given models. The returned handle is injected into every brand client
// explicitly; there is no package-level singleton.
func Initialize(ctx context.Context, connStr string, models []any) (*gorm.DB, error) {
	if connStr == "" {
		return nil, fmt.Errorf("database connection string is required")
	}

	retrier, err := retry.New(retry.WithMaxAttemps(5))
	if err != nil {
		return nil, fmt.Errorf("encountered error when initializing retrier: %w", err)
	}

	var db *gorm.DB
	var openErr error
	connected := <-retrier.Retry(ctx, func(attempt int) (terminate bool) {
		db, openErr = gorm.Open(postgres.Open(connStr), &gorm.Config{})
		return openErr == nil
	}, true)
	if !connected {
		return nil, fmt.Errorf("failed to connect to database: %w", openErr)
	}

	if err := db.AutoMigrate(models...); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDb, err := db.DB()
	if err != nil {
		return err
	}

	return sqlDb.Close()
}
