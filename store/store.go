package store

import (
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/percytech/platform-data/cache"
	"github.com/percytech/platform-data/client"
	"github.com/percytech/platform-data/domain"
	conversationRepo "github.com/percytech/platform-data/repository/conversation"
	customerRepo "github.com/percytech/platform-data/repository/customer"
)

// Store is the per-request data-access handle: brand-scoped operation
// objects plus the client escape hatch for anything outside them.
type Store struct {
	Customers     customerRepo.Repository
	Conversations conversationRepo.Repository
	Client        *client.Client
}

// Options carries the optional pieces of a store: caller identity, admin
// flag, analytics cache and logger.
type Options struct {
	ActorID *uuid.UUID
	Admin   bool
	Cache   cache.Cache
	Logger  *slog.Logger
}

// New resolves the brand against the registry and wires the client and
// repositories together. Unknown brands fail here, before any query runs.
func New(brandID domain.BrandID, db *gorm.DB, opts Options) (*Store, error) {
	brandCfg, err := domain.BrandConfigFor(brandID)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	brandCtx := client.BrandContext{
		Brand:   brandID,
		Config:  brandCfg,
		ActorID: opts.ActorID,
		Admin:   opts.Admin,
	}
	c, err := client.New(brandCtx, db)
	if err != nil {
		return nil, err
	}

	return &Store{
		Customers: customerRepo.NewCustomerRepository(
			c, opts.Cache, logger.With(slog.String("component", "customerRepo"), slog.String("brand", string(brandID)))),
		Conversations: conversationRepo.NewConversationRepository(
			c, opts.Cache, logger.With(slog.String("component", "conversationRepo"), slog.String("brand", string(brandID)))),
		Client: c,
	}, nil
}

// Entities lists every model owned by this layer, in FK dependency order,
// for migration.
func Entities() []any {
	return []any{
		&domain.Customer{},
		&domain.Conversation{},
		&domain.Message{},
	}
}
