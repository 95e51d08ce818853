package client

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/percytech/platform-data/apperrors"
	"github.com/percytech/platform-data/domain"
)

// BrandContext is the bundle callers construct per request: the brand the
// call acts on, its configuration, and the optional caller identity.
type BrandContext struct {
	Brand   domain.BrandID
	Config  domain.BrandConfig
	ActorID *uuid.UUID
	Admin   bool
}

// Client binds a brand context to a database handle and hands out
// pre-filtered query starting points for the brand-partitioned tables.
// The handle is injected; the client owns no connection lifecycle.
type Client struct {
	brandCtx BrandContext
	db       *gorm.DB
}

func New(brandCtx BrandContext, db *gorm.DB) (*Client, error) {
	if db == nil {
		return nil, apperrors.NewConfigError("database", "connection handle is required")
	}
	cfg, err := domain.BrandConfigFor(brandCtx.Brand)
	if err != nil {
		return nil, err
	}
	if !cfg.Active {
		return nil, apperrors.NewConfigError("brand", "brand is not active")
	}
	return &Client{brandCtx: brandCtx, db: db}, nil
}

// Customers returns a query builder pre-filtered to the bound brand.
// Additional predicates are chained by the caller.
func (c *Client) Customers(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx).Model(&domain.Customer{}).Where("brand_id = ?", c.brandCtx.Brand)
}

// Conversations returns a query builder pre-filtered to the bound brand.
func (c *Client) Conversations(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx).Model(&domain.Conversation{}).Where("brand_id = ?", c.brandCtx.Brand)
}

// Raw exposes the unfiltered handle for inserts, joins and message-table
// access. Every query issued through Raw must scope itself to
// Context().Brand where a brand-partitioned table is touched; this is a
// caller obligation, not an enforced invariant.
func (c *Client) Raw(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx)
}

func (c *Client) Context() BrandContext {
	return c.brandCtx
}

func (c *Client) BrandID() domain.BrandID {
	return c.brandCtx.Brand
}
