package customer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/percytech/platform-data/apperrors"
	"github.com/percytech/platform-data/cache"
	"github.com/percytech/platform-data/client"
	"github.com/percytech/platform-data/domain"
	"github.com/percytech/platform-data/validate"
)

const (
	defaultListLimit   = 50
	defaultSearchLimit = 20
	analyticsTTL       = 5 * time.Minute
)

type Repository interface {
	Create(ctx context.Context, input domain.CreateCustomerInput) (*domain.Customer, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Customer, error)
	Update(ctx context.Context, id uuid.UUID, input domain.UpdateCustomerInput) (*domain.Customer, error)
	ProgressStage(ctx context.Context, id uuid.UUID, stage domain.CustomerStage) (*domain.Customer, error)
	GetByStage(ctx context.Context, stage domain.CustomerStage, limit int) ([]domain.Customer, error)
	Search(ctx context.Context, query string, limit int) ([]domain.Customer, error)
	FindOrCreate(ctx context.Context, email string, extra domain.CreateCustomerInput) (*domain.Customer, error)
	AddTags(ctx context.Context, id uuid.UUID, tags []string) (*domain.Customer, error)
	RemoveTags(ctx context.Context, id uuid.UUID, tags []string) (*domain.Customer, error)
	Analytics(ctx context.Context) (*domain.CustomerAnalytics, error)
}

type repo struct {
	client *client.Client
	cache  cache.Cache
	logger *slog.Logger
}

func NewCustomerRepository(c *client.Client, cache cache.Cache, logger *slog.Logger) Repository {
	return &repo{client: c, cache: cache, logger: logger}
}

// Create inserts a customer for the bound brand, applying the lifecycle
// defaults and stamping the audit fields.
func (r *repo) Create(ctx context.Context, input domain.CreateCustomerInput) (*domain.Customer, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	brandCtx := r.client.Context()

	customer := domain.Customer{
		BrandID:   brandCtx.Brand,
		Email:     strings.ToLower(input.Email),
		Phone:     input.Phone,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Stage:     domain.StageLead,
		Source:    domain.SourceWebsite,
		IsActive:  true,
		Metadata:  input.Metadata,
		Tags:      domain.StringArray(nil).Union(input.Tags),
		CreatedBy: brandCtx.ActorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.Stage != "" {
		customer.Stage = input.Stage
	}
	if input.Source != "" {
		customer.Source = input.Source
	}

	if err := r.client.Raw(ctx).Create(&customer).Error; err != nil {
		return nil, apperrors.Store("customer.create", err)
	}
	return &customer, nil
}

func (r *repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	return r.getOne(ctx, "customer.getById", "id = ?", id)
}

func (r *repo) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	return r.getOne(ctx, "customer.getByEmail", "email = ?", strings.ToLower(email))
}

func (r *repo) GetByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	return r.getOne(ctx, "customer.getByPhone", "phone = ?", phone)
}

// getOne translates the store's "no rows" signal into a nil result.
func (r *repo) getOne(ctx context.Context, op string, cond string, arg any) (*domain.Customer, error) {
	var customer domain.Customer
	err := r.client.Customers(ctx).Where(cond, arg).Take(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Store(op, err)
	}
	return &customer, nil
}

// Update applies the non-nil fields and re-stamps updated_at. A pointer
// to the empty string clears the phone to NULL; nil leaves it unchanged.
// The brand predicate is applied explicitly so updates cannot cross
// brands.
func (r *repo) Update(ctx context.Context, id uuid.UUID, input domain.UpdateCustomerInput) (*domain.Customer, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if input.Email != nil {
		updates["email"] = strings.ToLower(*input.Email)
	}
	if input.Phone != nil {
		if *input.Phone == "" {
			updates["phone"] = nil
		} else {
			updates["phone"] = *input.Phone
		}
	}
	if input.FirstName != nil {
		updates["first_name"] = *input.FirstName
	}
	if input.LastName != nil {
		updates["last_name"] = *input.LastName
	}
	if input.Source != nil {
		updates["source"] = *input.Source
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.Metadata != nil {
		updates["metadata"] = input.Metadata
	}

	result := r.client.Raw(ctx).Model(&domain.Customer{}).
		Where("brand_id = ? AND id = ?", r.client.BrandID(), id).
		Updates(updates)
	if result.Error != nil {
		return nil, apperrors.Store("customer.update", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// ProgressStage moves a customer through the lifecycle funnel, stamping
// the matching journey timestamp on its first crossing. Moves outside the
// transition table are rejected.
func (r *repo) ProgressStage(ctx context.Context, id uuid.UUID, stage domain.CustomerStage) (*domain.Customer, error) {
	customer, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, nil
	}
	if !domain.CanProgressStage(customer.Stage, stage) {
		return nil, apperrors.NewTransitionError("customer stage", string(customer.Stage), string(stage))
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"stage":      stage,
		"updated_at": now,
	}
	switch stage {
	case domain.StageMarketing:
		if customer.MarketingQualifiedAt == nil {
			updates["marketing_qualified_at"] = now
		}
	case domain.StageTrial:
		if customer.TrialStartedAt == nil {
			updates["trial_started_at"] = now
		}
	case domain.StageActive:
		if customer.SubscribedAt == nil {
			updates["subscribed_at"] = now
		}
	case domain.StageChurned:
		if customer.ChurnedAt == nil {
			updates["churned_at"] = now
		}
		updates["is_active"] = false
	}

	err = r.client.Raw(ctx).Model(&domain.Customer{}).
		Where("brand_id = ? AND id = ?", r.client.BrandID(), id).
		Updates(updates).Error
	if err != nil {
		return nil, apperrors.Store("customer.progressStage", err)
	}
	return r.GetByID(ctx, id)
}

func (r *repo) GetByStage(ctx context.Context, stage domain.CustomerStage, limit int) ([]domain.Customer, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var customers []domain.Customer
	err := r.client.Customers(ctx).
		Where("stage = ?", stage).
		Order("created_at DESC").
		Limit(limit).
		Find(&customers).Error
	if err != nil {
		return nil, apperrors.Store("customer.getByStage", err)
	}
	return customers, nil
}

// Search performs a case-insensitive partial match across email, names
// and phone as a single combined OR predicate.
func (r *repo) Search(ctx context.Context, query string, limit int) ([]domain.Customer, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	pattern := "%" + strings.ToLower(query) + "%"
	var customers []domain.Customer
	err := r.client.Customers(ctx).
		Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR phone LIKE ?",
			pattern, pattern, pattern, pattern).
		Order("created_at DESC").
		Limit(limit).
		Find(&customers).Error
	if err != nil {
		return nil, apperrors.Store("customer.search", err)
	}
	return customers, nil
}

// FindOrCreate looks a customer up by email and inserts one when absent.
// The insert rides the (brand_id, email) unique constraint with an
// on-conflict-do-nothing clause, so concurrent callers converge on the
// same row instead of surfacing a duplicate-key error.
func (r *repo) FindOrCreate(ctx context.Context, email string, extra domain.CreateCustomerInput) (*domain.Customer, error) {
	existing, err := r.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	extra.Email = email
	if err := validate.Struct(extra); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	brandCtx := r.client.Context()
	customer := domain.Customer{
		BrandID:   brandCtx.Brand,
		Email:     strings.ToLower(email),
		Phone:     extra.Phone,
		FirstName: extra.FirstName,
		LastName:  extra.LastName,
		Stage:     domain.StageLead,
		Source:    domain.SourceWebsite,
		IsActive:  true,
		Metadata:  extra.Metadata,
		Tags:      domain.StringArray(nil).Union(extra.Tags),
		CreatedBy: brandCtx.ActorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if extra.Stage != "" {
		customer.Stage = extra.Stage
	}
	if extra.Source != "" {
		customer.Source = extra.Source
	}

	result := r.client.Raw(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "brand_id"}, {Name: "email"}},
			DoNothing: true,
		}).
		Create(&customer)
	if result.Error != nil {
		return nil, apperrors.Store("customer.findOrCreate", result.Error)
	}
	if result.RowsAffected == 0 {
		// Lost the race; the row exists now.
		return r.GetByEmail(ctx, email)
	}
	return &customer, nil
}

// AddTags persists the deduplicated union of the current and given tags.
// The read-modify-write runs in one transaction; cross-transaction
// interleaving is serialized per row by the store.
func (r *repo) AddTags(ctx context.Context, id uuid.UUID, tags []string) (*domain.Customer, error) {
	return r.mutateTags(ctx, "customer.addTags", id, func(current domain.StringArray) domain.StringArray {
		return current.Union(tags)
	})
}

// RemoveTags persists the set difference of the current and given tags.
func (r *repo) RemoveTags(ctx context.Context, id uuid.UUID, tags []string) (*domain.Customer, error) {
	return r.mutateTags(ctx, "customer.removeTags", id, func(current domain.StringArray) domain.StringArray {
		return current.Difference(tags)
	})
}

func (r *repo) mutateTags(ctx context.Context, op string, id uuid.UUID, apply func(domain.StringArray) domain.StringArray) (*domain.Customer, error) {
	var customer domain.Customer
	err := r.client.Raw(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("brand_id = ? AND id = ?", r.client.BrandID(), id).Take(&customer).Error
		if err != nil {
			return err
		}
		customer.Tags = apply(customer.Tags)
		customer.UpdatedAt = time.Now().UTC()
		return tx.Model(&domain.Customer{}).
			Where("brand_id = ? AND id = ?", r.client.BrandID(), id).
			Updates(map[string]any{
				"tags":       customer.Tags,
				"updated_at": customer.UpdatedAt,
			}).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Store(op, err)
	}
	return &customer, nil
}

// Analytics aggregates stage and source counts over a full brand scan.
// The snapshot is served from cache for a short window when one is wired.
func (r *repo) Analytics(ctx context.Context) (*domain.CustomerAnalytics, error) {
	cacheKey := fmt.Sprintf("analytics:customers:%s", r.client.BrandID())
	if r.cache != nil {
		if raw, err := r.cache.Get(ctx, cacheKey); err == nil {
			var snapshot domain.CustomerAnalytics
			if err := json.Unmarshal([]byte(raw), &snapshot); err == nil {
				return &snapshot, nil
			}
		}
	}

	var customers []domain.Customer
	if err := r.client.Customers(ctx).Find(&customers).Error; err != nil {
		return nil, apperrors.Store("customer.analytics", err)
	}

	snapshot := domain.CustomerAnalytics{
		BrandID:     r.client.BrandID(),
		Total:       len(customers),
		ByStage:     make(map[domain.CustomerStage]int),
		BySource:    make(map[domain.CustomerSource]int),
		GeneratedAt: time.Now().UTC(),
	}
	for _, c := range customers {
		snapshot.ByStage[c.Stage]++
		snapshot.BySource[c.Source]++
	}
	if leads := snapshot.ByStage[domain.StageLead]; leads > 0 {
		snapshot.ConversionRate = float64(snapshot.ByStage[domain.StageActive]) / float64(leads) * 100
	}

	if r.cache != nil {
		if raw, err := json.Marshal(snapshot); err == nil {
			if err := r.cache.Set(ctx, cacheKey, string(raw), analyticsTTL); err != nil {
				r.logger.Error("failed to cache customer analytics", "error", err.Error())
			}
		}
	}
	return &snapshot, nil
}
