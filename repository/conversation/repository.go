package conversation

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
	Create(ctx context.Context, input domain.CreateConversationInput) (*domain.Conversation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	GetByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Conversation, error)
	GetByPhones(ctx context.Context, customerPhone, brandPhone string) (*domain.Conversation, error)
	FindOrCreate(ctx context.Context, customerID uuid.UUID, customerPhone, brandPhone string, campaign *domain.CampaignLink) (*domain.Conversation, error)
	AddMessage(ctx context.Context, input domain.CreateMessageInput) (*domain.Message, error)
	GetMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]domain.Message, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ConversationStatus) (*domain.Conversation, error)
	OptOut(ctx context.Context, id uuid.UUID, reason string) (*domain.Conversation, error)
	GetActive(ctx context.Context, limit int) ([]domain.Conversation, error)
	Search(ctx context.Context, query string, limit int) ([]domain.Conversation, error)
	GetWithCustomer(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	Analytics(ctx context.Context, timeRange *domain.TimeRange) (*domain.ConversationAnalytics, error)
}

type repo struct {
	client *client.Client
	cache  cache.Cache
	logger *slog.Logger
}

func NewConversationRepository(c *client.Client, cache cache.Cache, logger *slog.Logger) Repository {
	return &repo{client: c, cache: cache, logger: logger}
}

func (r *repo) Create(ctx context.Context, input domain.CreateConversationInput) (*domain.Conversation, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	conversation := domain.Conversation{
		BrandID:       r.client.BrandID(),
		CustomerID:    input.CustomerID,
		CustomerPhone: input.CustomerPhone,
		BrandPhone:    input.BrandPhone,
		Status:        domain.ConversationActive,
		CampaignID:    input.CampaignID,
		CampaignName:  input.CampaignName,
		MessageCount:  0,
		Metadata:      input.Metadata,
		Tags:          domain.StringArray(nil).Union(input.Tags),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.client.Raw(ctx).Create(&conversation).Error; err != nil {
		return nil, apperrors.Store("conversation.create", err)
	}
	return &conversation, nil
}

func (r *repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	var conversation domain.Conversation
	err := r.client.Conversations(ctx).Where("id = ?", id).Take(&conversation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Store("conversation.getById", err)
	}
	return &conversation, nil
}

func (r *repo) GetByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	err := r.client.Conversations(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, apperrors.Store("conversation.getByCustomer", err)
	}
	return conversations, nil
}

// GetByPhones looks up the active conversation for a phone pair.
func (r *repo) GetByPhones(ctx context.Context, customerPhone, brandPhone string) (*domain.Conversation, error) {
	var conversation domain.Conversation
	err := r.client.Conversations(ctx).
		Where("customer_phone = ? AND brand_phone = ? AND status = ?",
			customerPhone, brandPhone, domain.ConversationActive).
		Take(&conversation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Store("conversation.getByPhones", err)
	}
	return &conversation, nil
}

// FindOrCreate returns the active conversation for the phone pair or
// inserts a new one. The insert rides the phone-pair unique constraint
// with on-conflict-do-nothing; on conflict the existing row is returned
// whatever its status, since the constraint spans all statuses.
func (r *repo) FindOrCreate(ctx context.Context, customerID uuid.UUID, customerPhone, brandPhone string, campaign *domain.CampaignLink) (*domain.Conversation, error) {
	existing, err := r.GetByPhones(ctx, customerPhone, brandPhone)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	input := domain.CreateConversationInput{
		CustomerID:    customerID,
		CustomerPhone: customerPhone,
		BrandPhone:    brandPhone,
	}
	if campaign != nil {
		input.CampaignID = campaign.CampaignID
		input.CampaignName = campaign.CampaignName
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	conversation := domain.Conversation{
		BrandID:       r.client.BrandID(),
		CustomerID:    customerID,
		CustomerPhone: customerPhone,
		BrandPhone:    brandPhone,
		Status:        domain.ConversationActive,
		CampaignID:    input.CampaignID,
		CampaignName:  input.CampaignName,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	result := r.client.Raw(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "brand_id"}, {Name: "customer_phone"}, {Name: "brand_phone"}},
			DoNothing: true,
		}).
		Create(&conversation)
	if result.Error != nil {
		return nil, apperrors.Store("conversation.findOrCreate", result.Error)
	}
	if result.RowsAffected == 0 {
		// Lost the race, or the pair exists in a non-active status.
		var winner domain.Conversation
		err := r.client.Conversations(ctx).
			Where("customer_phone = ? AND brand_phone = ?", customerPhone, brandPhone).
			Take(&winner).Error
		if err != nil {
			return nil, apperrors.Store("conversation.findOrCreate", err)
		}
		return &winner, nil
	}
	return &conversation, nil
}

// AddMessage appends a message and updates the owning conversation's
// activity fields in a single transaction: last_message_at, the
// direction-matching timestamp, and the message counter.
func (r *repo) AddMessage(ctx context.Context, input domain.CreateMessageInput) (*domain.Message, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if input.Direction == domain.DirectionInbound && input.Status != nil {
		return nil, validate.NewError("status (outbound only)")
	}

	now := time.Now().UTC()
	sentAt := now
	if input.SentAt != nil {
		sentAt = input.SentAt.UTC()
	}

	message := domain.Message{
		ConversationID: input.ConversationID,
		Direction:      input.Direction,
		Content:        input.Content,
		MediaURLs:      domain.StringArray(input.MediaURLs),
		Status:         input.Status,
		ProviderID:     input.ProviderID,
		Metadata:       input.Metadata,
		SentAt:         sentAt,
		CreatedAt:      now,
	}

	err := r.client.Raw(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"last_message_at": sentAt,
			"message_count":   gorm.Expr("message_count + 1"),
			"updated_at":      now,
		}
		if input.Direction == domain.DirectionInbound {
			updates["last_inbound_at"] = sentAt
		} else {
			updates["last_outbound_at"] = sentAt
		}

		result := tx.Model(&domain.Conversation{}).
			Where("brand_id = ? AND id = ?", r.client.BrandID(), input.ConversationID).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("conversation %s not found for brand %s", input.ConversationID, r.client.BrandID())
		}

		return tx.Create(&message).Error
	})
	if err != nil {
		return nil, apperrors.Store("conversation.addMessage", err)
	}
	return &message, nil
}

// GetMessages lists a conversation's messages oldest first. The brand
// predicate is applied through a join since messages carry no brand_id.
func (r *repo) GetMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var messages []domain.Message
	err := r.client.Raw(ctx).Model(&domain.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("conversations.brand_id = ? AND messages.conversation_id = ?", r.client.BrandID(), conversationID).
		Order("messages.sent_at ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, apperrors.Store("conversation.getMessages", err)
	}
	return messages, nil
}

// UpdateStatus applies a status change after checking the transition table.
func (r *repo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ConversationStatus) (*domain.Conversation, error) {
	conversation, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, nil
	}
	if !domain.CanTransitionStatus(conversation.Status, status) {
		return nil, apperrors.NewTransitionError("conversation status", string(conversation.Status), string(status))
	}

	err = r.client.Raw(ctx).Model(&domain.Conversation{}).
		Where("brand_id = ? AND id = ?", r.client.BrandID(), id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return nil, apperrors.Store("conversation.updateStatus", err)
	}
	return r.GetByID(ctx, id)
}

// OptOut records a customer-initiated stop and archives the conversation.
// Archiving here is unconditional, bypassing the transition table.
func (r *repo) OptOut(ctx context.Context, id uuid.UUID, reason string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	result := r.client.Raw(ctx).Model(&domain.Conversation{}).
		Where("brand_id = ? AND id = ?", r.client.BrandID(), id).
		Updates(map[string]any{
			"opted_out_at":   now,
			"opt_out_reason": reason,
			"status":         domain.ConversationArchived,
			"updated_at":     now,
		})
	if result.Error != nil {
		return nil, apperrors.Store("conversation.optOut", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// GetActive lists sendable conversations ordered by last activity.
func (r *repo) GetActive(ctx context.Context, limit int) ([]domain.Conversation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var conversations []domain.Conversation
	err := r.client.Conversations(ctx).
		Where("status = ? AND opted_out_at IS NULL", domain.ConversationActive).
		Order("COALESCE(last_message_at, created_at) DESC").
		Limit(limit).
		Find(&conversations).Error
	if err != nil {
		return nil, apperrors.Store("conversation.getActive", err)
	}
	return conversations, nil
}

// Search matches partially on customer phone or campaign name.
func (r *repo) Search(ctx context.Context, query string, limit int) ([]domain.Conversation, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	pattern := "%" + strings.ToLower(query) + "%"
	var conversations []domain.Conversation
	err := r.client.Conversations(ctx).
		Where("customer_phone LIKE ? OR LOWER(campaign_name) LIKE ?", pattern, pattern).
		Order("created_at DESC").
		Limit(limit).
		Find(&conversations).Error
	if err != nil {
		return nil, apperrors.Store("conversation.search", err)
	}
	return conversations, nil
}

// GetWithCustomer fetches a conversation with its owning customer in a
// single joined query.
func (r *repo) GetWithCustomer(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	var conversation domain.Conversation
	err := r.client.Raw(ctx).Model(&domain.Conversation{}).
		Joins("Customer").
		Where("conversations.brand_id = ? AND conversations.id = ?", r.client.BrandID(), id).
		Take(&conversation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Store("conversation.getWithCustomer", err)
	}
	return &conversation, nil
}

// Analytics aggregates conversation counts over a brand scan, optionally
// bounded by creation time. Unbounded snapshots are cache-served for a
// short window when a cache is wired.
func (r *repo) Analytics(ctx context.Context, timeRange *domain.TimeRange) (*domain.ConversationAnalytics, error) {
	cacheKey := fmt.Sprintf("analytics:conversations:%s", r.client.BrandID())
	if r.cache != nil && timeRange == nil {
		if raw, err := r.cache.Get(ctx, cacheKey); err == nil {
			var snapshot domain.ConversationAnalytics
			if err := json.Unmarshal([]byte(raw), &snapshot); err == nil {
				return &snapshot, nil
			}
		}
	}

	query := r.client.Conversations(ctx)
	if timeRange != nil {
		if !timeRange.From.IsZero() {
			query = query.Where("created_at >= ?", timeRange.From)
		}
		if !timeRange.To.IsZero() {
			query = query.Where("created_at < ?", timeRange.To)
		}
	}

	var conversations []domain.Conversation
	if err := query.Find(&conversations).Error; err != nil {
		return nil, apperrors.Store("conversation.analytics", err)
	}

	snapshot := domain.ConversationAnalytics{
		BrandID:     r.client.BrandID(),
		Total:       len(conversations),
		ByStatus:    make(map[domain.ConversationStatus]int),
		GeneratedAt: time.Now().UTC(),
	}
	totalMessages := 0
	for _, c := range conversations {
		snapshot.ByStatus[c.Status]++
		if c.OptedOutAt != nil {
			snapshot.OptedOut++
		}
		totalMessages += c.MessageCount
	}
	snapshot.Active = snapshot.ByStatus[domain.ConversationActive]
	if snapshot.Total > 0 {
		snapshot.AvgMessagesPerConvo = float64(totalMessages) / float64(snapshot.Total)
	}

	if r.cache != nil && timeRange == nil {
		if raw, err := json.Marshal(snapshot); err == nil {
			if err := r.cache.Set(ctx, cacheKey, string(raw), analyticsTTL); err != nil {
				r.logger.Error("failed to cache conversation analytics", "error", err.Error())
			}
		}
	}
	return &snapshot, nil
}
