package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ConversationStatus string

const (
	ConversationActive    ConversationStatus = "active"
	ConversationPaused    ConversationStatus = "paused"
	ConversationCompleted ConversationStatus = "completed"
	ConversationArchived  ConversationStatus = "archived"
)

// statusTransitions: active<->paused, active->completed, any->archived.
// Archiving also happens unconditionally through opt-out.
var statusTransitions = map[ConversationStatus][]ConversationStatus{
	ConversationActive:    {ConversationPaused, ConversationCompleted, ConversationArchived},
	ConversationPaused:    {ConversationActive, ConversationArchived},
	ConversationCompleted: {ConversationArchived},
	ConversationArchived:  {},
}

// CanTransitionStatus reports whether the status table allows the move.
func CanTransitionStatus(from, to ConversationStatus) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type Conversation struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BrandID    BrandID   `gorm:"type:varchar(20);not null;index;uniqueIndex:idx_conversations_phone_pair,priority:1" json:"brand_id"`
	CustomerID uuid.UUID `gorm:"type:uuid;not null;index" json:"customer_id"`

	CustomerPhone string `gorm:"type:varchar(20);not null;uniqueIndex:idx_conversations_phone_pair,priority:2" json:"customer_phone"`
	BrandPhone    string `gorm:"type:varchar(20);not null;uniqueIndex:idx_conversations_phone_pair,priority:3" json:"brand_phone"`

	Status       ConversationStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	CampaignID   *uuid.UUID         `gorm:"type:uuid" json:"campaign_id,omitempty"`
	CampaignName *string            `gorm:"type:varchar(255)" json:"campaign_name,omitempty"`
	MessageCount int                `gorm:"not null;default:0" json:"message_count"`

	LastMessageAt  *time.Time `gorm:"index" json:"last_message_at,omitempty"`
	LastInboundAt  *time.Time `json:"last_inbound_at,omitempty"`
	LastOutboundAt *time.Time `json:"last_outbound_at,omitempty"`

	OptedOutAt   *time.Time `json:"opted_out_at,omitempty"`
	OptOutReason *string    `gorm:"type:varchar(255)" json:"opt_out_reason,omitempty"`

	Metadata  datatypes.JSON `json:"metadata,omitempty"`
	Tags      StringArray    `json:"tags,omitempty"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`

	Customer *Customer `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"customer,omitempty"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CanSendMessage reports whether the conversation is currently sendable:
// active status and no recorded opt-out.
func (c *Conversation) CanSendMessage() bool {
	return c.Status == ConversationActive && c.OptedOutAt == nil
}

// CreateConversationInput is the validated caller-supplied subset for inserts.
type CreateConversationInput struct {
	CustomerID    uuid.UUID      `json:"customer_id" validate:"required"`
	CustomerPhone string         `json:"customer_phone" validate:"required,e164"`
	BrandPhone    string         `json:"brand_phone" validate:"required,e164"`
	CampaignID    *uuid.UUID     `json:"campaign_id,omitempty"`
	CampaignName  *string        `json:"campaign_name,omitempty" validate:"omitempty,max=255"`
	Metadata      datatypes.JSON `json:"metadata,omitempty"`
	Tags          []string       `json:"tags,omitempty" validate:"max=32,dive,min=1,max=64"`
}

// CampaignLink carries optional campaign attribution for find-or-create.
type CampaignLink struct {
	CampaignID   *uuid.UUID `json:"campaign_id,omitempty"`
	CampaignName *string    `json:"campaign_name,omitempty" validate:"omitempty,max=255"`
}

// ConversationAnalytics is the snapshot produced by a brand scan,
// optionally bounded to a creation-time range.
type ConversationAnalytics struct {
	BrandID             BrandID                    `json:"brand_id"`
	Total               int                        `json:"total"`
	Active              int                        `json:"active"`
	OptedOut            int                        `json:"opted_out"`
	ByStatus            map[ConversationStatus]int `json:"by_status"`
	AvgMessagesPerConvo float64                    `json:"avg_messages_per_conversation"`
	GeneratedAt         time.Time                  `json:"generated_at"`
}

// TimeRange bounds an analytics scan by creation time; zero fields are open ends.
type TimeRange struct {
	From time.Time
	To   time.Time
}
