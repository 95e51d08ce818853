package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// MessageStatus is the provider delivery status, populated for outbound
// messages only.
type MessageStatus string

const (
	MessagePending     MessageStatus = "pending"
	MessageSent        MessageStatus = "sent"
	MessageDelivered   MessageStatus = "delivered"
	MessageFailed      MessageStatus = "failed"
	MessageUndelivered MessageStatus = "undelivered"
)

// Message rows are immutable after creation; only the owning
// conversation's activity fields change when one is appended.
type Message struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID        `gorm:"type:uuid;not null;index" json:"conversation_id"`
	Direction      MessageDirection `gorm:"type:varchar(10);not null" json:"direction"`
	Content        string           `gorm:"type:text;not null" json:"content"`
	MediaURLs      StringArray      `json:"media_urls,omitempty"`
	Status         *MessageStatus   `gorm:"type:varchar(20)" json:"status,omitempty"`
	ProviderID     *string          `gorm:"type:varchar(100);index" json:"provider_id,omitempty"`
	Metadata       datatypes.JSON   `json:"metadata,omitempty"`
	SentAt         time.Time        `gorm:"not null;index" json:"sent_at"`
	DeliveredAt    *time.Time       `json:"delivered_at,omitempty"`
	CreatedAt      time.Time        `gorm:"not null" json:"created_at"`

	Conversation *Conversation `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// CreateMessageInput is the validated caller-supplied subset for appends.
type CreateMessageInput struct {
	ConversationID uuid.UUID        `json:"conversation_id" validate:"required"`
	Direction      MessageDirection `json:"direction" validate:"required,oneof=inbound outbound"`
	Content        string           `json:"content" validate:"required,max=1600"`
	MediaURLs      []string         `json:"media_urls,omitempty" validate:"max=10,dive,url"`
	Status         *MessageStatus   `json:"status,omitempty" validate:"omitempty,oneof=pending sent delivered failed undelivered"`
	ProviderID     *string          `json:"provider_id,omitempty" validate:"omitempty,max=100"`
	Metadata       datatypes.JSON   `json:"metadata,omitempty"`
	SentAt         *time.Time       `json:"sent_at,omitempty"`
}
