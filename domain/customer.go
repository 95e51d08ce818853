package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CustomerStage string

const (
	StageLead      CustomerStage = "lead"
	StageMarketing CustomerStage = "marketing"
	StageTrial     CustomerStage = "trial"
	StageActive    CustomerStage = "active"
	StageChurned   CustomerStage = "churned"
	StageDormant   CustomerStage = "dormant"
)

type CustomerSource string

const (
	SourceWebsite      CustomerSource = "website"
	SourceReferral     CustomerSource = "referral"
	SourcePaidAd       CustomerSource = "paid_ad"
	SourceSocial       CustomerSource = "social"
	SourceEvent        CustomerSource = "event"
	SourcePartner      CustomerSource = "partner"
	SourceColdOutreach CustomerSource = "cold_outreach"
	SourceImport       CustomerSource = "import"
)

// stageTransitions is the allowed customer funnel: forward moves through
// lead->marketing->trial->active, churn/dormancy from any live stage, and
// recovery paths back out of churned/dormant.
var stageTransitions = map[CustomerStage][]CustomerStage{
	StageLead:      {StageMarketing, StageTrial, StageActive, StageChurned, StageDormant},
	StageMarketing: {StageTrial, StageActive, StageChurned, StageDormant},
	StageTrial:     {StageActive, StageChurned, StageDormant},
	StageActive:    {StageChurned, StageDormant},
	StageChurned:   {StageMarketing, StageTrial, StageActive},
	StageDormant:   {StageMarketing, StageTrial, StageActive, StageChurned},
}

// CanProgressStage reports whether the funnel allows moving from one stage
// to another. Same-stage writes are rejected as no-ops.
func CanProgressStage(from, to CustomerStage) bool {
	for _, allowed := range stageTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type Customer struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BrandID   BrandID   `gorm:"type:varchar(20);not null;index;uniqueIndex:idx_customers_brand_email,priority:1;uniqueIndex:idx_customers_brand_phone,priority:1" json:"brand_id"`
	Email     string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_customers_brand_email,priority:2" json:"email"`
	Phone     *string   `gorm:"type:varchar(20);uniqueIndex:idx_customers_brand_phone,priority:2,where:phone IS NOT NULL" json:"phone,omitempty"`
	FirstName string    `gorm:"type:varchar(100)" json:"first_name"`
	LastName  string    `gorm:"type:varchar(100)" json:"last_name"`

	Stage    CustomerStage  `gorm:"type:varchar(20);not null;default:'lead';index" json:"stage"`
	Source   CustomerSource `gorm:"type:varchar(30);not null;default:'website'" json:"source"`
	IsActive bool           `gorm:"not null;default:true" json:"is_active"`

	// Journey timestamps, each stamped once on the matching stage transition.
	MarketingQualifiedAt *time.Time `json:"marketing_qualified_at,omitempty"`
	TrialStartedAt       *time.Time `json:"trial_started_at,omitempty"`
	SubscribedAt         *time.Time `json:"subscribed_at,omitempty"`
	ChurnedAt            *time.Time `json:"churned_at,omitempty"`

	Metadata  datatypes.JSON `json:"metadata,omitempty"`
	Tags      StringArray    `json:"tags,omitempty"`
	CreatedBy *uuid.UUID     `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
}

func (Customer) TableName() string {
	return "customers"
}

func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CreateCustomerInput is the validated caller-supplied subset for inserts.
// Brand, audit fields and defaults are stamped by the repository.
type CreateCustomerInput struct {
	Email     string         `json:"email" validate:"required,email"`
	Phone     *string        `json:"phone,omitempty" validate:"omitempty,e164"`
	FirstName string         `json:"first_name" validate:"max=100"`
	LastName  string         `json:"last_name" validate:"max=100"`
	Stage     CustomerStage  `json:"stage,omitempty" validate:"omitempty,oneof=lead marketing trial active churned dormant"`
	Source    CustomerSource `json:"source,omitempty" validate:"omitempty,oneof=website referral paid_ad social event partner cold_outreach import"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
	Tags      []string       `json:"tags,omitempty" validate:"max=32,dive,min=1,max=64"`
}

// UpdateCustomerInput carries the mutable fields; nil means leave unchanged.
type UpdateCustomerInput struct {
	Email     *string         `json:"email,omitempty" validate:"omitempty,email"`
	Phone     *string         `json:"phone,omitempty" validate:"omitempty,e164"`
	FirstName *string         `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName  *string         `json:"last_name,omitempty" validate:"omitempty,max=100"`
	Source    *CustomerSource `json:"source,omitempty" validate:"omitempty,oneof=website referral paid_ad social event partner cold_outreach import"`
	IsActive  *bool           `json:"is_active,omitempty"`
	Metadata  datatypes.JSON  `json:"metadata,omitempty"`
}

// CustomerAnalytics is the point-in-time snapshot produced by a full brand
// scan. ConversionRate is active/lead x100, not a cohort rate.
type CustomerAnalytics struct {
	BrandID        BrandID                `json:"brand_id"`
	Total          int                    `json:"total"`
	ByStage        map[CustomerStage]int  `json:"by_stage"`
	BySource       map[CustomerSource]int `json:"by_source"`
	ConversionRate float64                `json:"conversion_rate"`
	GeneratedAt    time.Time              `json:"generated_at"`
}
