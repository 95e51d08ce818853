package conversation

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/percytech/platform-data/apperrors"
	"github.com/percytech/platform-data/client"
	"github.com/percytech/platform-data/domain"
	"github.com/percytech/platform-data/internal/testutil"
	"github.com/percytech/platform-data/validate"
)

const (
	customerPhone = "+15551234567"
	brandPhone    = "+15557654321"
)

func newTestRepo(t *testing.T, db *gorm.DB, brand domain.BrandID) Repository {
	t.Helper()
	c, err := client.New(client.BrandContext{Brand: brand}, db)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewConversationRepository(c, nil, logger)
}

func seedCustomer(t *testing.T, db *gorm.DB, brand domain.BrandID) *domain.Customer {
	t.Helper()
	now := time.Now().UTC()
	customer := domain.Customer{
		BrandID:   brand,
		Email:     string(brand) + "-cust@example.com",
		Stage:     domain.StageLead,
		Source:    domain.SourceWebsite,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, db.Create(&customer).Error)
	return &customer
}

func TestCreateAppliesDefaults(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := newTestRepo(t, db, domain.BrandGnymble)
	customer := seedCustomer(t, db, domain.BrandGnymble)

	conversation, err := repo.Create(context.Background(), domain.CreateConversationInput{
		CustomerID:    customer.ID,
		CustomerPhone: customerPhone,
		BrandPhone:    brandPhone,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.BrandGnymble, conversation.BrandID)
	assert.Equal(t, domain.ConversationActive, conversation.Status)
	assert.Equal(t, 0, conversation.MessageCount)
	assert.Nil(t, conversation.LastMessageAt)
	assert.True(t, conversation.CanSendMessage())
}

func TestGetByPhonesOnlyReturnsActive(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := newTestRepo(t, db, domain.BrandGnymble)
	customer := seedCustomer(t, db, domain.BrandGnymble)
	ctx := context.Background()

	created, err := repo.Create(ctx, domain.CreateConversationInput{
		CustomerID:    customer.ID,
		CustomerPhone: customerPhone,
		BrandPhone:    brandPhone,
	})
	require.NoError(t, err)

	found, err := repo.GetByPhones(ctx, customerPhone, brandPhone)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	_, err = repo.UpdateStatus(ctx, created.ID, domain.ConversationPaused)
	require.NoError(t, err)

	found, err = repo.GetByPhones(ctx, customerPhone, brandPhone)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestFindOrCreateConvergesOnOneRow(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := newTestRepo(t, db, domain.BrandGnymble)
	customer := seedCustomer(t, db, domain.BrandGnymble)
	ctx := context.Background()

	campaignName := "spring-promo"
	first, err := repo.FindOrCreate(ctx, customer.ID, customerPhone, brandPhone, &domain.CampaignLink{
		CampaignName: &campaignName,
	})
	require.NoError(t, err)
	require.NotNil(t, first.CampaignName)
	assert.Equal(t, "spring-promo", *first.CampaignName)

	second, err := repo.FindOrCreate(ctx, customer.ID, customerPhone, brandPhone, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&domain.Conversation{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestFindOrCreateReturnsArchivedRowOnConflict(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := newTestRepo(t, db, domain.BrandGnymble)
	customer := seedCustomer(t, db, domain.BrandGnymble)
	ctx := context.Background()

	created, err := repo.FindOrCreate(ctx, customer.ID, customerPhone, brandPhone, nil)
	require.NoError(t, err)

	_, err = repo.OptOut(ctx, created.ID, "STOP")
	require.NoError(t, err)

	// The active lookup misses, the insert hits the phone-pair constraint,
	// and the archived row comes back.
	again, err := repo.FindOrCreate(ctx, customer.ID, customerPhone, brandPhone, nil)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, domain.ConversationArchived, again.Status)
}

func TestAddMessageUpdatesDirectionTimestamps(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := newTestRepo(t, db, domain.BrandGnymble)
	customer := seedCustomer(t, db, domain.BrandGnymble)
	ctx := context.Background()

	conversation, err := repo.FindOrCreate(ctx, customer.ID, customerPhone, brandPhone, nil)
	require.NoError(t, err)

	_, err = repo.AddMessage(ctx, domain.CreateMessageInput{
		ConversationID: conversation.ID,
		Direction:      domain.DirectionInbound,
		Content:        "hello?",
	})
	require.NoError(t, err)

	afterInbound, err := repo.GetByID(ctx, conversation.ID)
	require.NoError(t, err)
	require.NotNil(t, afterInbound.LastInboundAt)
	require.NotNil(t, afterInbound.LastMessageAt)
	assert.Nil(t, afterInbound.LastOutboundAt)
	assert.Equal(t, 1, afterInbound.MessageCount)

	_, err = repo.AddMessage(ctx, domain.CreateMessageInput{
		ConversationID: conversation.ID,
		Direction:      domain.DirectionOutbound,
		Content:        "hi there",
	})
	require.NoError(t, err)

	afterOutbound, err := repo.GetByID(ctx, conversation.ID)
	require.NoError(t, err)
	require.NotNil(t, afterOutbound.LastOutboundAt)
	assert.Equal(t, 2, afterOutbound.MessageCount)
	// The inbound stamp is untouched by the outbound append.
	assert.Equal(t, afterInbound.LastInboundAt.Unix(), afterOutbound.LastInboundAt.Unix())

	messages, err := repo.GetMessages(ctx, conversation.ID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "hello?", messages[0].Content)
	assert.Equal(t, "hi there", messages[1].Content)
}

func TestAddMessageRejectsUnknownConversation(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := newTestRepo(t, db, domain.BrandGnymble)

	_, err := repo.AddMessage(context.Background(), domain.CreateMessageInput{
		ConversationID: uuid.New(),
		Direction:      domain.DirectionOutbound,
		Content:        "into the void",
	})
	require.Error(t, err)
	var storeErr *apperrors.StoreError
	assert.ErrorAs(t, err, &storeErr)

	// Nothing was written: the append is atomic.
	var count int64
	require.NoError(t, db.Model(&domain.Message{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestAddMessageRejectsDeliveryStatusOnInbound(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := newTestRepo(t, db, domain.BrandGnymble)
	customer := seedCustomer(t, db, domain.BrandGnymble)
	ctx := context.Background()

	conversation, err := repo.FindOrCreate(ctx, customer.ID, customerPhone, brandPhone, nil)
	require.NoError(t, err)

	status := domain.MessageDelivered
	_, err = repo.AddMessage(ctx, domain.CreateMessageInput{
		ConversationID: conversation.ID,
		Direction:      domain.DirectionInbound,
		Content:        "inbound with status",
		Status:         &status,
	})
	require.Error(t, err)
	assert.True(t, validate.IsValidation(err))
}

func TestUpdateStatusEnforcesTransitionTable(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := newTestRepo(t, db, domain.BrandGnymble)
	customer := seedCustomer(t, db, domain.BrandGnymble)
	ctx := context.Background()

	conversation, err := repo.FindOrCreate(ctx, customer.ID, customerPhone, brandPhone, nil)
	require.NoError(t, err)

	paused, err := repo.UpdateStatus(ctx, conversation.ID, domain.ConversationPaused)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationPaused, paused.Status)

	resumed, err := repo.UpdateStatus(ctx, conversation.ID, domain.ConversationActive)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationActive, resumed.Status)

	archived, err := repo.UpdateStatus(ctx, conversation.ID, domain.ConversationArchived)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationArchived, archived.Status)

	_, err = repo.UpdateStatus(ctx, conversation.ID, domain.ConversationActive)
	require.Error(t, err)
	assert.True(t, apperrors.IsTransition(err))
}

func TestOptOutArchivesAndBlocksSending(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := newTestRepo(t, db, domain.BrandGnymble)
	customer := seedCustomer(t, db, domain.BrandGnymble)
	ctx := context.Background()

	conversation, err := repo.FindOrCreate(ctx, customer.ID, customerPhone, brandPhone, nil)
	require.NoError(t, err)

	optedOut, err := repo.OptOut(ctx, conversation.ID, "STOP")
	require.NoError(t, err)
	require.NotNil(t, optedOut.OptedOutAt)
	require.NotNil(t, optedOut.OptOutReason)
	assert.Equal(t, "STOP", *optedOut.OptOutReason)
	assert.Equal(t, domain.ConversationArchived, optedOut.Status)
	assert.False(t, optedOut.CanSendMessage())

	missing, err := repo.OptOut(ctx, uuid.New(), "STOP")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetActiveExcludesUnsendable(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := newTestRepo(t, db, domain.BrandGnymble)
	customer := seedCustomer(t, db, domain.BrandGnymble)
	ctx := context.Background()

	sendable, err := repo.FindOrCreate(ctx, customer.ID, customerPhone, brandPhone, nil)
	require.NoError(t, err)

	paused, err := repo.FindOrCreate(ctx, customer.ID, "+15550000001", brandPhone, nil)
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, paused.ID, domain.ConversationPaused)
	require.NoError(t, err)

	optedOut, err := repo.FindOrCreate(ctx, customer.ID, "+15550000002", brandPhone, nil)
	require.NoError(t, err)
	_, err = repo.OptOut(ctx, optedOut.ID, "STOP")
	require.NoError(t, err)

	active, err := repo.GetActive(ctx, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, sendable.ID, active[0].ID)
}

func TestSearchMatchesPhoneAndCampaign(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := newTestRepo(t, db, domain.BrandGnymble)
	customer := seedCustomer(t, db, domain.BrandGnymble)
	ctx := context.Background()

	campaignName := "Winter Launch"
	_, err := repo.FindOrCreate(ctx, customer.ID, customerPhone, brandPhone, &domain.CampaignLink{
		CampaignName: &campaignName,
	})
	require.NoError(t, err)

	byPhone, err := repo.Search(ctx, "123456", 0)
	require.NoError(t, err)
	assert.Len(t, byPhone, 1)

	byCampaign, err := repo.Search(ctx, "winter", 0)
	require.NoError(t, err)
	assert.Len(t, byCampaign, 1)

	none, err := repo.Search(ctx, "summer", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetWithCustomer(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := newTestRepo(t, db, domain.BrandGnymble)
	customer := seedCustomer(t, db, domain.BrandGnymble)
	ctx := context.Background()

	conversation, err := repo.FindOrCreate(ctx, customer.ID, customerPhone, brandPhone, nil)
	require.NoError(t, err)

	got, err := repo.GetWithCustomer(ctx, conversation.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Customer)
	assert.Equal(t, customer.ID, got.Customer.ID)
	assert.Equal(t, customer.Email, got.Customer.Email)

	missing, err := repo.GetWithCustomer(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMessagesAreBrandScoped(t *testing.T) {
	db := testutil.OpenDB(t)
	gnymble := newTestRepo(t, db, domain.BrandGnymble)
	percymd := newTestRepo(t, db, domain.BrandPercyMD)
	customer := seedCustomer(t, db, domain.BrandGnymble)
	ctx := context.Background()

	conversation, err := gnymble.FindOrCreate(ctx, customer.ID, customerPhone, brandPhone, nil)
	require.NoError(t, err)
	_, err = gnymble.AddMessage(ctx, domain.CreateMessageInput{
		ConversationID: conversation.ID,
		Direction:      domain.DirectionOutbound,
		Content:        "gnymble only",
	})
	require.NoError(t, err)

	got, err := percymd.GetByID(ctx, conversation.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	messages, err := percymd.GetMessages(ctx, conversation.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, messages)

	// Appending through the wrong brand fails and writes nothing.
	_, err = percymd.AddMessage(ctx, domain.CreateMessageInput{
		ConversationID: conversation.ID,
		Direction:      domain.DirectionOutbound,
		Content:        "cross brand",
	})
	assert.Error(t, err)
}

func TestAnalyticsAggregates(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := newTestRepo(t, db, domain.BrandGnymble)
	customer := seedCustomer(t, db, domain.BrandGnymble)
	ctx := context.Background()

	first, err := repo.FindOrCreate(ctx, customer.ID, customerPhone, brandPhone, nil)
	require.NoError(t, err)
	for range 2 {
		_, err = repo.AddMessage(ctx, domain.CreateMessageInput{
			ConversationID: first.ID,
			Direction:      domain.DirectionOutbound,
			Content:        "ping",
		})
		require.NoError(t, err)
	}

	second, err := repo.FindOrCreate(ctx, customer.ID, "+15550000003", brandPhone, nil)
	require.NoError(t, err)
	_, err = repo.OptOut(ctx, second.ID, "STOP")
	require.NoError(t, err)

	snapshot, err := repo.Analytics(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, snapshot.Total)
	assert.Equal(t, 1, snapshot.Active)
	assert.Equal(t, 1, snapshot.OptedOut)
	assert.Equal(t, 1, snapshot.ByStatus[domain.ConversationActive])
	assert.Equal(t, 1, snapshot.ByStatus[domain.ConversationArchived])
	assert.InDelta(t, 1.0, snapshot.AvgMessagesPerConvo, 0.001)

	// Time-bounded scans exclude rows outside the range.
	past := &domain.TimeRange{To: time.Now().UTC().Add(-time.Hour)}
	empty, err := repo.Analytics(ctx, past)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Total)
}
