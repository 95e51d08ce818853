package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/percytech/platform-data/domain"
	"github.com/percytech/platform-data/internal/testutil"
)

// memoryCache is a minimal cache.Cache for exercising the snapshot path.
type memoryCache struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: make(map[string]string)}
}

func (m *memoryCache) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = val
	return nil
}

func (m *memoryCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.values[key]
	if !ok {
		return "", errMissing
	}
	return val, nil
}

var errMissing = errors.New("cache miss")

func TestNewRejectsUnknownBrand(t *testing.T) {
	db := testutil.OpenDB(t)
	_, err := New(domain.BrandID("acme"), db, Options{})
	require.Error(t, err)
}

func TestStoresAreBrandIsolated(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()

	gnymble, err := New(domain.BrandGnymble, db, Options{})
	require.NoError(t, err)
	percymd, err := New(domain.BrandPercyMD, db, Options{})
	require.NoError(t, err)

	created, err := gnymble.Customers.Create(ctx, domain.CreateCustomerInput{Email: "iso@b.com"})
	require.NoError(t, err)

	invisible, err := percymd.Customers.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, invisible)

	visible, err := gnymble.Customers.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, visible)
	assert.Equal(t, "iso@b.com", visible.Email)
}

// Full lifecycle: create customer, progress to trial, open a conversation,
// send outbound, verify the message list and activity stamps.
func TestCustomerConversationLifecycle(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()

	s, err := New(domain.BrandGnymble, db, Options{})
	require.NoError(t, err)

	customer, err := s.Customers.Create(ctx, domain.CreateCustomerInput{Email: "a@b.com"})
	require.NoError(t, err)

	trial, err := s.Customers.ProgressStage(ctx, customer.ID, domain.StageTrial)
	require.NoError(t, err)
	require.NotNil(t, trial.TrialStartedAt)

	conversation, err := s.Conversations.FindOrCreate(ctx, customer.ID, "+15551234567", "+15557654321", nil)
	require.NoError(t, err)
	assert.True(t, conversation.CanSendMessage())

	_, err = s.Conversations.AddMessage(ctx, domain.CreateMessageInput{
		ConversationID: conversation.ID,
		Direction:      domain.DirectionOutbound,
		Content:        "hi",
	})
	require.NoError(t, err)

	messages, err := s.Conversations.GetMessages(ctx, conversation.ID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hi", messages[0].Content)
	assert.Equal(t, domain.DirectionOutbound, messages[0].Direction)

	after, err := s.Conversations.GetByID(ctx, conversation.ID)
	require.NoError(t, err)
	require.NotNil(t, after.LastOutboundAt)
	assert.Nil(t, after.LastInboundAt)
}

func TestAnalyticsSnapshotIsCached(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	cache := newMemoryCache()

	s, err := New(domain.BrandGnymble, db, Options{Cache: cache})
	require.NoError(t, err)

	_, err = s.Customers.Create(ctx, domain.CreateCustomerInput{Email: "c1@b.com"})
	require.NoError(t, err)

	first, err := s.Customers.Analytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Total)

	// A second customer lands, but the cached snapshot is still served.
	_, err = s.Customers.Create(ctx, domain.CreateCustomerInput{Email: "c2@b.com"})
	require.NoError(t, err)

	second, err := s.Customers.Analytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Total)
	assert.Equal(t, first.GeneratedAt.Unix(), second.GeneratedAt.Unix())
}
