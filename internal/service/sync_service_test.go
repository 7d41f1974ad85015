package service

import (
	"context"
	"testing"

	"github.com/sakashimaa/ecommerce-orders/internal/domain"
	generalDomain "github.com/sakashimaa/ecommerce-orders/pkg/domain"
	"github.com/sakashimaa/ecommerce-orders/pkg/outbox/inbox"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSyncFixture() (SyncService, *fakeDB, *fakeUserRepo, *fakeProductRepo, *fakeCache) {
	db := newFakeDB()
	users := &fakeUserRepo{users: make(map[int64]domain.Buyer)}
	products := newFakeProductRepo()
	cache := &fakeCache{}

	return NewSyncService(db, zap.NewNop(), users, products, cache), db, users, products, cache
}

func TestSyncService_HandleUserRegistered(t *testing.T) {
	svc, db, users, _, cache := newSyncFixture()
	ctx := context.Background()

	err := svc.HandleUserRegistered(ctx, inbox.EventRef{Source: "user_events", ID: 1}, &generalDomain.UserRegisteredEvent{
		UserID:    5,
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)

	require.Len(t, users.upserted, 1)
	require.Equal(t, int64(5), users.upserted[0].ID)
	require.Equal(t, "Ada Lovelace", users.upserted[0].FullName())
	require.Equal(t, []int64{5}, cache.buyers)
	require.True(t, db.lastTx().committed)
}

func TestSyncService_DuplicateEventIsSkipped(t *testing.T) {
	svc, db, _, products, cache := newSyncFixture()
	ctx := context.Background()

	ref := inbox.EventRef{Source: "product_events", ID: 42}
	event := &generalDomain.ProductChangedEvent{
		ProductID:     3,
		Name:          "Monitor",
		Price:         decimal.RequireFromString("199.00"),
		StockQuantity: 4,
	}

	require.NoError(t, svc.HandleProductChanged(ctx, ref, event))
	require.NoError(t, svc.HandleProductChanged(ctx, ref, event))

	require.Len(t, products.upserted, 1)
	require.Equal(t, int64(4), products.products[3].Quantity)
	require.Equal(t, []int64{3}, cache.products)
	require.False(t, db.lastTx().committed)
}

func TestSyncService_SameIDFromAnotherSourceIsApplied(t *testing.T) {
	svc, _, users, products, _ := newSyncFixture()
	ctx := context.Background()

	require.NoError(t, svc.HandleUserRegistered(ctx, inbox.EventRef{Source: "user_events", ID: 7}, &generalDomain.UserRegisteredEvent{UserID: 1}))
	require.NoError(t, svc.HandleProductChanged(ctx, inbox.EventRef{Source: "product_events", ID: 7}, &generalDomain.ProductChangedEvent{ProductID: 1}))

	require.Len(t, users.upserted, 1)
	require.Len(t, products.upserted, 1)
}

func TestSyncService_EventWithoutIDIsAlwaysApplied(t *testing.T) {
	svc, _, _, products, _ := newSyncFixture()
	ctx := context.Background()

	event := &generalDomain.ProductChangedEvent{ProductID: 2, Price: decimal.NewFromInt(5)}

	require.NoError(t, svc.HandleProductChanged(ctx, inbox.EventRef{}, event))
	require.NoError(t, svc.HandleProductChanged(ctx, inbox.EventRef{}, event))

	require.Len(t, products.upserted, 2)
}

func TestSyncService_RejectsInvalidIDs(t *testing.T) {
	svc, db, _, _, _ := newSyncFixture()
	ctx := context.Background()

	require.Error(t, svc.HandleUserRegistered(ctx, inbox.EventRef{}, &generalDomain.UserRegisteredEvent{}))
	require.Error(t, svc.HandleProductChanged(ctx, inbox.EventRef{}, &generalDomain.ProductChangedEvent{ProductID: -1}))
	require.Empty(t, db.txs)
}
