package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sakashimaa/ecommerce-orders/internal/domain"
	"github.com/sakashimaa/ecommerce-orders/internal/repository"
	generalDomain "github.com/sakashimaa/ecommerce-orders/pkg/domain"
	outboxDomain "github.com/sakashimaa/ecommerce-orders/pkg/outbox/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type OrderServiceSuite struct {
	suite.Suite

	ctx      context.Context
	db       *fakeDB
	orders   *fakeOrderRepo
	products *fakeProductRepo
	outbox   *fakeOutboxRepo
	dir      *fakeDirectory
	service  OrderService

	buyer domain.Buyer
}

func (s *OrderServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = newFakeDB()
	s.orders = newFakeOrderRepo()
	s.products = newFakeProductRepo(
		&domain.Product{ID: 1, Name: "Keyboard", Price: decimal.RequireFromString("49.90"), Quantity: 10},
		&domain.Product{ID: 2, Name: "Mouse", Price: decimal.RequireFromString("19.99"), Quantity: 2},
		&domain.Product{ID: 3, Name: "Monitor", Price: decimal.RequireFromString("199.00"), Quantity: 5},
	)
	s.outbox = &fakeOutboxRepo{}
	s.dir = &fakeDirectory{products: s.products}
	s.buyer = domain.Buyer{ID: 7, FirstName: "Ada", LastName: "Lovelace"}

	s.service = NewOrderService(s.db, zap.NewNop(), s.orders, s.products, s.outbox, s.dir, "order_events")
}

func TestOrderServiceSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceSuite))
}

func (s *OrderServiceSuite) lastEvent() (outboxDomain.Envelope, generalDomain.OrderEvent) {
	s.Require().NotEmpty(s.outbox.events)
	event := s.outbox.events[len(s.outbox.events)-1]

	var envelope outboxDomain.Envelope
	s.Require().NoError(json.Unmarshal(event.Payload, &envelope))

	var payload generalDomain.OrderEvent
	s.Require().NoError(json.Unmarshal(envelope.Payload, &payload))

	return envelope, payload
}

func (s *OrderServiceSuite) TestCreateOrder_OwnedByBuyerWithAllItems() {
	order, err := s.service.CreateOrder(s.ctx, s.buyer, domain.OrderCreateInput{
		Items: []domain.OrderItemInput{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
	})
	s.Require().NoError(err)

	s.Equal(s.buyer.ID, order.BuyerID)
	s.Equal("Ada Lovelace", order.Buyer.FullName())
	s.Equal(domain.OrderStatusPending, order.Status)
	s.NotZero(order.ID)

	s.Require().Len(order.Items, 2)
	s.Equal(int64(1), order.Items[0].ProductID)
	s.Equal(int32(2), order.Items[0].Quantity)
	s.Equal(order.ID, order.Items[0].OrderID)
	s.True(decimal.RequireFromString("99.80").Equal(order.Items[0].Cost()))
	s.Equal(int64(2), order.Items[1].ProductID)
	s.True(decimal.RequireFromString("19.99").Equal(order.Items[1].Price()))

	stored := s.orders.items[order.ID]
	s.Len(stored, 2)
	s.Equal(s.buyer.ID, s.orders.orders[order.ID].BuyerID)

	s.True(s.db.lastTx().committed)

	envelope, payload := s.lastEvent()
	s.Equal(generalDomain.EventOrderCreated, envelope.Event)
	s.Equal(order.ID, payload.OrderID)
	s.Equal(s.buyer.ID, payload.BuyerID)
	s.Len(payload.Items, 2)
}

func (s *OrderServiceSuite) TestCreateOrder_ExplicitStatus() {
	order, err := s.service.CreateOrder(s.ctx, s.buyer, domain.OrderCreateInput{
		Status: domain.Some(domain.OrderStatusCompleted),
		Items:  []domain.OrderItemInput{{ProductID: 3, Quantity: 1}},
	})
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCompleted, order.Status)
}

func (s *OrderServiceSuite) TestCreateOrder_InvalidStatus() {
	_, err := s.service.CreateOrder(s.ctx, s.buyer, domain.OrderCreateInput{
		Status: domain.Some(domain.OrderStatus("shipped")),
		Items:  []domain.OrderItemInput{{ProductID: 3, Quantity: 1}},
	})

	var validationErr *domain.ValidationError
	s.Require().ErrorAs(err, &validationErr)
	s.Contains(validationErr.Fields, "status")
	s.Empty(s.db.txs)
}

func (s *OrderServiceSuite) TestCreateOrder_StockExceededWritesNothing() {
	_, err := s.service.CreateOrder(s.ctx, s.buyer, domain.OrderCreateInput{
		Items: []domain.OrderItemInput{
			{ProductID: 1, Quantity: 1},
			{ProductID: 2, Quantity: 3},
		},
	})
	s.Require().ErrorIs(err, domain.ErrStockExceeded)

	var validationErr *domain.ValidationError
	s.Require().ErrorAs(err, &validationErr)
	s.Equal([]string{domain.StockExceededMessage}, validationErr.Fields["quantity"])

	s.Empty(s.orders.orders)
	s.Empty(s.outbox.events)
	s.False(s.db.lastTx().committed)
	s.True(s.db.lastTx().rolledBack)
}

func (s *OrderServiceSuite) TestCreateOrder_QuantityEqualToStockIsAccepted() {
	_, err := s.service.CreateOrder(s.ctx, s.buyer, domain.OrderCreateInput{
		Items: []domain.OrderItemInput{{ProductID: 2, Quantity: 2}},
	})
	s.Require().NoError(err)
}

func (s *OrderServiceSuite) TestCreateOrder_UnknownProduct() {
	_, err := s.service.CreateOrder(s.ctx, s.buyer, domain.OrderCreateInput{
		Items: []domain.OrderItemInput{{ProductID: 404, Quantity: 1}},
	})
	s.Require().ErrorIs(err, repository.ErrProductNotFound)
	s.True(s.db.lastTx().rolledBack)
}

func (s *OrderServiceSuite) TestCreateOrder_ItemInsertFailureRollsBack() {
	s.orders.failItemAt = 2

	_, err := s.service.CreateOrder(s.ctx, s.buyer, domain.OrderCreateInput{
		Items: []domain.OrderItemInput{
			{ProductID: 1, Quantity: 1},
			{ProductID: 3, Quantity: 1},
		},
	})
	s.Require().Error(err)
	s.False(s.db.lastTx().committed)
	s.True(s.db.lastTx().rolledBack)
	s.Empty(s.outbox.events)
}

func (s *OrderServiceSuite) TestUpdateOrder_StatusOnlyKeepsItems() {
	seeded := s.orders.seed(s.buyer.ID, domain.OrderStatusPending,
		domain.OrderItem{ProductID: 1, Quantity: 1},
		domain.OrderItem{ProductID: 2, Quantity: 2},
	)

	order, err := s.service.UpdateOrder(s.ctx, s.buyer, seeded.ID, domain.OrderUpdateInput{
		Status: domain.Some(domain.OrderStatusCancelled),
	})
	s.Require().NoError(err)

	s.Equal(domain.OrderStatusCancelled, order.Status)
	s.Equal(domain.OrderStatusCancelled, s.orders.orders[seeded.ID].Status)
	s.Empty(s.orders.updatedIDs)
	s.Require().Len(order.Items, 2)
	s.Equal(int32(2), order.Items[1].Quantity)
	s.NotNil(order.Items[1].Product)
	s.True(s.db.lastTx().committed)

	envelope, payload := s.lastEvent()
	s.Equal(generalDomain.EventOrderUpdated, envelope.Event)
	s.Equal("cancelled", payload.Status)
}

func (s *OrderServiceSuite) TestUpdateOrder_OmittedStatusIsRetained() {
	seeded := s.orders.seed(s.buyer.ID, domain.OrderStatusCompleted,
		domain.OrderItem{ProductID: 1, Quantity: 1},
	)

	order, err := s.service.UpdateOrder(s.ctx, s.buyer, seeded.ID, domain.OrderUpdateInput{
		Items: domain.Some([]domain.OrderItemPatch{{Quantity: domain.Some[int32](3)}}),
	})
	s.Require().NoError(err)

	s.Equal(domain.OrderStatusCompleted, order.Status)
	s.Equal(int32(3), s.orders.items[seeded.ID][0].Quantity)
}

func (s *OrderServiceSuite) TestUpdateOrder_PositionalPartialPatches() {
	seeded := s.orders.seed(s.buyer.ID, domain.OrderStatusPending,
		domain.OrderItem{ProductID: 1, Quantity: 1},
		domain.OrderItem{ProductID: 2, Quantity: 1},
		domain.OrderItem{ProductID: 3, Quantity: 1},
	)

	order, err := s.service.UpdateOrder(s.ctx, s.buyer, seeded.ID, domain.OrderUpdateInput{
		Items: domain.Some([]domain.OrderItemPatch{
			{Quantity: domain.Some[int32](4)},
			{ProductID: domain.Some[int64](3)},
		}),
	})
	s.Require().NoError(err)

	stored := s.orders.items[seeded.ID]
	s.Equal(int64(1), stored[0].ProductID)
	s.Equal(int32(4), stored[0].Quantity)
	s.Equal(int64(3), stored[1].ProductID)
	s.Equal(int32(1), stored[1].Quantity)
	s.Equal(int64(3), stored[2].ProductID)
	s.Equal(int32(1), stored[2].Quantity)

	s.Equal([]int64{stored[0].ID, stored[1].ID}, s.orders.updatedIDs)
	s.True(decimal.RequireFromString("199.00").Equal(order.Items[1].Price()))
}

func (s *OrderServiceSuite) TestUpdateOrder_SurplusPatchesIgnored() {
	seeded := s.orders.seed(s.buyer.ID, domain.OrderStatusPending,
		domain.OrderItem{ProductID: 1, Quantity: 1},
	)

	order, err := s.service.UpdateOrder(s.ctx, s.buyer, seeded.ID, domain.OrderUpdateInput{
		Items: domain.Some([]domain.OrderItemPatch{
			{Quantity: domain.Some[int32](2)},
			{ProductID: domain.Some[int64](2), Quantity: domain.Some[int32](1)},
			{ProductID: domain.Some[int64](3), Quantity: domain.Some[int32](1)},
		}),
	})
	s.Require().NoError(err)

	s.Len(order.Items, 1)
	s.Len(s.orders.items[seeded.ID], 1)
	s.Equal(int32(2), s.orders.items[seeded.ID][0].Quantity)
}

func (s *OrderServiceSuite) TestUpdateOrder_PatchByID() {
	seeded := s.orders.seed(s.buyer.ID, domain.OrderStatusPending,
		domain.OrderItem{ProductID: 1, Quantity: 1},
		domain.OrderItem{ProductID: 3, Quantity: 1},
	)
	second := s.orders.items[seeded.ID][1]

	_, err := s.service.UpdateOrder(s.ctx, s.buyer, seeded.ID, domain.OrderUpdateInput{
		Items: domain.Some([]domain.OrderItemPatch{
			{ID: domain.Some(second.ID), Quantity: domain.Some[int32](5)},
		}),
	})
	s.Require().NoError(err)

	stored := s.orders.items[seeded.ID]
	s.Equal(int32(1), stored[0].Quantity)
	s.Equal(int32(5), stored[1].Quantity)
}

func (s *OrderServiceSuite) TestUpdateOrder_UnknownItemID() {
	seeded := s.orders.seed(s.buyer.ID, domain.OrderStatusPending,
		domain.OrderItem{ProductID: 1, Quantity: 1},
	)

	_, err := s.service.UpdateOrder(s.ctx, s.buyer, seeded.ID, domain.OrderUpdateInput{
		Items: domain.Some([]domain.OrderItemPatch{
			{ID: domain.Some[int64](999), Quantity: domain.Some[int32](1)},
		}),
	})
	s.Require().ErrorIs(err, repository.ErrOrderItemNotFound)
	s.True(s.db.lastTx().rolledBack)
}

func (s *OrderServiceSuite) TestUpdateOrder_RevalidatesStock() {
	seeded := s.orders.seed(s.buyer.ID, domain.OrderStatusPending,
		domain.OrderItem{ProductID: 1, Quantity: 1},
	)

	_, err := s.service.UpdateOrder(s.ctx, s.buyer, seeded.ID, domain.OrderUpdateInput{
		Status: domain.Some(domain.OrderStatusCompleted),
		Items: domain.Some([]domain.OrderItemPatch{
			{ProductID: domain.Some[int64](2), Quantity: domain.Some[int32](3)},
		}),
	})
	s.Require().ErrorIs(err, domain.ErrStockExceeded)
	s.False(s.db.lastTx().committed)
	s.Empty(s.outbox.events)
}

func (s *OrderServiceSuite) TestUpdateOrder_OtherBuyersOrderIsNotFound() {
	seeded := s.orders.seed(99, domain.OrderStatusPending,
		domain.OrderItem{ProductID: 1, Quantity: 1},
	)

	_, err := s.service.UpdateOrder(s.ctx, s.buyer, seeded.ID, domain.OrderUpdateInput{
		Status: domain.Some(domain.OrderStatusCancelled),
	})
	s.Require().ErrorIs(err, repository.ErrOrderNotFound)
	s.Equal(domain.OrderStatusPending, s.orders.orders[seeded.ID].Status)
}

func (s *OrderServiceSuite) TestUpdateOrder_Missing() {
	_, err := s.service.UpdateOrder(s.ctx, s.buyer, 12345, domain.OrderUpdateInput{})
	s.Require().ErrorIs(err, repository.ErrOrderNotFound)
}

func (s *OrderServiceSuite) TestGetOrder_UsesCurrentPrices() {
	seeded := s.orders.seed(s.buyer.ID, domain.OrderStatusPending,
		domain.OrderItem{ProductID: 1, Quantity: 2},
	)

	s.products.products[1].Price = decimal.RequireFromString("10.00")

	order, err := s.service.GetOrder(s.ctx, s.buyer, seeded.ID)
	s.Require().NoError(err)

	s.Equal(s.buyer, order.Buyer)
	s.Require().Len(order.Items, 1)
	s.True(decimal.RequireFromString("20.00").Equal(order.Items[0].Cost()))
	s.Equal(1, s.dir.calls)
}

func (s *OrderServiceSuite) TestGetOrder_OtherBuyer() {
	seeded := s.orders.seed(99, domain.OrderStatusPending)

	_, err := s.service.GetOrder(s.ctx, s.buyer, seeded.ID)
	s.Require().ErrorIs(err, repository.ErrOrderNotFound)
}

func (s *OrderServiceSuite) TestListOrders_OnlyOwnOrders() {
	s.orders.seed(s.buyer.ID, domain.OrderStatusPending, domain.OrderItem{ProductID: 1, Quantity: 1})
	s.orders.seed(99, domain.OrderStatusPending, domain.OrderItem{ProductID: 2, Quantity: 1})
	s.orders.seed(s.buyer.ID, domain.OrderStatusCompleted, domain.OrderItem{ProductID: 3, Quantity: 1})

	orders, total, err := s.service.ListOrders(s.ctx, s.buyer, 0, 0)
	s.Require().NoError(err)

	s.Equal(int64(2), total)
	s.Require().Len(orders, 2)
	for _, order := range orders {
		s.Equal(s.buyer.ID, order.BuyerID)
		s.Require().Len(order.Items, 1)
		s.NotNil(order.Items[0].Product)
	}
	s.Equal(1, s.dir.calls)
}

func (s *OrderServiceSuite) TestListOrders_Pagination() {
	for i := 0; i < 3; i++ {
		s.orders.seed(s.buyer.ID, domain.OrderStatusPending)
	}

	orders, total, err := s.service.ListOrders(s.ctx, s.buyer, 2, 2)
	s.Require().NoError(err)
	s.Equal(int64(3), total)
	s.Len(orders, 1)
}

func TestApplyItemPatches(t *testing.T) {
	items := []domain.OrderItem{
		{ID: 10, ProductID: 1, Quantity: 1},
		{ID: 11, ProductID: 2, Quantity: 1},
	}

	touched, err := applyItemPatches(items, []domain.OrderItemPatch{
		{ID: domain.Some[int64](11), Quantity: domain.Some[int32](3)},
		{},
		{Quantity: domain.Some[int32](9)},
	})
	require.NoError(t, err)

	require.Equal(t, []int{1}, touched)
	require.Equal(t, int32(3), items[1].Quantity)
	require.Equal(t, int32(1), items[0].Quantity)
}

func TestApplyItemPatches_NoPatches(t *testing.T) {
	items := []domain.OrderItem{{ID: 1, ProductID: 1, Quantity: 1}}

	touched, err := applyItemPatches(items, nil)
	require.NoError(t, err)
	require.Empty(t, touched)
}
