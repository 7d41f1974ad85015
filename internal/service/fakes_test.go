package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sakashimaa/ecommerce-orders/internal/domain"
	"github.com/sakashimaa/ecommerce-orders/internal/repository"
	outboxDomain "github.com/sakashimaa/ecommerce-orders/pkg/outbox/domain"
)

type fakeTx struct {
	pgx.Tx
	db         *fakeDB
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(_ context.Context) error {
	if t.db.commitErr != nil {
		return t.db.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(_ context.Context) error {
	if t.committed || t.rolledBack {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

// Exec emulates the processed_events insert used for deduplication.
func (t *fakeTx) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	key := fmt.Sprintf("%v/%v", args[0], args[1])
	if t.db.processed[key] {
		return pgconn.NewCommandTag("INSERT 0 0"), nil
	}
	t.db.processed[key] = true
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

type fakeDB struct {
	txs       []*fakeTx
	processed map[string]bool
	commitErr error
}

func newFakeDB() *fakeDB {
	return &fakeDB{processed: make(map[string]bool)}
}

func (d *fakeDB) BeginTx(_ context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	tx := &fakeTx{db: d}
	d.txs = append(d.txs, tx)
	return tx, nil
}

func (d *fakeDB) lastTx() *fakeTx {
	return d.txs[len(d.txs)-1]
}

type fakeOrderRepo struct {
	nextOrderID int64
	nextItemID  int64
	orders      map[int64]domain.Order
	items       map[int64][]domain.OrderItem
	failItemAt  int
	itemInserts int
	updatedIDs  []int64
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders: make(map[int64]domain.Order),
		items:  make(map[int64][]domain.OrderItem),
	}
}

func (r *fakeOrderRepo) seed(buyerID int64, status domain.OrderStatus, items ...domain.OrderItem) domain.Order {
	r.nextOrderID++
	order := domain.Order{ID: r.nextOrderID, BuyerID: buyerID, Status: status}
	r.orders[order.ID] = order

	for _, item := range items {
		r.nextItemID++
		item.ID = r.nextItemID
		item.OrderID = order.ID
		r.items[order.ID] = append(r.items[order.ID], item)
	}

	return order
}

func (r *fakeOrderRepo) CreateOrder(_ context.Context, _ pgx.Tx, order *domain.Order) error {
	r.nextOrderID++
	order.ID = r.nextOrderID
	stored := *order
	stored.Items = nil
	r.orders[order.ID] = stored
	return nil
}

func (r *fakeOrderRepo) CreateOrderItem(_ context.Context, _ pgx.Tx, item *domain.OrderItem) error {
	r.itemInserts++
	if r.failItemAt > 0 && r.itemInserts == r.failItemAt {
		return errors.New("insert failed")
	}

	r.nextItemID++
	item.ID = r.nextItemID
	stored := *item
	stored.Product = nil
	r.items[item.OrderID] = append(r.items[item.OrderID], stored)
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, _ pgx.Tx, orderID int64) (*domain.Order, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &order, nil
}

func (r *fakeOrderRepo) LockByID(ctx context.Context, tx pgx.Tx, orderID int64) (*domain.Order, error) {
	return r.GetByID(ctx, tx, orderID)
}

func (r *fakeOrderRepo) ListByBuyer(_ context.Context, _ pgx.Tx, buyerID int64, limit, offset int64) ([]domain.Order, int64, error) {
	var all []domain.Order
	for _, order := range r.orders {
		if order.BuyerID == buyerID {
			all = append(all, order)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := int64(len(all))
	if offset >= total {
		return []domain.Order{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *fakeOrderRepo) ListItems(_ context.Context, _ pgx.Tx, orderID int64) ([]domain.OrderItem, error) {
	return append([]domain.OrderItem(nil), r.items[orderID]...), nil
}

func (r *fakeOrderRepo) ListItemsByOrderIDs(ctx context.Context, tx pgx.Tx, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	result := make(map[int64][]domain.OrderItem, len(orderIDs))
	for _, id := range orderIDs {
		items, _ := r.ListItems(ctx, tx, id)
		result[id] = items
	}
	return result, nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, _ pgx.Tx, order *domain.Order) error {
	stored, ok := r.orders[order.ID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	stored.Status = order.Status
	r.orders[order.ID] = stored
	return nil
}

func (r *fakeOrderRepo) UpdateItem(_ context.Context, _ pgx.Tx, item *domain.OrderItem) error {
	items := r.items[item.OrderID]
	for i := range items {
		if items[i].ID == item.ID {
			items[i].ProductID = item.ProductID
			items[i].Quantity = item.Quantity
			r.updatedIDs = append(r.updatedIDs, item.ID)
			return nil
		}
	}
	return repository.ErrOrderItemNotFound
}

type fakeProductRepo struct {
	products map[int64]*domain.Product
	upserted []domain.Product
}

func newFakeProductRepo(products ...*domain.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: make(map[int64]*domain.Product)}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) GetByIDs(_ context.Context, _ pgx.Tx, ids []int64) (map[int64]*domain.Product, error) {
	result := make(map[int64]*domain.Product)
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			copied := *p
			result[id] = &copied
		}
	}
	return result, nil
}

func (r *fakeProductRepo) Upsert(_ context.Context, _ pgx.Tx, product *domain.Product) error {
	r.upserted = append(r.upserted, *product)
	copied := *product
	r.products[product.ID] = &copied
	return nil
}

type fakeUserRepo struct {
	users    map[int64]domain.Buyer
	upserted []domain.Buyer
}

func (r *fakeUserRepo) GetByID(_ context.Context, _ pgx.Tx, id int64) (*domain.Buyer, error) {
	buyer, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &buyer, nil
}

func (r *fakeUserRepo) Upsert(_ context.Context, _ pgx.Tx, buyer *domain.Buyer) error {
	r.upserted = append(r.upserted, *buyer)
	return nil
}

type fakeOutboxRepo struct {
	events []*outboxDomain.OutboxEvent
}

func (r *fakeOutboxRepo) SaveOutboxEvent(_ context.Context, _ pgx.Tx, event *outboxDomain.OutboxEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *fakeOutboxRepo) GetUnpublishedEvents(_ context.Context, _ pgx.Tx, _ int) ([]*outboxDomain.OutboxEvent, error) {
	return r.events, nil
}

func (r *fakeOutboxRepo) MarkEventPublished(_ context.Context, _ pgx.Tx, _ int64) error {
	return nil
}

func (r *fakeOutboxRepo) MarkEventFailed(_ context.Context, _ pgx.Tx, _ int64, _ string) error {
	return nil
}

type fakeDirectory struct {
	products *fakeProductRepo
	calls    int
}

func (d *fakeDirectory) GetBuyer(_ context.Context, id int64) (*domain.Buyer, error) {
	return &domain.Buyer{ID: id}, nil
}

func (d *fakeDirectory) GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	d.calls++
	return d.products.GetByIDs(ctx, nil, ids)
}

type fakeCache struct {
	buyers   []int64
	products []int64
}

func (c *fakeCache) InvalidateBuyer(_ context.Context, id int64) {
	c.buyers = append(c.buyers, id)
}

func (c *fakeCache) InvalidateProduct(_ context.Context, id int64) {
	c.products = append(c.products, id)
}
