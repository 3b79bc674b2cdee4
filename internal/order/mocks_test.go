package order

import (
	"context"
	"time"

	"storefront-be/internal/cart"
	"storefront-be/internal/coupon"
	"storefront-be/internal/delivery"
	"storefront-be/internal/events"
	"storefront-be/internal/inventory"
	"storefront-be/internal/notification"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) InsertOrder(ctx context.Context, o *Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockRepository) InsertItems(ctx context.Context, orderID int64, items []Item) error {
	return m.Called(ctx, orderID, items).Error(0)
}

func (m *MockRepository) GetByPublicID(ctx context.Context, publicID string) (*Order, error) {
	args := m.Called(ctx, publicID)
	o, _ := args.Get(0).(*Order)
	return o, args.Error(1)
}

func (m *MockRepository) LockByPublicID(ctx context.Context, publicID string) (*Order, error) {
	args := m.Called(ctx, publicID)
	o, _ := args.Get(0).(*Order)
	return o, args.Error(1)
}

func (m *MockRepository) LockByID(ctx context.Context, id int64) (*Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*Order)
	return o, args.Error(1)
}

func (m *MockRepository) ListItems(ctx context.Context, orderID int64) ([]Item, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]Item)
	return items, args.Error(1)
}

func (m *MockRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *MockRepository) SetGatewayTransaction(ctx context.Context, id int64, txnID string) error {
	return m.Called(ctx, id, txnID).Error(0)
}

func (m *MockRepository) UpsertShipping(ctx context.Context, orderID int64, info *ShippingInfo) error {
	return m.Called(ctx, orderID, info).Error(0)
}

func (m *MockRepository) GetShipping(ctx context.Context, orderID int64) (*ShippingInfo, error) {
	args := m.Called(ctx, orderID)
	info, _ := args.Get(0).(*ShippingInfo)
	return info, args.Error(1)
}

func (m *MockRepository) Recipient(ctx context.Context, orderID int64) (*Recipient, error) {
	args := m.Called(ctx, orderID)
	rc, _ := args.Get(0).(*Recipient)
	return rc, args.Error(1)
}

func (m *MockRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]string, error) {
	args := m.Called(ctx, before, limit)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) ReserveAndDecrement(ctx context.Context, productID int64, qty int) (*inventory.Product, error) {
	args := m.Called(ctx, productID, qty)
	p, _ := args.Get(0).(*inventory.Product)
	return p, args.Error(1)
}

func (m *MockLedger) Restore(ctx context.Context, orderID int64) error {
	return m.Called(ctx, orderID).Error(0)
}

func (m *MockLedger) ValidateCartQuantity(ctx context.Context, productID int64, requested int) error {
	return m.Called(ctx, productID, requested).Error(0)
}

type MockCoupons struct {
	mock.Mock
}

func (m *MockCoupons) Validate(ctx context.Context, code string, customerID int64, amount decimal.Decimal, now time.Time) (*coupon.Quote, error) {
	args := m.Called(ctx, code, customerID, amount, now)
	q, _ := args.Get(0).(*coupon.Quote)
	return q, args.Error(1)
}

func (m *MockCoupons) Redeem(ctx context.Context, couponID, customerID, orderID int64) (int64, error) {
	args := m.Called(ctx, couponID, customerID, orderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCoupons) Release(ctx context.Context, orderID int64) error {
	return m.Called(ctx, orderID).Error(0)
}

type MockCarts struct {
	mock.Mock
}

func (m *MockCarts) Items(ctx context.Context, userID int64) ([]cart.Item, error) {
	args := m.Called(ctx, userID)
	items, _ := args.Get(0).([]cart.Item)
	return items, args.Error(1)
}

func (m *MockCarts) SoftDeleteActive(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

type MockDeliveries struct {
	mock.Mock
}

func (m *MockDeliveries) Assign(ctx context.Context, in delivery.AssignInput) (*delivery.Assignment, error) {
	args := m.Called(ctx, in)
	a, _ := args.Get(0).(*delivery.Assignment)
	return a, args.Error(1)
}

func (m *MockDeliveries) Accept(ctx context.Context, assignmentID, riderID int64, eta *time.Time) (*delivery.Assignment, error) {
	args := m.Called(ctx, assignmentID, riderID, eta)
	a, _ := args.Get(0).(*delivery.Assignment)
	return a, args.Error(1)
}

func (m *MockDeliveries) Reject(ctx context.Context, assignmentID, riderID int64, reason string) (*delivery.Assignment, error) {
	args := m.Called(ctx, assignmentID, riderID, reason)
	a, _ := args.Get(0).(*delivery.Assignment)
	return a, args.Error(1)
}

func (m *MockDeliveries) UpdateStatus(ctx context.Context, assignmentID, riderID int64, to delivery.Status, notes string) (*delivery.Assignment, error) {
	args := m.Called(ctx, assignmentID, riderID, to, notes)
	a, _ := args.Get(0).(*delivery.Assignment)
	return a, args.Error(1)
}

func (m *MockDeliveries) Complete(ctx context.Context, assignmentID, riderID int64) (*delivery.Assignment, error) {
	args := m.Called(ctx, assignmentID, riderID)
	a, _ := args.Get(0).(*delivery.Assignment)
	return a, args.Error(1)
}

func (m *MockDeliveries) CancelActive(ctx context.Context, orderID int64) (*delivery.Assignment, error) {
	args := m.Called(ctx, orderID)
	a, _ := args.Get(0).(*delivery.Assignment)
	return a, args.Error(1)
}

func (m *MockDeliveries) Get(ctx context.Context, assignmentID int64) (*delivery.Assignment, error) {
	args := m.Called(ctx, assignmentID)
	a, _ := args.Get(0).(*delivery.Assignment)
	return a, args.Error(1)
}

func (m *MockDeliveries) Live(ctx context.Context, orderID int64) (*delivery.Assignment, *delivery.Rider, error) {
	args := m.Called(ctx, orderID)
	a, _ := args.Get(0).(*delivery.Assignment)
	r, _ := args.Get(1).(*delivery.Rider)
	return a, r, args.Error(2)
}

func (m *MockDeliveries) RiderForUser(ctx context.Context, userID int64) (*delivery.Rider, error) {
	args := m.Called(ctx, userID)
	r, _ := args.Get(0).(*delivery.Rider)
	return r, args.Error(1)
}

func (m *MockDeliveries) SetCompleter(c delivery.OrderCompleter) {
	m.Called(c)
}

type MockAddresses struct {
	mock.Mock
}

func (m *MockAddresses) BelongsTo(ctx context.Context, addressID, userID int64) (bool, error) {
	args := m.Called(ctx, addressID, userID)
	return args.Bool(0), args.Error(1)
}

type MockPaymentMethods struct {
	mock.Mock
}

func (m *MockPaymentMethods) PaymentMethodBelongsTo(ctx context.Context, methodID, userID int64) (bool, error) {
	args := m.Called(ctx, methodID, userID)
	return args.Bool(0), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Enqueue(ctx context.Context, msg notification.Message) bool {
	return m.Called(ctx, msg).Bool(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishOrderEvent(ctx context.Context, e events.OrderEvent) error {
	return m.Called(ctx, e).Error(0)
}
