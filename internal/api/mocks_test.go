package api

import (
	"context"
	"net/url"
	"time"

	"storefront-be/internal/address"
	"storefront-be/internal/cart"
	"storefront-be/internal/delivery"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"
	"storefront-be/internal/user"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockUsers struct{ mock.Mock }

func (m *MockUsers) Register(ctx context.Context, in user.RegisterInput) (string, *user.User, error) {
	args := m.Called(ctx, in)
	u, _ := args.Get(1).(*user.User)
	return args.String(0), u, args.Error(2)
}

func (m *MockUsers) Login(ctx context.Context, email, password string) (string, *user.User, error) {
	args := m.Called(ctx, email, password)
	u, _ := args.Get(1).(*user.User)
	return args.String(0), u, args.Error(2)
}

func (m *MockUsers) GetByID(ctx context.Context, id int64) (*user.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

type MockCarts struct{ mock.Mock }

func (m *MockCarts) SetItem(ctx context.Context, p cart.SetItemParams) (*cart.Cart, error) {
	args := m.Called(ctx, p)
	c, _ := args.Get(0).(*cart.Cart)
	return c, args.Error(1)
}

func (m *MockCarts) GetCart(ctx context.Context, userID int64) (*cart.Cart, error) {
	args := m.Called(ctx, userID)
	c, _ := args.Get(0).(*cart.Cart)
	return c, args.Error(1)
}

func (m *MockCarts) Items(ctx context.Context, userID int64) ([]cart.Item, error) {
	args := m.Called(ctx, userID)
	items, _ := args.Get(0).([]cart.Item)
	return items, args.Error(1)
}

func (m *MockCarts) SoftDeleteActive(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

type MockAddresses struct{ mock.Mock }

func (m *MockAddresses) List(ctx context.Context) ([]*address.Address, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]*address.Address)
	return list, args.Error(1)
}

func (m *MockAddresses) Get(ctx context.Context, id int64) (*address.Address, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*address.Address)
	return a, args.Error(1)
}

func (m *MockAddresses) Create(ctx context.Context, in address.CreateAddressInput) (*address.Address, error) {
	args := m.Called(ctx, in)
	a, _ := args.Get(0).(*address.Address)
	return a, args.Error(1)
}

func (m *MockAddresses) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAddresses) SetDefaultAddress(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAddresses) BelongsTo(ctx context.Context, addressID, userID int64) (bool, error) {
	args := m.Called(ctx, addressID, userID)
	return args.Bool(0), args.Error(1)
}

type MockOrders struct{ mock.Mock }

func (m *MockOrders) PlaceOrder(ctx context.Context, in order.PlaceOrderInput) (*order.Order, error) {
	args := m.Called(ctx, in)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}

func (m *MockOrders) Approve(ctx context.Context, publicID string) (*order.Order, error) {
	args := m.Called(ctx, publicID)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}

func (m *MockOrders) RecordPaymentResult(ctx context.Context, publicID, txnID string, result order.PaymentResult) (*order.Order, error) {
	args := m.Called(ctx, publicID, txnID, result)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}

func (m *MockOrders) Cancel(ctx context.Context, publicID string, actor order.Actor) (*order.Order, error) {
	args := m.Called(ctx, publicID, actor)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}

func (m *MockOrders) Ship(ctx context.Context, in order.ShipInput) (*order.Order, *delivery.Assignment, error) {
	args := m.Called(ctx, in)
	o, _ := args.Get(0).(*order.Order)
	a, _ := args.Get(1).(*delivery.Assignment)
	return o, a, args.Error(2)
}

func (m *MockOrders) Reassign(ctx context.Context, publicID string, riderID int64, notes string) (*delivery.Assignment, error) {
	args := m.Called(ctx, publicID, riderID, notes)
	a, _ := args.Get(0).(*delivery.Assignment)
	return a, args.Error(1)
}

func (m *MockOrders) MarkDelivered(ctx context.Context, assignmentID, riderID int64) (*order.Order, error) {
	args := m.Called(ctx, assignmentID, riderID)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}

func (m *MockOrders) DeliverAssignment(ctx context.Context, assignmentID, riderID int64) error {
	return m.Called(ctx, assignmentID, riderID).Error(0)
}

func (m *MockOrders) Get(ctx context.Context, publicID string) (*order.Order, error) {
	args := m.Called(ctx, publicID)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}

func (m *MockOrders) Track(ctx context.Context, publicID string) (*order.TrackingView, error) {
	args := m.Called(ctx, publicID)
	v, _ := args.Get(0).(*order.TrackingView)
	return v, args.Error(1)
}

func (m *MockOrders) ExpireUnpaid(ctx context.Context, olderThan time.Duration) (int, error) {
	args := m.Called(ctx, olderThan)
	return args.Int(0), args.Error(1)
}

type MockPayments struct{ mock.Mock }

func (m *MockPayments) CreateSession(ctx context.Context, in payment.CreateSessionInput) (*payment.Session, error) {
	args := m.Called(ctx, in)
	s, _ := args.Get(0).(*payment.Session)
	return s, args.Error(1)
}

func (m *MockPayments) HandleCallback(ctx context.Context, kind payment.CallbackKind, form url.Values) string {
	return m.Called(ctx, kind, form).String(0)
}

func (m *MockPayments) Validate(ctx context.Context, valID, tranID string, amount decimal.Decimal) (*payment.Validation, error) {
	args := m.Called(ctx, valID, tranID, amount)
	v, _ := args.Get(0).(*payment.Validation)
	return v, args.Error(1)
}

type MockDeliveries struct{ mock.Mock }

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

type MockResolver struct{ mock.Mock }

func (m *MockResolver) AssignmentID(ctx context.Context, publicID string) (int64, error) {
	args := m.Called(ctx, publicID)
	return args.Get(0).(int64), args.Error(1)
}
