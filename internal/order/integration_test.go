//go:build integration

package order_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront-be/internal/address"
	"storefront-be/internal/apperr"
	"storefront-be/internal/cart"
	"storefront-be/internal/coupon"
	"storefront-be/internal/db"
	"storefront-be/internal/delivery"
	"storefront-be/internal/idgen"
	"storefront-be/internal/inventory"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type LifecycleSuite struct {
	suite.Suite
	container  *postgres.PostgresContainer
	db         *sql.DB
	orders     order.Service
	deliveries delivery.Manager
}

func (s *LifecycleSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("storefront"),
		postgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60*time.Second)),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.db, err = sql.Open("postgres", dsn)
	s.Require().NoError(err)
	s.db.SetMaxOpenConns(20)

	schema, err := os.ReadFile(filepath.Join("..", "..", "migrations", "20240101000000_init.sql"))
	s.Require().NoError(err)
	up, _, _ := strings.Cut(strings.TrimPrefix(string(schema), "-- +migrate Up"), "-- +migrate Down")
	_, err = s.db.ExecContext(ctx, up)
	s.Require().NoError(err)

	tx := db.NewTxManager(s.db)
	ids := idgen.New()
	ledger := inventory.NewLedger(inventory.NewRepository(s.db))
	s.deliveries = delivery.NewManager(tx, delivery.NewRepository(s.db), ids)
	s.orders = order.NewService(order.Dependencies{
		Tx:             tx,
		Repo:           order.NewRepository(s.db),
		Ledger:         ledger,
		Coupons:        coupon.NewEngine(coupon.NewRepository(s.db)),
		Carts:          cart.NewService(cart.NewRepository(s.db), ledger),
		Deliveries:     s.deliveries,
		Addresses:      address.NewService(tx, address.NewRepository(s.db)),
		PaymentMethods: payment.NewRepository(s.db),
		IDs:            ids,
	}, order.Sinks{})
	s.deliveries.SetCompleter(s.orders)
}

func (s *LifecycleSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func (s *LifecycleSuite) SetupTest() {
	_, err := s.db.Exec(`TRUNCATE users, products, coupons RESTART IDENTITY CASCADE`)
	s.Require().NoError(err)
}

// customer inserts a user with one address and returns both ids.
func (s *LifecycleSuite) customer(email string) (userID, addressID int64) {
	s.Require().NoError(s.db.QueryRow(
		`INSERT INTO users (email, password_hash, full_name) VALUES ($1, 'x', $1) RETURNING id`, email,
	).Scan(&userID))
	s.Require().NoError(s.db.QueryRow(`
		INSERT INTO addresses (user_id, name, phone, address_line1, city, postal_code)
		VALUES ($1, 'Home', '01700000000', 'Road 1', 'Dhaka', '1207') RETURNING id
	`, userID).Scan(&addressID))
	return userID, addressID
}

func (s *LifecycleSuite) product(name string, price string, stock int) int64 {
	var id int64
	s.Require().NoError(s.db.QueryRow(
		`INSERT INTO products (name, price, stock) VALUES ($1, $2, $3) RETURNING id`, name, price, stock,
	).Scan(&id))
	return id
}

func (s *LifecycleSuite) stock(productID int64) int {
	var n int
	s.Require().NoError(s.db.QueryRow(`SELECT stock FROM products WHERE id = $1`, productID).Scan(&n))
	return n
}

func (s *LifecycleSuite) TestConcurrentBuyersNeverOversell() {
	ctx := context.Background()
	productID := s.product("Kettle", "100.00", 3)

	const buyers = 8
	type buyer struct{ user, addr int64 }
	all := make([]buyer, buyers)
	for i := range all {
		all[i].user, all[i].addr = s.customer("buyer" + string(rune('a'+i)) + "@example.com")
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		placed   int
		shortage int
	)
	for _, b := range all {
		wg.Add(1)
		go func(b buyer) {
			defer wg.Done()
			_, err := s.orders.PlaceOrder(ctx, order.PlaceOrderInput{
				CustomerID: b.user,
				AddressID:  b.addr,
				Items:      []order.LineInput{{ProductID: productID, Quantity: 1}},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed++
			case errors.Is(err, apperr.ErrInsufficientStock):
				shortage++
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}(b)
	}
	wg.Wait()

	s.Equal(3, placed)
	s.Equal(buyers-3, shortage)
	s.Equal(0, s.stock(productID))
}

func (s *LifecycleSuite) TestCancelRestoresStockOnce() {
	ctx := context.Background()
	userID, addrID := s.customer("c1@example.com")
	productID := s.product("Mug", "250.20", 5)

	o, err := s.orders.PlaceOrder(ctx, order.PlaceOrderInput{
		CustomerID: userID,
		AddressID:  addrID,
		Items:      []order.LineInput{{ProductID: productID, Quantity: 2}},
	})
	s.Require().NoError(err)
	s.Equal(3, s.stock(productID))
	s.Equal("500.40", o.TotalPrice.StringFixed(2))

	actor := order.Actor{Kind: order.ActorCustomer, UserID: userID}
	_, err = s.orders.Cancel(ctx, o.PublicID, actor)
	s.Require().NoError(err)
	_, err = s.orders.Cancel(ctx, o.PublicID, actor)
	s.Require().NoError(err)

	s.Equal(5, s.stock(productID))
}

func (s *LifecycleSuite) rider(email string) int64 {
	var userID, riderID int64
	s.Require().NoError(s.db.QueryRow(
		`INSERT INTO users (email, password_hash, full_name, role) VALUES ($1, 'x', 'Rafi', 'rider') RETURNING id`, email,
	).Scan(&userID))
	s.Require().NoError(s.db.QueryRow(
		`INSERT INTO riders (user_id, vehicle_type, vehicle_number, delivery_zones) VALUES ($1, 'bike', 'DHK-1', '{dhaka}') RETURNING id`,
		userID,
	).Scan(&riderID))
	return riderID
}

func (s *LifecycleSuite) TestAdminCancelDuringShipping() {
	ctx := context.Background()
	userID, addrID := s.customer("c3@example.com")
	productID := s.product("Chair", "1200.00", 4)
	riderID := s.rider("r2@example.com")

	o, err := s.orders.PlaceOrder(ctx, order.PlaceOrderInput{
		CustomerID: userID,
		AddressID:  addrID,
		Items:      []order.LineInput{{ProductID: productID, Quantity: 2}},
	})
	s.Require().NoError(err)
	_, err = s.orders.Approve(ctx, o.PublicID)
	s.Require().NoError(err)
	_, a, err := s.orders.Ship(ctx, order.ShipInput{PublicID: o.PublicID, Courier: "in-house", RiderID: riderID})
	s.Require().NoError(err)
	_, err = s.deliveries.Accept(ctx, a.ID, riderID, nil)
	s.Require().NoError(err)

	o, err = s.orders.Cancel(ctx, o.PublicID, order.Actor{Kind: order.ActorAdmin})
	s.Require().NoError(err)
	s.Equal(order.StatusCancelled, o.Status)
	s.Equal(4, s.stock(productID))

	a, err = s.deliveries.Get(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(delivery.StatusCancelled, a.Status)

	_, err = s.orders.MarkDelivered(ctx, a.ID, riderID)
	s.ErrorIs(err, apperr.ErrIllegalTransition)
}

func (s *LifecycleSuite) TestPaidOrderIsDelivered() {
	ctx := context.Background()
	userID, addrID := s.customer("c2@example.com")
	productID := s.product("Lamp", "300.00", 2)
	riderID := s.rider("r1@example.com")

	o, err := s.orders.PlaceOrder(ctx, order.PlaceOrderInput{
		CustomerID: userID,
		AddressID:  addrID,
		Items:      []order.LineInput{{ProductID: productID, Quantity: 1}},
	})
	s.Require().NoError(err)

	txn := idgen.New().TransactionID()
	o, err = s.orders.RecordPaymentResult(ctx, o.PublicID, txn, order.PaymentValid)
	s.Require().NoError(err)
	s.Equal(order.StatusApproved, o.Status)

	// a replayed confirmation is absorbed
	_, err = s.orders.RecordPaymentResult(ctx, o.PublicID, txn, order.PaymentValid)
	s.Require().NoError(err)

	o, a, err := s.orders.Ship(ctx, order.ShipInput{PublicID: o.PublicID, Courier: "in-house", RiderID: riderID})
	s.Require().NoError(err)
	s.Equal(order.StatusShipped, o.Status)
	s.Equal(delivery.StatusPending, a.Status)

	_, err = s.deliveries.Accept(ctx, a.ID, riderID, nil)
	s.Require().NoError(err)
	_, err = s.deliveries.UpdateStatus(ctx, a.ID, riderID, delivery.StatusPickedUp, "")
	s.Require().NoError(err)
	_, err = s.deliveries.UpdateStatus(ctx, a.ID, riderID, delivery.StatusInTransit, "")
	s.Require().NoError(err)

	o, err = s.orders.MarkDelivered(ctx, a.ID, riderID)
	s.Require().NoError(err)
	s.Equal(order.StatusDelivered, o.Status)

	view, err := s.orders.Track(ctx, o.PublicID)
	s.Require().NoError(err)
	s.Equal(order.StatusDelivered, view.Status)
	s.Require().NotNil(view.Delivery)
	s.Equal("delivered", view.Delivery.Status)

	var total int
	s.Require().NoError(s.db.QueryRow(`SELECT total_deliveries FROM riders WHERE id = $1`, riderID).Scan(&total))
	s.Equal(1, total)

	_, err = s.orders.Cancel(ctx, o.PublicID, order.Actor{Kind: order.ActorAdmin})
	s.ErrorIs(err, apperr.ErrIllegalTransition)
}

func (s *LifecycleSuite) coupon(code string, percent, limit int) int64 {
	var id int64
	s.Require().NoError(s.db.QueryRow(`
		INSERT INTO coupons (code, discount_kind, value, usage_limit, valid_from, valid_until)
		VALUES ($1, 'percentage', $2, $3, NOW() - INTERVAL '1 day', NOW() + INTERVAL '1 day')
		RETURNING id
	`, code, percent, limit).Scan(&id))
	return id
}

func (s *LifecycleSuite) couponUsage(couponID int64) (used, redemptions int) {
	s.Require().NoError(s.db.QueryRow(`SELECT used FROM coupons WHERE id = $1`, couponID).Scan(&used))
	s.Require().NoError(s.db.QueryRow(
		`SELECT COUNT(*) FROM coupon_redemptions WHERE coupon_id = $1`, couponID,
	).Scan(&redemptions))
	return used, redemptions
}

func (s *LifecycleSuite) TestCouponSingleUse() {
	ctx := context.Background()
	couponID := s.coupon("SAVE20", 20, 5)
	productID := s.product("Blender", "100.00", 10)
	c1, addr1 := s.customer("c1@example.com")
	c2, addr2 := s.customer("c2@example.com")

	place := func(userID, addrID int64) (*order.Order, error) {
		return s.orders.PlaceOrder(ctx, order.PlaceOrderInput{
			CustomerID: userID,
			AddressID:  addrID,
			Items:      []order.LineInput{{ProductID: productID, Quantity: 1}},
			CouponCode: "save20",
		})
	}

	o, err := place(c1, addr1)
	s.Require().NoError(err)
	s.Equal("80.00", o.TotalPrice.StringFixed(2))
	s.Equal("20.00", o.Discount.StringFixed(2))

	_, err = place(c1, addr1)
	s.ErrorIs(err, apperr.ErrAlreadyRedeemed)
	s.Equal(9, s.stock(productID), "refused order must not keep stock")

	_, err = place(c2, addr2)
	s.Require().NoError(err)

	used, redemptions := s.couponUsage(couponID)
	s.Equal(2, used)
	s.Equal(used, redemptions)
}

func (s *LifecycleSuite) TestCouponConcurrentSameCustomer() {
	ctx := context.Background()
	couponID := s.coupon("SAVE20", 20, 5)
	productID := s.product("Toaster", "100.00", 10)
	userID, addrID := s.customer("c1@example.com")

	const attempts = 2
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.orders.PlaceOrder(ctx, order.PlaceOrderInput{
				CustomerID: userID,
				AddressID:  addrID,
				Items:      []order.LineInput{{ProductID: productID, Quantity: 1}},
				CouponCode: "SAVE20",
			})
		}(i)
	}
	wg.Wait()

	placed := 0
	for _, err := range errs {
		if err == nil {
			placed++
			continue
		}
		s.ErrorIs(err, apperr.ErrAlreadyRedeemed)
	}
	s.Equal(1, placed)

	used, redemptions := s.couponUsage(couponID)
	s.Equal(1, used)
	s.Equal(1, redemptions)
	s.Equal(9, s.stock(productID))
}

func (s *LifecycleSuite) TestCartCountsAdditions() {
	ctx := context.Background()
	userID, _ := s.customer("c1@example.com")
	productID := s.product("Kettle", "100.00", 5)
	carts := cart.NewService(cart.NewRepository(s.db), inventory.NewLedger(inventory.NewRepository(s.db)))

	_, err := carts.SetItem(ctx, cart.SetItemParams{UserID: userID, ProductID: productID, Quantity: 1})
	s.Require().NoError(err)
	_, err = carts.SetItem(ctx, cart.SetItemParams{UserID: userID, ProductID: productID, Quantity: 3})
	s.Require().NoError(err)

	var added int
	s.Require().NoError(s.db.QueryRow(
		`SELECT add_to_cart_count FROM products WHERE id = $1`, productID,
	).Scan(&added))
	s.Equal(1, added)
}

func (s *LifecycleSuite) TestSchemaRejectsBadData() {
	userID, _ := s.customer("c1@example.com")

	_, err := s.db.Exec(`
		INSERT INTO coupons (code, discount_kind, value, usage_limit, valid_from, valid_until)
		VALUES ('HUGE', 'percentage', 150, 5, NOW(), NOW() + INTERVAL '1 day')`)
	s.Error(err, "percentage over 100")

	_, err = s.db.Exec(`
		INSERT INTO coupons (code, discount_kind, value, usage_limit, valid_from, valid_until)
		VALUES ('NONE', 'fixed', 10, 0, NOW(), NOW() + INTERVAL '1 day')`)
	s.Error(err, "zero usage limit")

	_, err = s.db.Exec(`INSERT INTO payment_methods (user_id, kind, is_default) VALUES ($1, 'card', TRUE)`, userID)
	s.Require().NoError(err)
	_, err = s.db.Exec(`INSERT INTO payment_methods (user_id, kind, is_default) VALUES ($1, 'cod', TRUE)`, userID)
	s.True(apperr.IsUniqueViolation(err, "payment_methods_one_default_per_user"), "second default: %v", err)
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleSuite))
}
