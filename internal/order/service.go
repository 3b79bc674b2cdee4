package order

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"storefront-be/internal/apperr"
	"storefront-be/internal/cache"
	"storefront-be/internal/cart"
	"storefront-be/internal/coupon"
	"storefront-be/internal/db"
	"storefront-be/internal/delivery"
	"storefront-be/internal/events"
	"storefront-be/internal/idgen"
	"storefront-be/internal/inventory"
	"storefront-be/internal/logger"
	"storefront-be/internal/metrics"
	"storefront-be/internal/notification"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Service interface {
	PlaceOrder(ctx context.Context, in PlaceOrderInput) (*Order, error)
	Approve(ctx context.Context, publicID string) (*Order, error)
	RecordPaymentResult(ctx context.Context, publicID, txnID string, result PaymentResult) (*Order, error)
	Cancel(ctx context.Context, publicID string, actor Actor) (*Order, error)
	Ship(ctx context.Context, in ShipInput) (*Order, *delivery.Assignment, error)
	Reassign(ctx context.Context, publicID string, riderID int64, notes string) (*delivery.Assignment, error)
	MarkDelivered(ctx context.Context, assignmentID, riderID int64) (*Order, error)

	// DeliverAssignment lets the delivery manager complete an order.
	DeliverAssignment(ctx context.Context, assignmentID, riderID int64) error

	Get(ctx context.Context, publicID string) (*Order, error)
	Track(ctx context.Context, publicID string) (*TrackingView, error)
	ExpireUnpaid(ctx context.Context, olderThan time.Duration) (int, error)
}

// CartStore is the slice of the cart service an order needs.
type CartStore interface {
	Items(ctx context.Context, userID int64) ([]cart.Item, error)
	SoftDeleteActive(ctx context.Context, userID int64) error
}

type AddressChecker interface {
	BelongsTo(ctx context.Context, addressID, userID int64) (bool, error)
}

type PaymentMethodChecker interface {
	PaymentMethodBelongsTo(ctx context.Context, methodID, userID int64) (bool, error)
}

type Notifier interface {
	Enqueue(ctx context.Context, msg notification.Message) bool
}

// Sinks receive committed changes. Nil fields fall back to no-ops.
type Sinks struct {
	Notifier Notifier
	Events   events.Publisher
	Cache    cache.Store
	CacheTTL time.Duration
}

type Dependencies struct {
	Tx             db.Transactor
	Repo           Repository
	Ledger         inventory.Ledger
	Coupons        coupon.Engine
	Carts          CartStore
	Deliveries     delivery.Manager
	Addresses      AddressChecker
	PaymentMethods PaymentMethodChecker
	IDs            *idgen.Generator
}

type service struct {
	tx             db.Transactor
	repo           Repository
	ledger         inventory.Ledger
	coupons        coupon.Engine
	carts          CartStore
	deliveries     delivery.Manager
	addresses      AddressChecker
	paymentMethods PaymentMethodChecker
	ids            *idgen.Generator

	notifier Notifier
	events   events.Publisher
	cache    cache.Store
	cacheTTL time.Duration

	now func() time.Time
}

const (
	publishTimeout = 3 * time.Second
	expireBatch    = 100
)

func NewService(deps Dependencies, sinks Sinks) Service {
	s := &service{
		tx:             deps.Tx,
		repo:           deps.Repo,
		ledger:         deps.Ledger,
		coupons:        deps.Coupons,
		carts:          deps.Carts,
		deliveries:     deps.Deliveries,
		addresses:      deps.Addresses,
		paymentMethods: deps.PaymentMethods,
		ids:            deps.IDs,
		notifier:       sinks.Notifier,
		events:         sinks.Events,
		cache:          sinks.Cache,
		cacheTTL:       sinks.CacheTTL,
		now:            time.Now,
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.cache == nil {
		s.cache = cache.Nop{}
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = time.Minute
	}
	if s.ids == nil {
		s.ids = idgen.New()
	}
	return s
}

func trackKey(publicID string) string {
	return "track:" + publicID
}

// observe records outcome and latency of one command.
func observe(operation string, timer *metrics.Timer, err error) {
	metrics.RecordOrderOperation(operation, err == nil)
	timer.ObserveOperation(operation)
}

func (s *service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (o *Order, err error) {
	timer := metrics.StartTimer()
	defer func() { observe("place", timer, err) }()

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "PlaceOrder"),
		zap.Int64("customer_id", in.CustomerID),
	)

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// 1. Ownership
		if err := s.checkOwnership(ctx, in); err != nil {
			return err
		}

		// 2. Lines, from the request or the active cart
		lines := in.Items
		if len(lines) == 0 {
			cartItems, err := s.carts.Items(ctx, in.CustomerID)
			if err != nil {
				return err
			}
			for _, it := range cartItems {
				lines = append(lines, LineInput{ProductID: it.ProductID, Quantity: it.Quantity})
			}
		}
		lines, err := mergeLines(lines)
		if err != nil {
			return err
		}

		// 3. Reserve stock in ascending product id, priced from the catalog
		items := make([]Item, 0, len(lines))
		subtotal := decimal.Zero
		for _, l := range lines {
			p, err := s.ledger.ReserveAndDecrement(ctx, l.ProductID, l.Quantity)
			if err != nil {
				return err
			}
			items = append(items, Item{
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    l.Quantity,
				UnitPrice:   p.Price,
			})
			subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
		subtotal = subtotal.Round(2)

		// 4. Coupon, re-validated inside the transaction
		var quote *coupon.Quote
		if code := strings.TrimSpace(in.CouponCode); code != "" {
			quote, err = s.coupons.Validate(ctx, code, in.CustomerID, subtotal, s.now())
			if err != nil {
				return err
			}
		}

		o = &Order{
			CustomerID:      in.CustomerID,
			Subtotal:        subtotal,
			Discount:        decimal.Zero,
			TotalPrice:      subtotal,
			AddressID:       in.AddressID,
			PaymentMethodID: in.PaymentMethodID,
			Status:          StatusPending,
			Items:           items,
		}
		if quote != nil {
			o.CouponID = &quote.CouponID
			o.Discount = quote.DiscountAmount
			o.TotalPrice = quote.FinalAmount
		}

		// 5. Persist
		if _, err := idgen.InsertWithRetry(ctx, publicIDConstraint, s.ids.OrderID, func(id string) error {
			o.PublicID = id
			return s.repo.InsertOrder(ctx, o)
		}); err != nil {
			return err
		}
		if err := s.repo.InsertItems(ctx, o.ID, items); err != nil {
			return err
		}
		if quote != nil {
			if _, err := s.coupons.Redeem(ctx, quote.CouponID, in.CustomerID, o.ID); err != nil {
				return err
			}
		}

		// 6. The cart has become an order
		if err := s.carts.SoftDeleteActive(ctx, in.CustomerID); err != nil {
			return err
		}

		s.afterTransition(ctx, o, "", "place_order", ActorCustomer)
		return nil
	})
	if err != nil {
		log.Info("order not placed", zap.Error(err))
		return nil, err
	}

	log.Info("order placed",
		zap.String("order_id", o.PublicID),
		zap.String("total", o.TotalPrice.StringFixed(2)),
	)
	return o, nil
}

func (s *service) checkOwnership(ctx context.Context, in PlaceOrderInput) error {
	ok, err := s.addresses.BelongsTo(ctx, in.AddressID, in.CustomerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAddressNotOwned
	}

	if in.PaymentMethodID == nil {
		return nil
	}
	ok, err = s.paymentMethods.PaymentMethodBelongsTo(ctx, *in.PaymentMethodID, in.CustomerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPaymentMethodNotOwned
	}
	return nil
}

// mergeLines folds repeated products together and sorts by product id, the
// lock order for stock rows.
func mergeLines(lines []LineInput) ([]LineInput, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}

	qty := make(map[int64]int, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		qty[l.ProductID] += l.Quantity
	}

	merged := make([]LineInput, 0, len(qty))
	for id, q := range qty {
		merged = append(merged, LineInput{ProductID: id, Quantity: q})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })
	return merged, nil
}

// apply moves a locked order along ev and schedules the post-commit work.
func (s *service) apply(ctx context.Context, o *Order, ev Event, actor ActorKind) error {
	next, err := Transition(o.Status, ev)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, o.ID, next); err != nil {
		return err
	}

	from := o.Status
	o.Status = next
	s.afterTransition(ctx, o, from, ev, actor)
	return nil
}

func (s *service) afterTransition(ctx context.Context, o *Order, from Status, ev Event, actor ActorKind) {
	e := events.OrderEvent{
		OrderID:    o.PublicID,
		From:       string(from),
		To:         string(o.Status),
		Event:      string(ev),
		Actor:      string(actor),
		OccurredAt: s.now().UTC(),
	}

	db.AfterCommit(ctx, func() {
		log := logger.FromCtx(ctx).With(zap.String("order_id", e.OrderID))

		if from != "" {
			metrics.RecordTransition(e.From, e.To)
		}

		if err := s.cache.Delete(ctx, trackKey(e.OrderID)); err != nil {
			log.Warn("failed to invalidate tracking cache", zap.Error(err))
		}

		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := s.events.PublishOrderEvent(pctx, e); err != nil {
			log.Warn("failed to publish order event", zap.String("routing_key", e.RoutingKey()), zap.Error(err))
		}
	})
}

func (s *service) Approve(ctx context.Context, publicID string) (o *Order, err error) {
	timer := metrics.StartTimer()
	defer func() { observe("approve", timer, err) }()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err = s.repo.LockByPublicID(ctx, publicID)
		if err != nil {
			return err
		}
		return s.apply(ctx, o, EventAdminApprove, ActorAdmin)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *service) RecordPaymentResult(ctx context.Context, publicID, txnID string, result PaymentResult) (o *Order, err error) {
	timer := metrics.StartTimer()
	defer func() { observe("payment_result", timer, err) }()

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "RecordPaymentResult"),
		zap.String("order_id", publicID),
		zap.String("tran_id", txnID),
		zap.String("result", string(result)),
	)

	if result != PaymentValid && result != PaymentInvalid {
		return nil, ErrUnknownResult
	}
	if result == PaymentValid && txnID == "" {
		return nil, ErrMissingTxnID
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err = s.repo.LockByPublicID(ctx, publicID)
		if err != nil {
			return err
		}

		if result == PaymentInvalid {
			if o.Status != StatusPending {
				return illegal(o.Status, EventPaymentFailed)
			}
			return s.cancelLocked(ctx, o, EventPaymentFailed, ActorSystem)
		}

		switch o.Status {
		case StatusPending:
			if o.GatewayTransactionID != nil {
				if *o.GatewayTransactionID != txnID {
					return ErrTransactionConflict
				}
			} else {
				if err := s.repo.SetGatewayTransaction(ctx, o.ID, txnID); err != nil {
					return err
				}
				o.GatewayTransactionID = &txnID
			}
			return s.apply(ctx, o, EventPaymentValidated, ActorSystem)

		case StatusApproved, StatusShipped, StatusDelivered:
			if o.GatewayTransactionID == nil {
				return illegal(o.Status, EventPaymentValidated)
			}
			if *o.GatewayTransactionID != txnID {
				return ErrTransactionConflict
			}
			log.Info("duplicate payment confirmation ignored")
			return nil

		default:
			return illegal(o.Status, EventPaymentValidated)
		}
	})
	if err != nil {
		log.Info("payment result not applied", zap.Error(err))
		return nil, err
	}
	return o, nil
}

func (s *service) Cancel(ctx context.Context, publicID string, actor Actor) (o *Order, err error) {
	timer := metrics.StartTimer()
	defer func() { observe("cancel", timer, err) }()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err = s.repo.LockByPublicID(ctx, publicID)
		if err != nil {
			return err
		}
		if actor.Kind == ActorCustomer && o.CustomerID != actor.UserID {
			return ErrNotOwner
		}
		if o.Status == StatusCancelled {
			return nil
		}
		return s.cancelLocked(ctx, o, cancelEvent(actor.Kind), actor.Kind)
	})
	if err != nil {
		return nil, err
	}

	logger.FromCtx(ctx).Info("order cancelled",
		zap.String("layer", "service"),
		zap.String("order_id", publicID),
		zap.String("actor", string(actor.Kind)),
	)
	return o, nil
}

// cancelLocked puts stock and coupon back and stops any delivery. The
// transition runs first so a second cancel can never restore twice.
func (s *service) cancelLocked(ctx context.Context, o *Order, ev Event, actor ActorKind) error {
	if err := s.apply(ctx, o, ev, actor); err != nil {
		return err
	}
	if err := s.ledger.Restore(ctx, o.ID); err != nil {
		return err
	}
	if err := s.coupons.Release(ctx, o.ID); err != nil {
		return err
	}
	if _, err := s.deliveries.CancelActive(ctx, o.ID); err != nil {
		return err
	}
	return nil
}

func (s *service) Ship(ctx context.Context, in ShipInput) (o *Order, a *delivery.Assignment, err error) {
	timer := metrics.StartTimer()
	defer func() { observe("ship", timer, err) }()

	in.Courier = strings.TrimSpace(in.Courier)
	in.TrackingID = strings.TrimSpace(in.TrackingID)
	if in.Courier == "" || in.TrackingID == "" || in.RiderID <= 0 {
		return nil, nil, ErrShippingRequired
	}

	var (
		info *ShippingInfo
		rc   *Recipient
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err = s.repo.LockByPublicID(ctx, in.PublicID)
		if err != nil {
			return err
		}
		if _, err := Transition(o.Status, EventAdminShip); err != nil {
			return err
		}

		a, err = s.deliveries.Assign(ctx, delivery.AssignInput{
			OrderID:           o.ID,
			RiderID:           in.RiderID,
			EstimatedDelivery: in.EstimatedDelivery,
			Notes:             in.Notes,
		})
		if err != nil {
			return err
		}

		info = &ShippingInfo{
			Courier:           in.Courier,
			TrackingID:        in.TrackingID,
			EstimatedDelivery: a.EstimatedDelivery,
			Notes:             in.Notes,
		}
		if err := s.repo.UpsertShipping(ctx, o.ID, info); err != nil {
			return err
		}

		rc, err = s.repo.Recipient(ctx, o.ID)
		if err != nil {
			return err
		}

		if err := s.apply(ctx, o, EventAdminShip, ActorAdmin); err != nil {
			return err
		}

		db.AfterCommit(ctx, func() {
			s.notify(ctx, notification.Message{
				Kind:              notification.KindShipped,
				To:                rc.Email,
				CustomerName:      rc.Name,
				OrderPublicID:     o.PublicID,
				Courier:           info.Courier,
				TrackingID:        info.TrackingID,
				EstimatedDelivery: info.EstimatedDelivery,
			})
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	logger.FromCtx(ctx).Info("order shipped",
		zap.String("layer", "service"),
		zap.String("order_id", o.PublicID),
		zap.String("assignment_id", a.PublicID),
	)
	return o, a, nil
}

func (s *service) notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	s.notifier.Enqueue(ctx, msg)
}

// Reassign hands a shipped order to another rider once the previous
// assignment was rejected.
func (s *service) Reassign(ctx context.Context, publicID string, riderID int64, notes string) (*delivery.Assignment, error) {
	var a *delivery.Assignment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.LockByPublicID(ctx, publicID)
		if err != nil {
			return err
		}
		if o.Status != StatusShipped {
			return illegal(o.Status, EventAdminShip)
		}
		a, err = s.deliveries.Assign(ctx, delivery.AssignInput{OrderID: o.ID, RiderID: riderID, Notes: notes})
		if err != nil {
			return err
		}

		db.AfterCommit(ctx, func() {
			if err := s.cache.Delete(ctx, trackKey(publicID)); err != nil {
				logger.FromCtx(ctx).Warn("failed to invalidate tracking cache", zap.Error(err))
			}
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *service) MarkDelivered(ctx context.Context, assignmentID, riderID int64) (o *Order, err error) {
	timer := metrics.StartTimer()
	defer func() { observe("deliver", timer, err) }()

	var orderID int64
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.deliveries.Get(ctx, assignmentID)
		if err != nil {
			return err
		}
		orderID = a.OrderID

		o, err = s.repo.LockByID(ctx, orderID)
		if err != nil {
			return err
		}
		if _, err := Transition(o.Status, EventRiderDelivered); err != nil {
			return err
		}

		done, err := s.deliveries.Complete(ctx, assignmentID, riderID)
		if err != nil {
			return err
		}
		if err := s.apply(ctx, o, EventRiderDelivered, ActorRider); err != nil {
			return err
		}

		rc, err := s.repo.Recipient(ctx, o.ID)
		if err != nil {
			return err
		}
		riderName := ""
		if _, rider, err := s.deliveries.Live(ctx, o.ID); err == nil && rider != nil {
			riderName = rider.Name
		}

		db.AfterCommit(ctx, func() {
			s.notify(ctx, notification.Message{
				Kind:          notification.KindDelivered,
				To:            rc.Email,
				CustomerName:  rc.Name,
				OrderPublicID: o.PublicID,
				DeliveredAt:   done.ActualDelivery,
				RiderName:     riderName,
			})
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromCtx(ctx).Info("order delivered",
		zap.String("layer", "service"),
		zap.String("order_id", o.PublicID),
		zap.Int64("rider_id", riderID),
	)
	return o, nil
}

func (s *service) DeliverAssignment(ctx context.Context, assignmentID, riderID int64) error {
	_, err := s.MarkDelivered(ctx, assignmentID, riderID)
	return err
}

func (s *service) Get(ctx context.Context, publicID string) (*Order, error) {
	return s.repo.GetByPublicID(ctx, publicID)
}

func (s *service) Track(ctx context.Context, publicID string) (*TrackingView, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Track"),
		zap.String("order_id", publicID),
	)

	var view TrackingView
	found, err := s.cache.Get(ctx, trackKey(publicID), &view)
	if err != nil {
		log.Warn("tracking cache read failed", zap.Error(err))
	}
	if found {
		return &view, nil
	}

	o, err := s.repo.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	view = TrackingView{
		OrderID:    o.PublicID,
		Status:     o.Status,
		OrderedAt:  o.OrderedAt,
		TotalPrice: o.TotalPrice,
		Items:      o.Items,
	}

	view.Shipping, err = s.repo.GetShipping(ctx, o.ID)
	if err != nil {
		return nil, err
	}

	a, rider, err := s.deliveries.Live(ctx, o.ID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if a != nil {
		d := &TrackingDelivery{
			AssignmentID:      a.PublicID,
			Status:            string(a.Status),
			EstimatedDelivery: a.EstimatedDelivery,
			ActualDelivery:    a.ActualDelivery,
		}
		if rider != nil {
			d.RiderName = rider.Name
			d.VehicleType = rider.VehicleType
			d.VehicleNumber = rider.VehicleNumber
		}
		view.Delivery = d
	}

	if err := s.cache.Set(ctx, trackKey(publicID), view, s.cacheTTL); err != nil {
		log.Warn("tracking cache write failed", zap.Error(err))
	}
	return &view, nil
}

// ExpireUnpaid cancels pending orders older than olderThan on behalf of the
// system and returns how many were cancelled.
func (s *service) ExpireUnpaid(ctx context.Context, olderThan time.Duration) (int, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ExpireUnpaid"),
	)

	ids, err := s.repo.ListStalePending(ctx, s.now().Add(-olderThan), expireBatch)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, id := range ids {
		_, err := s.Cancel(ctx, id, Actor{Kind: ActorSystem})
		if errors.Is(err, apperr.ErrIllegalTransition) {
			// paid between listing and locking
			continue
		}
		if err != nil {
			log.Error("failed to expire order", zap.String("order_id", id), zap.Error(err))
			continue
		}
		cancelled++
	}

	if cancelled > 0 {
		log.Info("unpaid orders expired", zap.Int("count", cancelled))
	}
	return cancelled, nil
}
