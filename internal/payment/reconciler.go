package payment

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"storefront-be/internal/idgen"
	"storefront-be/internal/logger"
	"storefront-be/internal/metrics"
	"storefront-be/internal/order"
	"storefront-be/internal/secureid"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Orders is what the reconciler drives on the order side.
type Orders interface {
	Get(ctx context.Context, publicID string) (*order.Order, error)
	RecordPaymentResult(ctx context.Context, publicID, txnID string, result order.PaymentResult) (*order.Order, error)
	Cancel(ctx context.Context, publicID string, actor order.Actor) (*order.Order, error)
}

type Reconciler interface {
	CreateSession(ctx context.Context, in CreateSessionInput) (*Session, error)
	// HandleCallback never fails; it returns where to send the payer.
	HandleCallback(ctx context.Context, kind CallbackKind, form url.Values) string
	Validate(ctx context.Context, valID, tranID string, amount decimal.Decimal) (*Validation, error)
}

type ReconcilerConfig struct {
	// ValidateCallbacks re-checks every success callback against the validator API.
	ValidateCallbacks bool
	SuccessURL        string
	FailURL           string
	CancelURL         string
}

type reconciler struct {
	repo    Repository
	gateway Gateway
	orders  Orders
	ids     *idgen.Generator
	cfg     ReconcilerConfig
}

var cent = decimal.New(1, -2)

func NewReconciler(repo Repository, gateway Gateway, orders Orders, ids *idgen.Generator, cfg ReconcilerConfig) Reconciler {
	if ids == nil {
		ids = idgen.New()
	}
	return &reconciler{repo: repo, gateway: gateway, orders: orders, ids: ids, cfg: cfg}
}

func (r *reconciler) CreateSession(ctx context.Context, in CreateSessionInput) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateSession"),
		zap.String("order_id", in.OrderPublicID),
	)

	o, err := r.orders.Get(ctx, in.OrderPublicID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != in.CustomerID {
		return nil, order.ErrNotOwner
	}
	if o.Status != order.StatusPending {
		return nil, ErrOrderNotPayable
	}

	// The amount always comes from the stored order.
	p := &Payment{
		OrderID:  o.ID,
		Amount:   o.TotalPrice,
		Currency: defaultCurrency,
		Status:   StatusInitiated,
	}
	tranID, err := idgen.InsertWithRetry(ctx, tranIDConstraint, r.ids.TransactionID, func(id string) error {
		p.TranID = id
		return r.repo.InsertPayment(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("tran_id", tranID))

	session, err := r.gateway.CreateSession(ctx, SessionRequest{
		TranID:        tranID,
		OrderPublicID: o.PublicID,
		Amount:        o.TotalPrice,
		Currency:      defaultCurrency,
		ProductName:   productName(o.Items),
		NumItems:      len(o.Items),
		Customer:      in.Customer,
	})
	if err != nil {
		if uErr := r.repo.UpdateStatus(ctx, tranID, StatusFailed, ""); uErr != nil {
			log.Warn("failed to mark payment failed", zap.Error(uErr))
		}
		return nil, err
	}

	if err := r.repo.SetSession(ctx, tranID, session.SessionKey, session.GatewayURL); err != nil {
		return nil, err
	}

	log.Info("payment session created")
	return session, nil
}

func productName(items []order.Item) string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.ProductName)
	}
	name := strings.Join(names, ", ")
	if len(name) > 255 {
		name = name[:252] + "..."
	}
	return name
}

var callbackRules = newCallbackRules()

func newCallbackRules() *validator.Validate {
	v := validator.New()
	if err := secureid.RegisterValidators(v); err != nil {
		panic(err)
	}
	return v
}

func (r *reconciler) HandleCallback(ctx context.Context, kind CallbackKind, form url.Values) string {
	cb := ParseCallback(kind, form)
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "HandleCallback"),
		zap.String("kind", string(kind)),
		zap.String("tran_id", cb.TranID),
		zap.String("order_id", cb.OrderPublicID),
	)

	if !kind.Valid() {
		metrics.RecordPaymentCallback(string(kind), "rejected")
		log.Warn("callback rejected", zap.Error(ErrUnknownCallback))
		return r.redirect(r.cfg.FailURL, Callback{})
	}
	if err := callbackRules.Struct(cb); err != nil {
		metrics.RecordPaymentCallback(string(kind), "rejected")
		log.Warn("callback rejected", zap.Error(ErrMalformedCallback), zap.NamedError("cause", err))
		return r.redirect(r.cfg.FailURL, Callback{})
	}

	callbackID, processed, err := r.repo.SaveCallback(ctx, cb.TranID, kind, cb.Payload())
	if err != nil {
		// replays still land on the idempotent state machine
		log.Error("failed to store callback", zap.Error(err))
	}
	if processed {
		metrics.RecordPaymentCallback(string(kind), "duplicate")
		log.Info("duplicate callback")
		return r.replayRedirect(ctx, cb)
	}

	applied, err := r.process(ctx, cb)
	r.settle(ctx, callbackID, applied, err)
	if err != nil {
		metrics.RecordPaymentCallback(string(kind), "failed")
		log.Warn("callback not applied", zap.Bool("order_updated", applied), zap.Error(err))
		if kind == CallbackCancel {
			return r.redirect(r.cfg.CancelURL, cb)
		}
		return r.redirect(r.cfg.FailURL, cb)
	}

	metrics.RecordPaymentCallback(string(kind), "processed")
	return r.redirect(r.successTarget(kind), cb)
}

// settle records the outcome on the stored callback. Only a callback whose
// order command went through is closed; anything else stays open so a
// gateway retry is processed again.
func (r *reconciler) settle(ctx context.Context, callbackID int64, applied bool, procErr error) {
	if callbackID == 0 {
		return
	}
	log := logger.FromCtx(ctx)
	if applied {
		note := ""
		if procErr != nil {
			note = procErr.Error()
		}
		if err := r.repo.MarkCallbackProcessed(ctx, callbackID, note); err != nil {
			log.Error("failed to mark callback processed", zap.Int64("callback_id", callbackID), zap.Error(err))
		}
		return
	}
	if err := r.repo.MarkCallbackFailed(ctx, callbackID, procErr.Error()); err != nil {
		log.Error("failed to mark callback failed", zap.Int64("callback_id", callbackID), zap.Error(err))
	}
}

func (r *reconciler) successTarget(kind CallbackKind) string {
	switch kind {
	case CallbackSuccess:
		return r.cfg.SuccessURL
	case CallbackCancel:
		return r.cfg.CancelURL
	default:
		return r.cfg.FailURL
	}
}

// process maps one callback onto a single state machine command. applied
// reports whether that command ran; err may be set either way when the
// payment was rejected.
func (r *reconciler) process(ctx context.Context, cb Callback) (applied bool, err error) {
	o, err := r.owningOrder(ctx, cb)
	if err != nil {
		return false, err
	}

	switch cb.Kind {
	case CallbackCancel:
		if _, err := r.orders.Cancel(ctx, o.PublicID, order.Actor{Kind: order.ActorSystem}); err != nil {
			return false, err
		}
		r.markPayment(ctx, cb, StatusCancelled)
		return true, nil

	case CallbackFail:
		if _, err := r.orders.RecordPaymentResult(ctx, o.PublicID, cb.TranID, order.PaymentInvalid); err != nil {
			return false, err
		}
		r.markPayment(ctx, cb, StatusFailed)
		return true, nil
	}

	verifyErr := r.verify(ctx, cb, o)
	if verifyErr != nil && !rejectsPayment(verifyErr) {
		// gateway outage: leave the order alone
		return false, verifyErr
	}

	result, status := order.PaymentValid, StatusPaid
	if verifyErr != nil {
		result, status = order.PaymentInvalid, StatusFailed
	}
	if _, err := r.orders.RecordPaymentResult(ctx, o.PublicID, cb.TranID, result); err != nil {
		return false, err
	}
	r.markPayment(ctx, cb, status)
	return true, verifyErr
}

// owningOrder loads the order named by value_a and checks that tran_id is a
// payment opened for it.
func (r *reconciler) owningOrder(ctx context.Context, cb Callback) (*order.Order, error) {
	p, err := r.repo.GetByTranID(ctx, cb.TranID)
	if errors.Is(err, ErrPaymentNotFound) {
		return nil, ErrTranMismatch
	}
	if err != nil {
		return nil, err
	}
	o, err := r.orders.Get(ctx, cb.OrderPublicID)
	if err != nil {
		return nil, err
	}
	if p.OrderID != o.ID {
		return nil, ErrTranMismatch
	}
	return o, nil
}

// rejectsPayment reports whether err means the payment itself is bad, as
// opposed to our side being unable to check it.
func rejectsPayment(err error) bool {
	return errors.Is(err, ErrAmountMismatch) || errors.Is(err, ErrNotValidated)
}

// verify checks a success callback against the order it belongs to.
func (r *reconciler) verify(ctx context.Context, cb Callback, o *order.Order) error {
	if !strings.EqualFold(cb.Status, "VALID") && !strings.EqualFold(cb.Status, "VALIDATED") {
		return ErrNotValidated
	}

	if r.cfg.ValidateCallbacks {
		if cb.ValID == "" {
			return ErrNotValidated
		}
		_, err := r.Validate(ctx, cb.ValID, cb.TranID, o.TotalPrice)
		return err
	}

	paid, err := decimal.NewFromString(cb.Amount)
	if err != nil || !amountMatches(paid, o.TotalPrice) {
		return ErrAmountMismatch
	}
	return nil
}

func (r *reconciler) Validate(ctx context.Context, valID, tranID string, amount decimal.Decimal) (*Validation, error) {
	v, err := r.gateway.Validate(ctx, valID)
	if err != nil {
		return nil, err
	}
	if !v.Valid() {
		return nil, ErrNotValidated
	}
	if v.TranID != tranID {
		return nil, ErrTranMismatch
	}
	if !amountMatches(v.Amount, amount) {
		return nil, ErrAmountMismatch
	}
	return v, nil
}

func amountMatches(paid, total decimal.Decimal) bool {
	return paid.Sub(total).Abs().LessThanOrEqual(cent)
}

func (r *reconciler) markPayment(ctx context.Context, cb Callback, status Status) {
	if err := r.repo.UpdateStatus(ctx, cb.TranID, status, cb.ValID); err != nil && !errors.Is(err, ErrPaymentNotFound) {
		logger.FromCtx(ctx).Warn("failed to update payment status",
			zap.String("tran_id", cb.TranID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

// replayRedirect answers a duplicate callback from the order as it stands.
func (r *reconciler) replayRedirect(ctx context.Context, cb Callback) string {
	if cb.Kind != CallbackSuccess {
		return r.redirect(r.successTarget(cb.Kind), cb)
	}
	o, err := r.orders.Get(ctx, cb.OrderPublicID)
	if err != nil || o.Status == order.StatusCancelled ||
		o.GatewayTransactionID == nil || *o.GatewayTransactionID != cb.TranID {
		return r.redirect(r.cfg.FailURL, cb)
	}
	return r.redirect(r.cfg.SuccessURL, cb)
}

func (r *reconciler) redirect(base string, cb Callback) string {
	u, err := url.Parse(base)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	q := u.Query()
	if cb.TranID != "" {
		q.Set("tran_id", cb.TranID)
	}
	if cb.OrderPublicID != "" {
		q.Set("order_id", cb.OrderPublicID)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
