package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-be/internal/address"
	"storefront-be/internal/api"
	"storefront-be/internal/auth"
	"storefront-be/internal/cache"
	"storefront-be/internal/cart"
	"storefront-be/internal/config"
	"storefront-be/internal/coupon"
	"storefront-be/internal/db"
	"storefront-be/internal/delivery"
	"storefront-be/internal/events"
	"storefront-be/internal/idgen"
	"storefront-be/internal/inventory"
	"storefront-be/internal/jobs"
	"storefront-be/internal/logger"
	"storefront-be/internal/middleware"
	"storefront-be/internal/notification"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"
	"storefront-be/internal/secureid"
	"storefront-be/internal/user"

	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// Swapped in tests.
var (
	initDBFunc      = db.InitDB
	startServerFunc = listenAndServe
)

// integrations are the optional backends; each falls back to a no-op.
type integrations struct {
	cache  cache.Store
	events events.Publisher
	sender notification.Sender
	close  []func()
}

func (in *integrations) Close() {
	for i := len(in.close) - 1; i >= 0; i-- {
		in.close[i]()
	}
}

func connectIntegrations(ctx context.Context, cfg *config.Config) *integrations {
	log := logger.L()
	in := &integrations{
		cache:  cache.Nop{},
		events: events.Nop{},
		sender: notification.LogSender{},
	}

	if cfg.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			log.Warn("redis unavailable, tracking cache disabled", zap.Error(err))
		} else {
			in.cache = cache.NewRedisStore(client, "storefront:")
			in.close = append(in.close, func() { _ = client.Close() })
		}
	}

	if cfg.RabbitMQURL != "" {
		conn, err := events.Dial(cfg.RabbitMQURL, cfg.OrderEventsExchange)
		if err != nil {
			log.Warn("rabbitmq unavailable, order events disabled", zap.Error(err))
		} else {
			in.events = events.NewAMQPPublisher(conn.Channel, cfg.OrderEventsExchange)
			in.close = append(in.close, conn.Close)
		}
	}

	if cfg.SMTPHost != "" {
		in.sender = notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}

	return in
}

// app is everything run has to start and stop besides the listener.
type app struct {
	handler    http.Handler
	dispatcher *notification.Dispatcher
	limiter    *middleware.RateLimiter
	expiry     *jobs.UnpaidExpiryJob
}

func newServer(cfg *config.Config, database *sql.DB, in *integrations) (*app, error) {
	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return nil, err
	}

	tx := db.NewTxManager(database)
	ids := idgen.New()
	dispatcher := notification.NewDispatcher(in.sender, cfg.NotifyQueueSize)

	userSvc := user.NewService(user.NewRepository(database), issuer)
	addressSvc := address.NewService(tx, address.NewRepository(database))

	ledger := inventory.NewLedger(inventory.NewRepository(database))
	cartSvc := cart.NewService(cart.NewRepository(database), ledger)
	coupons := coupon.NewEngine(coupon.NewRepository(database))
	deliveries := delivery.NewManager(tx, delivery.NewRepository(database), ids)
	paymentRepo := payment.NewRepository(database)

	orderSvc := order.NewService(order.Dependencies{
		Tx:             tx,
		Repo:           order.NewRepository(database),
		Ledger:         ledger,
		Coupons:        coupons,
		Carts:          cartSvc,
		Deliveries:     deliveries,
		Addresses:      addressSvc,
		PaymentMethods: paymentRepo,
		IDs:            ids,
	}, order.Sinks{
		Notifier: dispatcher,
		Events:   in.events,
		Cache:    in.cache,
		CacheTTL: cfg.TrackingCacheTTL,
	})
	deliveries.SetCompleter(orderSvc)

	gateway := payment.NewSSLCommerzGateway(payment.GatewayConfig{
		StoreID:         cfg.SSLCommerzStoreID,
		StorePassword:   cfg.SSLCommerzStorePassword,
		Sandbox:         cfg.SSLCommerzSandbox,
		CallbackBaseURL: cfg.PaymentCallbackBaseURL,
	})
	reconciler := payment.NewReconciler(paymentRepo, gateway, orderSvc, ids, payment.ReconcilerConfig{
		ValidateCallbacks: cfg.ValidateCallbacks,
		SuccessURL:        cfg.FrontendSuccessURL,
		FailURL:           cfg.FrontendFailURL,
		CancelURL:         cfg.FrontendCancelURL,
	})

	router, err := api.NewRouter(api.NewHandler(api.Deps{
		Users:      userSvc,
		Carts:      cartSvc,
		Addresses:  addressSvc,
		Orders:     orderSvc,
		Payments:   reconciler,
		Deliveries: deliveries,
		Resolver:   secureid.NewResolver(database),
		Health:     database.PingContext,
	}))
	if err != nil {
		return nil, err
	}

	limiter := middleware.NewRateLimiter(cfg.InternalSecretKey)

	// outermost first: request id, access log, cors, identity, quota
	var handler http.Handler = router
	handler = limiter.Middleware(handler)
	handler = middleware.Auth(issuer)(handler)
	handler = middleware.CORS(cfg.AllowedOrigins)(handler)
	handler = logger.LoggingMiddleware(handler)
	handler = logger.RequestIDMiddleware(handler)

	return &app{
		handler:    handler,
		dispatcher: dispatcher,
		limiter:    limiter,
		expiry:     jobs.NewUnpaidExpiryJob(orderSvc, cfg.UnpaidOrderTTL, jobs.DefaultExpirySchedule),
	}, nil
}

func listenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func run(ctx context.Context) error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()
	log := logger.L()

	database := initDBFunc(cfg)
	defer database.Close()

	in := connectIntegrations(ctx, cfg)
	defer in.Close()

	a, err := newServer(cfg, database, in)
	if err != nil {
		return err
	}

	stopNotify := a.dispatcher.Start(cfg.NotifyWorkers)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := stopNotify(drainCtx); err != nil {
			log.Warn("notification queue not drained", zap.Error(err))
		}
	}()

	limiterCtx, stopLimiter := context.WithCancel(ctx)
	defer stopLimiter()
	go a.limiter.Run(limiterCtx)

	if err := a.expiry.Start(); err != nil {
		return err
	}
	defer a.expiry.Stop()

	log.Info("server running", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))
	return startServerFunc(ctx, ":"+cfg.AppPort, a.handler)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}
