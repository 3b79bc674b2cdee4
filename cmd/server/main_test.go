package main

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-be/internal/auth"
	"storefront-be/internal/cache"
	"storefront-be/internal/config"
	"storefront-be/internal/events"
	"storefront-be/internal/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		AppPort:            "8080",
		AppEnv:             "test",
		JWTSecret:          "test-secret",
		JWTTTL:             time.Hour,
		FrontendSuccessURL: "https://shop.example.com/payment/success",
		FrontendFailURL:    "https://shop.example.com/payment/fail",
		FrontendCancelURL:  "https://shop.example.com/payment/cancel",
		AllowedOrigins:     []string{"http://localhost:3000"},
		NotifyWorkers:      1,
		NotifyQueueSize:    8,
		UnpaidOrderTTL:     30 * time.Minute,
	}
}

func offline() *integrations {
	return &integrations{cache: cache.Nop{}, events: events.Nop{}, sender: notification.LogSender{}}
}

func TestNewServer(t *testing.T) {
	// A mock driver keeps this free of a real Postgres connection
	db, err := sql.Open("mock_driver_main", "")
	require.NoError(t, err)

	a, err := newServer(testConfig(), db, offline())
	require.NoError(t, err)
	require.NotNil(t, a.handler)

	t.Run("Health Check", func(t *testing.T) {
		rr := httptest.NewRecorder()
		a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	})

	t.Run("Metrics", func(t *testing.T) {
		rr := httptest.NewRecorder()
		a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "storefront_")
	})

	t.Run("Anonymous Order Rejected", func(t *testing.T) {
		rr := httptest.NewRecorder()
		a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Token From Issuer Is Accepted By Guard", func(t *testing.T) {
		issuer, err := auth.NewIssuer("test-secret", time.Hour)
		require.NoError(t, err)
		token, err := issuer.Issue(1, "admin@example.com", "admin")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		a.handler.ServeHTTP(rr, req)

		// authenticated but not a customer
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("CORS Preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/orders", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rr := httptest.NewRecorder()
		a.handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestNewServer_MissingSecret(t *testing.T) {
	db, err := sql.Open("mock_driver_main", "")
	require.NoError(t, err)

	cfg := testConfig()
	cfg.JWTSecret = ""
	_, err = newServer(cfg, db, offline())
	assert.ErrorIs(t, err, auth.ErrNoSecret)
}

func TestConnectIntegrations_Disabled(t *testing.T) {
	in := connectIntegrations(context.Background(), testConfig())
	defer in.Close()

	assert.IsType(t, cache.Nop{}, in.cache)
	assert.IsType(t, events.Nop{}, in.events)
	assert.IsType(t, notification.LogSender{}, in.sender)
}

// --- Mock Driver for Testing ---
type mockDriver struct{}

func (m *mockDriver) Open(name string) (driver.Conn, error)         { return &mockConn{}, nil }
func (c *mockConn) Prepare(query string) (driver.Stmt, error)       { return &mockStmt{}, nil }
func (c *mockConn) Close() error                                    { return nil }
func (c *mockConn) Begin() (driver.Tx, error)                       { return nil, nil }
func (s *mockStmt) Close() error                                    { return nil }
func (s *mockStmt) NumInput() int                                   { return 0 }
func (s *mockStmt) Exec(args []driver.Value) (driver.Result, error) { return nil, nil }
func (s *mockStmt) Query(args []driver.Value) (driver.Rows, error)  { return nil, nil }

type mockConn struct{}
type mockStmt struct{}

func init() {
	sql.Register("mock_driver_main", &mockDriver{})
}

func TestRun(t *testing.T) {
	origInitDB := initDBFunc
	defer func() { initDBFunc = origInitDB }()
	initDBFunc = func(cfg *config.Config) *sql.DB {
		db, _ := sql.Open("mock_driver_main", "")
		return db
	}

	var gotAddr string
	origStartServer := startServerFunc
	defer func() { startServerFunc = origStartServer }()
	startServerFunc = func(ctx context.Context, addr string, handler http.Handler) error {
		gotAddr = addr
		return nil
	}

	t.Setenv("APP_PORT", "8080")
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "user")
	t.Setenv("DB_PASSWORD", "pass")
	t.Setenv("DB_NAME", "db")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("SMTP_HOST", "")

	assert.NoError(t, run(context.Background()))
	assert.Equal(t, ":8080", gotAddr)
}

func TestListenAndServe_Shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- listenAndServe(ctx, "127.0.0.1:0", http.NotFoundHandler())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
