package payment

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"storefront-be/internal/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRoundTripper allows us to mock the HTTP response
type MockRoundTripper func(req *http.Request) *http.Response

func (f MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

type MockRoundTripperWithError func(req *http.Request) (*http.Response, error)

func (f MockRoundTripperWithError) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func newTestGateway() *sslcommerzGateway {
	return NewSSLCommerzGateway(GatewayConfig{
		StoreID:         "store1",
		StorePassword:   "secret",
		Sandbox:         true,
		CallbackBaseURL: "https://api.example.com/api/v1/payments/sslcommerz/",
	}).(*sslcommerzGateway)
}

func TestSSLCommerzGateway_CreateSession(t *testing.T) {
	gw := newTestGateway()
	req := SessionRequest{
		TranID:        "TXN-20240601-100000-ABCD1234",
		OrderPublicID: "ORD-20240601-ABCD1234",
		Amount:        decimal.RequireFromString("600.4"),
		ProductName:   "Kettle, Mug",
		NumItems:      2,
		Customer:      Customer{Name: "Nadia", Email: "c1@example.com", Phone: "01700000000"},
	}

	t.Run("Success", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "https://sandbox.sslcommerz.com/gwprocess/v4/api.php", r.URL.String())
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "store1", r.PostForm.Get("store_id"))
			assert.Equal(t, "600.40", r.PostForm.Get("total_amount"))
			assert.Equal(t, "BDT", r.PostForm.Get("currency"))
			assert.Equal(t, "ORD-20240601-ABCD1234", r.PostForm.Get("value_a"))
			assert.Equal(t, "https://api.example.com/api/v1/payments/sslcommerz/success", r.PostForm.Get("success_url"))
			assert.Equal(t, "Bangladesh", r.PostForm.Get("cus_country"))

			return respond(http.StatusOK, `{
				"status": "SUCCESS",
				"sessionkey": "SESS123",
				"GatewayPageURL": "https://sandbox.sslcommerz.com/EasyCheckOut/SESS123"
			}`)
		})

		s, err := gw.CreateSession(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "SESS123", s.SessionKey)
		assert.Equal(t, "https://sandbox.sslcommerz.com/EasyCheckOut/SESS123", s.GatewayURL)
		assert.Equal(t, req.TranID, s.TranID)
	})

	t.Run("Refused", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			return respond(http.StatusOK, `{"status": "FAILED", "failedreason": "Store Credential Error"}`)
		})

		_, err := gw.CreateSession(context.Background(), req)
		assert.ErrorIs(t, err, ErrGatewayRejected)
		assert.Contains(t, err.Error(), "Store Credential Error")
	})

	t.Run("UpstreamError", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			return respond(http.StatusServiceUnavailable, `maintenance`)
		})

		_, err := gw.CreateSession(context.Background(), req)
		assert.ErrorIs(t, err, apperr.ErrGateway)
	})

	t.Run("NetworkError", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripperWithError(func(r *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})

		_, err := gw.CreateSession(context.Background(), req)
		assert.ErrorIs(t, err, apperr.ErrGateway)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("InvalidJSONResponse", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			return respond(http.StatusOK, `{invalid-json`)
		})

		_, err := gw.CreateSession(context.Background(), req)
		assert.ErrorIs(t, err, ErrGatewayResponse)
	})
}

func TestSSLCommerzGateway_Validate(t *testing.T) {
	gw := newTestGateway()

	t.Run("Valid", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/validator/api/validationserverAPI.php", r.URL.Path)
			assert.Equal(t, "VAL1", r.URL.Query().Get("val_id"))
			assert.Equal(t, "json", r.URL.Query().Get("format"))

			return respond(http.StatusOK, `{
				"status": "VALID",
				"tran_id": "TXN-20240601-100000-ABCD1234",
				"val_id": "VAL1",
				"amount": "600.40",
				"currency": "BDT",
				"value_a": "ORD-20240601-ABCD1234"
			}`)
		})

		v, err := gw.Validate(context.Background(), "VAL1")
		require.NoError(t, err)
		assert.True(t, v.Valid())
		assert.Equal(t, "600.40", v.Amount.StringFixed(2))
		assert.Equal(t, "ORD-20240601-ABCD1234", v.ValueA)
	})

	t.Run("Invalid", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			return respond(http.StatusOK, `{"status": "INVALID_TRANSACTION"}`)
		})

		v, err := gw.Validate(context.Background(), "VAL2")
		require.NoError(t, err)
		assert.False(t, v.Valid())
	})
}

func TestNewSSLCommerzGateway_Live(t *testing.T) {
	gw := NewSSLCommerzGateway(GatewayConfig{StoreID: "s", StorePassword: "p"}).(*sslcommerzGateway)
	assert.Equal(t, liveBaseURL, gw.baseURL)
}
