package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

const (
	sandboxBaseURL = "https://sandbox.sslcommerz.com"
	liveBaseURL    = "https://securepay.sslcommerz.com"

	sessionPath   = "/gwprocess/v4/api.php"
	validatorPath = "/validator/api/validationserverAPI.php"

	defaultCurrency = "BDT"
)

type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	Validate(ctx context.Context, valID string) (*Validation, error)
}

type GatewayConfig struct {
	StoreID         string
	StorePassword   string
	Sandbox         bool
	CallbackBaseURL string
}

type sslcommerzGateway struct {
	storeID       string
	storePassword string
	baseURL       string
	callbackBase  string
	httpClient    *http.Client
}

// ----------------- Constructor -----------------

func NewSSLCommerzGateway(cfg GatewayConfig) Gateway {
	if cfg.StoreID == "" || cfg.StorePassword == "" {
		logger.L().Warn("SSLCommerz store credentials are empty")
	}

	base := liveBaseURL
	if cfg.Sandbox {
		base = sandboxBaseURL
	}

	return &sslcommerzGateway{
		storeID:       cfg.StoreID,
		storePassword: cfg.StorePassword,
		baseURL:       base,
		callbackBase:  strings.TrimRight(cfg.CallbackBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ----------------- CreateSession -----------------

type sessionResponse struct {
	Status         string `json:"status"`
	FailedReason   string `json:"failedreason"`
	SessionKey     string `json:"sessionkey"`
	GatewayPageURL string `json:"GatewayPageURL"`
}

func (g *sslcommerzGateway) CreateSession(ctx context.Context, in SessionRequest) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "gateway"),
		zap.String("tran_id", in.TranID),
		zap.String("order_id", in.OrderPublicID),
		zap.String("amount", in.Amount.StringFixed(2)),
	)

	currency := in.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	form := url.Values{}
	form.Set("store_id", g.storeID)
	form.Set("store_passwd", g.storePassword)
	form.Set("total_amount", in.Amount.StringFixed(2))
	form.Set("currency", currency)
	form.Set("tran_id", in.TranID)
	form.Set("success_url", g.callbackBase+"/success")
	form.Set("fail_url", g.callbackBase+"/fail")
	form.Set("cancel_url", g.callbackBase+"/cancel")
	form.Set("cus_name", in.Customer.Name)
	form.Set("cus_email", in.Customer.Email)
	form.Set("cus_phone", in.Customer.Phone)
	form.Set("cus_add1", in.Customer.Address)
	form.Set("cus_city", in.Customer.City)
	form.Set("cus_postcode", in.Customer.Postcode)
	form.Set("cus_country", orDefault(in.Customer.Country, "Bangladesh"))
	form.Set("shipping_method", "NO")
	form.Set("num_of_item", strconv.Itoa(in.NumItems))
	form.Set("product_name", orDefault(in.ProductName, "Order "+in.OrderPublicID))
	form.Set("product_category", "general")
	form.Set("product_profile", "general")
	form.Set("value_a", in.OrderPublicID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+sessionPath, strings.NewReader(form.Encode()))
	if err != nil {
		log.Error("failed creating request", zap.Error(err))
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	log.Info("requesting SSLCommerz session")

	bodyBytes, err := g.do(req)
	if err != nil {
		log.Error("SSLCommerz session request failed", zap.Error(err))
		return nil, err
	}

	var res sessionResponse
	if err := json.Unmarshal(bodyBytes, &res); err != nil {
		log.Error("failed decoding SSLCommerz response", zap.ByteString("response", bodyBytes), zap.Error(err))
		return nil, ErrGatewayResponse
	}

	if !strings.EqualFold(res.Status, "SUCCESS") || res.GatewayPageURL == "" {
		log.Warn("SSLCommerz refused session", zap.String("reason", res.FailedReason))
		return nil, fmt.Errorf("%w: %s", ErrGatewayRejected, res.FailedReason)
	}

	return &Session{
		TranID:     in.TranID,
		OrderID:    in.OrderPublicID,
		SessionKey: res.SessionKey,
		GatewayURL: res.GatewayPageURL,
	}, nil
}

// ----------------- Validate -----------------

func (g *sslcommerzGateway) Validate(ctx context.Context, valID string) (*Validation, error) {
	log := logger.FromCtx(ctx).With(zap.String("layer", "gateway"), zap.String("val_id", valID))

	q := url.Values{}
	q.Set("val_id", valID)
	q.Set("store_id", g.storeID)
	q.Set("store_passwd", g.storePassword)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+validatorPath+"?"+q.Encode(), nil)
	if err != nil {
		log.Error("failed building request", zap.Error(err))
		return nil, err
	}

	bodyBytes, err := g.do(req)
	if err != nil {
		log.Error("SSLCommerz validation request failed", zap.Error(err))
		return nil, err
	}

	var v Validation
	if err := json.Unmarshal(bodyBytes, &v); err != nil {
		log.Error("failed decoding validation", zap.ByteString("response", bodyBytes), zap.Error(err))
		return nil, ErrGatewayResponse
	}
	return &v, nil
}

// do sends req and returns the body of a 200 answer.
func (g *sslcommerzGateway) do(req *http.Request) ([]byte, error) {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sslcommerz %s: %w: %v", req.URL.Path, ErrGatewayResponse, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read sslcommerz response: %w", ErrGatewayResponse)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sslcommerz returned %d: %w", resp.StatusCode, ErrGatewayResponse)
	}
	return bodyBytes, nil
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
