package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv  string
	AppPort string

	DBURL          string
	DBHost         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBPort         string
	DBMaxOpenConns int
	DBMaxIdleConns int

	JWTSecret         string
	JWTTTL            time.Duration
	InternalSecretKey string
	AllowedOrigins    []string

	// SSLCommerz
	SSLCommerzStoreID       string
	SSLCommerzStorePassword string
	SSLCommerzSandbox       bool
	ValidateCallbacks       bool
	PaymentCallbackBaseURL  string
	FrontendSuccessURL      string
	FrontendFailURL         string
	FrontendCancelURL       string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	NotifyWorkers   int
	NotifyQueueSize int

	RedisAddr        string
	TrackingCacheTTL time.Duration

	RabbitMQURL         string
	OrderEventsExchange string

	UnpaidOrderTTL time.Duration
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:  os.Getenv("APP_ENV"),
		AppPort: getEnv("APP_PORT", "8080"),

		DBURL:          os.Getenv("DB_URL"),
		DBHost:         os.Getenv("DB_HOST"),
		DBUser:         os.Getenv("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBName:         os.Getenv("DB_NAME"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		JWTTTL:            getEnvDuration("JWT_TTL", 24*time.Hour),
		InternalSecretKey: os.Getenv("INTERNAL_SECRET_KEY"),
		AllowedOrigins:    getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		SSLCommerzStoreID:       os.Getenv("SSLCOMMERZ_STORE_ID"),
		SSLCommerzStorePassword: os.Getenv("SSLCOMMERZ_STORE_PASSWORD"),
		SSLCommerzSandbox:       getEnvBool("SSLCOMMERZ_SANDBOX", true),
		ValidateCallbacks:       getEnvBool("SSLCOMMERZ_VALIDATE_CALLBACKS", true),
		PaymentCallbackBaseURL:  strings.TrimRight(os.Getenv("PAYMENT_CALLBACK_BASE_URL"), "/"),
		FrontendSuccessURL:      os.Getenv("FRONTEND_SUCCESS_URL"),
		FrontendFailURL:         os.Getenv("FRONTEND_FAIL_URL"),
		FrontendCancelURL:       os.Getenv("FRONTEND_CANCEL_URL"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),

		NotifyWorkers:   getEnvInt("NOTIFY_WORKERS", 4),
		NotifyQueueSize: getEnvInt("NOTIFY_QUEUE_SIZE", 256),

		RedisAddr:        os.Getenv("REDIS_ADDR"),
		TrackingCacheTTL: getEnvDuration("TRACKING_CACHE_TTL", time.Minute),

		RabbitMQURL:         os.Getenv("RABBITMQ_URL"),
		OrderEventsExchange: getEnv("ORDER_EVENTS_EXCHANGE", "order.events"),

		UnpaidOrderTTL: getEnvDuration("UNPAID_ORDER_TTL", 30*time.Minute),
	}

	if cfg.DBURL == "" && cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getEnvList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
