package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr       string
	PublicBaseURL  string
	WebhookBaseURL string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	PhayaAPIURL string
	PhayaAPIKey string
	KieAPIURL   string
	KieAPIKey   string
	Veo3Model   string

	CaptionAPIURL string
	CaptionAPIKey string
	CaptionModel  string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "promoreel"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		HTTPAddr:       getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL:  strings.TrimRight(getenv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		WebhookBaseURL: strings.TrimRight(getenv("WEBHOOK_BASE_URL", ""), "/"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "promoreel"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),

		PhayaAPIURL: strings.TrimRight(getenv("PHAYA_API_URL", "https://api.phaya.io/api/v1"), "/"),
		PhayaAPIKey: strings.TrimSpace(getenv("PHAYA_API_KEY", "")),
		KieAPIURL:   strings.TrimRight(getenv("KIE_API_URL", "https://api.kie.ai/api/v1"), "/"),
		KieAPIKey:   strings.TrimSpace(getenv("KIE_API_KEY", "")),
		Veo3Model:   getenv("VEO3_MODEL", "veo3_fast"),

		CaptionAPIURL: strings.TrimRight(getenv("CAPTION_API_URL", "https://openrouter.ai/api/v1"), "/"),
		CaptionAPIKey: strings.TrimSpace(getenv("CAPTION_API_KEY", "")),
		CaptionModel:  getenv("CAPTION_MODEL", "openai/gpt-4o-mini"),
	}

	// Separate webhook base allows tunnelled callback endpoints during
	// development; providers cannot reach localhost.
	if cfg.WebhookBaseURL == "" {
		cfg.WebhookBaseURL = cfg.PublicBaseURL
	}

	return cfg
}

// CallbackURL returns the absolute webhook URL for a provider.
func (c Config) CallbackURL(provider string) string {
	return c.WebhookBaseURL + "/api/webhooks/videos/" + provider
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
