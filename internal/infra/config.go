package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
// It is built once at startup and shared read-only by every client.
type Config struct {
	AppEnv               string
	Port                 string
	FrontendURL          string
	LegacyErrorStatus    bool
	ShopifyStoreURL      string
	ShopifyAccessToken   string
	ShopifyAPIVersion    string
	ShopifyProductLimit  int
	ShopifyTimeout       time.Duration
	OpenAIAPIKey         string
	OpenAIBaseURL        string
	OpenAIOrg            string
	OpenAIImageModel     string
	OpenAIImageSize      string
	OpenAITimeout        time.Duration
	ImageDownloadTimeout time.Duration
	HTTPReadTimeout      time.Duration
	HTTPWriteTimeout     time.Duration
	HTTPIdleTimeout      time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// Missing upstream credentials are not fatal; clients report them per request.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:               getEnv("APP_ENV", "development"),
		Port:                 getEnv("PORT", "8080"),
		FrontendURL:          strings.TrimRight(getEnv("FRONTEND_URL", "https://developmentpanda-468723.web.app"), "/"),
		LegacyErrorStatus:    getEnvBool("LEGACY_ERROR_STATUS", false),
		ShopifyStoreURL:      strings.TrimSpace(os.Getenv("SHOPIFY_STORE_URL")),
		ShopifyAccessToken:   strings.TrimSpace(os.Getenv("SHOPIFY_ACCESS_TOKEN")),
		ShopifyAPIVersion:    getEnv("SHOPIFY_API_VERSION", "2024-01"),
		ShopifyProductLimit:  getEnvInt("SHOPIFY_PRODUCT_LIMIT", 50),
		ShopifyTimeout:       time.Second * time.Duration(getEnvInt("SHOPIFY_TIMEOUT_SECONDS", 30)),
		OpenAIAPIKey:         strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:            os.Getenv("OPENAI_ORG"),
		OpenAIImageModel:     getEnv("OPENAI_IMAGE_MODEL", "gpt-image-1"),
		OpenAIImageSize:      getEnv("OPENAI_IMAGE_SIZE", "1024x1024"),
		OpenAITimeout:        time.Second * time.Duration(getEnvInt("OPENAI_TIMEOUT_SECONDS", 60)),
		ImageDownloadTimeout: time.Second * time.Duration(getEnvInt("IMAGE_DOWNLOAD_TIMEOUT_SECONDS", 15)),
		HTTPReadTimeout:      time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:     time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 90)),
		HTTPIdleTimeout:      time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.ShopifyProductLimit <= 0 || cfg.ShopifyProductLimit > 250 {
		return nil, fmt.Errorf("SHOPIFY_PRODUCT_LIMIT must be between 1 and 250, got %d", cfg.ShopifyProductLimit)
	}

	// The edit call must be able to finish before the server cuts the response.
	if cfg.HTTPWriteTimeout <= cfg.OpenAITimeout {
		return nil, fmt.Errorf("HTTP_WRITE_TIMEOUT_SECONDS (%s) must exceed OPENAI_TIMEOUT_SECONDS (%s)", cfg.HTTPWriteTimeout, cfg.OpenAITimeout)
	}

	return cfg, nil
}

// MissingCredentials lists the upstream settings that are unset.
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.ShopifyStoreURL == "" {
		missing = append(missing, "SHOPIFY_STORE_URL")
	}
	if c.ShopifyAccessToken == "" {
		missing = append(missing, "SHOPIFY_ACCESS_TOKEN")
	}
	if c.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	return missing
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}
