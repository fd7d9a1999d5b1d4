package upstream

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the static client configuration. A client instance is stateless
// apart from this and the lazily-cached credential-verification flag.
type Config struct {
	// APIKey is the public key sent as a query parameter on every call.
	APIKey string `validate:"required"`
	// SecretToken authenticates elevated reads (basic auth, empty password)
	// and writes (bearer). Optional; without it the authenticated fallback
	// paths are skipped.
	SecretToken string
	// AgentDomain scopes shopping-agent requests. Agent calls fail fast
	// when it is absent.
	AgentDomain string

	SearchBaseURL string `validate:"required,url"`
	AgentBaseURL  string `validate:"omitempty,url"`

	// Timeout applies to standard calls; UploadTimeout to the multipart
	// catalog path, which carries large bodies.
	Timeout       time.Duration
	UploadTimeout time.Duration

	// RetryCount retries with a fixed RetryDelay apply to idempotent reads
	// only. No backoff.
	RetryCount int
	RetryDelay time.Duration
}

const (
	defaultSearchBaseURL = "https://search.commerceapi.io"
	defaultAgentBaseURL  = "https://agent.commerceapi.io"
	defaultTimeout       = 30 * time.Second
	defaultUploadTimeout = 300 * time.Second
	defaultRetryCount    = 2
	defaultRetryDelay    = time.Second
)

// ConfigFromEnv assembles a Config from environment variables with in-code
// defaults, matching how the rest of the project bootstraps.
func ConfigFromEnv() Config {
	cfg := Config{
		APIKey:        os.Getenv("COMMERCE_API_KEY"),
		SecretToken:   os.Getenv("COMMERCE_SECRET_TOKEN"),
		AgentDomain:   os.Getenv("COMMERCE_AGENT_DOMAIN"),
		SearchBaseURL: envOr("COMMERCE_SEARCH_URL", defaultSearchBaseURL),
		AgentBaseURL:  envOr("COMMERCE_AGENT_URL", defaultAgentBaseURL),
	}

	if seconds := envInt("COMMERCE_TIMEOUT_SECONDS", 0); seconds > 0 {
		cfg.Timeout = time.Duration(seconds) * time.Second
	}
	if seconds := envInt("COMMERCE_UPLOAD_TIMEOUT_SECONDS", 0); seconds > 0 {
		cfg.UploadTimeout = time.Duration(seconds) * time.Second
	}
	cfg.RetryCount = envInt("COMMERCE_RETRY_COUNT", defaultRetryCount)
	if ms := envInt("COMMERCE_RETRY_DELAY_MS", 0); ms > 0 {
		cfg.RetryDelay = time.Duration(ms) * time.Millisecond
	}

	return cfg
}

func (c *Config) applyDefaults() {
	if c.SearchBaseURL == "" {
		c.SearchBaseURL = defaultSearchBaseURL
	}
	if c.AgentBaseURL == "" {
		c.AgentBaseURL = defaultAgentBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.UploadTimeout <= 0 {
		c.UploadTimeout = defaultUploadTimeout
	}
	if c.RetryCount < 0 {
		c.RetryCount = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid upstream config: %w", err)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
