package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultPollInterval  = 30 * time.Second
	DefaultFetchTimeout  = 10 * time.Second
	DefaultStaleAfter    = 5 * time.Minute
	DefaultTopN          = 10
	DefaultMetricsListen = ":9464"
	DefaultCooldown      = 15 * time.Minute
)

// Source types accepted in monitor.sources[].type.
const (
	SourceBackend    = "backend"
	SourcePrometheus = "prometheus"
	SourceFile       = "file"
)

// Config is the top-level configuration of the monitor binary.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Monitor MonitorConfig `yaml:"monitor"`
	Metrics MetricsConfig `yaml:"metrics"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// MonitorConfig holds the polling driver settings.
type MonitorConfig struct {
	// PollInterval controls how often every source is fetched and evaluated.
	PollInterval time.Duration `yaml:"poll_interval"`

	// FetchTimeout bounds a single fetch of one source.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// StaleAfter is how long the last valid snapshot of a source may be
	// reused when a fresh fetch fails or is rejected.
	StaleAfter time.Duration `yaml:"stale_after"`

	// TopN sizes the top-endpoints ranking in each report.
	TopN int `yaml:"top_n"`

	// Sources is the list of snapshot sources to evaluate.
	Sources []Source `yaml:"sources"`
}

// Source describes one place a metrics snapshot can be fetched from.
type Source struct {
	// ID is a unique, human-readable identifier for this source.
	ID string `yaml:"id"`

	// Type is one of: backend | prometheus | file.
	Type string `yaml:"type"`

	// Endpoint is the system status URL (backend), the exposition URL
	// (prometheus) or a filesystem path (file).
	Endpoint string `yaml:"endpoint"`

	// PerformanceEndpoint is the endpoint statistics URL. Backend only;
	// when empty the snapshot carries no endpoint stats.
	PerformanceEndpoint string `yaml:"performance_endpoint"`

	// Auth configures how the monitor authenticates to this source.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// AuthConfig specifies the authentication mode for a source.
type AuthConfig struct {
	// Mode is one of: apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// API key fields, used when Mode == "apikey".
	// Header is the HTTP header name to send the key in.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// Bearer token fields, used when Mode == "bearer".
	TokenEnv string `yaml:"token_env"`

	// Basic auth fields, used when Mode == "basic".
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	return lookupEnv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	return lookupEnv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	return lookupEnv(a.PasswordEnv)
}

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	// Listen is the address of the /metrics HTTP server. Empty disables it.
	Listen string `yaml:"listen"`
}

// NotifyConfig holds webhook delivery targets for banner changes.
type NotifyConfig struct {
	// Cooldown suppresses repeated notifications for the same source and
	// banner level for this duration.
	Cooldown time.Duration `yaml:"cooldown"`

	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | dingtalk | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`

	// SecretEnv names the environment variable holding the DingTalk signing
	// secret. Optional; unsigned when empty.
	SecretEnv string `yaml:"secret_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	return lookupEnv(w.URLEnv)
}

// Secret returns the signing secret resolved from the environment.
func (w WebhookConfig) Secret() string {
	return lookupEnv(w.SecretEnv)
}

func lookupEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Monitor: MonitorConfig{
			PollInterval: DefaultPollInterval,
			FetchTimeout: DefaultFetchTimeout,
			StaleAfter:   DefaultStaleAfter,
			TopN:         DefaultTopN,
		},
		Metrics: MetricsConfig{Listen: DefaultMetricsListen},
		Notify:  NotifyConfig{Cooldown: DefaultCooldown},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	m := cfg.Monitor
	if m.PollInterval <= 0 {
		return fmt.Errorf("monitor.poll_interval must be positive")
	}
	if m.FetchTimeout <= 0 {
		return fmt.Errorf("monitor.fetch_timeout must be positive")
	}
	if m.StaleAfter < 0 {
		return fmt.Errorf("monitor.stale_after must not be negative")
	}
	if m.TopN <= 0 {
		return fmt.Errorf("monitor.top_n must be positive")
	}

	seen := make(map[string]bool, len(m.Sources))
	for i, src := range m.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID)
		}
		seen[src.ID] = true
		if src.Endpoint == "" {
			return fmt.Errorf("sources[%d] %q: endpoint is required", i, src.ID)
		}
		switch src.Type {
		case SourceBackend, SourcePrometheus, SourceFile:
		default:
			return fmt.Errorf("sources[%d] %q: unknown type %q", i, src.ID, src.Type)
		}
		switch src.Auth.Mode {
		case "apikey":
			if src.Auth.Header == "" {
				return fmt.Errorf("sources[%d] %q: auth.header is required for apikey mode", i, src.ID)
			}
		case "bearer", "basic", "none", "":
		default:
			return fmt.Errorf("sources[%d] %q: unknown auth mode %q", i, src.ID, src.Auth.Mode)
		}
	}

	if cfg.Notify.Cooldown < 0 {
		return fmt.Errorf("notify.cooldown must not be negative")
	}
	for i, wh := range cfg.Notify.Webhooks {
		switch wh.Type {
		case "slack", "teams", "dingtalk", "http":
		default:
			return fmt.Errorf("notify.webhooks[%d]: unknown type %q", i, wh.Type)
		}
		if wh.URLEnv == "" {
			return fmt.Errorf("notify.webhooks[%d]: url_env is required", i)
		}
	}
	return nil
}
