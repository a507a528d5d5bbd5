// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package config

import (
	"errors"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/genos-dev/genos/internal/provider"
	genoserr "github.com/genos-dev/genos/pkg/errors"
	"github.com/genos-dev/genos/pkg/types"
)

// EnvPrefix is the prefix of every environment override (GENOS_ROUTING_DEFAULT).
const EnvPrefix = "GENOS"

// Auth modes.
const (
	AuthModeJWT     = "jwt"
	AuthModeHeaders = "headers"
)

// Config is the top-level Genos configuration.
type Config struct {
	Networking NetworkingConfig          `mapstructure:"networking"`
	Auth       AuthConfig                `mapstructure:"auth"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Routing    RoutingConfig             `mapstructure:"routing"`
	RAG        RAGConfig                 `mapstructure:"rag"`
	Breaker    BreakerConfig             `mapstructure:"breaker"`
	Guardrail  GuardrailConfig           `mapstructure:"guardrail"`
	Schedule   ScheduleConfig            `mapstructure:"schedule"`
	Metrics    MetricsConfig             `mapstructure:"metrics"`
	Storage    StorageConfig             `mapstructure:"storage"`
	Cache      CacheConfig               `mapstructure:"cache"`
	Events     EventsConfig              `mapstructure:"events"`
	Secrets    SecretsConfig             `mapstructure:"secrets"`
}

// NetworkingConfig controls how the HTTP server listens.
type NetworkingConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// AuthConfig selects how callers are identified.
type AuthConfig struct {
	Mode      string `mapstructure:"mode"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	// TrustedProxies limits header mode to peers inside these CIDR ranges.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// ProviderConfig holds credentials and endpoint for one AI provider.
type ProviderConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Endpoint  string `mapstructure:"endpoint"`
	Model     string `mapstructure:"model"`
	Region    string `mapstructure:"region"`
	ProjectID string `mapstructure:"project_id"`
	// Timeout bounds one call to this provider. Zero uses routing.timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// EmbeddingModel selects the watsonx embedding model used by RAG.
	EmbeddingModel string `mapstructure:"embedding_model"`
}

// RoutingConfig is the provider selection policy.
type RoutingConfig struct {
	Default      string            `mapstructure:"default"`
	Failover     []string          `mapstructure:"failover"`
	ContentTypes map[string]string `mapstructure:"content_types"`
	Timeout      time.Duration     `mapstructure:"timeout"`
}

// RAGConfig controls retrieval-augmented generation. Embeddings come from
// the watsonx provider; without it retrieval stays off.
type RAGConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	TopK        int      `mapstructure:"top_k"`
	Threshold   float64  `mapstructure:"threshold"`
	SourceTypes []string `mapstructure:"source_types"`
}

// BreakerConfig tunes the per-provider circuit breakers.
type BreakerConfig struct {
	FailureThreshold    int           `mapstructure:"failure_threshold"`
	ResetTimeout        time.Duration `mapstructure:"reset_timeout"`
	HalfOpenMaxAttempts int           `mapstructure:"half_open_max_attempts"`
}

// GuardrailConfig holds the fallback length policy.
type GuardrailConfig struct {
	MaxLength int `mapstructure:"max_length"`
}

// ScheduleConfig controls the schedule optimizer and its QAOA subprocess.
type ScheduleConfig struct {
	Command                []string      `mapstructure:"command"`
	Timeout                time.Duration `mapstructure:"timeout"`
	MaxOutputBytes         int64         `mapstructure:"max_output_bytes"`
	MaxPostsPerDay         int           `mapstructure:"max_posts_per_day"`
	MaxPostsPerPlatformDay int           `mapstructure:"max_posts_per_platform_day"`
	HistoryLimit           int           `mapstructure:"history_limit"`
}

// MetricsConfig sizes the in-process metrics buffer.
type MetricsConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	Backend  string         `mapstructure:"backend"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig holds the tenant DSN and the privileged DSN used for audit
// writes. An empty AdminDSN falls back to DSN.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	AdminDSN string `mapstructure:"admin_dsn"`
}

type CacheConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the brand cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type EventsConfig struct {
	PubSub PubSubConfig `mapstructure:"pubsub"`
}

// PubSubConfig configures event publishing. An empty ProjectID disables it.
type PubSubConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	Topic           string `mapstructure:"topic"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// SecretsConfig configures the awssm:// resolver.
type SecretsConfig struct {
	AWSRegion string `mapstructure:"aws_region"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("networking.listen", "127.0.0.1:8420")
	v.SetDefault("auth.mode", AuthModeHeaders)
	v.SetDefault("routing.default", "anthropic")
	v.SetDefault("routing.failover", []string{"anthropic", "google", "openai", "bedrock", "watsonx"})
	v.SetDefault("routing.timeout", 45*time.Second)
	v.SetDefault("rag.enabled", true)
	v.SetDefault("rag.top_k", 5)
	v.SetDefault("rag.threshold", 0.3)
	v.SetDefault("rag.source_types", []string{"brand", "content_item"})
	v.SetDefault("breaker.failure_threshold", 3)
	v.SetDefault("breaker.reset_timeout", 30*time.Second)
	v.SetDefault("breaker.half_open_max_attempts", 2)
	v.SetDefault("schedule.timeout", 60*time.Second)
	v.SetDefault("schedule.max_output_bytes", 1<<20)
	v.SetDefault("schedule.max_posts_per_day", 3)
	v.SetDefault("schedule.max_posts_per_platform_day", 1)
	v.SetDefault("schedule.history_limit", 90)
	v.SetDefault("metrics.capacity", 1000)
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.sqlite.path", "genos.db")
	v.SetDefault("cache.redis.ttl", 5*time.Minute)
	v.SetDefault("events.pubsub.topic", "genos-events")
}

// SetupEnv binds GENOS_* environment variables to config keys.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults only) with
// GENOS_ environment overrides, then validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, genoserr.Errorf(genoserr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, genoserr.Errorf(genoserr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, genoserr.Errorf(genoserr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors, collecting every
// problem rather than stopping at the first.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateNetworking()...)
	errs = append(errs, c.validateAuth()...)
	errs = append(errs, c.validateRouting()...)
	errs = append(errs, c.validateRAG()...)
	errs = append(errs, c.validateBreaker()...)
	errs = append(errs, c.validateSchedule()...)
	errs = append(errs, c.validateStorage()...)

	if c.Metrics.Capacity <= 0 {
		errs = append(errs, invalid("metrics.capacity must be greater than 0, got %d", c.Metrics.Capacity))
	}
	if c.Guardrail.MaxLength < 0 {
		errs = append(errs, invalid("guardrail.max_length must not be negative, got %d", c.Guardrail.MaxLength))
	}
	if c.Events.PubSub.ProjectID != "" && c.Events.PubSub.Topic == "" {
		errs = append(errs, invalid("events.pubsub.topic is required when events.pubsub.project_id is set"))
	}

	return errs
}

func invalid(format string, args ...any) error {
	return genoserr.Errorf(genoserr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateNetworking() []error {
	if c.Networking.Listen == "" {
		return []error{invalid("networking.listen must not be empty")}
	}

	_, portStr, err := net.SplitHostPort(c.Networking.Listen)
	if err != nil {
		return []error{invalid("networking.listen must be a valid host:port address, got %q: %w", c.Networking.Listen, err)}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return []error{invalid("networking.listen port must be a number, got %q", portStr)}
	}
	if port < 1 || port > 65535 {
		return []error{invalid("networking.listen port must be between 1 and 65535, got %d", port)}
	}
	return nil
}

func (c *Config) validateAuth() []error {
	var errs []error
	switch c.Auth.Mode {
	case AuthModeHeaders:
	case AuthModeJWT:
		if c.Auth.JWTSecret == "" {
			errs = append(errs, invalid("auth.jwt_secret is required when auth.mode is %q", AuthModeJWT))
		}
	default:
		errs = append(errs, invalid("auth.mode must be one of [%s, %s], got %q", AuthModeJWT, AuthModeHeaders, c.Auth.Mode))
	}
	for i, cidr := range c.Auth.TrustedProxies {
		if _, _, err := net.ParseCIDR(strings.TrimSpace(cidr)); err != nil {
			errs = append(errs, invalid("auth.trusted_proxies[%d]: %q is not a CIDR range", i, cidr))
		}
	}
	return errs
}

func (c *Config) validateRouting() []error {
	var errs []error

	if c.Routing.Default == "" {
		errs = append(errs, invalid("routing.default must not be empty"))
	} else if !knownProvider(c.Routing.Default) {
		errs = append(errs, invalid("routing.default references unknown provider %q", c.Routing.Default))
	}

	for i, ref := range c.Routing.Failover {
		if !knownProvider(ref) {
			errs = append(errs, invalid("routing.failover[%d] references unknown provider %q", i, ref))
		}
	}

	for ct, ref := range c.Routing.ContentTypes {
		if !types.ContentType(ct).Valid() {
			errs = append(errs, invalid("routing.content_types has unknown content type %q", ct))
		}
		if !knownProvider(ref) {
			errs = append(errs, invalid("routing.content_types.%s references unknown provider %q", ct, ref))
		}
	}

	if c.Routing.Timeout <= 0 {
		errs = append(errs, invalid("routing.timeout must be positive, got %s", c.Routing.Timeout))
	}

	for name, pc := range c.Providers {
		if !knownProvider(name) {
			errs = append(errs, invalid("providers.%s is not a supported provider", name))
		}
		if pc.Timeout < 0 {
			errs = append(errs, invalid("providers.%s.timeout must not be negative, got %s", name, pc.Timeout))
		}
	}

	return errs
}

// ProviderTimeouts returns the providers that override routing.timeout.
func (c *Config) ProviderTimeouts() map[string]time.Duration {
	out := make(map[string]time.Duration)
	for name, pc := range c.Providers {
		if pc.Timeout > 0 {
			out[name] = pc.Timeout
		}
	}
	return out
}

var ragSourceTypes = []string{"brand", "content_item"}

func (c *Config) validateRAG() []error {
	if !c.RAG.Enabled {
		return nil
	}
	var errs []error
	if c.RAG.TopK <= 0 {
		errs = append(errs, invalid("rag.top_k must be greater than 0, got %d", c.RAG.TopK))
	}
	if c.RAG.Threshold < 0 || c.RAG.Threshold >= 1 {
		errs = append(errs, invalid("rag.threshold must be in [0, 1), got %g", c.RAG.Threshold))
	}
	for i, st := range c.RAG.SourceTypes {
		if !slices.Contains(ragSourceTypes, st) {
			errs = append(errs, invalid("rag.source_types[%d] must be one of %v, got %q", i, ragSourceTypes, st))
		}
	}
	return errs
}

func (c *Config) validateBreaker() []error {
	var errs []error
	if c.Breaker.FailureThreshold <= 0 {
		errs = append(errs, invalid("breaker.failure_threshold must be greater than 0, got %d", c.Breaker.FailureThreshold))
	}
	if c.Breaker.ResetTimeout <= 0 {
		errs = append(errs, invalid("breaker.reset_timeout must be positive, got %s", c.Breaker.ResetTimeout))
	}
	if c.Breaker.HalfOpenMaxAttempts <= 0 {
		errs = append(errs, invalid("breaker.half_open_max_attempts must be greater than 0, got %d", c.Breaker.HalfOpenMaxAttempts))
	}
	return errs
}

func (c *Config) validateSchedule() []error {
	var errs []error
	s := c.Schedule
	if s.Timeout <= 0 {
		errs = append(errs, invalid("schedule.timeout must be positive, got %s", s.Timeout))
	}
	if s.MaxOutputBytes <= 0 {
		errs = append(errs, invalid("schedule.max_output_bytes must be greater than 0, got %d", s.MaxOutputBytes))
	}
	if s.MaxPostsPerDay <= 0 {
		errs = append(errs, invalid("schedule.max_posts_per_day must be greater than 0, got %d", s.MaxPostsPerDay))
	}
	if s.MaxPostsPerPlatformDay <= 0 {
		errs = append(errs, invalid("schedule.max_posts_per_platform_day must be greater than 0, got %d", s.MaxPostsPerPlatformDay))
	}
	if s.HistoryLimit <= 0 {
		errs = append(errs, invalid("schedule.history_limit must be greater than 0, got %d", s.HistoryLimit))
	}
	return errs
}

func (c *Config) validateStorage() []error {
	switch c.Storage.Backend {
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return []error{invalid("storage.sqlite.path must not be empty")}
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return []error{invalid("storage.postgres.dsn must not be empty")}
		}
	default:
		return []error{invalid("storage.backend must be one of [sqlite, postgres], got %q", c.Storage.Backend)}
	}
	return nil
}

// knownProvider accepts "provider" or "provider/model" references.
func knownProvider(ref string) bool {
	name, _, _ := strings.Cut(ref, "/")
	return provider.KnownName(name)
}
