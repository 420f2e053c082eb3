// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package snapshelf

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/snapshelf/storage"
	"github.com/poiesic/snapshelf/storage/kv"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate for an unusable configuration.
var ErrInvalidConfig = errors.New("invalid config")

// SlotKind selects the medium behind the ephemeral backend.
type SlotKind string

const (
	// SlotMemory keeps the record list in process memory.
	SlotMemory SlotKind = "memory"
	// SlotBolt keeps the record list in a bbolt file.
	SlotBolt SlotKind = "bolt"
	// SlotRedis keeps the record list under a redis key.
	SlotRedis SlotKind = "redis"
)

// SlotConfig configures the ephemeral backend's medium.
type SlotConfig struct {
	// Kind is one of memory, bolt or redis.
	// Default: memory
	Kind SlotKind `yaml:"kind"`

	// Key names the slot: the bbolt key or the redis key.
	// Default: "snapshelf:records"
	Key string `yaml:"key"`

	// Path is the bbolt file. Required for bolt.
	Path string `yaml:"path"`

	// RedisURL is a redis:// URL. Required for redis.
	RedisURL string `yaml:"redis_url"`

	// Quota limits the memory slot to this many bytes. 0 means unlimited.
	Quota int `yaml:"quota"`
}

// RemoteConfig configures the remote backend.
type RemoteConfig struct {
	// URL is the service base URL, e.g. "https://example.com/api/tracking".
	URL string `yaml:"url"`

	// Timeout bounds each request. 0 leaves requests to the caller's context.
	Timeout time.Duration `yaml:"timeout"`

	// RetryAttempts is how often a request is tried before failing over.
	// Default: 1
	RetryAttempts int `yaml:"retry_attempts"`

	// RetryDelay is the first backoff delay; it doubles on each retry.
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// Config holds everything needed to open a Store.
type Config struct {
	// Backend selects the storage chain. Accepts the aliases understood by ParseKind.
	// Default: transactional
	Backend Kind `yaml:"backend"`

	// Cap is the number of records each backend retains.
	// Default: 100
	Cap int `yaml:"cap"`

	// DataDir holds the transactional database.
	// Default: <user cache dir>/snapshelf
	DataDir string `yaml:"data_dir"`

	// InMemory keeps the transactional database in memory only.
	InMemory bool `yaml:"in_memory"`

	Slot   SlotConfig   `yaml:"slot"`
	Remote RemoteConfig `yaml:"remote"`

	// Logger receives storage diagnostics. Default: slog.Default()
	Logger *slog.Logger `yaml:"-"`

	// Registerer receives the storage metrics. Nil disables registration.
	Registerer prometheus.Registerer `yaml:"-"`
}

// Option is a functional option for configuring a Config.
type Option func(*Config)

// WithBackend selects the storage chain.
func WithBackend(kind Kind) Option {
	return func(c *Config) {
		c.Backend = kind
	}
}

// WithCap sets the retention cap.
func WithCap(cap int) Option {
	return func(c *Config) {
		c.Cap = cap
	}
}

// WithDataDir sets the transactional database directory.
func WithDataDir(dir string) Option {
	return func(c *Config) {
		c.DataDir = dir
	}
}

// WithInMemory keeps the transactional database in memory.
func WithInMemory(inMemory bool) Option {
	return func(c *Config) {
		c.InMemory = inMemory
	}
}

// WithSlot sets the ephemeral backend's medium.
func WithSlot(slot SlotConfig) Option {
	return func(c *Config) {
		c.Slot = slot
	}
}

// WithRemoteURL sets the remote service base URL.
func WithRemoteURL(url string) Option {
	return func(c *Config) {
		c.Remote.URL = url
	}
}

// WithRemoteRetry enables retries against the remote service before failing over.
func WithRemoteRetry(attempts int, delay time.Duration) Option {
	return func(c *Config) {
		c.Remote.RetryAttempts = attempts
		c.Remote.RetryDelay = delay
	}
}

// WithRemoteTimeout bounds each request to the remote service.
func WithRemoteTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Remote.Timeout = timeout
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithRegisterer registers storage metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registerer = reg
	}
}

// DefaultConfig returns a Config that keeps records in a transactional store
// under the user's cache directory, backed by an in-memory ephemeral store.
func DefaultConfig() *Config {
	return &Config{
		Backend: KindTransactional,
		Cap:     storage.DefaultCap,
		DataDir: defaultDataDir(),
		Slot: SlotConfig{
			Kind: SlotMemory,
			Key:  kv.DefaultSlotName,
		},
		Remote: RemoteConfig{
			RetryAttempts: 1,
			RetryDelay:    500 * time.Millisecond,
		},
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//		WithBackend(KindRemote),
//		WithRemoteURL("https://example.com/api/tracking"),
//	)
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// LoadConfig reads a YAML file over DefaultConfig. Unknown keys are an
// error. The result is not validated, so callers may still override fields.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}
	defer f.Close()

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// Normalize puts the configuration in canonical form: backend aliases are
// resolved and unset fields take their defaults.
func (c *Config) Normalize() {
	if kind, err := ParseKind(string(c.Backend)); err == nil {
		c.Backend = kind
	}
	c.Cap = storage.NormalizeCap(c.Cap)
	if c.Slot.Kind == "" {
		c.Slot.Kind = SlotMemory
	}
	c.Slot.Kind = SlotKind(strings.ToLower(string(c.Slot.Kind)))
	if c.Slot.Key == "" {
		c.Slot.Key = kv.DefaultSlotName
	}
	c.Remote.URL = strings.TrimRight(strings.TrimSpace(c.Remote.URL), "/")
	if c.Remote.RetryAttempts <= 0 {
		c.Remote.RetryAttempts = 1
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.Backend {
	case KindEphemeral, KindTransactional, KindRemote:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	if c.Backend == KindTransactional && !c.InMemory && c.DataDir == "" {
		return fmt.Errorf("%w: DataDir is required for the transactional backend", ErrInvalidConfig)
	}
	if c.Backend == KindRemote && c.Remote.URL == "" {
		return fmt.Errorf("%w: Remote.URL is required for the remote backend", ErrInvalidConfig)
	}
	if c.Remote.RetryDelay < 0 || c.Remote.Timeout < 0 {
		return fmt.Errorf("%w: remote durations must not be negative", ErrInvalidConfig)
	}

	switch c.Slot.Kind {
	case SlotMemory:
		if c.Slot.Quota < 0 {
			return fmt.Errorf("%w: Slot.Quota must not be negative", ErrInvalidConfig)
		}
	case SlotBolt:
		if c.Slot.Path == "" {
			return fmt.Errorf("%w: Slot.Path is required for the bolt slot", ErrInvalidConfig)
		}
	case SlotRedis:
		if c.Slot.RedisURL == "" {
			return fmt.Errorf("%w: Slot.RedisURL is required for the redis slot", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown slot kind %q", ErrInvalidConfig, c.Slot.Kind)
	}
	return nil
}

func defaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "snapshelf")
	}
	return ".snapshelf"
}
