// Package config loads and saves the certissue TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ukaji3/certissue-go/pkg/certissue"
)

// FileName is the configuration file name inside the config directory.
const FileName = "config.toml"

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Duration is a time.Duration written as a string such as "30s" in TOML.
type Duration struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// API configures the remote endpoints.
type API struct {
	BaseURL       string   `toml:"base_url"`
	VerifyURL     string   `toml:"verify_url"`
	Timeout       Duration `toml:"timeout"`
	RatePerSecond float64  `toml:"rate_per_second"`
	Burst         int      `toml:"burst"`
}

// Reconcile configures batch reconciliation.
type Reconcile struct {
	Mode          string `toml:"mode"`
	KeyHeader     string `toml:"key_header"`
	Concurrency   int    `toml:"concurrency"`
	NormalizeKeys bool   `toml:"normalize_keys"`
}

// Session configures the handoff store.
type Session struct {
	Path string   `toml:"path"`
	TTL  Duration `toml:"ttl"`
}

// Output configures rendering.
type Output struct {
	Format string `toml:"format"`
}

// Log configures logging.
type Log struct {
	Verbose bool `toml:"verbose"`
}

// Config is the full configuration.
type Config struct {
	API       API       `toml:"api"`
	Reconcile Reconcile `toml:"reconcile"`
	Session   Session   `toml:"session"`
	Output    Output    `toml:"output"`
	Log       Log       `toml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API: API{
			BaseURL:       "http://localhost:3000",
			VerifyURL:     "http://127.0.0.1:3000/verify",
			RatePerSecond: 10,
			Burst:         5,
		},
		Reconcile: Reconcile{
			Mode:          string(certissue.FlowStrict),
			Concurrency:   certissue.DefaultConcurrency,
			NormalizeKeys: true,
		},
		Session: Session{
			TTL: Duration{24 * time.Hour},
		},
		Output: Output{
			Format: FormatTable,
		},
	}
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	var errs []error
	if _, err := certissue.ParseFlow(c.Reconcile.Mode); err != nil {
		errs = append(errs, err)
	}
	switch c.Output.Format {
	case FormatTable, FormatJSON, FormatYAML:
	default:
		errs = append(errs, fmt.Errorf("invalid output format %q (must be table, json or yaml)", c.Output.Format))
	}
	if c.API.Timeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("api.timeout must not be negative"))
	}
	if c.API.BaseURL == "" {
		errs = append(errs, fmt.Errorf("api.base_url must be set"))
	}
	return errors.Join(errs...)
}

// Options converts the reconcile section into reconciliation options.
func (c Config) Options() (certissue.Options, error) {
	flow, err := certissue.ParseFlow(c.Reconcile.Mode)
	if err != nil {
		return certissue.Options{}, err
	}
	normalize := c.Reconcile.NormalizeKeys
	return certissue.Options{
		Flow:          flow,
		KeyHeader:     c.Reconcile.KeyHeader,
		NormalizeKeys: &normalize,
		Concurrency:   c.Reconcile.Concurrency,
	}, nil
}

// Keys lists the settable configuration keys in file order.
var Keys = []string{
	"api.base_url",
	"api.verify_url",
	"api.timeout",
	"api.rate_per_second",
	"api.burst",
	"reconcile.mode",
	"reconcile.key_header",
	"reconcile.concurrency",
	"reconcile.normalize_keys",
	"session.path",
	"session.ttl",
	"output.format",
	"log.verbose",
}

// ErrUnknownKey indicates a key that is not in Keys.
var ErrUnknownKey = errors.New("unknown configuration key")

// Set parses value and stores it under the dotted key, e.g. "api.burst".
// The configuration is left unchanged on error.
func (c *Config) Set(key, value string) error {
	next := *c
	var err error
	switch strings.ToLower(key) {
	case "api.base_url":
		next.API.BaseURL = value
	case "api.verify_url":
		next.API.VerifyURL = value
	case "api.timeout":
		err = next.API.Timeout.UnmarshalText([]byte(value))
	case "api.rate_per_second":
		next.API.RatePerSecond, err = strconv.ParseFloat(value, 64)
	case "api.burst":
		next.API.Burst, err = strconv.Atoi(value)
	case "reconcile.mode":
		next.Reconcile.Mode = value
	case "reconcile.key_header":
		next.Reconcile.KeyHeader = value
	case "reconcile.concurrency":
		next.Reconcile.Concurrency, err = strconv.Atoi(value)
	case "reconcile.normalize_keys":
		next.Reconcile.NormalizeKeys, err = strconv.ParseBool(value)
	case "session.path":
		next.Session.Path = value
	case "session.ttl":
		err = next.Session.TTL.UnmarshalText([]byte(value))
	case "output.format":
		next.Output.Format = value
	case "log.verbose":
		next.Log.Verbose, err = strconv.ParseBool(value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*c = next
	return nil
}

// Encode returns the configuration as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// Store is a file-based configuration store.
type Store struct {
	mu       sync.RWMutex
	filePath string
	cfg      Config
}

// DefaultDir returns ~/.certissue.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".certissue"), nil
}

// NewStore opens the configuration in configDir. A missing file yields the
// defaults. If configDir is empty, defaults to DefaultDir.
func NewStore(configDir string) (*Store, error) {
	if configDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		configDir = dir
	}

	s := &Store{
		filePath: filepath.Join(configDir, FileName),
		cfg:      Default(),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the configuration file path.
func (s *Store) Path() string {
	return s.filePath
}

// Config returns a copy of the current configuration.
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update applies fn to the configuration and persists the result.
func (s *Store) Update(fn func(*Config)) error {
	return s.update(func(c *Config) error {
		fn(c)
		return nil
	})
}

// Set stores one dotted key (see Keys) and persists the result.
func (s *Store) Set(key, value string) error {
	return s.update(func(c *Config) error {
		return c.Set(key, value)
	})
}

func (s *Store) update(fn func(*Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg
	if err := fn(&next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	s.cfg = next
	return s.save()
}

// Save persists the current configuration to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// save writes the configuration file (caller must hold lock).
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0700); err != nil {
		return err
	}
	data, err := s.cfg.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, data, 0600)
}

// Load reads the configuration file over the defaults. Keys absent from
// the file keep their default value.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.cfg = Default()
			return nil
		}
		return err
	}

	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", s.filePath, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration in %s: %w", s.filePath, err)
	}
	s.cfg = cfg
	return nil
}
