// Package config loads the host configuration: data directory, networks,
// security and bridge policy, RPC retry policy, and logging.
package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/x1wallet/walletcore/internal/chain"
	"github.com/x1wallet/walletcore/internal/fileutil"
	"github.com/x1wallet/walletcore/internal/storage"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version  int                      `yaml:"version"`
	Home     string                   `yaml:"home"`
	Network  string                   `yaml:"network"`
	Networks map[string]NetworkConfig `yaml:"networks"`
	Security SecurityConfig           `yaml:"security"`
	Bridge   BridgeConfig             `yaml:"bridge"`
	RPC      RPCConfig                `yaml:"rpc"`
	Logging  LoggingConfig            `yaml:"logging"`
}

// NetworkConfig names the endpoints of one network.
type NetworkConfig struct {
	RPC       string  `yaml:"rpc"`
	DAS       string  `yaml:"das,omitempty"`
	RateLimit float64 `yaml:"rate_limit,omitempty"`
}

// SecurityConfig holds vault policy. Iterations apply only when a new
// verifier is created; existing records carry their own.
type SecurityConfig struct {
	AutoLockMinutes  int `yaml:"auto_lock_minutes"`
	PBKDF2Iterations int `yaml:"pbkdf2_iterations"`
}

// BridgeConfig holds provider policy.
type BridgeConfig struct {
	ApprovalTimeout time.Duration `yaml:"approval_timeout"`
}

// RPCConfig is the retry policy of every RPC call.
type RPCConfig struct {
	Attempts       int           `yaml:"attempts"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	Jitter         time.Duration `yaml:"jitter"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Format string `yaml:"format"`
}

// Load reads configuration from path over the defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the home directory
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, walleterr.Wrap(err, "reading config")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, walleterr.WrapAs(walleterr.ErrConfigInvalid, err)
	}
	return cfg, nil
}

// Save writes configuration to path.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return walleterr.Wrap(err, "encoding config")
	}
	return fileutil.WriteAtomic(path, data, fileutil.FilePerm)
}

// Path returns the config file path under home.
func Path(home string) string {
	return filepath.Join(ExpandHome(home), "config.yaml")
}

// DataDir returns the storage directory under home.
func (c *Config) DataDir() string {
	return filepath.Join(ExpandHome(c.Home), "data")
}

// BackupDir returns the backup directory under home.
func (c *Config) BackupDir() string {
	return filepath.Join(ExpandHome(c.Home), "backups")
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	invalid := func(field, reason string) error {
		return walleterr.WithDetails(walleterr.ErrConfigInvalid, map[string]string{"field": field, "reason": reason})
	}
	if c.Home == "" {
		return invalid("home", "empty")
	}
	if _, ok := c.Networks[c.Network]; !ok {
		return invalid("network", "unknown network "+c.Network)
	}
	for name, n := range c.Networks {
		if err := ValidateURL(n.RPC); err != nil {
			return invalid("networks."+name+".rpc", err.Error())
		}
		if n.DAS != "" {
			if err := ValidateURL(n.DAS); err != nil {
				return invalid("networks."+name+".das", err.Error())
			}
		}
		if n.RateLimit < 0 {
			return invalid("networks."+name+".rate_limit", "negative")
		}
	}
	if c.Security.AutoLockMinutes < storage.AutoLockNever {
		return invalid("security.auto_lock_minutes", "must be -1 or more")
	}
	if c.Security.PBKDF2Iterations < MinPBKDF2Iterations {
		return invalid("security.pbkdf2_iterations", "below minimum")
	}
	if c.Bridge.ApprovalTimeout <= 0 {
		return invalid("bridge.approval_timeout", "must be positive")
	}
	if c.RPC.Attempts < 1 || c.RPC.BaseDelay <= 0 || c.RPC.MaxDelay < c.RPC.BaseDelay || c.RPC.Jitter < 0 {
		return invalid("rpc", "inconsistent retry policy")
	}
	if _, err := ParseLogLevel(c.Logging.Level); err != nil {
		return invalid("logging.level", err.Error())
	}
	return nil
}

// ActiveNetwork returns the selected network. custom entries stored by the
// user replace the configured RPC URL of their network.
func (c *Config) ActiveNetwork(custom []storage.CustomRPC) NetworkConfig {
	n := c.Networks[c.Network]
	for _, r := range custom {
		if r.Network == c.Network && ValidateURL(r.URL) == nil {
			n.RPC = r.URL
		}
	}
	return n
}

// RetryPolicy converts the rpc section.
func (c *Config) RetryPolicy() chain.Policy {
	return chain.Policy{
		MaxAttempts:    c.RPC.Attempts,
		BaseDelay:      c.RPC.BaseDelay,
		MaxDelay:       c.RPC.MaxDelay,
		Jitter:         c.RPC.Jitter,
		AttemptTimeout: c.RPC.AttemptTimeout,
	}
}

// ValidateURL accepts absolute http and https URLs.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return errors.New("scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// ExpandHome replaces a leading ~/ with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// DefaultHome returns the default home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".x1wallet"
	}
	return filepath.Join(home, ".x1wallet")
}
