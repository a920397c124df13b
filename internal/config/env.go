package config

import (
	"os"
	"strings"
)

// Environment variable names. None of them touch cryptographic parameters.
const (
	EnvHome     = "X1WALLET_HOME"
	EnvNetwork  = "X1WALLET_NETWORK"
	EnvLogLevel = "X1WALLET_LOG_LEVEL"
	EnvLogFile  = "X1WALLET_LOG_FILE"
)

// ApplyEnvironment applies environment variable overrides to cfg.
func ApplyEnvironment(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvHome)); v != "" {
		cfg.Home = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvNetwork)); v != "" {
		cfg.Network = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v, ok := os.LookupEnv(EnvLogFile); ok {
		cfg.Logging.File = strings.TrimSpace(v)
	}
}

// Resolve loads the configuration a process runs with: the file under
// home, then the environment overrides. An empty home means the
// environment's or the default; an explicit one wins over both.
func Resolve(home string) (*Config, error) {
	explicit := home != ""
	if !explicit {
		home = os.Getenv(EnvHome)
	}
	if home == "" {
		home = DefaultHome()
	}
	cfg, err := Load(Path(home))
	if err != nil {
		return nil, err
	}
	cfg.Home = home
	ApplyEnvironment(cfg)
	if explicit {
		cfg.Home = home
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
