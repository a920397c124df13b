package config

import (
	"time"

	"github.com/x1wallet/walletcore/internal/storage"
	"github.com/x1wallet/walletcore/internal/walletcrypto"
)

// Network names shipped by default.
const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
)

// Default endpoints.
const (
	DefaultMainnetRPC = "https://rpc.mainnet.x1.xyz"
	DefaultTestnetRPC = "https://rpc.testnet.x1.xyz"
)

// MinPBKDF2Iterations is the lowest iteration count accepted for a new
// verifier.
const MinPBKDF2Iterations = 100_000

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.x1wallet",
		Network: NetworkMainnet,
		Networks: map[string]NetworkConfig{
			NetworkMainnet: {RPC: DefaultMainnetRPC, RateLimit: 10},
			NetworkTestnet: {RPC: DefaultTestnetRPC, RateLimit: 10},
		},
		Security: SecurityConfig{
			AutoLockMinutes:  storage.DefaultAutoLockMinutes,
			PBKDF2Iterations: walletcrypto.DefaultIterations,
		},
		Bridge: BridgeConfig{
			ApprovalTimeout: 5 * time.Minute,
		},
		RPC: RPCConfig{
			Attempts:       5,
			BaseDelay:      time.Second,
			MaxDelay:       8 * time.Second,
			Jitter:         500 * time.Millisecond,
			AttemptTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "error",
			File:   "~/.x1wallet/x1wallet.log",
			Format: "text",
		},
	}
}
