// Package storage persists wallet state in two mirrored key-value stores: a
// fast synchronous store that answers reads, and a durable LevelDB store
// that receives every write asynchronously. All keys carry the x1wallet_
// prefix.
package storage

import "strings"

// Prefix namespaces every persisted key.
const Prefix = "x1wallet_"

// Logical key names.
const (
	KeyWallets            = "wallets"
	KeyEncrypted          = "encrypted"
	KeyAuth               = "auth"
	KeyPasswordProtection = "password-protection"
	KeyAutoLock           = "auto-lock"
	KeyLastActivity       = "last-activity"
	KeyHiddenWallets      = "hidden-wallets"
	KeyHiddenTokens       = "hidden-tokens"
	KeyHiddenNFTs         = "hidden-nfts"
	KeyCustomTokens       = "custom-tokens"
	KeyCustomRPCs         = "custom-rpcs"
	KeyActivityCache      = "activity-cache"
	KeyTokenCache         = "token-cache"
	KeyBalanceCache       = "balance-cache"
	KeyPermissions        = "permissions"
)

// Key returns the namespaced form of name with optional scope parts, for
// example Key(KeyTokenCache, walletID, "mainnet").
func Key(name string, scope ...string) string {
	if len(scope) == 0 {
		return Prefix + name
	}
	return Prefix + name + ":" + strings.Join(scope, ":")
}

// IsSecretKey reports whether key may hold wallet secrets. Display-only
// state lives under every other key.
func IsSecretKey(key string) bool {
	return key == Key(KeyWallets) || key == Key(KeyAuth)
}
