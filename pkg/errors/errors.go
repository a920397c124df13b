// Package errors provides structured error handling for the wallet core.
// Every failure surfaced by the core carries exactly one Kind, and every
// Kind maps to one numeric code of the page-facing provider API.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Kind classifies an error by how it propagates.
type Kind string

// Error kinds.
const (
	KindInvalidInput   Kind = "invalid_input"   // local, surfaced synchronously
	KindAuthFailure    Kind = "auth_failure"    // bad password, locked vault, cooldown
	KindCryptoFailure  Kind = "crypto_failure"  // tag mismatch, self-check failure
	KindNetworkFailure Kind = "network_failure" // retried, then surfaced
	KindChainRejection Kind = "chain_rejection" // simulation failure, expired blockhash
	KindUserRejected   Kind = "user_rejected"   // denied or timed out approval
	KindUnsupported    Kind = "unsupported"     // wallet variant cannot perform operation
	KindInternal       Kind = "internal"        // storage faults and bugs
)

// Provider API error codes. Existing page scripts depend on these values.
const (
	CodeUserRejected  = 4001
	CodeUnauthorized  = 4100
	CodeDisconnected  = 4900
	CodeInvalidParams = -32602
	CodeInternal      = -32603
)

// Exit codes of the command-line tools.
const (
	ExitSuccess  = 0
	ExitGeneral  = 1
	ExitInput    = 2
	ExitAuth     = 3
	ExitNetwork  = 4
	ExitRejected = 5
)

// WalletError is the structured error type for the wallet core.
type WalletError struct {
	Kind       Kind              // Propagation class
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error

	// Provider overrides the code derived from Kind when non-zero.
	Provider int
}

func (e *WalletError) Error() string {
	msg := e.Message

	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *WalletError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for WalletError.
func (e *WalletError) Is(target error) bool {
	var t *WalletError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func sentinel(kind Kind, code, message string) *WalletError {
	return &WalletError{Kind: kind, Code: code, Message: message}
}

// Sentinel errors.
var (
	ErrInternal     = sentinel(KindInternal, "INTERNAL", "internal error")
	ErrInvalidInput = sentinel(KindInvalidInput, "INVALID_INPUT", "invalid input")

	// Mnemonic errors.
	ErrWrongWordCount  = sentinel(KindInvalidInput, "WRONG_WORD_COUNT", "mnemonic must have 12 or 24 words")
	ErrUnknownWord     = sentinel(KindInvalidInput, "UNKNOWN_WORD", "mnemonic contains a word outside the wordlist")
	ErrBadChecksum     = sentinel(KindInvalidInput, "BAD_CHECKSUM", "mnemonic checksum does not match")
	ErrInvalidStrength = sentinel(KindInvalidInput, "INVALID_STRENGTH", "entropy strength must be 128 or 256 bits")

	// Key and address errors.
	ErrInvalidAddress    = sentinel(KindInvalidInput, "INVALID_ADDRESS", "invalid address")
	ErrInvalidPath       = sentinel(KindInvalidInput, "INVALID_PATH", "invalid derivation path")
	ErrInvalidPrivateKey = sentinel(KindInvalidInput, "INVALID_PRIVATE_KEY", "invalid private key")
	ErrKeyMismatch       = sentinel(KindCryptoFailure, "KEY_MISMATCH", "public key does not match private key")

	// Vault errors.
	ErrAuthFailed     = sentinel(KindAuthFailure, "AUTH_FAILED", "incorrect password")
	ErrCooldown       = sentinel(KindAuthFailure, "COOLDOWN", "too many failed attempts, try again later")
	ErrVaultLocked    = sentinel(KindAuthFailure, "VAULT_LOCKED", "vault is locked")
	ErrVaultEmpty     = sentinel(KindInvalidInput, "VAULT_EMPTY", "vault has no wallets")
	ErrNoPassword     = sentinel(KindInvalidInput, "NO_PASSWORD", "password protection is not enabled")
	ErrDecryptFailed  = sentinel(KindCryptoFailure, "DECRYPT_FAILED", "ciphertext authentication failed")
	ErrLegacyBlob     = sentinel(KindInvalidInput, "LEGACY_BLOB", "legacy encrypted format requires explicit migration")
	ErrSaltReuse      = sentinel(KindCryptoFailure, "SALT_REUSE", "verifier and wrap salts must differ")
	ErrWalletNotFound = sentinel(KindInvalidInput, "WALLET_NOT_FOUND", "wallet not found")

	// Signer errors.
	ErrInsufficientFundsForFees = sentinel(KindChainRejection, "INSUFFICIENT_FUNDS_FOR_FEES", "insufficient lamports for amount, rent and fee")
	ErrBlockhashExpired         = sentinel(KindChainRejection, "BLOCKHASH_EXPIRED", "blockhash expired")
	ErrSimulationFailed         = sentinel(KindChainRejection, "SIMULATION_FAILED", "transaction simulation failed")
	ErrSignerMissing            = sentinel(KindInvalidInput, "SIGNER_MISSING", "no secret held for required signer")
	ErrInvalidTransaction       = sentinel(KindInvalidInput, "INVALID_TRANSACTION", "invalid transaction")
	ErrInvalidAmount            = sentinel(KindInvalidInput, "INVALID_AMOUNT", "invalid amount")
	ErrSignatureInvalid         = sentinel(KindCryptoFailure, "SIGNATURE_INVALID", "signature failed self-verification")

	// Network errors.
	ErrNetwork     = sentinel(KindNetworkFailure, "NETWORK_ERROR", "network communication failed")
	ErrRateLimited = sentinel(KindNetworkFailure, "RATE_LIMITED", "rate limited by RPC endpoint")
	ErrTimeout     = sentinel(KindNetworkFailure, "TIMEOUT", "RPC request timed out")

	// Provider errors.
	ErrUserRejected   = sentinel(KindUserRejected, "USER_REJECTED", "user rejected the request")
	ErrTimedOut       = sentinel(KindUserRejected, "TIMED_OUT", "approval request timed out")
	ErrNotAuthorized  = &WalletError{Kind: KindAuthFailure, Code: "NOT_AUTHORIZED", Message: "origin is not connected", Provider: CodeUnauthorized}
	ErrAlreadyPending = &WalletError{Kind: KindAuthFailure, Code: "ALREADY_PENDING", Message: "a request from this origin is already pending", Provider: CodeUnauthorized}
	ErrDisconnected   = &WalletError{Kind: KindUserRejected, Code: "DISCONNECTED", Message: "provider disconnected", Provider: CodeDisconnected}
	ErrUnknownMethod  = sentinel(KindInvalidInput, "UNKNOWN_METHOD", "unknown provider method")
	ErrInvalidParams  = sentinel(KindInvalidInput, "INVALID_PARAMS", "invalid params")
	ErrUnsupported    = sentinel(KindUnsupported, "UNSUPPORTED", "operation not supported for this wallet")

	// Storage and backup errors.
	ErrStorageCorrupt  = sentinel(KindInternal, "STORAGE_CORRUPT", "stored value is corrupt")
	ErrBackupCorrupted = sentinel(KindInvalidInput, "BACKUP_CORRUPTED", "backup is corrupted - checksum mismatch")
	ErrConfigInvalid   = sentinel(KindInvalidInput, "CONFIG_INVALID", "configuration is invalid")
)

// New creates a new WalletError with the given kind, code and message.
func New(kind Kind, code, message string) *WalletError {
	return &WalletError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

func clone(se *WalletError) *WalletError {
	c := *se
	return &c
}

// Wrap wraps an error with additional context. Errors that are not
// WalletErrors are classified as internal.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var se *WalletError
	if errors.As(err, &se) {
		c := clone(se)
		c.Message = fmt.Sprintf("%s: %s", msg, se.Message)
		c.Cause = err
		return c
	}

	return &WalletError{
		Kind:    KindInternal,
		Code:    ErrInternal.Code,
		Message: msg,
		Cause:   err,
	}
}

// WrapAs attaches cause to a copy of the sentinel kindErr.
func WrapAs(kindErr *WalletError, cause error) error {
	c := clone(kindErr)
	c.Cause = cause
	return c
}

// WithDetails adds details to an error. Keys already on the error are
// kept unless details sets them again.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var se *WalletError
	if errors.As(err, &se) {
		c := clone(se)
		c.Details = make(map[string]string, len(se.Details)+len(details))
		for k, v := range se.Details {
			c.Details[k] = v
		}
		for k, v := range details {
			c.Details[k] = v
		}
		return c
	}

	return &WalletError{
		Kind:    KindInternal,
		Code:    ErrInternal.Code,
		Message: err.Error(),
		Details: details,
		Cause:   err,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var se *WalletError
	if errors.As(err, &se) {
		c := clone(se)
		c.Suggestion = suggestion
		return c
	}

	return &WalletError{
		Kind:       KindInternal,
		Code:       ErrInternal.Code,
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
	}
}

// KindOf returns the kind of err. Context errors count as network failures
// because they only arise on suspended RPC calls.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *WalletError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindNetworkFailure
	}
	return KindInternal
}

// Code returns the machine-readable error code for an error.
func Code(err error) string {
	var se *WalletError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrInternal.Code
}

// Suggestion returns the suggestion attached to err, if any.
func Suggestion(err error) string {
	var se *WalletError
	if errors.As(err, &se) {
		return se.Suggestion
	}
	return ""
}

// ProviderCode maps err to the numeric provider API code.
func ProviderCode(err error) int {
	var se *WalletError
	if !errors.As(err, &se) {
		return CodeInternal
	}
	if se.Provider != 0 {
		return se.Provider
	}
	switch se.Kind {
	case KindUserRejected:
		return CodeUserRejected
	case KindAuthFailure:
		return CodeUnauthorized
	case KindInvalidInput:
		return CodeInvalidParams
	default:
		return CodeInternal
	}
}

// ExitCode maps err to a process exit code by kind.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch KindOf(err) {
	case KindInvalidInput, KindUnsupported:
		return ExitInput
	case KindAuthFailure, KindCryptoFailure:
		return ExitAuth
	case KindNetworkFailure:
		return ExitNetwork
	case KindChainRejection, KindUserRejected:
		return ExitRejected
	default:
		return ExitGeneral
	}
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
