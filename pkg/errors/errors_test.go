package errors_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

var (
	errInner = errors.New("inner")
	errPlain = errors.New("plain error")
)

func TestProviderCodes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"user rejected", walleterr.ErrUserRejected, walleterr.CodeUserRejected},
		{"timed out", walleterr.ErrTimedOut, walleterr.CodeUserRejected},
		{"not authorized", walleterr.ErrNotAuthorized, walleterr.CodeUnauthorized},
		{"already pending", walleterr.ErrAlreadyPending, walleterr.CodeUnauthorized},
		{"disconnected", walleterr.ErrDisconnected, walleterr.CodeDisconnected},
		{"invalid params", walleterr.ErrInvalidParams, walleterr.CodeInvalidParams},
		{"bad checksum", walleterr.ErrBadChecksum, walleterr.CodeInvalidParams},
		{"vault locked", walleterr.ErrVaultLocked, walleterr.CodeUnauthorized},
		{"network", walleterr.ErrNetwork, walleterr.CodeInternal},
		{"chain rejection", walleterr.ErrBlockhashExpired, walleterr.CodeInternal},
		{"plain", errPlain, walleterr.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, walleterr.ProviderCode(tt.err))
		})
	}
}

func TestProviderCodeNumericValues(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 4001, walleterr.CodeUserRejected)
	assert.Equal(t, 4100, walleterr.CodeUnauthorized)
	assert.Equal(t, 4900, walleterr.CodeDisconnected)
	assert.Equal(t, -32602, walleterr.CodeInvalidParams)
	assert.Equal(t, -32603, walleterr.CodeInternal)
}

func TestKindOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err      error
		expected walleterr.Kind
	}{
		{nil, ""},
		{walleterr.ErrAuthFailed, walleterr.KindAuthFailure},
		{walleterr.ErrDecryptFailed, walleterr.KindCryptoFailure},
		{walleterr.ErrSimulationFailed, walleterr.KindChainRejection},
		{walleterr.ErrUnsupported, walleterr.KindUnsupported},
		{walleterr.Wrap(walleterr.ErrRateLimited, "getBalance"), walleterr.KindNetworkFailure},
		{fmt.Errorf("send: %w", context.DeadlineExceeded), walleterr.KindNetworkFailure},
		{errPlain, walleterr.KindInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.expected), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, walleterr.KindOf(tt.err))
		})
	}
}

func TestWrapPreservesIdentity(t *testing.T) {
	t.Parallel()
	for _, sentinel := range []error{
		walleterr.ErrAuthFailed,
		walleterr.ErrBlockhashExpired,
		walleterr.ErrUserRejected,
		walleterr.ErrSignerMissing,
	} {
		wrapped := walleterr.Wrap(sentinel, "wrapped")
		require.ErrorIs(t, wrapped, sentinel)
		assert.Equal(t, walleterr.KindOf(sentinel), walleterr.KindOf(wrapped))
	}
}

func TestWrapPlainError(t *testing.T) {
	t.Parallel()
	wrapped := walleterr.Wrap(errPlain, "write %s", "wallets")
	assert.Contains(t, wrapped.Error(), "write wallets")
	require.ErrorIs(t, wrapped, errPlain)
	assert.Equal(t, walleterr.KindInternal, walleterr.KindOf(wrapped))
	assert.Nil(t, walleterr.Wrap(nil, "nothing"))
}

func TestWrapAs(t *testing.T) {
	t.Parallel()
	err := walleterr.WrapAs(walleterr.ErrNetwork, errInner)
	require.ErrorIs(t, err, walleterr.ErrNetwork)
	require.ErrorIs(t, err, errInner)

	// the sentinel itself is never mutated
	assert.NoError(t, walleterr.ErrNetwork.Unwrap())
}

func TestWithDetails(t *testing.T) {
	t.Parallel()
	details := map[string]string{"position": "3"}

	err := walleterr.WithDetails(walleterr.ErrUnknownWord, details)

	var we *walleterr.WalletError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, details, we.Details)
	assert.Nil(t, walleterr.ErrUnknownWord.Details)
}

func TestWithDetails_Merges(t *testing.T) {
	t.Parallel()
	first := walleterr.WithDetails(walleterr.ErrNetwork, map[string]string{"status": "502", "endpoint": "a"})
	err := walleterr.WithDetails(first, map[string]string{"attempts": "3", "endpoint": "b"})

	var we *walleterr.WalletError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, map[string]string{"status": "502", "attempts": "3", "endpoint": "b"}, we.Details)

	require.ErrorAs(t, first, &we)
	assert.Len(t, we.Details, 2, "earlier error is left alone")
}

func TestWithSuggestion(t *testing.T) {
	t.Parallel()
	err := walleterr.WithSuggestion(walleterr.ErrUnknownWord, "about")
	assert.Equal(t, "about", walleterr.Suggestion(err))
	assert.Empty(t, walleterr.Suggestion(errPlain))
}

func TestNew(t *testing.T) {
	t.Parallel()
	err := walleterr.New(walleterr.KindChainRejection, "SLIPPAGE", "slippage tolerance exceeded")
	assert.Equal(t, "slippage tolerance exceeded", err.Error())
	assert.Equal(t, "SLIPPAGE", walleterr.Code(err))
	assert.Equal(t, walleterr.KindChainRejection, walleterr.KindOf(err))
}

func TestWalletError_Error(t *testing.T) {
	t.Parallel()

	t.Run("with details sorted", func(t *testing.T) {
		t.Parallel()
		err := &walleterr.WalletError{
			Code:    "TEST",
			Message: "failed",
			Details: map[string]string{"beta": "2", "alpha": "1"},
		}
		assert.Equal(t, "failed (alpha: 1) (beta: 2)", err.Error())
	})

	t.Run("with details and cause", func(t *testing.T) {
		t.Parallel()
		err := &walleterr.WalletError{
			Code:    "TEST",
			Message: "outer",
			Details: map[string]string{"key": "val"},
			Cause:   errInner,
		}
		assert.Equal(t, "outer (key: val): inner", err.Error())
	})
}

func TestWalletError_Is(t *testing.T) {
	t.Parallel()
	a := &walleterr.WalletError{Code: "SAME", Message: "a"}
	b := &walleterr.WalletError{Code: "SAME", Message: "b"}
	c := &walleterr.WalletError{Code: "OTHER"}
	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, c)
	assert.NotErrorIs(t, a, errPlain)
}

func TestExitCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, walleterr.ExitSuccess},
		{"input", walleterr.ErrInvalidInput, walleterr.ExitInput},
		{"auth", walleterr.ErrVaultLocked, walleterr.ExitAuth},
		{"network", walleterr.ErrNetwork, walleterr.ExitNetwork},
		{"rejected", walleterr.ErrUserRejected, walleterr.ExitRejected},
		{"context", context.DeadlineExceeded, walleterr.ExitNetwork},
		{"plain", errPlain, walleterr.ExitGeneral},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, walleterr.ExitCode(tc.err))
		})
	}
}
