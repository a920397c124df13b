package walletcrypto_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x1wallet/walletcore/internal/walletcrypto"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

func TestSealOpen_RoundTrip(t *testing.T) {
	t.Parallel()
	plaintext := []byte(`[{"name":"A","secret":"qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqo="}]`)

	blob, key, err := walletcrypto.Seal(plaintext, "correct horse battery staple", nil)
	require.NoError(t, err)
	defer key.Destroy()

	assert.Equal(t, walletcrypto.BlobVersion, blob.Version)
	assert.Len(t, blob.Salt, walletcrypto.SaltSize)
	assert.Len(t, blob.Nonce, walletcrypto.NonceSize)
	assert.Len(t, blob.Ciphertext, len(plaintext)+16)

	got, key2, err := walletcrypto.Open(blob, "correct horse battery staple")
	require.NoError(t, err)
	defer key2.Destroy()
	assert.Equal(t, plaintext, got)
	assert.Equal(t, key.Bytes(), key2.Bytes())
}

func TestOpen_WrongPasswordIsAuthFailure(t *testing.T) {
	t.Parallel()
	blob, key, err := walletcrypto.Seal([]byte("wallets"), "correct horse battery staple", nil)
	require.NoError(t, err)
	key.Destroy()

	before, err := blob.Marshal()
	require.NoError(t, err)

	_, k, err := walletcrypto.Open(blob, "wrong")
	require.ErrorIs(t, err, walleterr.ErrAuthFailed)
	assert.Equal(t, walleterr.KindAuthFailure, walleterr.KindOf(err))
	assert.Nil(t, k)

	after, err := blob.Marshal()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestOpenWithKey_TamperedIsCryptoFailure(t *testing.T) {
	t.Parallel()
	blob, key, err := walletcrypto.Seal([]byte("wallets"), "pw", nil)
	require.NoError(t, err)
	defer key.Destroy()

	blob.Ciphertext[0] ^= 0xff
	_, err = walletcrypto.OpenWithKey(blob, key)
	require.ErrorIs(t, err, walleterr.ErrDecryptFailed)
	assert.Equal(t, walleterr.KindCryptoFailure, walleterr.KindOf(err))
}

func TestOpenWithKey_VersionIsAuthenticated(t *testing.T) {
	t.Parallel()
	blob, key, err := walletcrypto.Seal([]byte("wallets"), "pw", nil)
	require.NoError(t, err)
	defer key.Destroy()

	blob.Version = 2
	_, err = walletcrypto.OpenWithKey(blob, key)
	require.ErrorIs(t, err, walleterr.ErrLegacyBlob)
}

func TestSeal_WrapSaltAvoidsVerifierSalt(t *testing.T) {
	t.Parallel()
	v, err := walletcrypto.NewVerifier("pw")
	require.NoError(t, err)

	blob, key, err := walletcrypto.Seal([]byte("x"), "pw", v.Salt)
	require.NoError(t, err)
	defer key.Destroy()
	assert.NotEqual(t, v.Salt, blob.Salt)
}

func TestSealWithKey_FreshNonce(t *testing.T) {
	t.Parallel()
	blob, key, err := walletcrypto.Seal([]byte("x"), "pw", nil)
	require.NoError(t, err)
	defer key.Destroy()

	again, err := walletcrypto.SealWithKey([]byte("x"), key, blob.Salt, blob.Iterations)
	require.NoError(t, err)
	assert.NotEqual(t, blob.Nonce, again.Nonce)
	assert.Equal(t, blob.Salt, again.Salt)
	assert.Equal(t, blob.Iterations, again.Iterations)

	got, _, err := walletcrypto.Open(again, "pw")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}

func TestSealWithKey_DestroyedKey(t *testing.T) {
	t.Parallel()
	key := walletcrypto.NewSecret(32)
	key.Destroy()
	_, err := walletcrypto.SealWithKey([]byte("x"), key, make([]byte, 16), 1000)
	require.ErrorIs(t, err, walleterr.ErrVaultLocked)
}

func TestParseBlob(t *testing.T) {
	t.Parallel()
	blob, key, err := walletcrypto.Seal([]byte("x"), "pw", nil)
	require.NoError(t, err)
	key.Destroy()

	data, err := blob.Marshal()
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.ElementsMatch(t, []string{"v", "salt", "iter", "nonce", "ct"}, keys(fields))
	assert.InDelta(t, walletcrypto.Iterations(), fields["iter"], 0)
	assert.InDelta(t, 1, fields["v"], 0)

	parsed, err := walletcrypto.ParseBlob(data)
	require.NoError(t, err)
	assert.Equal(t, blob, parsed)
	assert.True(t, walletcrypto.LooksSealed(data))

	_, err = walletcrypto.ParseBlob([]byte("c29tZSBsZWdhY3kgYmxvYg=="))
	require.ErrorIs(t, err, walleterr.ErrLegacyBlob)

	_, err = walletcrypto.ParseBlob([]byte(`{"v":1,"salt":"AA==","nonce":"AA==","ct":"AA=="}`))
	require.ErrorIs(t, err, walleterr.ErrStorageCorrupt)

	assert.False(t, walletcrypto.LooksSealed([]byte(`{"wallets":[]}`)))
	assert.False(t, walletcrypto.LooksSealed([]byte(`not json`)))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestOpen_UsesRecordedIterations(t *testing.T) {
	t.Parallel()
	blob, key, err := walletcrypto.Seal([]byte("wallets"), "pw", nil)
	require.NoError(t, err)
	key.Destroy()
	require.Equal(t, walletcrypto.Iterations(), blob.Iterations)

	// The envelope opens with the count it records, whatever the process
	// default is now.
	recorded := walletcrypto.DeriveWrapKey("pw", blob.Salt, blob.Iterations)
	defer recorded.Destroy()
	got, err := walletcrypto.OpenWithKey(blob, recorded)
	require.NoError(t, err)
	assert.Equal(t, []byte("wallets"), got)

	other := walletcrypto.DeriveWrapKey("pw", blob.Salt, blob.Iterations+1)
	defer other.Destroy()
	_, err = walletcrypto.OpenWithKey(blob, other)
	require.ErrorIs(t, err, walleterr.ErrDecryptFailed)
}

func TestOpen_UnrecordedIterationsMeansDefault(t *testing.T) {
	t.Parallel()
	salt := make([]byte, walletcrypto.SaltSize)
	salt[0] = 9
	key := walletcrypto.DeriveWrapKey("pw", salt, walletcrypto.DefaultIterations)
	defer key.Destroy()
	blob, err := walletcrypto.SealWithKey([]byte("old"), key, salt, 0)
	require.NoError(t, err)

	data, err := blob.Marshal()
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"iter"`)

	parsed, err := walletcrypto.ParseBlob(data)
	require.NoError(t, err)
	got, k, err := walletcrypto.Open(parsed, "pw")
	require.NoError(t, err)
	k.Destroy()
	assert.Equal(t, []byte("old"), got)
}
