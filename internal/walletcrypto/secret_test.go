package walletcrypto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x1wallet/walletcore/internal/walletcrypto"
)

func TestSecret_Zeroing(t *testing.T) {
	t.Parallel()
	s := walletcrypto.NewSecret(32)

	data := s.Bytes()
	for i := range data {
		data[i] = byte(i + 1)
	}

	s.Destroy()

	// the original backing array was overwritten before release
	for _, b := range data {
		assert.Equal(t, byte(0), b)
	}
	assert.Nil(t, s.Bytes())
	assert.True(t, s.Destroyed())
	assert.Equal(t, 0, s.Len())
}

func TestSecret_DoubleDestroy(t *testing.T) {
	t.Parallel()
	s := walletcrypto.NewSecret(16)
	s.Destroy()
	s.Destroy()

	var nilSecret *walletcrypto.Secret
	nilSecret.Destroy()
}

func TestSecretFromBytes_Copies(t *testing.T) {
	t.Parallel()
	src := []byte{1, 2, 3}
	s := walletcrypto.SecretFromBytes(src)
	defer s.Destroy()

	src[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, s.Bytes())

	c := s.Clone()
	defer c.Destroy()
	s.Destroy()
	assert.Equal(t, []byte{1, 2, 3}, c.Bytes())
}

func TestRandomSecret(t *testing.T) {
	t.Parallel()
	a, err := walletcrypto.RandomSecret(32)
	require.NoError(t, err)
	defer a.Destroy()
	b, err := walletcrypto.RandomSecret(32)
	require.NoError(t, err)
	defer b.Destroy()

	assert.Equal(t, 32, a.Len())
	assert.NotEqual(t, a.Bytes(), b.Bytes())
}

func TestZero(t *testing.T) {
	t.Parallel()
	b := []byte{1, 2, 3}
	walletcrypto.Zero(b)
	assert.Equal(t, []byte{0, 0, 0}, b)
}
