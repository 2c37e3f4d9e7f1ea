package tokenizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/layer-3/tapnotify/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenizer(t *testing.T) (*RSATokenizer, *KeyPair) {
	t.Helper()
	keys, err := GenerateKeyPair(DefaultKeyBits)
	require.NoError(t, err)
	tk, err := NewRSATokenizer(keys)
	require.NoError(t, err)
	return tk.(*RSATokenizer), keys
}

func TestRSATokenizer_SignVerify(t *testing.T) {
	tk, _ := newTestTokenizer(t)
	msg := []byte("transfer 42 to bob")

	sig, err := tk.Sign(msg)
	require.NoError(t, err)
	assert.Len(t, sig, DefaultKeyBits/8)
	assert.NoError(t, tk.Verify(msg, sig))

	t.Run("flipped signature bit", func(t *testing.T) {
		bad := append([]byte(nil), sig...)
		bad[len(bad)/2] ^= 0x01
		assert.ErrorIs(t, tk.Verify(msg, bad), core.ErrVerificationFailed)
	})

	t.Run("flipped message bit", func(t *testing.T) {
		bad := append([]byte(nil), msg...)
		bad[0] ^= 0x80
		assert.ErrorIs(t, tk.Verify(bad, sig), core.ErrVerificationFailed)
	})

	t.Run("truncated signature", func(t *testing.T) {
		assert.ErrorIs(t, tk.Verify(msg, sig[:10]), core.ErrVerificationFailed)
	})

	t.Run("empty signature", func(t *testing.T) {
		assert.ErrorIs(t, tk.Verify(msg, nil), core.ErrVerificationFailed)
	})
}

func TestRSATokenizer_BinaryMessage(t *testing.T) {
	tk, _ := newTestTokenizer(t)
	msg := []byte{0x00, 0xff, 0xfe, 0x80, 0x00, 0x01}

	sig, err := tk.Sign(msg)
	require.NoError(t, err)
	assert.NoError(t, tk.Verify(msg, sig))
}

func TestRSATokenizer_OtherKeyRejected(t *testing.T) {
	tk, _ := newTestTokenizer(t)
	other, _ := newTestTokenizer(t)
	msg := []byte("challenge")

	sig, err := other.Sign(msg)
	require.NoError(t, err)
	assert.ErrorIs(t, tk.Verify(msg, sig), core.ErrVerificationFailed)
}

func TestNewRSATokenizer_MissingKeys(t *testing.T) {
	_, err := NewRSATokenizer(nil)
	assert.ErrorIs(t, err, core.ErrKeyMaterialMissing)

	_, err = NewRSATokenizer(&KeyPair{})
	assert.ErrorIs(t, err, core.ErrKeyMaterialMissing)
}

func TestLoadKeyPair(t *testing.T) {
	keys, err := GenerateKeyPair(DefaultKeyBits)
	require.NoError(t, err)
	privPEM, pubPEM, err := keys.EncodePEM()
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")
	require.NoError(t, os.WriteFile(privPath, privPEM, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0o644))

	loaded, err := LoadKeyPair(privPath, pubPath)
	require.NoError(t, err)
	assert.True(t, keys.Private.Equal(loaded.Private))
	assert.True(t, keys.Public.Equal(loaded.Public))

	_, err = LoadKeyPair(filepath.Join(dir, "missing.pem"), pubPath)
	assert.ErrorIs(t, err, core.ErrKeyMaterialMissing)

	_, err = ParseKeyPair([]byte("not pem"), pubPEM)
	assert.ErrorIs(t, err, core.ErrKeyMaterialMissing)
}
