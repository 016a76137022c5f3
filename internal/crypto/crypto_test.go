package crypto

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known test key (hardhat account #0).
const (
	testKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestSignerAddress(t *testing.T) {
	s, err := NewSigner("0x" + testKey)
	require.NoError(t, err)
	assert.Equal(t, testAddress, s.Address().Hex())

	_, err = NewSigner("zz")
	assert.Error(t, err)
}

func TestSignAndRecover(t *testing.T) {
	s, err := NewSigner(testKey)
	require.NoError(t, err)

	body := []byte(`{"market_id":1}`)
	sig, err := s.SignRequest("post", "/api/markets", 1_700_000_000, body)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(sig, "0x"))
	assert.Len(t, sig, 2+130)

	got, err := RecoverRequestSigner("POST", "/api/markets", 1_700_000_000, body, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), got)

	// Any change to the signed material recovers a different address.
	other, err := RecoverRequestSigner("POST", "/api/markets", 1_700_000_001, body, sig)
	require.NoError(t, err)
	assert.NotEqual(t, s.Address(), other)

	other, err = RecoverRequestSigner("POST", "/api/markets", 1_700_000_000, []byte(`{"market_id":2}`), sig)
	require.NoError(t, err)
	assert.NotEqual(t, s.Address(), other)
}

func TestRecoverAcceptsRawV(t *testing.T) {
	s, err := NewSigner(testKey)
	require.NoError(t, err)

	sig, err := s.SignRequest("PUT", "/api/owner", 42, nil)
	require.NoError(t, err)

	// Rewrite v from {27,28} to {0,1}.
	v := sig[len(sig)-2:]
	raw := sig[:len(sig)-2] + map[string]string{"1b": "00", "1c": "01"}[v]
	got, err := RecoverRequestSigner("PUT", "/api/owner", 42, nil, raw)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), got)
}

func TestRecoverRejectsMalformed(t *testing.T) {
	for _, sig := range []string{"", "0x1234", "not-hex", "0x" + strings.Repeat("00", 65)} {
		_, err := RecoverRequestSigner("GET", "/", 0, nil, sig)
		assert.True(t, errors.Is(err, ErrBadSignature), "sig %q", sig)
	}
}

func TestRequestHeadersAt(t *testing.T) {
	s, err := NewSigner(testKey)
	require.NoError(t, err)

	h, err := s.RequestHeadersAt("PUT", "/api/auctioneers/0x01", []byte(`{}`), 1234)
	require.NoError(t, err)
	assert.Equal(t, "1234", h[HeaderTimestamp])

	got, err := RecoverRequestSigner("PUT", "/api/auctioneers/0x01", 1234, []byte(`{}`), h[HeaderSignature])
	require.NoError(t, err)
	assert.Equal(t, s.Address(), got)
}

func TestEncryptDecryptKey(t *testing.T) {
	blob, err := EncryptKey("0x"+testKey, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKey, got)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)
}

func TestLoadSigner(t *testing.T) {
	blob, err := EncryptKey(testKey, "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	s, err := LoadSigner(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, testAddress, s.Address().Hex())

	s, err = LoadSigner(KeyConfig{RawPrivateKey: "0x" + testKey, EncryptedKeyPath: "/nonexistent"})
	require.NoError(t, err)
	assert.Equal(t, testAddress, s.Address().Hex())

	_, err = LoadSigner(KeyConfig{})
	assert.Error(t, err)

	_, err = LoadKey(KeyConfig{RawPrivateKey: "xyz"})
	assert.Error(t, err)
}
