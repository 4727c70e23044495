package vault_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stonecrest/achgen/internal/vault"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestAESVault_RoundTrip(t *testing.T) {
	v, err := vault.NewAESVault(testKey)
	require.NoError(t, err)

	ct, err := v.Encrypt("12345678901234567")
	require.NoError(t, err)
	assert.NotContains(t, ct, "12345678901234567")

	pt, err := v.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567", pt)
}

func TestAESVault_NonDeterministicCiphertext(t *testing.T) {
	v, err := vault.NewAESVault(testKey)
	require.NoError(t, err)

	a, err := v.Encrypt("987654321")
	require.NoError(t, err)

	b, err := v.Encrypt("987654321")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestAESVault_RejectsTamperedCiphertext(t *testing.T) {
	v, err := vault.NewAESVault(testKey)
	require.NoError(t, err)

	ct, err := v.Encrypt("987654321")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(ct)
	require.NoError(t, err)

	raw[len(raw)-1] ^= 0x01

	_, err = v.Decrypt(base64.StdEncoding.EncodeToString(raw))
	assert.Error(t, err)

	_, err = v.Decrypt("not base64!!!")
	assert.Error(t, err)
}

func TestNewAESVault_RejectsBadKeys(t *testing.T) {
	_, err := vault.NewAESVault("abcd")
	assert.Error(t, err)

	_, err = vault.NewAESVault(strings.Repeat("zz", 32))
	assert.Error(t, err)
}
