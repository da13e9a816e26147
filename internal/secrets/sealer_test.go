package secrets

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(size int) string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", size)))
}

func TestSealOpenRoundTrip(t *testing.T) {
	for _, size := range []int{16, 24, 32} {
		sealer, err := NewSealer(testKey(size))
		require.NoError(t, err)

		sealed, err := sealer.Seal("sk-live-1234567890abcd")
		require.NoError(t, err)
		require.NotContains(t, sealed, "sk-live")

		opened, err := sealer.Open(sealed)
		require.NoError(t, err)
		require.Equal(t, "sk-live-1234567890abcd", opened)
	}
}

func TestSealUsesFreshNonce(t *testing.T) {
	sealer, err := NewSealer(testKey(32))
	require.NoError(t, err)
	a, err := sealer.Seal("same")
	require.NoError(t, err)
	b, err := sealer.Seal("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestOpenRejectsTamperedAndForeignCiphertext(t *testing.T) {
	sealer, err := NewSealer(testKey(32))
	require.NoError(t, err)
	other, err := NewSealer(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("z", 32))))
	require.NoError(t, err)

	sealed, err := sealer.Seal("secret")
	require.NoError(t, err)

	_, err = other.Open(sealed)
	require.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = sealer.Open("not base64!")
	require.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = sealer.Open(base64.StdEncoding.EncodeToString([]byte("short")))
	require.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestNewSealerRejectsBadKeys(t *testing.T) {
	_, err := NewSealer("%%%")
	require.ErrorIs(t, err, ErrInvalidKey)
	_, err = NewSealer(testKey(10))
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestMask(t *testing.T) {
	cases := map[string]string{
		"sk-proj-abcdefghabc1": "sk-...abc1",
		"  sk-ant-api03-xyz9 ": "sk-...xyz9",
		"12345678":             "****",
		"":                     "****",
	}
	for in, want := range cases {
		require.Equal(t, want, Mask(in), in)
	}
}
