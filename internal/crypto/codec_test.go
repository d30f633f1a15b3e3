package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerrors "github.com/helioslabs/mcpgate/errors"
)

func newTestCodec(t *testing.T) Codec {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	codec, err := NewCodec(key)
	require.NoError(t, err)
	return codec
}

func TestCodecRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	for _, plaintext := range []string{
		"",
		"ya29.a0AfH6SMBx",
		"secret with spaces and unicode £€",
		strings.Repeat("x", 4096),
		string([]byte{0, 1, 2, 255, 254}),
	} {
		ct, err := codec.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ct)

		got, err := codec.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestCodecNonDeterministic(t *testing.T) {
	codec := newTestCodec(t)

	a, err := codec.Encrypt("same input")
	require.NoError(t, err)
	b, err := codec.Encrypt("same input")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "fresh nonce per encryption")
}

func TestCodecTamperDetection(t *testing.T) {
	codec := newTestCodec(t)

	ct, err := codec.Encrypt("refresh-token-value")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(ct)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = codec.Decrypt(tampered)
	assert.ErrorIs(t, err, gwerrors.ErrDecryption)
}

func TestCodecRejectsGarbage(t *testing.T) {
	codec := newTestCodec(t)

	for _, input := range []string{
		"",
		"not base64 at all!!!",
		base64.StdEncoding.EncodeToString([]byte("short")),
	} {
		_, err := codec.Decrypt(input)
		assert.ErrorIs(t, err, gwerrors.ErrDecryption, "input %q", input)
	}
}

func TestCodecWrongKey(t *testing.T) {
	a := newTestCodec(t)
	b := newTestCodec(t)

	ct, err := a.Encrypt("token")
	require.NoError(t, err)

	_, err = b.Decrypt(ct)
	assert.ErrorIs(t, err, gwerrors.ErrDecryption)
}

func TestNewCodecRejectsBadKeys(t *testing.T) {
	_, err := NewCodec("!!not-base64!!")
	assert.Error(t, err)

	_, err = NewCodec(base64.StdEncoding.EncodeToString([]byte("too short")))
	assert.Error(t, err)
}
