package sandbox

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helioslabs/mcpgate/domain"
	gwerrors "github.com/helioslabs/mcpgate/errors"
	"github.com/helioslabs/mcpgate/internal/crypto"
)

// Tests run the children under /bin/sh so they do not depend on a Python
// toolchain being installed.
func newTestExecutor(t *testing.T, timeout time.Duration) (*Executor, crypto.Codec) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("sandbox tests require a POSIX shell")
	}
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	codec, err := crypto.NewCodec(key)
	require.NoError(t, err)
	return NewExecutor(codec, "/bin/sh", timeout, 4), codec
}

func encryptBundle(t *testing.T, codec crypto.Codec, bundle domain.TokenBundle) string {
	t.Helper()
	payload, err := json.Marshal(&bundle)
	require.NoError(t, err)
	encrypted, err := codec.Encrypt(string(payload))
	require.NoError(t, err)
	return encrypted
}

func TestExecuteCapturesOutput(t *testing.T) {
	exec, _ := newTestExecutor(t, 10*time.Second)

	res, err := exec.Execute(context.Background(), Request{
		Code: "echo hello stdout\necho hello stderr >&2\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello stdout\n", res.Stdout)
	assert.Equal(t, "hello stderr\n", res.Stderr)
	assert.Equal(t, 0, res.ExitCode)
}

func TestExecuteNonZeroExit(t *testing.T) {
	exec, _ := newTestExecutor(t, 10*time.Second)

	res, err := exec.Execute(context.Background(), Request{
		Code: "echo broken >&2\nexit 3\n",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "broken\n", res.Stderr)
}

func TestExecuteTimeoutKillsChild(t *testing.T) {
	exec, _ := newTestExecutor(t, 200*time.Millisecond)

	start := time.Now()
	_, err := exec.Execute(context.Background(), Request{
		Code: "sleep 30\n",
	})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 10*time.Second, "child must be killed, not waited out")
}

func TestExecuteTokenContextReachesChildOnly(t *testing.T) {
	exec, codec := newTestExecutor(t, 10*time.Second)

	t.Setenv("PARENT_CANARY", "must-not-leak")

	encrypted := encryptBundle(t, codec, domain.TokenBundle{
		UserID:    "u1",
		CreatedAt: time.Now(),
		Tokens: map[string]domain.BundleEntry{
			"gmail": {AccessToken: "ya29.test"},
		},
	})

	res, err := exec.Execute(context.Background(), Request{
		Code:                  "printf '%s' \"$" + TokenContextEnv + "\"\nprintf '%s' \"$PARENT_CANARY\" >&2\n",
		EncryptedTokenContext: encrypted,
	})
	require.NoError(t, err)

	var bundle domain.TokenBundle
	require.NoError(t, json.Unmarshal([]byte(res.Stdout), &bundle))
	assert.Equal(t, "u1", bundle.UserID)
	entry, err := bundle.Get("gmail")
	require.NoError(t, err)
	assert.Equal(t, "ya29.test", entry.AccessToken)

	_, err = bundle.Get("slack")
	assert.ErrorIs(t, err, gwerrors.ErrNotAuthorized)

	assert.Empty(t, res.Stderr, "parent environment must not leak into the child")
}

func TestExecuteRejectsTamperedContext(t *testing.T) {
	exec, _ := newTestExecutor(t, 10*time.Second)

	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	otherCodec, err := crypto.NewCodec(otherKey)
	require.NoError(t, err)
	foreign, err := otherCodec.Encrypt(`{"user_id":"u1","tokens":{}}`)
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), Request{
		Code:                  "true\n",
		EncryptedTokenContext: foreign,
	})
	assert.ErrorIs(t, err, gwerrors.ErrDecryption)
}

func TestExecuteCleansUpCodeFile(t *testing.T) {
	exec, _ := newTestExecutor(t, 10*time.Second)

	before, err := filepath.Glob(filepath.Join(os.TempDir(), "mcpgate-exec-*"))
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), Request{Code: "true\n"})
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), Request{Code: "exit 1\n"})
	require.NoError(t, err)

	after, err := filepath.Glob(filepath.Join(os.TempDir(), "mcpgate-exec-*"))
	require.NoError(t, err)
	assert.Len(t, after, len(before), "code files must be removed on every exit path")
}
