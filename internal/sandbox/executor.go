// Package sandbox runs caller-supplied code in an isolated child process.
// The child is untrusted compute: it inherits a minimal environment, owns a
// private temporary file that is removed on every exit path, and lives
// under a hard wall-clock budget enforced by the parent.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/helioslabs/mcpgate/domain"
	"github.com/helioslabs/mcpgate/internal/crypto"
	"github.com/helioslabs/mcpgate/internal/metrics"
)

// TokenContextEnv is the one environment variable through which the child
// process receives its decrypted token context bundle, as JSON. Tool
// wrappers running inside the sandbox read exactly this variable; it is the
// fixed contract of the execution boundary.
const TokenContextEnv = "MCP_TOKEN_CONTEXT"

// ErrTimeout reports that the child exceeded its wall-clock budget and was
// forcibly terminated.
var ErrTimeout = errors.New("execution timed out")

// inheritedEnv lists the only parent environment variables a child may see.
var inheritedEnv = []string{"PATH", "HOME", "LANG", "TMPDIR"}

// waitDelay bounds how long the parent waits after killing the child before
// abandoning its pipes. An orphan must never outlive the request holding
// decrypted secrets in its environment.
const waitDelay = 5 * time.Second

// Request is one execution request.
type Request struct {
	// Code is the caller-supplied source to run.
	Code string
	// EncryptedTokenContext is the optional transit-encrypted token bundle
	// scoping which provider tokens the code may use.
	EncryptedTokenContext string
}

// Result captures the child's output. ExitCode is non-zero for failed runs.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor launches sandboxed child processes. Concurrency is bounded by a
// weighted semaphore so hostile callers cannot fork-bomb the host.
type Executor struct {
	codec       crypto.Codec // transit codec for the token bundle
	interpreter string
	timeout     time.Duration
	sem         *semaphore.Weighted
}

// NewExecutor creates an Executor running code with the given interpreter
// under the given per-request wall-clock budget, with at most maxConcurrent
// children alive at once.
func NewExecutor(transitCodec crypto.Codec, interpreter string, timeout time.Duration, maxConcurrent int64) *Executor {
	if maxConcurrent <= 0 {
		maxConcurrent = 16
	}
	return &Executor{
		codec:       transitCodec,
		interpreter: interpreter,
		timeout:     timeout,
		sem:         semaphore.NewWeighted(maxConcurrent),
	}
}

// Execute runs one request to completion. A non-zero exit is reported in
// the Result, not as an error; errors are reserved for spawn failures,
// rejected bundles, and ErrTimeout.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)

	var tokenContext string
	if req.EncryptedTokenContext != "" {
		plaintext, err := e.codec.Decrypt(req.EncryptedTokenContext)
		if err != nil {
			log.Error().Err(err).Msg("rejecting execution: token context failed to decrypt")
			return nil, err
		}
		var bundle domain.TokenBundle
		if err := json.Unmarshal([]byte(plaintext), &bundle); err != nil {
			return nil, fmt.Errorf("malformed token context: %w", err)
		}
		tokenContext = plaintext
	}

	// The code file is private to this request and removed on every exit
	// path; leaking it could retain secrets embedded in caller code.
	tmp, err := os.CreateTemp("", "mcpgate-exec-*.py")
	if err != nil {
		return nil, fmt.Errorf("create code file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(req.Code); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write code file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close code file: %w", err)
	}

	cctx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(cctx, e.interpreter, tmp.Name())
	cmd.Env = e.childEnv(tokenContext)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	metrics.ExecutionsTotal.Inc()
	err = cmd.Run()

	if cctx.Err() == context.DeadlineExceeded {
		metrics.ExecutionTimeoutsTotal.Inc()
		log.Warn().Str("interpreter", e.interpreter).Msg("sandboxed execution killed on deadline")
		return nil, ErrTimeout
	}

	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("spawn child process: %w", err)
	}

	return result, nil
}

// childEnv builds the child's environment: the inherited allowlist plus, at
// most, the one token context variable. Never the parent's full environment.
func (e *Executor) childEnv(tokenContext string) []string {
	env := make([]string, 0, len(inheritedEnv)+1)
	for _, name := range inheritedEnv {
		if v := os.Getenv(name); v != "" {
			env = append(env, name+"="+v)
		}
	}
	if tokenContext != "" {
		env = append(env, TokenContextEnv+"="+tokenContext)
	}
	return env
}
