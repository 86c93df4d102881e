package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neotheprogramist/integrity/internal/logging"
)

// Executor is the interface for command execution.
type Executor interface {
	// Execute runs a command and returns a comprehensive result.
	// The context can be used for cancellation.
	Execute(ctx context.Context, cmd Command) (*ExecutionResult, error)

	// Validate checks if a command can be executed by this executor.
	Validate(cmd Command) error
}

// Direct executes commands directly on the host using os/exec.
type Direct struct {
	mu     sync.RWMutex
	config Config

	// auditCallback is called for execution events
	auditCallback func(AuditEvent)
}

// NewDirect creates a new direct executor with default config.
func NewDirect() *Direct {
	return NewDirectWithConfig(DefaultConfig())
}

// NewDirectWithConfig creates a new direct executor with custom config.
func NewDirectWithConfig(config Config) *Direct {
	logging.ExecDebug("Creating Direct executor: timeout=%s, maxOutput=%d bytes",
		config.DefaultTimeout, config.MaxOutputBytes)
	return &Direct{config: config}
}

// SetAuditCallback sets the callback for audit events.
func (e *Direct) SetAuditCallback(callback func(AuditEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.auditCallback = callback
}

func (e *Direct) emitAudit(event AuditEvent) {
	e.mu.RLock()
	callback := e.auditCallback
	e.mu.RUnlock()

	if callback != nil {
		callback(event)
	}
}

// Validate checks if a command can be executed.
func (e *Direct) Validate(cmd Command) error {
	if cmd.Binary == "" {
		return fmt.Errorf("binary is required")
	}
	return nil
}

// Execute runs a command directly on the host.
func (e *Direct) Execute(ctx context.Context, cmd Command) (*ExecutionResult, error) {
	timer := logging.StartTimer(logging.CategoryExec, "command execution")
	defer timer.Stop()

	if err := e.Validate(cmd); err != nil {
		logging.ExecWarn("Command validation failed: %s %v - %v", cmd.Binary, cmd.Arguments, err)
		return nil, err
	}

	cmd = e.config.Merge(cmd)
	if cmd.RequestID == "" {
		cmd.RequestID = uuid.NewString()
	}

	logging.Exec("Executing [%s]: %s", cmd.RequestID, cmd.CommandString())

	result := &ExecutionResult{
		ExitCode: -1,
		Command:  &cmd,
	}

	e.emitAudit(AuditEvent{
		Type:      AuditEventStart,
		Timestamp: time.Now(),
		Command:   cmd,
	})

	timeout := e.config.DefaultTimeout
	if cmd.Limits != nil && cmd.Limits.TimeoutMs > 0 {
		timeout = time.Duration(cmd.Limits.TimeoutMs) * time.Millisecond
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	execCmd := exec.CommandContext(execCtx, cmd.Binary, cmd.Arguments...)
	execCmd.Dir = cmd.WorkingDirectory
	execCmd.Env = e.buildEnvironment(cmd.Environment)

	if cmd.Stdin != "" {
		execCmd.Stdin = strings.NewReader(cmd.Stdin)
	}

	maxOutput := e.config.MaxOutputBytes
	if cmd.Limits != nil && cmd.Limits.MaxOutputBytes > 0 {
		maxOutput = cmd.Limits.MaxOutputBytes
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	stdoutLimited := &limitedWriter{w: &stdoutBuf, max: maxOutput}
	stderrLimited := &limitedWriter{w: &stderrBuf, max: maxOutput}

	execCmd.Stdout = stdoutLimited
	execCmd.Stderr = stderrLimited

	result.StartedAt = time.Now()

	err := execCmd.Run()

	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)

	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()
	result.Combined = result.Stdout
	if result.Stderr != "" {
		if result.Combined != "" {
			result.Combined += "\n"
		}
		result.Combined += result.Stderr
	}

	if stdoutLimited.truncated || stderrLimited.truncated {
		result.Truncated = true
		result.TruncatedBytes = stdoutLimited.discarded + stderrLimited.discarded
		logging.ExecWarn("Command output truncated: %d bytes discarded", result.TruncatedBytes)
	}

	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			result.Killed = true
			result.KillReason = fmt.Sprintf("timeout after %s", timeout)
			result.Success = true // Infrastructure worked, command was killed
			logging.ExecWarn("Command killed (timeout): %s after %s", cmd.Binary, timeout)
			e.emitAudit(AuditEvent{
				Type:      AuditEventKilled,
				Timestamp: time.Now(),
				Command:   cmd,
				Result:    result,
			})
		} else if execCtx.Err() == context.Canceled {
			result.Killed = true
			result.KillReason = "context canceled"
			result.Success = true
			e.emitAudit(AuditEvent{
				Type:      AuditEventKilled,
				Timestamp: time.Now(),
				Command:   cmd,
				Result:    result,
			})
		} else if exitErr, ok := err.(*exec.ExitError); ok {
			result.Success = true // Command ran, just returned non-zero
			result.ExitCode = exitErr.ExitCode()
			logging.ExecDebug("Command exited non-zero: %s -> %d", cmd.Binary, result.ExitCode)
		} else {
			result.Success = false
			result.Error = err.Error()
			logging.ExecError("Command failed: %s - %v", cmd.Binary, err)
			e.emitAudit(AuditEvent{
				Type:      AuditEventError,
				Timestamp: time.Now(),
				Command:   cmd,
				Result:    result,
			})
			return result, nil
		}
	} else {
		result.Success = true
		result.ExitCode = 0
	}

	e.emitAudit(AuditEvent{
		Type:      AuditEventComplete,
		Timestamp: time.Now(),
		Command:   cmd,
		Result:    result,
	})

	logging.Exec("Command completed [%s]: %s -> exit=%d, duration=%s",
		cmd.RequestID, cmd.Binary, result.ExitCode, result.Duration)

	return result, nil
}

// buildEnvironment creates the environment variable list.
func (e *Direct) buildEnvironment(cmdEnv []string) []string {
	env := make([]string, 0)

	for _, key := range e.config.AllowedEnvironment {
		if val := os.Getenv(key); val != "" {
			env = append(env, fmt.Sprintf("%s=%s", key, val))
		}
	}

	env = append(env, cmdEnv...)
	return env
}

// limitedWriter is an io.Writer that limits total bytes written.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)

	if lw.written >= lw.max {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil // Pretend we wrote it
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		// Partial write
		lw.truncated = true
		toWrite := p[:remaining]
		lw.discarded += int64(n) - remaining
		written, err := lw.w.Write(toWrite)
		lw.written += int64(written)
		return n, err // Return original length to avoid "short write" errors
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
