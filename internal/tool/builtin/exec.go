package builtin

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"
)

// binarySampleSize matches Git's null-byte heuristic window.
const binarySampleSize = 8000

// Result represents the outcome of a command execution.
type Result struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Truncated bool
}

// runner executes shell commands with a timeout and graceful shutdown.
type runner struct {
	maxOutput int
	grace     time.Duration
}

// Run executes command through sh -c. On timeout the process receives an
// interrupt and is killed once the grace window passes. Output still held
// open by orphaned grandchildren is abandoned after the same window.
func (r *runner) Run(ctx context.Context, command, dir string, env []string, timeout time.Duration) (*Result, error) {
	// We don't use CommandContext's timeout here because we want to handle graceful shutdown
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdin = nil
	cmd.WaitDelay = r.grace

	stdout := &collector{maxBytes: r.maxOutput}
	stderr := &collector{maxBytes: r.maxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, &CommandError{Cmd: command, Cause: err, Stage: "start"}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var execErr error
	select {
	case err := <-done:
		execErr = err
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		execErr = ctx.Err()
	case <-timer.C:
		_ = cmd.Process.Signal(os.Interrupt)
		select {
		case <-done:
		case <-time.After(r.grace):
			_ = cmd.Process.Kill()
			<-done
		}
		execErr = ErrTimeout
	}

	exitCode := 0
	if execErr != nil {
		exitCode = exitCodeOf(execErr)
		if errors.Is(execErr, ErrTimeout) {
			exitCode = -1
		}
	}

	return &Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		ExitCode:  exitCode,
		Truncated: stdout.truncated || stderr.truncated,
	}, execErr
}

func exitCodeOf(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// collector captures command output with a size limit. Binary output is
// discarded and replaced by a marker.
type collector struct {
	buffer       bytes.Buffer
	maxBytes     int
	truncated    bool
	isBinary     bool
	bytesChecked int
}

func (c *collector) Write(p []byte) (int, error) {
	if c.isBinary {
		return len(p), nil
	}

	if c.bytesChecked < binarySampleSize {
		toCheck := p[:min(len(p), binarySampleSize-c.bytesChecked)]
		if isBinaryContent(toCheck) {
			c.isBinary = true
			c.truncated = true
			return len(p), nil
		}
		c.bytesChecked += len(toCheck)
	}

	remaining := c.maxBytes - c.buffer.Len()
	if remaining <= 0 {
		c.truncated = true
		return len(p), nil
	}

	toWrite := p
	if len(toWrite) > remaining {
		toWrite = toWrite[:remaining]
		c.truncated = true
	}
	if _, err := c.buffer.Write(toWrite); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *collector) String() string {
	if c.isBinary {
		return "[binary output omitted]"
	}
	return c.buffer.String()
}

// isBinaryContent looks for null bytes, treating UTF-16 and UTF-32 BOMs as text.
func isBinaryContent(content []byte) bool {
	if len(content) >= 2 {
		if (content[0] == 0xFF && content[1] == 0xFE) ||
			(content[0] == 0xFE && content[1] == 0xFF) {
			return false
		}
	}
	if len(content) >= 4 {
		if content[0] == 0x00 && content[1] == 0x00 && content[2] == 0xFE && content[3] == 0xFF {
			return false
		}
	}
	return bytes.IndexByte(content[:min(len(content), binarySampleSize)], 0) >= 0
}
