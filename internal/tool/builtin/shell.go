package builtin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ShellRequest is the input of builtin__shell.
type ShellRequest struct {
	Command string  `json:"command"`
	Timeout float64 `json:"timeout"` // seconds
	Cwd     string  `json:"cwd"`
}

// ShellResult is the outcome of a shell command, including blocked and
// timed-out runs.
type ShellResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// String renders the result the way the model sees it.
func (r ShellResult) String() string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(r.Stdout, "\n"))
	if stderr := strings.TrimRight(r.Stderr, "\n"); stderr != "" {
		b.WriteString("\n[stderr] ")
		b.WriteString(stderr)
	}
	if r.TimedOut {
		b.WriteString("\n[timed out]")
	}
	if r.ExitCode != 0 {
		b.WriteString("\n[exit code: " + strconv.Itoa(r.ExitCode) + "]")
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "(no output)"
	}
	return out
}

func (t *Tools) handleShell(ctx context.Context, input map[string]any) (string, error) {
	var req ShellRequest
	if err := decodeInput(input, &req); err != nil {
		return "", err
	}
	return t.RunShell(ctx, req).String(), nil
}

// RunShell executes a command under the active policy. Failures are
// reported in the result rather than as errors.
func (t *Tools) RunShell(ctx context.Context, req ShellRequest) ShellResult {
	if err := t.policy.CheckCommand(req.Command); err != nil {
		return ShellResult{Stderr: "Command blocked: " + err.Error(), ExitCode: -1}
	}

	dir, err := t.policy.Resolve(req.Cwd)
	if err != nil {
		return ShellResult{Stderr: err.Error(), ExitCode: -1}
	}

	timeout := t.shellTimeout
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout * float64(time.Second))
	}

	res, err := t.runner.Run(ctx, req.Command, dir, os.Environ(), timeout)
	if res == nil {
		return ShellResult{Stderr: err.Error(), ExitCode: -1}
	}

	out := ShellResult{Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode}
	if errors.Is(err, ErrTimeout) {
		out.TimedOut = true
		out.Stderr = strings.TrimSpace(out.Stderr + "\n" + fmt.Sprintf("Command timed out after %gs", timeout.Seconds()))
	}
	return out
}
