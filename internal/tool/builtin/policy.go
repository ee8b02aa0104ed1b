package builtin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Mode controls how much the built-in tools may touch.
type Mode string

const (
	// ModeSandboxed confines paths to the workspace and commands to a safe list.
	ModeSandboxed Mode = "sandboxed"
	// ModeRestricted blocks sensitive paths and dangerous command patterns.
	ModeRestricted Mode = "restricted"
	// ModeFull allows everything.
	ModeFull Mode = "full"
)

var dangerousPatterns = []string{
	"rm -rf /",
	"rm -rf ~",
	"sudo rm",
	"mkfs",
	"> /dev/",
	"dd if=",
	":(){ :|:& };:", // fork bomb
	"chmod -R 777 /",
	"chown -R",
}

var safeCommands = map[string]bool{
	"ls": true, "cat": true, "head": true, "tail": true, "grep": true,
	"find": true, "pwd": true, "echo": true, "date": true, "whoami": true,
	"uname": true, "env": true, "which": true, "wc": true, "sort": true,
	"uniq": true, "diff": true, "file": true, "stat": true, "du": true,
	"df": true, "ps": true, "top": true, "curl": true, "wget": true,
	"python": true, "python3": true, "node": true, "npm": true, "git": true,
}

var sensitivePaths = []string{
	"/etc", "/usr", "/bin", "/sbin", "/boot", "/sys", "/proc",
	"~/.ssh", "~/.gnupg", "~/.aws", "~/.config/gcloud",
	"/var/log", "/var/lib",
}

// Policy resolves paths against the workspace and enforces the mode.
type Policy struct {
	workspace string
	mode      Mode
	home      string
}

// NewPolicy creates a policy rooted at workspace. The workspace is made
// absolute and symlinks in it are resolved when possible.
func NewPolicy(workspace string, mode Mode) (*Policy, error) {
	if workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		workspace = wd
	}
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("invalid workspace %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("invalid workspace %s: %w", abs, ErrNotADirectory)
	}

	home, _ := os.UserHomeDir()
	return &Policy{workspace: abs, mode: mode, home: home}, nil
}

// Workspace returns the canonical workspace root.
func (p *Policy) Workspace() string {
	return p.workspace
}

// Resolve makes path absolute relative to the workspace and checks it
// against the mode.
func (p *Policy) Resolve(path string) (string, error) {
	if path == "" {
		path = "."
	}
	if strings.HasPrefix(path, "~/") && p.home != "" {
		path = filepath.Join(p.home, path[2:])
	}

	var abs string
	if filepath.IsAbs(path) {
		abs = filepath.Clean(path)
	} else {
		abs = filepath.Clean(filepath.Join(p.workspace, path))
	}

	switch p.mode {
	case ModeFull:
		return abs, nil
	case ModeSandboxed:
		// Boundary check: must be the root itself or a child of the root
		if abs != p.workspace && !strings.HasPrefix(abs, p.workspace+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: %s", ErrOutsideWorkspace, abs)
		}
		return abs, nil
	default:
		for _, sensitive := range sensitivePaths {
			expanded := sensitive
			if strings.HasPrefix(sensitive, "~/") {
				if p.home == "" {
					continue
				}
				expanded = filepath.Join(p.home, sensitive[2:])
			}
			if abs == expanded || strings.HasPrefix(abs, expanded+string(filepath.Separator)) {
				return "", &BlockedError{Reason: fmt.Sprintf("Access to '%s' is blocked", sensitive)}
			}
		}
		return abs, nil
	}
}

// CheckCommand reports whether the mode allows command.
func (p *Policy) CheckCommand(command string) error {
	if p.mode == ModeFull {
		return nil
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(command, pattern) {
			return &BlockedError{Reason: "Blocked dangerous pattern: " + pattern}
		}
	}

	if p.mode == ModeSandboxed {
		base := filepath.Base(firstWord(command))
		if !safeCommands[base] {
			return &BlockedError{Reason: fmt.Sprintf("Command '%s' not in allowed list", base)}
		}
	}
	return nil
}

func firstWord(command string) string {
	fields := strings.FieldsFunc(command, unicode.IsSpace)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], `"'`)
}
