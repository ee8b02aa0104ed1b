package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PathRequest is the input of read_file and list_directory.
type PathRequest struct {
	Path string `json:"path"`
}

// WriteRequest is the input of write_file.
type WriteRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// DirEntry is one list_directory result entry. Size is nil for directories.
type DirEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size *int64 `json:"size"`
}

func (t *Tools) handleReadFile(_ context.Context, input map[string]any) (string, error) {
	var req PathRequest
	if err := decodeInput(input, &req); err != nil {
		return "", err
	}
	content, err := t.ReadFile(req.Path)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	if content == "" {
		return "(empty file)", nil
	}
	return content, nil
}

func (t *Tools) handleWriteFile(_ context.Context, input map[string]any) (string, error) {
	var req WriteRequest
	if err := decodeInput(input, &req); err != nil {
		return "", err
	}
	if err := t.WriteFile(req.Path, req.Content); err != nil {
		return "Error: " + err.Error(), nil
	}
	return "Written to " + req.Path, nil
}

func (t *Tools) handleListDirectory(_ context.Context, input map[string]any) (string, error) {
	var req PathRequest
	if err := decodeInput(input, &req); err != nil {
		return "", err
	}
	entries, err := t.ListDirectory(req.Path)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	if len(entries) == 0 {
		return "(empty directory)", nil
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadFile returns the text content of a file under the active policy.
func (t *Tools) ReadFile(path string) (string, error) {
	resolved, err := t.policy.Resolve(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if errors.Is(err, os.ErrNotExist) {
		return "", errors.New("File not found")
	}
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", errors.New("Path is a directory")
	}
	if info.Size() > t.maxFileSize {
		return "", &FileTooLargeError{Path: resolved, Limit: t.maxFileSize}
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}
	if isBinaryContent(data) {
		return "", errors.New("Binary file cannot be read as text")
	}
	return string(data), nil
}

// WriteFile writes content, creating parent directories as needed.
func (t *Tools) WriteFile(path, content string) error {
	resolved, err := t.policy.Resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return err
	}
	return os.WriteFile(resolved, []byte(content), 0o644)
}

// ListDirectory lists non-hidden entries sorted by name, omitting entries
// ignored by the workspace .gitignore.
func (t *Tools) ListDirectory(path string) ([]DirEntry, error) {
	resolved, err := t.policy.Resolve(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(resolved)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.New("Directory not found")
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("Not a directory")
	}

	dirEntries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, err
	}

	ignore := loadIgnoreMatcher(t.policy.Workspace())
	rel, relErr := filepath.Rel(t.policy.Workspace(), resolved)
	inWorkspace := relErr == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))

	entries := make([]DirEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if inWorkspace && ignore.ShouldIgnore(filepath.Join(rel, name), de.IsDir()) {
			continue
		}

		entry := DirEntry{Name: name, Type: "file"}
		if de.IsDir() {
			entry.Type = "directory"
		} else if fi, err := de.Info(); err == nil {
			size := fi.Size()
			entry.Size = &size
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}
