package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[1:])
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path
}

// ReadFileTool reads a file, refusing anything past the caller's
// configured max file size.
type ReadFileTool struct {
	maxFileSize int64
}

func NewReadFileTool() *ReadFileTool { return &ReadFileTool{maxFileSize: 1 << 20} }

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read the contents of a file at the specified path." }

func (t *ReadFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "The path to the file to read"},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) SetContext(callCtx CallContext) {
	if callCtx.MaxFileSize > 0 {
		t.maxFileSize = callCtx.MaxFileSize
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path := GetString(args, "path", "")
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	path = expandPath(path)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", err
	}
	if t.maxFileSize > 0 && info.Size() > t.maxFileSize {
		return "", fmt.Errorf("file %s (%d bytes) exceeds the max readable size of %d bytes", path, info.Size(), t.maxFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return "", fmt.Errorf("permission denied: %s", path)
		}
		return "", err
	}
	return string(content), nil
}

// WriteFileTool writes content to a file, restricted to the workspace
// directory injected via SetContext.
type WriteFileTool struct {
	workspaceDir string
}

func NewWriteFileTool() *WriteFileTool { return &WriteFileTool{} }

func (t *WriteFileTool) Name() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "Write content to a file at the specified path, creating parent directories as needed."
}

func (t *WriteFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string", "description": "The path to the file to write"},
			"content": map[string]any{"type": "string", "description": "The content to write to the file"},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteFileTool) SetContext(callCtx CallContext) { t.workspaceDir = normalizeRoot(callCtx.WorkspaceDir) }

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path := GetString(args, "path", "")
	content := GetString(args, "content", "")
	if path == "" {
		return "", fmt.Errorf("path is required")
	}

	path = expandPath(path)
	if t.workspaceDir != "" && !isWithin(t.workspaceDir, path) {
		return "", fmt.Errorf("path outside workspace: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		if os.IsPermission(err) {
			return "", fmt.Errorf("permission denied: %s", path)
		}
		return "", err
	}
	return fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), path), nil
}

// EditFileTool replaces the first occurrence of old_text with new_text.
type EditFileTool struct {
	workspaceDir string
}

func NewEditFileTool() *EditFileTool { return &EditFileTool{} }

func (t *EditFileTool) Name() string { return "edit_file" }
func (t *EditFileTool) Description() string {
	return "Edit a file by replacing the first occurrence of old_text with new_text."
}

func (t *EditFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":     map[string]any{"type": "string", "description": "The path to the file to edit"},
			"old_text": map[string]any{"type": "string", "description": "The text to find and replace"},
			"new_text": map[string]any{"type": "string", "description": "The replacement text"},
		},
		"required": []string{"path", "old_text", "new_text"},
	}
}

func (t *EditFileTool) SetContext(callCtx CallContext) { t.workspaceDir = normalizeRoot(callCtx.WorkspaceDir) }

func (t *EditFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path := GetString(args, "path", "")
	oldText := GetString(args, "old_text", "")
	newText := GetString(args, "new_text", "")
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	if oldText == "" {
		return "", fmt.Errorf("old_text is required")
	}

	path = expandPath(path)
	if t.workspaceDir != "" && !isWithin(t.workspaceDir, path) {
		return "", fmt.Errorf("path outside workspace: %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", err
	}

	contentStr := string(content)
	if !strings.Contains(contentStr, oldText) {
		return "", fmt.Errorf("text not found in file: %s", path)
	}
	newContent := strings.Replace(contentStr, oldText, newText, 1)
	if err := os.WriteFile(path, []byte(newContent), 0644); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully edited %s", path), nil
}

// ListDirTool lists a directory's contents.
type ListDirTool struct{}

func NewListDirTool() *ListDirTool { return &ListDirTool{} }

func (t *ListDirTool) Name() string        { return "list_dir" }
func (t *ListDirTool) Description() string { return "List the contents of a directory." }

func (t *ListDirTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "The directory path to list"},
		},
	}
}

func (t *ListDirTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path := expandPath(GetString(args, "path", "."))

	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("directory not found: %s", path)
		}
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Contents of %s:\n", path)
	for _, e := range entries {
		if e.IsDir() {
			fmt.Fprintf(&b, "  [DIR]  %s/\n", e.Name())
			continue
		}
		info, _ := e.Info()
		if info != nil {
			fmt.Fprintf(&b, "  [FILE] %s (%d bytes)\n", e.Name(), info.Size())
		} else {
			fmt.Fprintf(&b, "  [FILE] %s\n", e.Name())
		}
	}
	return b.String(), nil
}

func normalizeRoot(root string) string {
	if root == "" {
		return ""
	}
	return expandPath(root)
}

func isWithin(root, path string) bool {
	if root == "" {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != ".."
}
