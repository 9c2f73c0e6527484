package tools

import (
	"context"
	"strings"
	"testing"
)

func TestExecToolRunsCommand(t *testing.T) {
	tool := NewExecTool()
	out, err := tool.Execute(context.Background(), map[string]any{"command": "echo hello"})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("expected output to contain 'hello', got %q", out)
	}
}

func TestExecToolBlocksDenyPattern(t *testing.T) {
	tool := NewExecTool()
	tool.SetContext(CallContext{ExecDenyPattern: []string{`rm\s+-rf`}})

	if _, err := tool.Execute(context.Background(), map[string]any{"command": "rm -rf /tmp/whatever"}); err == nil {
		t.Fatal("expected the deny pattern to block the command")
	}
}

func TestExecToolAllowsNonMatchingCommand(t *testing.T) {
	tool := NewExecTool()
	tool.SetContext(CallContext{ExecDenyPattern: []string{`rm\s+-rf`}})

	if _, err := tool.Execute(context.Background(), map[string]any{"command": "echo safe"}); err != nil {
		t.Fatalf("expected a non-matching command to run, got error: %v", err)
	}
}

func TestExecToolRespectsTimeout(t *testing.T) {
	tool := NewExecTool()
	tool.SetContext(CallContext{ExecTimeoutMS: 50})

	_, err := tool.Execute(context.Background(), map[string]any{"command": "sleep 2"})
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected a timeout-specific error, got %v", err)
	}
}

func TestExecToolMissingCommandErrors(t *testing.T) {
	tool := NewExecTool()
	if _, err := tool.Execute(context.Background(), map[string]any{}); err == nil {
		t.Fatal("expected an error for a missing command")
	}
}

func TestExecToolCapsReturnedOutput(t *testing.T) {
	tool := NewExecTool()
	// yes prints a repeating line; head bounds it well past the 50 KB
	// return cap so the tool must trim it itself.
	out, err := tool.Execute(context.Background(), map[string]any{
		"command": "yes line | head -c 200000",
	})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(out) > maxReturnedOutput+200 {
		t.Errorf("expected output capped near %d bytes, got %d", maxReturnedOutput, len(out))
	}
	if !strings.Contains(out, "truncated") {
		t.Errorf("expected a truncation marker, got a %d-byte result", len(out))
	}
}

func TestExecToolNoOutputMessage(t *testing.T) {
	tool := NewExecTool()
	out, err := tool.Execute(context.Background(), map[string]any{"command": "true"})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if out != "(no output)" {
		t.Errorf("expected '(no output)', got %q", out)
	}
}
