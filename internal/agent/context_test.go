package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wtokarzewski/janus-agent/internal/bus"
	"github.com/wtokarzewski/janus-agent/internal/gate"
	"github.com/wtokarzewski/janus-agent/internal/skills"
	"github.com/wtokarzewski/janus-agent/internal/tools"
)

func newTestBuilder(t *testing.T) (*ContextBuilder, string) {
	t.Helper()
	workspace := t.TempDir()
	home := t.TempDir()
	registry := tools.NewRegistry(gate.New(nil), nil)
	catalog := skills.Load()
	b := NewContextBuilder(workspace, "memory", home, registry, catalog, nil, nil, false, 10, 500)
	return b, workspace
}

func TestBuildMinimalModeSkipsOptionalSections(t *testing.T) {
	b, _ := newTestBuilder(t)

	prompt := b.Build(context.Background(), BuildOptions{
		Mode:        bus.ContextMinimal,
		Channel:     "cli",
		ChatID:      "default",
		UserMessage: "hello",
	})

	for _, section := range []string{"## ego", "## agents", "## heartbeat", "## project", "## memory", "## learner"} {
		if strings.Contains(prompt, section) {
			t.Errorf("minimal mode prompt should not contain %q, got:\n%s", section, prompt)
		}
	}
	if !strings.Contains(prompt, "## identity") {
		t.Error("expected identity section always present")
	}
	if !strings.Contains(prompt, "## skills") {
		t.Error("expected skills section always present")
	}
	if !strings.Contains(prompt, "## session") {
		t.Error("expected session section always present")
	}
}

func TestBuildFullModeIncludesBootstrapFiles(t *testing.T) {
	b, workspace := newTestBuilder(t)
	if err := os.WriteFile(filepath.Join(workspace, "AGENTS.md"), []byte("be nice"), 0o644); err != nil {
		t.Fatal(err)
	}

	prompt := b.Build(context.Background(), BuildOptions{
		Mode:        bus.ContextFull,
		Channel:     "cli",
		ChatID:      "default",
		UserMessage: "hello",
	})

	if !strings.Contains(prompt, "## agents") || !strings.Contains(prompt, "be nice") {
		t.Errorf("expected agents section with file content, got:\n%s", prompt)
	}
}

func TestBuildFallsBackToMemoryFileAndDailyNotes(t *testing.T) {
	b, workspace := newTestBuilder(t)
	memDir := filepath.Join(workspace, "memory")
	if err := os.MkdirAll(memDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(memDir, "MEMORY.md"), []byte("user likes tea"), 0o644); err != nil {
		t.Fatal(err)
	}

	prompt := b.Build(context.Background(), BuildOptions{
		Mode:        bus.ContextFull,
		Channel:     "cli",
		ChatID:      "default",
		UserMessage: "what do I like",
	})

	if !strings.Contains(prompt, "user likes tea") {
		t.Errorf("expected MEMORY.md fallback content, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, "daily note") {
		t.Errorf("expected today's daily note block appended, got:\n%s", prompt)
	}
}

func TestBuildIncludesUserSectionWhenBound(t *testing.T) {
	b, _ := newTestBuilder(t)

	prompt := b.Build(context.Background(), BuildOptions{
		Mode:        bus.ContextFull,
		User:        &bus.UserBinding{UserID: "u1", DisplayName: "Alex"},
		UserProfile: "Alex prefers terse replies.",
		Channel:     "cli",
		ChatID:      "default",
		UserMessage: "hi",
	})

	if !strings.Contains(prompt, "## user") || !strings.Contains(prompt, "Alex") {
		t.Errorf("expected user section with display name, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Alex prefers terse replies.") {
		t.Errorf("expected profile doc inlined, got:\n%s", prompt)
	}
}

func TestAppendDailyNoteThenReadBack(t *testing.T) {
	b, _ := newTestBuilder(t)

	if err := b.appendDailyNote("did a thing"); err != nil {
		t.Fatal(err)
	}
	content, ok := b.readMemoryFile(today().Format("2006-01-02") + ".md")
	if !ok {
		t.Fatal("expected today's daily note to exist")
	}
	if !strings.Contains(content, "did a thing") {
		t.Errorf("expected appended text in daily note, got %q", content)
	}
}
