package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wtokarzewski/janus-agent/internal/bus"
)

func writeMinimalWorkspace(t *testing.T, dir string) {
	t.Helper()
	cfgJSON := `{
  "workspace": {"dir": "."},
  "database": {"enabled": false},
  "gates": {"enabled": false},
  "llm": {"provider": "openai", "apiKey": "test-key", "model": "gpt-4o-mini"}
}`
	if err := os.WriteFile(filepath.Join(dir, "janus.json"), []byte(cfgJSON), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBuildRuntimeWiresCoreComponents(t *testing.T) {
	dir := t.TempDir()
	writeMinimalWorkspace(t, dir)
	t.Setenv("JANUS_HOME", dir)
	t.Chdir(dir)

	rt, err := buildRuntime(bus.NewMessageBus(), denyAllConfirmer{})
	if err != nil {
		t.Fatalf("buildRuntime: %v", err)
	}
	if rt.loop == nil {
		t.Error("expected a non-nil agent loop")
	}
	if rt.tools == nil {
		t.Error("expected a non-nil tool registry")
	}
	if rt.skills == nil {
		t.Error("expected a non-nil skills catalog")
	}
	if rt.store != nil {
		t.Error("expected a nil store since database.enabled=false")
	}
	if rt.scheduler != nil {
		t.Error("expected a nil scheduler when the store is unavailable")
	}
}
