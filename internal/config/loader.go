package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// UserConfigDir and UserConfigFile locate the per-user config file.
const (
	UserConfigDir  = ".janus"
	UserConfigFile = "config.json"
	// WorkspaceConfigFile is the workspace-local override, checked relative
	// to the workspace directory once it's known.
	WorkspaceConfigFile = "janus.json"
)

// UserConfigPath returns ~/.janus/config.json, honoring JANUS_CONFIG and
// JANUS_HOME overrides.
func UserConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("JANUS_CONFIG")); explicit != "" {
		return expandHome(explicit)
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("JANUS_HOME")); h != "" {
		return expandHome(h)
	}
	return os.UserHomeDir()
}

func expandHome(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// Load builds the effective configuration by merging, in increasing
// priority: built-in defaults, the user config file, the workspace config
// file (<workspaceDir>/janus.json, if present), and environment
// variables. A missing file at either layer is not an error; a malformed
// one is.
func Load(workspaceDir string) (*Config, error) {
	cfg := DefaultConfig()

	userPath, err := UserConfigPath()
	if err == nil {
		if err := mergeFile(cfg, userPath); err != nil {
			return nil, fmt.Errorf("config: loading user config %s: %w", userPath, err)
		}
	}

	if workspaceDir != "" {
		wsPath := filepath.Join(workspaceDir, WorkspaceConfigFile)
		if err := mergeFile(cfg, wsPath); err != nil {
			return nil, fmt.Errorf("config: loading workspace config %s: %w", wsPath, err)
		}
	}

	applyEnv(cfg)

	if workspaceDir != "" && cfg.Workspace.Dir == DefaultConfig().Workspace.Dir {
		cfg.Workspace.Dir = workspaceDir
	}

	return cfg, nil
}

// mergeFile unmarshals path onto cfg in place. Fields absent from the JSON
// document leave cfg's existing values untouched, giving later layers
// override-only semantics without needing a separate deep-merge step.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides individual fields from environment variables, in the
// same JANUS_<GROUP>_<FIELD> shape KafClaw uses for its own prefix. Each
// field's envconfig tag already carries its group (LLM_MODEL, ...), so
// every group is processed under the bare JANUS prefix.
func applyEnv(cfg *Config) {
	envconfig.Process("JANUS", &cfg.LLM)
	envconfig.Process("JANUS", &cfg.Agent)
	envconfig.Process("JANUS", &cfg.Workspace)
	envconfig.Process("JANUS", &cfg.Tools)
	envconfig.Process("JANUS", &cfg.Database)
	envconfig.Process("JANUS", &cfg.Heartbeat)
	envconfig.Process("JANUS", &cfg.Streaming)
	envconfig.Process("JANUS", &cfg.Gates)
	envconfig.Process("JANUS", &cfg.Memory)

	if cfg.LLM.APIKey == "" {
		applyProviderEnv(cfg)
	}
}

// providerEnvPrecedence is the order in which <PROVIDER>_API_KEY variables
// are checked when llm.apiKey is absent from every prior config layer; the
// first one set wins and also selects the active provider.
var providerEnvPrecedence = []struct {
	provider string
	envVar   string
}{
	{"openrouter", "OPENROUTER_API_KEY"},
	{"anthropic", "ANTHROPIC_API_KEY"},
	{"openai", "OPENAI_API_KEY"},
	{"deepseek", "DEEPSEEK_API_KEY"},
	{"groq", "GROQ_API_KEY"},
}

func applyProviderEnv(cfg *Config) {
	for _, p := range providerEnvPrecedence {
		key := os.Getenv(p.envVar)
		if key == "" {
			continue
		}
		cfg.LLM.APIKey = key
		cfg.LLM.Provider = p.provider
		return
	}
}

// Save writes cfg as indented JSON to the user config path, creating the
// containing directory if needed.
func Save(cfg *Config) error {
	path, err := UserConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshaling: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("config: writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("config: renaming temp file: %w", err)
	}
	return nil
}
