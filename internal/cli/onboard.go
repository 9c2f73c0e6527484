package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wtokarzewski/janus-agent/internal/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard [dir]",
	Short: "Scaffold a new workspace",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runOnboard,
}

// bootstrapFiles are the workspace files the context builder looks for by
// name; onboard seeds each with a short starter template so a fresh
// workspace has something meaningful in every prompt section.
var bootstrapFiles = map[string]string{
	"AGENTS.md":    "# Agents\n\nDescribe how this workspace's agent should behave.\n",
	"JANUS.md":     "# Project\n\nDescribe what this workspace is for.\n",
	"HEARTBEAT.md": "# Heartbeat\n\n" +
		"What should the agent check on its own, and how often. Each task is a\n" +
		"level-2 heading with a schedule (`every <N>m|h|d` or a 5-field cron\n" +
		"expression) and a task description; when heartbeat is enabled in the\n" +
		"config, these are upserted by name as scheduler jobs.\n\n" +
		"## Daily standup reminder\n" +
		"- schedule: every 24h\n" +
		"- task: Check for overdue todos in memory and summarize them.\n",
}

func runOnboard(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving %q: %w", dir, err)
	}

	printHeader("Onboard")
	fmt.Printf("Scaffolding workspace at %s\n", absDir)

	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return fmt.Errorf("creating workspace directory: %w", err)
	}

	cfg := config.DefaultConfig()
	cfg.Workspace.Dir = absDir
	for _, sub := range []string{cfg.Workspace.MemoryDir, cfg.Workspace.SessionsDir, cfg.Workspace.SkillsDir} {
		if err := os.MkdirAll(filepath.Join(absDir, sub), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", sub, err)
		}
	}

	for name, body := range bootstrapFiles {
		path := filepath.Join(absDir, name)
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("  skip  %s (already exists)\n", name)
			continue
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		fmt.Printf("  wrote %s\n", name)
	}

	wsConfigPath := filepath.Join(absDir, config.WorkspaceConfigFile)
	if _, err := os.Stat(wsConfigPath); os.IsNotExist(err) {
		data := []byte("{\n  \"workspace\": {\"dir\": \".\"}\n}\n")
		if err := os.WriteFile(wsConfigPath, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", config.WorkspaceConfigFile, err)
		}
		fmt.Printf("  wrote %s\n", config.WorkspaceConfigFile)
	}

	fmt.Println("\nWorkspace ready. Run `janus setup` to configure a provider, then `janus` to start.")
	return nil
}
