package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wtokarzewski/janus-agent/internal/config"
)

var setupNonInteractive bool

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Guided configuration of the LLM provider",
	RunE:  runSetup,
}

func init() {
	setupCmd.Flags().BoolVar(&setupNonInteractive, "non-interactive", false, "Apply flag/env defaults only, skip prompts")
}

func runSetup(cmd *cobra.Command, args []string) error {
	printHeader("Setup")

	path, err := config.UserConfigPath()
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}

	cfg := config.DefaultConfig()
	if existing, err := config.Load("."); err == nil {
		cfg = existing
	}

	if setupNonInteractive {
		return config.Save(cfg)
	}

	reader := bufio.NewReader(os.Stdin)
	cfg.LLM.Provider = promptDefault(reader, "LLM provider", cfg.LLM.Provider)
	cfg.LLM.APIBase = promptDefault(reader, "API base URL", cfg.LLM.APIBase)
	cfg.LLM.Model = promptDefault(reader, "Default model", cfg.LLM.Model)

	if key := promptSecret(reader, "API key (leave blank to keep current)"); key != "" {
		cfg.LLM.APIKey = key
	}

	if raw := promptDefault(reader, "Max tokens per reply", strconv.Itoa(cfg.LLM.MaxTokens)); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.LLM.MaxTokens = n
		}
	}

	cfg.Workspace.Dir = promptDefault(reader, "Workspace directory", cfg.Workspace.Dir)

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("\nWrote %s\n", path)
	return nil
}

func promptDefault(reader *bufio.Reader, label, current string) string {
	if current != "" {
		fmt.Printf("%s [%s]: ", label, current)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	return line
}

func promptSecret(reader *bufio.Reader, label string) string {
	fmt.Printf("%s: ", label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
