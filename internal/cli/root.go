// Package cli assembles the janus binary's command tree: the root
// command's default interactive REPL and one-shot -m flag, plus the
// onboard, gateway, mcp-server, and setup subcommands.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/wtokarzewski/janus-agent/internal/cli.version=1.2.3"
	version = "0.1.0"
	logo    = "\n" +
		"       __\n" +
		"  __ _/ /_  ____ _\n" +
		" / _ ` / _ \\/ _ `/  janus\n" +
		" \\_,_/_//_/\\_,_/\n"
)

var messageFlag string
var sessionFlag string

var rootCmd = &cobra.Command{
	Use:   "janus",
	Short: "Janus - a personal autonomous agent runtime",
	Long:  color.CyanString(logo) + "\nA workspace-native agent loop with durable memory, scheduling, and tool execution.",
	RunE:  runRoot,
}

func init() {
	rootCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Send one message and print the reply, instead of starting the interactive REPL")
	rootCmd.PersistentFlags().StringVarP(&sessionFlag, "session", "s", "default", "Session/chat id to use")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(mcpServerCmd)
	rootCmd.AddCommand(setupCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the janus version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version)
	},
}
