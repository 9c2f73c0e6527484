package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wtokarzewski/janus-agent/internal/agent"
	"github.com/wtokarzewski/janus-agent/internal/bus"
	"github.com/wtokarzewski/janus-agent/internal/channel"
)

// interactiveConfirmTimeout reads just enough config to size the
// terminal's confirmation window before the rest of the runtime is wired,
// falling back to spec's 30s default if config can't be loaded yet.
func interactiveConfirmTimeout() time.Duration {
	cfg, err := loadConfigOnly()
	if err != nil {
		return 30 * time.Second
	}
	return time.Duration(cfg.Gates.InteractiveTimeoutMS) * time.Millisecond
}

func runRoot(cmd *cobra.Command, args []string) error {
	if messageFlag != "" {
		return runOneShot(messageFlag, sessionFlag)
	}
	return runInteractive()
}

// runOneShot processes a single message synchronously and prints the
// reply, for scripting and quick queries.
func runOneShot(message, sessionID string) error {
	msgBus := bus.NewMessageBus()
	term := channel.NewTerminal(msgBus, sessionID, interactiveConfirmTimeout())

	rt, err := buildRuntime(msgBus, term)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}

	ctx := context.Background()
	reply, err := rt.loop.ProcessDirect(ctx, message, agent.ProcessDirectOptions{
		Channel: "cli",
		ChatID:  sessionID,
	})
	if err != nil {
		return fmt.Errorf("processing message: %w", err)
	}
	fmt.Println(reply)
	return nil
}

// runInteractive starts the terminal REPL channel against a live agent
// loop, running until the user exits or the process receives SIGINT/SIGTERM.
func runInteractive() error {
	msgBus := bus.NewMessageBus()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sigCh
		cancel()
	}()

	term := channel.NewTerminal(msgBus, sessionFlag, interactiveConfirmTimeout())
	rt, err := buildRuntime(msgBus, term)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}

	go msgBus.DispatchOutbound(ctx)
	go func() {
		if err := rt.loop.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "agent loop stopped: %v\n", err)
		}
	}()

	if rt.scheduler != nil {
		go rt.scheduler.Run(ctx)
		rt.startHeartbeat(ctx)
	}

	return term.Run(ctx)
}
