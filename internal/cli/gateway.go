package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wtokarzewski/janus-agent/internal/bus"
	"github.com/wtokarzewski/janus-agent/internal/channel"
)

const gatewayChannelName = "gateway"

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run headless, keeping the agent loop and scheduler alive without a terminal",
	RunE:  runGateway,
}

func runGateway(cmd *cobra.Command, args []string) error {
	printHeader("Gateway")

	msgBus := bus.NewMessageBus()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sigCh
		cancel()
	}()

	confirmTimeout := 60 * time.Second
	if cfg, err := loadConfigOnly(); err == nil && cfg.Gates.ChatTimeoutMS > 0 {
		confirmTimeout = time.Duration(cfg.Gates.ChatTimeoutMS) * time.Millisecond
	}
	headless := channel.NewHeadless(msgBus, gatewayChannelName, confirmTimeout)

	rt, err := buildRuntime(msgBus, headless)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}

	go msgBus.DispatchOutbound(ctx)
	if rt.scheduler != nil {
		go rt.scheduler.Run(ctx)
		rt.startHeartbeat(ctx)
	}

	fmt.Println("gateway running, waiting for inbound messages (Ctrl-C to stop)")
	return rt.loop.Run(ctx)
}
