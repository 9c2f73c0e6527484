// Package channel provides the concrete channel adapters that speak the
// message bus's publish/consume contract: an interactive terminal REPL
// and a minimal headless stub for the gateway command.
package channel

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/wtokarzewski/janus-agent/internal/bus"
)

const banner = "\n" +
	"       __\n" +
	"  __ _/ /_  ____ _\n" +
	" / _ ` / _ \\/ _ `/  ...janus\n" +
	" \\_,_/_//_/\\_,_/\n"

const terminalChannelName = "cli"

// Terminal is the interactive REPL channel adapter. It publishes each
// line of stdin as an inbound message and prints whatever the bus routes
// back to it, and it doubles as the tools.Confirmer for gated calls made
// while processing a terminal-originated message.
type Terminal struct {
	bus            *bus.MessageBus
	chatID         string
	reader         *bufio.Reader
	confirmTimeout time.Duration
	replies        chan *bus.OutboundMessage
}

// NewTerminal builds a Terminal bound to chatID, registering itself as
// the "cli" channel's outbound handler.
func NewTerminal(b *bus.MessageBus, chatID string, confirmTimeout time.Duration) *Terminal {
	t := &Terminal{
		bus:            b,
		chatID:         chatID,
		reader:         bufio.NewReader(os.Stdin),
		confirmTimeout: confirmTimeout,
		replies:        make(chan *bus.OutboundMessage, 4),
	}
	b.RegisterHandler(terminalChannelName, t.handleOutbound)
	return t
}

func (t *Terminal) handleOutbound(ctx context.Context, msg *bus.OutboundMessage) {
	switch msg.Type {
	case bus.KindChunk:
		fmt.Print(msg.Content)
		return
	case bus.KindStreamEnd:
		fmt.Println()
	default:
		fmt.Println(color.GreenString("janus> ") + msg.Content)
	}
	select {
	case t.replies <- msg:
	default:
	}
}

// Run reads stdin one line at a time, publishing each as an inbound
// message and waiting for the corresponding reply before prompting
// again, until stdin closes or the user types exit/quit.
func (t *Terminal) Run(ctx context.Context) error {
	fmt.Println(color.CyanString(banner))
	for {
		fmt.Print(color.CyanString("you> "))
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		if err := t.bus.PublishInbound(ctx, &bus.InboundMessage{
			Channel: terminalChannelName,
			ChatID:  t.chatID,
			Content: line,
		}); err != nil {
			return err
		}

		select {
		case <-t.replies:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Confirm implements tools.Confirmer. It is only ever invoked from the
// goroutine processing the message that triggered it, which by
// construction is not the same moment Run is blocked reading the next
// line, so the two never contend for stdin.
func (t *Terminal) Confirm(ctx context.Context, toolName string, args map[string]any) bool {
	fmt.Printf("\n%s %s %v? [y/N] ", color.YellowString("confirm"), toolName, args)

	confirmCtx, cancel := context.WithTimeout(ctx, t.confirmTimeout)
	defer cancel()

	approved := make(chan bool, 1)
	go func() {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			approved <- false
			return
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		approved <- answer == "y" || answer == "yes"
	}()

	select {
	case ok := <-approved:
		return ok
	case <-confirmCtx.Done():
		fmt.Println(color.RedString("confirmation timed out, denying"))
		return false
	}
}
