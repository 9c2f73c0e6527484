// Package gate implements the pattern-matched confirmation gate that sits
// in front of high-risk tool calls: exec-tool shell invocations that match
// a configured regular expression must be confirmed before they run.
package gate

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"sync"
	"time"
)

// Matcher reports whether (toolName, args) should be gated.
type Matcher func(toolName string, args map[string]any) bool

// PatternMatcher builds a Matcher from a set of case-insensitive regular
// expressions checked against the exec tool's "command" argument. Any
// invalid pattern is skipped rather than causing construction to fail,
// since patterns come from user-editable config.
func PatternMatcher(execToolName string, patterns []string) Matcher {
	var compiled []*regexp.Regexp
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			continue
		}
		compiled = append(compiled, re)
	}
	return func(toolName string, args map[string]any) bool {
		if toolName != execToolName {
			return false
		}
		cmd, _ := args["command"].(string)
		if cmd == "" {
			return false
		}
		for _, re := range compiled {
			if re.MatchString(cmd) {
				return true
			}
		}
		return false
	}
}

// Confirmer resolves a pending confirmation request to true or false.
// Implementations are channel-specific (terminal prompt, chat reply, MCP
// client round-trip); the gate package only defines the contract.
type Confirmer interface {
	Confirm(ctx context.Context, req *Request) (bool, error)
}

// Request describes one pending confirmation.
type Request struct {
	ID        string
	Tool      string
	Args      map[string]any
	ChannelID string
	ChatID    string
	CreatedAt time.Time
}

// Gate pairs a Matcher with a pending-confirmation registry. Callers that
// don't have a synchronous confirmer (e.g. a chat channel where the user
// replies later) call Create then Wait, and the channel resolves the
// request with Respond; tools.Registry, which asks a synchronous
// tools.Confirmer directly, only uses Matches.
type Gate struct {
	match Matcher

	mu      sync.Mutex
	pending map[string]chan bool
}

// New builds a Gate. match may be nil, in which case Matches always
// reports false and the gate never triggers.
func New(match Matcher) *Gate {
	return &Gate{match: match, pending: make(map[string]chan bool)}
}

// Matches reports whether the given tool call should be gated.
func (g *Gate) Matches(toolName string, args map[string]any) bool {
	if g.match == nil {
		return false
	}
	return g.match(toolName, args)
}

// Create registers a new pending confirmation and returns its ID.
func (g *Gate) Create() string {
	id := newRequestID()
	g.mu.Lock()
	g.pending[id] = make(chan bool, 1)
	g.mu.Unlock()
	return id
}

// Wait blocks until the request is resolved or ctx is done, in which case
// it resolves to false (default-deny-on-timeout, per spec).
func (g *Gate) Wait(ctx context.Context, id string) bool {
	g.mu.Lock()
	ch, ok := g.pending[id]
	g.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case approved := <-ch:
		g.cleanup(id)
		return approved
	case <-ctx.Done():
		g.cleanup(id)
		return false
	}
}

// Respond delivers a decision for a pending request. It's a no-op if the
// request is unknown or already resolved.
func (g *Gate) Respond(id string, approved bool) {
	g.mu.Lock()
	ch, ok := g.pending[id]
	g.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- approved:
	default:
	}
}

func (g *Gate) cleanup(id string) {
	g.mu.Lock()
	delete(g.pending, id)
	g.mu.Unlock()
}

func newRequestID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return fmt.Sprintf("gate-%d", time.Now().UnixNano())
}
