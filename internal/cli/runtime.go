package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wtokarzewski/janus-agent/internal/agent"
	"github.com/wtokarzewski/janus-agent/internal/bus"
	"github.com/wtokarzewski/janus-agent/internal/config"
	"github.com/wtokarzewski/janus-agent/internal/gate"
	"github.com/wtokarzewski/janus-agent/internal/heartbeat"
	"github.com/wtokarzewski/janus-agent/internal/learner"
	"github.com/wtokarzewski/janus-agent/internal/memory"
	"github.com/wtokarzewski/janus-agent/internal/provider"
	"github.com/wtokarzewski/janus-agent/internal/scheduler"
	"github.com/wtokarzewski/janus-agent/internal/session"
	"github.com/wtokarzewski/janus-agent/internal/skills"
	"github.com/wtokarzewski/janus-agent/internal/store"
	"github.com/wtokarzewski/janus-agent/internal/tools"
)

// runtime bundles the wired components a command needs: the bus and loop
// every command shares, plus the pieces (store, scheduler) only some of
// them touch directly.
type runtime struct {
	cfg           *config.Config
	bus           *bus.MessageBus
	loop          *agent.Loop
	tools         *tools.Registry
	skills        *skills.Catalog
	store         *store.Store
	scheduler     *scheduler.Scheduler
	heartbeatPath string
}

// startHeartbeat launches the HEARTBEAT.md watcher for commands that run
// the scheduler's tick loop (gateway, interactive). It's a no-op when
// heartbeat integration is disabled in config or the scheduler has no
// durable store to upsert jobs into.
func (rt *runtime) startHeartbeat(ctx context.Context) {
	if !rt.cfg.Heartbeat.Enabled || rt.scheduler == nil {
		return
	}
	interval := time.Duration(rt.cfg.Heartbeat.CheckIntervalMS) * time.Millisecond
	go heartbeat.Watch(ctx, rt.scheduler, rt.heartbeatPath, interval)
}

// loadConfigOnly loads just the configuration document, for callers that
// need one config value (e.g. a gate timeout) before the rest of the
// runtime can be wired.
func loadConfigOnly() (*config.Config, error) {
	return config.Load(".")
}

// buildRuntime loads configuration and wires every subsystem the agent
// loop depends on around msgBus, gating tool confirmation through
// confirmer. The bus is supplied rather than constructed here because the
// caller's channel adapter (terminal, headless) usually needs to register
// itself as an outbound handler on the same bus before the loop starts.
func buildRuntime(msgBus *bus.MessageBus, confirmer tools.Confirmer) (*runtime, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	workspaceDir, err := filepath.Abs(cfg.Workspace.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace dir: %w", err)
	}
	memoryDir := cfg.Workspace.MemoryDir
	sessionsDir := filepath.Join(workspaceDir, cfg.Workspace.SessionsDir)
	skillsDir := filepath.Join(workspaceDir, cfg.Workspace.SkillsDir)
	homeDir, _ := os.UserHomeDir()

	var st *store.Store
	if cfg.Database.Enabled {
		st, err = store.Open(filepath.Join(workspaceDir, cfg.Database.Path))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: database unavailable, memory/learner/scheduler run degraded: %v\n", err)
			st = nil
		}
	}

	registry, primary, err := buildProviderRegistry(cfg)
	if err != nil {
		return nil, err
	}
	index := memory.NewIndex(st, primary)
	lrn := learner.New(st)
	cat := skills.Load(skillsDir, filepath.Join(homeDir, ".janus", "skills"))

	g := gate.New(gate.PatternMatcher("exec", cfg.Gates.ExecPatterns))
	if !cfg.Gates.Enabled {
		g = gate.New(nil)
	}
	toolRegistry := tools.NewRegistry(g, confirmer)
	toolRegistry.Register(tools.NewReadFileTool())
	toolRegistry.Register(tools.NewWriteFileTool())
	toolRegistry.Register(tools.NewEditFileTool())
	toolRegistry.Register(tools.NewListDirTool())
	toolRegistry.Register(tools.NewExecTool())

	cb := agent.NewContextBuilder(
		workspaceDir, memoryDir, homeDir,
		toolRegistry, cat, index, lrn,
		cfg.Memory.VectorSearch,
		cfg.Agent.MaxSkillsInPrompt, cfg.Agent.MaxSkillsPromptChars,
	)

	sessions, err := session.NewManager(sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	summarizer := agent.NewSummarizer(sessions, registry, cb, cfg.Database.Enabled && st != nil)

	loop := agent.NewLoop(agent.LoopOptions{
		Bus:                    msgBus,
		Registry:               registry,
		Sessions:               sessions,
		Tools:                  toolRegistry,
		ContextBuilder:         cb,
		Summarizer:             summarizer,
		Learner:                lrn,
		Users:                  newUserResolver(cfg.Users),
		MaxIterations:          cfg.Agent.MaxIterations,
		ToolRetries:            cfg.Agent.ToolRetries,
		OnLLMError:             cfg.Agent.OnLLMError,
		SummarizationThreshold: cfg.Agent.SummarizationThreshold,
		TokenBudget:            cfg.Agent.TokenBudget,
		WorkspaceDir:           workspaceDir,
		ExecDenyPatterns:       cfg.Tools.ExecDenyPatterns,
		ExecTimeoutMS:          cfg.Tools.ExecTimeoutMS,
		MaxFileSize:            cfg.Tools.MaxFileSize,
		DefaultChannel:         "cli",
		DefaultChatID:          "default",
		DefaultMode:            bus.ContextFull,
		Streaming:              cfg.Streaming.Enabled,
		Model:                  cfg.LLM.Model,
		MaxTokens:              cfg.LLM.MaxTokens,
		Temperature:            cfg.LLM.Temperature,
	})

	var sched *scheduler.Scheduler
	if st != nil {
		sched = scheduler.New(st, msgBus)
	}

	return &runtime{
		cfg:           cfg,
		bus:           msgBus,
		loop:          loop,
		tools:         toolRegistry,
		skills:        cat,
		store:         st,
		scheduler:     sched,
		heartbeatPath: filepath.Join(workspaceDir, "HEARTBEAT.md"),
	}, nil
}

// buildProviderRegistry turns the configured primary LLM entry plus any
// additional named providers into a provider.Registry, and returns the
// primary entry's provider separately since it also serves as the
// embedder behind memory's vector search branch.
func buildProviderRegistry(cfg *config.Config) (*provider.Registry, *provider.OpenAIProvider, error) {
	primary := provider.NewOpenAIProvider(cfg.LLM.APIKey, cfg.LLM.APIBase, cfg.LLM.Model)
	entries := []provider.Entry{{
		Name:         "primary",
		Provider:     primary,
		DefaultModel: cfg.LLM.Model,
		Priority:     0,
	}}
	for _, p := range cfg.LLM.Providers {
		entries = append(entries, provider.Entry{
			Name:         p.Name,
			Provider:     provider.NewOpenAIProvider(p.APIKey, p.APIBase, p.Model),
			DefaultModel: p.Model,
			PurposeTags:  p.PurposeTags,
			Priority:     p.Priority,
		})
	}
	return provider.NewRegistry(entries), primary, nil
}
