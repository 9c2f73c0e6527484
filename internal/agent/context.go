// Package agent implements the coordinator that turns one inbound message
// into one outbound reply through zero or more tool-use iterations, plus
// the system-prompt assembly and off-path summarization that support it.
package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wtokarzewski/janus-agent/internal/bus"
	"github.com/wtokarzewski/janus-agent/internal/learner"
	"github.com/wtokarzewski/janus-agent/internal/memory"
	"github.com/wtokarzewski/janus-agent/internal/skills"
	"github.com/wtokarzewski/janus-agent/internal/tools"
)

// sectionSeparator delimits system-prompt sections.
const sectionSeparator = "\n\n---\n\n"

// memoryTopK is how many chunks the memory section includes from search,
// before the always-appended daily note.
const memoryTopK = 5

// ContextBuilder assembles the system prompt from workspace bootstrap
// files, skills, memory, and learner recommendations. It never talks to
// the agent loop directly: callers pass in everything it needs through
// BuildOptions.
type ContextBuilder struct {
	workspaceDir  string
	memoryDir     string
	homeDir       string
	toolRegistry  *tools.Registry
	skillCatalog  *skills.Catalog
	index         *memory.Index
	learner       *learner.Learner
	vectorSearch  bool
	maxSkills     int
	maxSkillChars int
}

// NewContextBuilder builds a ContextBuilder rooted at workspaceDir, with
// memoryDir relative to it. index and learner may be nil, in which case
// their sections degrade to the documented fallbacks.
func NewContextBuilder(
	workspaceDir, memoryDir, homeDir string,
	toolRegistry *tools.Registry,
	skillCatalog *skills.Catalog,
	idx *memory.Index,
	lrn *learner.Learner,
	vectorSearch bool,
	maxSkills, maxSkillChars int,
) *ContextBuilder {
	return &ContextBuilder{
		workspaceDir:  workspaceDir,
		memoryDir:     memoryDir,
		homeDir:       homeDir,
		toolRegistry:  toolRegistry,
		skillCatalog:  skillCatalog,
		index:         idx,
		learner:       lrn,
		vectorSearch:  vectorSearch,
		maxSkills:     maxSkills,
		maxSkillChars: maxSkillChars,
	}
}

// BuildOptions parameterizes one prompt assembly.
type BuildOptions struct {
	Mode              bus.ContextMode
	User              *bus.UserBinding
	UserProfile       string // profile document contents, already resolved by the caller
	UserToolAllow     []string
	UserToolDeny      []string
	UserSkillAllow    []string
	UserSkillDeny     []string
	Scope             *bus.Scope
	Channel           string
	ChatID            string
	UserMessage       string
	PreviousSummary   string
}

// Build assembles the system prompt.
func (b *ContextBuilder) Build(ctx context.Context, opts BuildOptions) string {
	full := opts.Mode != bus.ContextMinimal

	var sections []string
	sections = append(sections, b.identitySection(opts))

	if opts.User != nil {
		sections = append(sections, b.userSection(opts))
	}

	if full {
		if s, ok := b.fileSection("ego", filepath.Join(b.homeDir, ".janus", "EGO.md")); ok {
			sections = append(sections, s)
		}
		if s, ok := b.fileSection("agents", filepath.Join(b.workspaceDir, "AGENTS.md")); ok {
			sections = append(sections, s)
		}
		if s, ok := b.fileSection("heartbeat", filepath.Join(b.workspaceDir, "HEARTBEAT.md")); ok {
			sections = append(sections, s)
		}
		if s, ok := b.fileSection("project", filepath.Join(b.workspaceDir, "JANUS.md")); ok {
			sections = append(sections, s)
		}
	}

	sections = append(sections, b.skillsSection(opts))

	if full {
		sections = append(sections, b.memorySection(ctx, opts))
	}

	if full {
		if s, ok := b.learnerSection(ctx, opts); ok {
			sections = append(sections, s)
		}
	}

	sections = append(sections, b.sessionSection(opts))

	if opts.PreviousSummary != "" {
		sections = append(sections, "## previous_summary\n\n"+opts.PreviousSummary)
	}

	return strings.Join(sections, sectionSeparator)
}

func (b *ContextBuilder) identitySection(opts BuildOptions) string {
	var toolLines []string
	if b.toolRegistry != nil {
		toolLines = b.toolRegistry.Summaries(opts.UserToolAllow, opts.UserToolDeny)
	}
	var sb strings.Builder
	sb.WriteString("## identity\n\n")
	fmt.Fprintf(&sb, "Current time: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&sb, "Workspace: %s\n", b.workspaceDir)
	if len(toolLines) > 0 {
		sb.WriteString("Available tools:\n")
		for _, l := range toolLines {
			sb.WriteString("- " + l + "\n")
		}
	} else {
		sb.WriteString("Available tools: none\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *ContextBuilder) userSection(opts BuildOptions) string {
	var sb strings.Builder
	sb.WriteString("## user\n\n")
	fmt.Fprintf(&sb, "Name: %s\n", opts.User.DisplayName)
	fmt.Fprintf(&sb, "User id: %s\n", opts.User.UserID)
	if opts.UserProfile != "" {
		sb.WriteString("\n" + opts.UserProfile)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *ContextBuilder) fileSection(name, path string) (string, bool) {
	content, err := os.ReadFile(path)
	if err != nil || len(strings.TrimSpace(string(content))) == 0 {
		return "", false
	}
	return "## " + name + "\n\n" + strings.TrimSpace(string(content)), true
}

func (b *ContextBuilder) skillsSection(opts BuildOptions) string {
	var visible []skills.Skill
	if b.skillCatalog != nil {
		visible = b.skillCatalog.Visible(opts.UserSkillAllow, opts.UserSkillDeny)
	}
	return "## skills\n\n" + skills.BuildPromptSection(visible, b.maxSkills, b.maxSkillChars)
}

func (b *ContextBuilder) memorySection(ctx context.Context, opts BuildOptions) string {
	var sb strings.Builder
	sb.WriteString("## memory\n\n")

	scopeKind, scopeID := "", ""
	if opts.Scope != nil {
		scopeKind, scopeID = string(opts.Scope.Kind), opts.Scope.ID
	}

	var hits []memory.SearchResult
	if b.index != nil && opts.UserMessage != "" {
		var err error
		if b.vectorSearch {
			hits, err = b.index.HybridSearch(ctx, opts.UserMessage, scopeKind, scopeID, memoryTopK)
		} else {
			hits, err = b.index.KeywordSearch(ctx, opts.UserMessage, scopeKind, scopeID, memoryTopK)
		}
		if err != nil {
			hits = nil
		}
	}

	if len(hits) > 0 {
		for _, h := range hits {
			fmt.Fprintf(&sb, "<memory source=%q section=%q>\n%s\n</memory>\n\n", h.Chunk.Source, h.Chunk.Heading, h.Chunk.Content)
		}
		sb.WriteString(b.dailyNoteBlock(today()))
		return strings.TrimRight(sb.String(), "\n")
	}

	// Fallback: full MEMORY.md dump plus the last three daily notes.
	if content, ok := b.readMemoryFile("MEMORY.md"); ok {
		sb.WriteString("<memory source=\"MEMORY.md\">\n" + content + "\n</memory>\n\n")
	}
	for _, note := range b.recentDailyNotes(3) {
		sb.WriteString(note + "\n\n")
	}
	sb.WriteString(b.dailyNoteBlock(today()))
	return strings.TrimRight(sb.String(), "\n")
}

func (b *ContextBuilder) learnerSection(ctx context.Context, opts BuildOptions) (string, bool) {
	if b.learner == nil || opts.UserMessage == "" {
		return "", false
	}
	rec, err := b.learner.Recommend(ctx, opts.UserMessage)
	if err != nil || rec == nil || rec.SampleSize <= 3 {
		return "", false
	}
	var sb strings.Builder
	sb.WriteString("## learner\n\n")
	fmt.Fprintf(&sb, "Based on %d similar past executions: avg duration %.0fms, avg iterations %.1f, avg tool calls %.1f, success rate %.2f.\n",
		rec.SampleSize, rec.AvgDurationMS, rec.AvgIterations, rec.AvgToolCalls, rec.SuccessRate)
	for _, w := range rec.Warnings {
		sb.WriteString("- " + w + "\n")
	}
	return strings.TrimRight(sb.String(), "\n"), true
}

func (b *ContextBuilder) sessionSection(opts BuildOptions) string {
	var sb strings.Builder
	sb.WriteString("## session\n\n")
	fmt.Fprintf(&sb, "Channel: %s\n", opts.Channel)
	fmt.Fprintf(&sb, "Chat id: %s\n", opts.ChatID)
	if opts.User != nil {
		fmt.Fprintf(&sb, "User id: %s\n", opts.User.UserID)
	}
	if opts.Scope != nil {
		fmt.Fprintf(&sb, "Scope: %s/%s\n", opts.Scope.Kind, opts.Scope.ID)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func today() time.Time { return time.Now() }

func (b *ContextBuilder) dailyNotePath(t time.Time) string {
	return filepath.Join(b.workspaceDir, b.memoryDir, t.Format("2006-01-02")+".md")
}

func (b *ContextBuilder) dailyNoteBlock(t time.Time) string {
	content, ok := b.readMemoryFile(t.Format("2006-01-02") + ".md")
	if !ok {
		content = "(no entries yet)"
	}
	return fmt.Sprintf("<memory source=%q section=\"daily note\">\n%s\n</memory>\n", t.Format("2006-01-02")+".md", content)
}

func (b *ContextBuilder) readMemoryFile(name string) (string, bool) {
	content, err := os.ReadFile(filepath.Join(b.workspaceDir, b.memoryDir, name))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(content)), true
}

// recentDailyNotes returns up to n most recent daily-note blocks, most
// recent first, for the memory fallback path.
func (b *ContextBuilder) recentDailyNotes(n int) []string {
	dir := filepath.Join(b.workspaceDir, b.memoryDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) == len("2006-01-02.md") && strings.HasSuffix(name, ".md") {
			names = append(names, name)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	if len(names) > n {
		names = names[:n]
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		content, ok := b.readMemoryFile(name)
		if !ok {
			continue
		}
		out = append(out, fmt.Sprintf("<memory source=%q section=\"daily note\">\n%s\n</memory>", name, content))
	}
	return out
}

// appendDailyNote appends text to today's daily note, creating the
// memory directory and file if necessary.
func (b *ContextBuilder) appendDailyNote(text string) error {
	dir := filepath.Join(b.workspaceDir, b.memoryDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("agent: creating memory dir: %w", err)
	}
	path := b.dailyNotePath(today())
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("agent: opening daily note: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString("\n" + text + "\n"); err != nil {
		return fmt.Errorf("agent: appending to daily note: %w", err)
	}
	return nil
}
