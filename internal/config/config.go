// Package config provides the layered configuration document: defaults
// merged with the user file, the workspace file, and environment
// variables, in that order.
package config

// Config is the root configuration document.
type Config struct {
	LLM       LLMConfig       `json:"llm"`
	Agent     AgentConfig     `json:"agent"`
	Workspace WorkspaceConfig `json:"workspace"`
	Tools     ToolsConfig     `json:"tools"`
	Database  DatabaseConfig  `json:"database"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
	Streaming StreamingConfig `json:"streaming"`
	Gates     GatesConfig     `json:"gates"`
	Memory    MemoryConfig    `json:"memory"`
	Users     []UserConfig    `json:"users,omitempty"`
	Family    FamilyConfig    `json:"family"`
}

// LLMConfig selects the active provider and default model parameters.
type LLMConfig struct {
	Provider    string           `json:"provider" envconfig:"LLM_PROVIDER"`
	APIKey      string           `json:"apiKey" envconfig:"LLM_API_KEY"`
	APIBase     string           `json:"apiBase,omitempty" envconfig:"LLM_API_BASE"`
	Model       string           `json:"model" envconfig:"LLM_MODEL"`
	MaxTokens   int              `json:"maxTokens" envconfig:"LLM_MAX_TOKENS"`
	Temperature float64          `json:"temperature" envconfig:"LLM_TEMPERATURE"`
	Providers   []ProviderConfig `json:"providers,omitempty"`
}

// ProviderConfig configures one entry of the provider registry.
type ProviderConfig struct {
	Name         string   `json:"name"`
	Provider     string   `json:"provider"` // canonical provider id, e.g. "openai", "anthropic"
	APIKey       string   `json:"apiKey"`
	APIBase      string   `json:"apiBase,omitempty"`
	Model        string   `json:"model"`
	PurposeTags  []string `json:"purposeTags,omitempty"`
	Priority     int      `json:"priority"`
}

// AgentConfig controls the agent loop's budgets and error policy.
type AgentConfig struct {
	MaxIterations           int    `json:"maxIterations" envconfig:"AGENT_MAX_ITERATIONS"`
	SummarizationThreshold  int    `json:"summarizationThreshold" envconfig:"AGENT_SUMMARIZATION_THRESHOLD"`
	TokenBudget             int    `json:"tokenBudget" envconfig:"AGENT_TOKEN_BUDGET"`
	ContextWindow           int    `json:"contextWindow" envconfig:"AGENT_CONTEXT_WINDOW"`
	ToolRetries             int    `json:"toolRetries" envconfig:"AGENT_TOOL_RETRIES"`
	OnLLMError              string `json:"onLLMError" envconfig:"AGENT_ON_LLM_ERROR"` // "stop" | "retry"
	MaxSubagentIterations   int    `json:"maxSubagentIterations" envconfig:"AGENT_MAX_SUBAGENT_ITERATIONS"`
	MaxSkillsInPrompt       int    `json:"maxSkillsInPrompt" envconfig:"AGENT_MAX_SKILLS_IN_PROMPT"`
	MaxSkillsPromptChars    int    `json:"maxSkillsPromptChars" envconfig:"AGENT_MAX_SKILLS_PROMPT_CHARS"`
}

// WorkspaceConfig locates the on-disk workspace layout.
type WorkspaceConfig struct {
	Dir          string `json:"dir" envconfig:"WORKSPACE_DIR"`
	MemoryDir    string `json:"memoryDir" envconfig:"WORKSPACE_MEMORY_DIR"`
	SessionsDir  string `json:"sessionsDir" envconfig:"WORKSPACE_SESSIONS_DIR"`
	SkillsDir    string `json:"skillsDir" envconfig:"WORKSPACE_SKILLS_DIR"`
}

// ToolsConfig bounds shell execution and file operations.
type ToolsConfig struct {
	ExecTimeoutMS    int      `json:"execTimeout" envconfig:"TOOLS_EXEC_TIMEOUT_MS"`
	ExecDenyPatterns []string `json:"execDenyPatterns,omitempty"`
	MaxFileSize      int64    `json:"maxFileSize" envconfig:"TOOLS_MAX_FILE_SIZE"`
}

// DatabaseConfig locates the embedded relational store.
type DatabaseConfig struct {
	Enabled bool   `json:"enabled" envconfig:"DATABASE_ENABLED"`
	Path    string `json:"path" envconfig:"DATABASE_PATH"`
}

// HeartbeatConfig enables the HEARTBEAT.md-driven scheduled check-in.
type HeartbeatConfig struct {
	Enabled         bool `json:"enabled" envconfig:"HEARTBEAT_ENABLED"`
	CheckIntervalMS int  `json:"checkIntervalMs" envconfig:"HEARTBEAT_CHECK_INTERVAL_MS"`
}

// StreamingConfig controls whether providers stream and how chat-bot
// chunk delivery is throttled.
type StreamingConfig struct {
	Enabled             bool `json:"enabled" envconfig:"STREAMING_ENABLED"`
	TelegramThrottleMS  int  `json:"telegramThrottleMs" envconfig:"STREAMING_TELEGRAM_THROTTLE_MS"`
}

// GatesConfig configures the confirmation gate in front of risky tools.
type GatesConfig struct {
	Enabled             bool     `json:"enabled" envconfig:"GATES_ENABLED"`
	ExecPatterns        []string `json:"execPatterns,omitempty"`
	InteractiveTimeoutMS int     `json:"interactiveTimeoutMs" envconfig:"GATES_INTERACTIVE_TIMEOUT_MS"`
	ChatTimeoutMS       int      `json:"chatTimeoutMs" envconfig:"GATES_CHAT_TIMEOUT_MS"`
}

// MemoryConfig toggles the vector search branch of hybrid memory search.
type MemoryConfig struct {
	VectorSearch bool `json:"vectorSearch" envconfig:"MEMORY_VECTOR_SEARCH"`
}

// UserConfig is one entry of the multi-tenant user registry.
type UserConfig struct {
	ID          string           `json:"id"`
	DisplayName string           `json:"displayName"`
	Identities  []UserIdentity   `json:"identities,omitempty"`
	ProfileDoc  string           `json:"profileDoc,omitempty"`
	Tools       AllowDenyConfig  `json:"tools"`
	Skills      AllowDenyConfig  `json:"skills"`
	ContentPolicy string         `json:"contentPolicy,omitempty"`
}

// UserIdentity binds a user to one channel-native account.
type UserIdentity struct {
	Channel         string `json:"channel"`
	ChannelUserID   string `json:"channelUserId,omitempty"`
	ChannelUsername string `json:"channelUsername,omitempty"`
}

// AllowDenyConfig is a per-user allow/deny list.
type AllowDenyConfig struct {
	Allow []string `json:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty"`
}

// FamilyConfig groups users sharing family-scoped memory.
type FamilyConfig struct {
	ID            string   `json:"id,omitempty"`
	GroupChatIDs  []string `json:"groupChatIds,omitempty"`
}

// BaselineDenyPatterns are the default exec-tool deny regular expressions,
// grounded on KafClaw's internal/tools.DenyPatterns.
var BaselineDenyPatterns = []string{
	`\brm\s+(-[rf]+\s+)*[/~]`,
	`\brm\s+-rf\b`,
	`\bgit\s+rm\b`,
	`\bfind\b.*\b-delete\b`,
	`\bdd\b.*\bof=/dev/`,
	`\bmkfs\b`,
	`\bfdisk\b`,
	`>\s*/dev/`,
	`\bchmod\s+-R\s+777\b`,
	`\bchown\s+-R\b.*[/~]`,
	`\bshutdown\b`,
	`\breboot\b`,
	`\bsystemctl\s+(start|stop|restart|enable|disable)\b`,
}

// BaselineGatePatterns are the default confirmation-gate exec patterns.
var BaselineGatePatterns = []string{
	`\brm\s+-rf\b`,
	`\bgit\s+push\s+--force\b`,
	`\bgit\s+reset\s+--hard\b`,
	`\bdrop\s+table\b`,
	`\bshutdown\b`,
	`\breboot\b`,
}

// DefaultConfig returns the built-in configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Agent: AgentConfig{
			MaxIterations:          20,
			SummarizationThreshold: 20,
			TokenBudget:            100000,
			ContextWindow:          128000,
			ToolRetries:            2,
			OnLLMError:             "retry",
			MaxSubagentIterations:  5,
			MaxSkillsInPrompt:      150,
			MaxSkillsPromptChars:   30000,
		},
		Workspace: WorkspaceConfig{
			Dir:         ".",
			MemoryDir:   "memory",
			SessionsDir: "sessions",
			SkillsDir:   "skills",
		},
		Tools: ToolsConfig{
			ExecTimeoutMS:    30000,
			ExecDenyPatterns: append([]string(nil), BaselineDenyPatterns...),
			MaxFileSize:      1048576,
		},
		Database: DatabaseConfig{
			Enabled: true,
			Path:    ".janus/janus.db",
		},
		Heartbeat: HeartbeatConfig{
			Enabled:         false,
			CheckIntervalMS: 60000,
		},
		Streaming: StreamingConfig{
			Enabled:            true,
			TelegramThrottleMS: 500,
		},
		Gates: GatesConfig{
			Enabled:              true,
			ExecPatterns:         append([]string(nil), BaselineGatePatterns...),
			InteractiveTimeoutMS: 30000,
			ChatTimeoutMS:        60000,
		},
		Memory: MemoryConfig{VectorSearch: false},
	}
}
