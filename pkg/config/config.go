// Package config loads the library's YAML configuration with defaults and
// environment expansion for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kaia-ai/kaia/pkg/tool"
)

// Config is the top-level configuration.
type Config struct {
	LLM    LLMConfig     `yaml:"llm"`
	Agent  AgentConfig   `yaml:"agent"`
	Agents *AgentsConfig `yaml:"agents,omitempty"` // nil = single-agent mode
	Tools  ToolsConfig   `yaml:"tools"`
	NL2SQL NL2SQLConfig  `yaml:"nl2sql"`
	Logger LoggerConfig  `yaml:"logger"`
	Tracer TracerConfig  `yaml:"tracer"`
}

// LLMConfig holds LLM client settings.
type LLMConfig struct {
	DefaultClient  string               `yaml:"default_client"`
	Clients        []ClientConfig       `yaml:"clients"`
	Failover       FailoverConfig       `yaml:"failover"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ClientConfig holds settings for a single LLM vendor client.
type ClientConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"` // "openai", "anthropic", "gemini"
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// PoolConfig holds HTTP connection pool settings for LLM clients.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// FailoverConfig lists fallback clients tried in order when the default fails.
type FailoverConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Fallbacks []string `yaml:"fallbacks"`
}

// CircuitBreakerConfig holds circuit breaker settings for LLM clients.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// AgentConfig holds single-agent settings.
type AgentConfig struct {
	SystemPrompt      string `yaml:"system_prompt"`
	MaxToolIterations int    `yaml:"max_tool_iterations"`
	DataDir           string `yaml:"data_dir"`
}

// AgentsConfig holds multi-agent settings.
type AgentsConfig struct {
	Default      string                `yaml:"default"`
	Routing      string                `yaml:"routing"` // "default", "prefix", "rules"
	RoutingRules []RoutingRuleConfig   `yaml:"routing_rules,omitempty"`
	Instances    []AgentInstanceConfig `yaml:"instances"`
}

// RoutingRuleConfig maps a (channel, group) pair to an agent.
type RoutingRuleConfig struct {
	Channel string `yaml:"channel"`
	GroupID string `yaml:"group_id"`
	AgentID string `yaml:"agent_id"`
}

// AgentInstanceConfig defines a single agent instance.
type AgentInstanceConfig struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	SystemPrompt string   `yaml:"system_prompt"`
	Model        string   `yaml:"model"`
	Client       string   `yaml:"client"`
	Tools        []string `yaml:"tools,omitempty"`
	MaxIter      int      `yaml:"max_iter,omitempty"`
}

// ToolsConfig holds tool middleware and MCP settings.
type ToolsConfig struct {
	Validate        bool             `yaml:"validate"`
	RateLimitPerSec float64          `yaml:"rate_limit_per_sec"` // 0 = disabled
	RateLimitBurst  int              `yaml:"rate_limit_burst"`
	MCPServers      []tool.MCPServer `yaml:"mcp_servers,omitempty"`
}

// NL2SQLConfig holds the natural-language-to-SQL settings.
type NL2SQLConfig struct {
	Enabled bool     `yaml:"enabled"`
	Client  string   `yaml:"client"`
	DBPath  string   `yaml:"db_path"`
	MaxRows int      `yaml:"max_rows"`
	Tables  []string `yaml:"tables,omitempty"` // allowlist; empty = any
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		LLM: LLMConfig{
			DefaultClient: "openai",
		},
		Agent: AgentConfig{
			SystemPrompt:      "You are a helpful assistant.",
			MaxToolIterations: 10,
			DataDir:           "./data",
		},
		Tools: ToolsConfig{
			Validate: true,
		},
		NL2SQL: NL2SQLConfig{
			MaxRows: 100,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, applies defaults for unset fields, and
// expands ${ENV_VAR} references in API keys.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	for i := range cfg.LLM.Clients {
		cfg.LLM.Clients[i].APIKey = os.ExpandEnv(cfg.LLM.Clients[i].APIKey)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks internal consistency.
func (c *Config) Validate() error {
	names := make(map[string]bool, len(c.LLM.Clients))
	for _, cc := range c.LLM.Clients {
		if cc.Name == "" {
			return fmt.Errorf("llm client with empty name")
		}
		if names[cc.Name] {
			return fmt.Errorf("duplicate llm client %q", cc.Name)
		}
		names[cc.Name] = true
		switch cc.Type {
		case "openai", "anthropic", "gemini", "":
		default:
			return fmt.Errorf("llm client %q: unknown type %q", cc.Name, cc.Type)
		}
	}

	if len(c.LLM.Clients) > 0 && !names[c.LLM.DefaultClient] {
		return fmt.Errorf("default llm client %q not configured", c.LLM.DefaultClient)
	}

	for _, fb := range c.LLM.Failover.Fallbacks {
		if !names[fb] {
			return fmt.Errorf("failover fallback %q not configured", fb)
		}
	}

	if c.Agent.MaxToolIterations < 0 {
		return fmt.Errorf("agent.max_tool_iterations must be >= 0")
	}
	return nil
}
