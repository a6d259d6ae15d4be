package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/kaia-ai/kaia/pkg/agent"
	"github.com/kaia-ai/kaia/pkg/config"
	"github.com/kaia-ai/kaia/pkg/domain"
	"github.com/kaia-ai/kaia/pkg/llm"
	"github.com/kaia-ai/kaia/pkg/logger"
	"github.com/kaia-ai/kaia/pkg/nl2sql"
	"github.com/kaia-ai/kaia/pkg/tool"
	"github.com/kaia-ai/kaia/pkg/tracer"
)

// runtime holds everything a command needs after config wiring.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	clients *llm.Registry
	agents  *agent.Registry
	router  agent.Router
	sql     *nl2sql.Service
	sqlExec *nl2sql.Executor

	mcp      *tool.MCPBridge
	closeLog func() error
	shutdown func(context.Context) error
}

func (rt *runtime) close(ctx context.Context) {
	if rt.mcp != nil {
		rt.mcp.Close()
	}
	if rt.sqlExec != nil {
		rt.sqlExec.Close()
	}
	if rt.shutdown != nil {
		rt.shutdown(ctx)
	}
	if rt.closeLog != nil {
		rt.closeLog()
	}
}

// buildRuntime wires config -> logger -> tracer -> clients -> tools -> agents.
func buildRuntime(ctx context.Context, cfgPath string) (*runtime, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, logger: log, closeLog: closeLog}

	rt.shutdown, err = tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		rt.close(ctx)
		return nil, err
	}

	rt.clients, err = llm.BuildRegistry(cfg.LLM, log)
	if err != nil {
		rt.close(ctx)
		return nil, err
	}

	baseTools := tool.NewRegistry(log)
	if len(cfg.Tools.MCPServers) > 0 {
		rt.mcp, err = tool.NewMCPBridge(ctx, cfg.Tools.MCPServers, log)
		if err != nil {
			rt.close(ctx)
			return nil, fmt.Errorf("connect mcp servers: %w", err)
		}
		rt.mcp.RegisterAll(baseTools)
	}

	if cfg.NL2SQL.Enabled {
		if err := rt.buildNL2SQL(); err != nil {
			rt.close(ctx)
			return nil, err
		}
		registerTool(baseTools, cfg.Tools, databaseTool(rt.sql), log)
	}

	if err := rt.buildAgents(baseTools); err != nil {
		rt.close(ctx)
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) buildNL2SQL() error {
	cfg := rt.cfg.NL2SQL
	name := cfg.Client
	if name == "" {
		name = rt.cfg.LLM.DefaultClient
	}
	client, err := llm.Resolve(rt.cfg.LLM, rt.clients, name, rt.logger)
	if err != nil {
		return err
	}

	rt.sqlExec, err = nl2sql.NewExecutor(cfg.DBPath, cfg.MaxRows)
	if err != nil {
		return err
	}
	rt.sql = nl2sql.NewService(
		client,
		nl2sql.NewTemplater(cfg.MaxRows),
		nl2sql.NewValidator(cfg.Tables),
		rt.sqlExec,
		"",
		rt.logger,
	)
	return nil
}

// buildAgents registers one agent in single-agent mode, or every configured
// instance plus handoff wiring in multi-agent mode.
func (rt *runtime) buildAgents(baseTools *tool.Registry) error {
	cfg := rt.cfg
	if cfg.Agents == nil {
		client, err := llm.Default(cfg.LLM, rt.clients, rt.logger)
		if err != nil {
			return err
		}
		identity := agent.Identity{
			ID:           "assistant",
			Name:         "assistant",
			Client:       client.Name(),
			SystemPrompt: cfg.Agent.SystemPrompt,
		}
		opts := generationOpts(cfg.Agent.MaxToolIterations)
		inst := &agent.Instance{
			Identity: identity,
			Agent:    agent.New(identity, llm.NewToolsProvider(client, baseTools, rt.logger), opts, rt.logger),
			Sessions: agent.NewStore(cfg.Agent.DataDir),
		}
		rt.agents = agent.NewRegistry("assistant", rt.logger)
		rt.router = agent.NewDefaultRouter("assistant")
		return rt.agents.Register(inst)
	}

	rt.agents = agent.NewRegistry(cfg.Agents.Default, rt.logger)
	broker := agent.NewBroker(rt.agents, agent.DefaultMaxHandoffDepth, rt.logger)

	names := make(map[string]string, len(cfg.Agents.Instances))
	for _, ic := range cfg.Agents.Instances {
		clientName := ic.Client
		if clientName == "" {
			clientName = cfg.LLM.DefaultClient
		}
		client, err := llm.Resolve(cfg.LLM, rt.clients, clientName, rt.logger)
		if err != nil {
			return fmt.Errorf("agent %q: %w", ic.ID, err)
		}

		// Per-agent registry so the handoff tool can exclude its owner.
		tools := tool.NewRegistry(rt.logger)
		for _, t := range baseTools.List() {
			tools.Register(t)
		}
		if len(cfg.Agents.Instances) > 1 {
			registerTool(tools, cfg.Tools, agent.NewHandoffTool(broker, rt.agents, ic.ID), rt.logger)
		}

		identity := agent.Identity{
			ID:           ic.ID,
			Name:         ic.Name,
			Description:  ic.Description,
			Client:       clientName,
			Model:        ic.Model,
			SystemPrompt: ic.SystemPrompt,
		}
		maxIter := ic.MaxIter
		if maxIter == 0 {
			maxIter = cfg.Agent.MaxToolIterations
		}
		inst := &agent.Instance{
			Identity: identity,
			Agent:    agent.New(identity, llm.NewToolsProvider(client, tools, rt.logger), generationOpts(maxIter), rt.logger),
			Sessions: agent.NewStore(filepath.Join(cfg.Agent.DataDir, ic.ID)),
		}
		if err := rt.agents.Register(inst); err != nil {
			return err
		}
		names[strings.ToLower(ic.Name)] = ic.ID
	}

	switch cfg.Agents.Routing {
	case "prefix":
		rt.router = agent.NewPrefixRouterWithLogger(cfg.Agents.Default, names, rt.logger)
	case "rules":
		rules := make([]agent.RoutingRule, 0, len(cfg.Agents.RoutingRules))
		for _, rc := range cfg.Agents.RoutingRules {
			rules = append(rules, agent.RoutingRule{Channel: rc.Channel, GroupID: rc.GroupID, AgentID: rc.AgentID})
		}
		rt.router = agent.NewRuleRouterWithLogger(cfg.Agents.Default, rules, rt.logger)
	default:
		rt.router = agent.NewDefaultRouterWithLogger(cfg.Agents.Default, rt.logger)
	}
	return nil
}

func generationOpts(maxIter int) domain.GenerationOptions {
	return domain.GenerationOptions{ToolIterationLimit: maxIter}
}

// registerTool applies the configured middleware before registration.
func registerTool(reg *tool.Registry, cfg config.ToolsConfig, t domain.Tool, log *slog.Logger) {
	if cfg.Validate {
		wrapped, err := tool.WithValidation(t)
		if err != nil {
			log.Warn("tool schema invalid, registering unvalidated", "tool", t.Name(), "error", err)
		} else {
			t = wrapped
		}
	}
	if cfg.RateLimitPerSec > 0 {
		t = tool.WithRateLimit(t, rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	}
	reg.Register(t)
}

func runChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	cfgPath := fs.String("config", "./config.yaml", "config file path")
	sessionID := fs.String("session", "", "session to append to")
	if err := fs.Parse(args); err != nil {
		return err
	}

	message := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if message == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		message = strings.TrimSpace(string(data))
	}
	if message == "" {
		return fmt.Errorf("no message given")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, *cfgPath)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	agentID, err := rt.router.Route(ctx, agent.InboundMessage{Channel: "cli", Content: message})
	if err != nil {
		return err
	}
	inst, err := rt.agents.Get(agentID)
	if err != nil {
		return err
	}

	id := *sessionID
	if id == "" {
		id = fmt.Sprintf("cli_%d", time.Now().UnixMilli())
	}
	sess := inst.Sessions.GetOrCreate(id)

	reply, err := inst.Agent.Send(ctx, sess, message)
	if err != nil {
		return err
	}
	if err := inst.Sessions.Save(id); err != nil {
		rt.logger.Warn("session save failed", "session_id", id, "error", err)
	}

	fmt.Println(reply)
	return nil
}

func runAsk(args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	cfgPath := fs.String("config", "./config.yaml", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return fmt.Errorf("no question given")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, *cfgPath)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	if rt.sql == nil {
		return fmt.Errorf("nl2sql is not enabled in the config")
	}

	ans, err := rt.sql.Ask(ctx, question)
	if err != nil {
		return err
	}

	fmt.Printf("-- %s\n", ans.SQL)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ans.Rows); err != nil {
		return err
	}
	if ans.Truncated {
		fmt.Fprintln(os.Stderr, "(result truncated by row limit)")
	}
	return nil
}

func runAgents(args []string) error {
	fs := flag.NewFlagSet("agents", flag.ExitOnError)
	cfgPath := fs.String("config", "./config.yaml", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	rt, err := buildRuntime(ctx, *cfgPath)
	if err != nil {
		return err
	}
	defer rt.close(ctx)

	for _, st := range rt.agents.List() {
		model := st.Model
		if model == "" {
			model = "(client default)"
		}
		fmt.Printf("%-16s client=%-12s model=%-24s sessions=%d\n", st.ID, st.Client, model, st.ActiveSessions)
	}
	return nil
}
