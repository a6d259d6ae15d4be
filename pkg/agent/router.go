package agent

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// InboundMessage is the routing view of an incoming message.
type InboundMessage struct {
	Channel string // originating channel name (e.g. "cli", "http")
	GroupID string // conversation group within the channel
	Content string
}

// Router decides which agent handles an inbound message.
type Router interface {
	Route(ctx context.Context, msg InboundMessage) (string, error)
}

// discardLogger returns a no-op logger for routers created without one.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// DefaultRouter always returns the default agent ID.
type DefaultRouter struct {
	defaultID string
	logger    *slog.Logger
}

// NewDefaultRouter creates a router that always routes to defaultID.
func NewDefaultRouter(defaultID string) *DefaultRouter {
	return &DefaultRouter{defaultID: defaultID, logger: discardLogger()}
}

// NewDefaultRouterWithLogger creates a DefaultRouter with debug logging.
func NewDefaultRouterWithLogger(defaultID string, logger *slog.Logger) *DefaultRouter {
	return &DefaultRouter{defaultID: defaultID, logger: logger}
}

func (r *DefaultRouter) Route(_ context.Context, msg InboundMessage) (string, error) {
	r.logger.Debug("routing to default agent", "agent_id", r.defaultID, "channel", msg.Channel)
	return r.defaultID, nil
}

// PrefixRouter parses an @agent-name prefix from the message content.
// Falls back to defaultID when no prefix or unknown agent.
type PrefixRouter struct {
	defaultID string
	known     map[string]string // name -> agentID
	logger    *slog.Logger
}

// NewPrefixRouter creates a router that parses @agent-name prefixes.
// agentNames maps lowercase agent names to their IDs.
func NewPrefixRouter(defaultID string, agentNames map[string]string) *PrefixRouter {
	return &PrefixRouter{defaultID: defaultID, known: agentNames, logger: discardLogger()}
}

// NewPrefixRouterWithLogger creates a PrefixRouter with debug logging.
func NewPrefixRouterWithLogger(defaultID string, agentNames map[string]string, logger *slog.Logger) *PrefixRouter {
	return &PrefixRouter{defaultID: defaultID, known: agentNames, logger: logger}
}

func (r *PrefixRouter) Route(_ context.Context, msg InboundMessage) (string, error) {
	content := strings.TrimSpace(msg.Content)
	if !strings.HasPrefix(content, "@") {
		r.logger.Debug("no @prefix, routing to default", "agent_id", r.defaultID)
		return r.defaultID, nil
	}

	// Extract the name after @, up to the first space.
	rest := content[1:]
	name := rest
	if idx := strings.IndexByte(rest, ' '); idx >= 0 {
		name = rest[:idx]
	}
	name = strings.ToLower(name)

	if agentID, ok := r.known[name]; ok {
		r.logger.Debug("prefix matched agent", "prefix", name, "agent_id", agentID)
		return agentID, nil
	}
	r.logger.Debug("unknown prefix, routing to default", "prefix", name, "agent_id", r.defaultID)
	return r.defaultID, nil
}

// RoutingRule maps a (channel, group) pair to an agent ID.
type RoutingRule struct {
	Channel string // channel name or "*" for any
	GroupID string // group ID or "*" for any
	AgentID string
}

// RuleRouter matches inbound messages against a list of routing rules.
// The first matching rule wins. Falls back to defaultID when nothing matches.
type RuleRouter struct {
	defaultID string
	rules     []RoutingRule
	logger    *slog.Logger
}

// NewRuleRouter creates a router that uses configured rules.
func NewRuleRouter(defaultID string, rules []RoutingRule) *RuleRouter {
	return &RuleRouter{defaultID: defaultID, rules: rules, logger: discardLogger()}
}

// NewRuleRouterWithLogger creates a RuleRouter with debug logging.
func NewRuleRouterWithLogger(defaultID string, rules []RoutingRule, logger *slog.Logger) *RuleRouter {
	return &RuleRouter{defaultID: defaultID, rules: rules, logger: logger}
}

func (r *RuleRouter) Route(_ context.Context, msg InboundMessage) (string, error) {
	for _, rule := range r.rules {
		channelMatch := rule.Channel == "*" || rule.Channel == msg.Channel
		groupMatch := rule.GroupID == "*" || rule.GroupID == msg.GroupID
		if channelMatch && groupMatch {
			r.logger.Debug("routing rule matched", "channel", msg.Channel, "group", msg.GroupID, "agent_id", rule.AgentID)
			return rule.AgentID, nil
		}
	}
	r.logger.Debug("no routing rule matched, using default", "channel", msg.Channel, "group", msg.GroupID, "agent_id", r.defaultID)
	return r.defaultID, nil
}
