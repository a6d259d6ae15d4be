package main

import (
	"context"
	"encoding/json"

	"github.com/kaia-ai/kaia/pkg/domain"
	"github.com/kaia-ai/kaia/pkg/nl2sql"
	"github.com/kaia-ai/kaia/pkg/schema"
	"github.com/kaia-ai/kaia/pkg/tool"
)

// databaseTool exposes the NL-to-SQL pipeline to the function-calling loop,
// letting any agent answer data questions against the configured database.
func databaseTool(svc *nl2sql.Service) domain.Tool {
	params := schema.NewObject().
		String("question",
			schema.Description("The question to answer from the database, in plain language"),
			schema.Required()).
		Build()

	return &tool.Func{
		ToolName: "query_database",
		Desc:     "Answer a question by querying the application database (read-only)",
		Params:   params,
		Fn: func(ctx context.Context, callID string, args json.RawMessage) (*domain.ToolResult, error) {
			var p struct {
				Question string `json:"question"`
			}
			if err := json.Unmarshal(args, &p); err != nil || p.Question == "" {
				return &domain.ToolResult{CallID: callID, Content: "invalid arguments: question is required", IsError: true}, nil
			}

			ans, err := svc.Ask(ctx, p.Question)
			if err != nil {
				return &domain.ToolResult{CallID: callID, Content: "query failed: " + err.Error(), IsError: true}, nil
			}

			payload, err := json.Marshal(ans)
			if err != nil {
				return &domain.ToolResult{CallID: callID, Content: "encode result: " + err.Error(), IsError: true}, nil
			}
			return &domain.ToolResult{CallID: callID, Content: string(payload)}, nil
		},
	}
}
