package nl2sql

import (
	"context"
	"log/slog"

	"github.com/kaia-ai/kaia/pkg/domain"
	"github.com/kaia-ai/kaia/pkg/tracer"
)

// Answer is the result of one natural-language query.
type Answer struct {
	SQL       string           `json:"sql"`
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Truncated bool             `json:"truncated"`
}

// Service wires the prompt templater, an LLM client, the read-only
// validator, and the executor into the question-to-rows pipeline.
type Service struct {
	client    domain.ChatClient
	templater *Templater
	validator *Validator
	executor  *Executor
	model     string
	logger    *slog.Logger
}

// NewService creates the NL-to-SQL service. model may be empty to use the
// client's default.
func NewService(client domain.ChatClient, templater *Templater, validator *Validator, executor *Executor, model string, logger *slog.Logger) *Service {
	return &Service{
		client:    client,
		templater: templater,
		validator: validator,
		executor:  executor,
		model:     model,
		logger:    logger,
	}
}

// Ask answers a natural-language question: render the schema-grounded
// prompt, obtain SQL from the model, validate it as read-only, execute it,
// and return the rows together with the SQL that produced them.
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	ctx, span := tracer.StartSpan(ctx, "nl2sql.ask")
	defer span.End()

	schema, err := s.executor.SchemaDDL(ctx)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp("nl2sql.schema", err)
	}

	prompt := s.templater.Render(schema, question)
	resp, err := s.client.Chat(ctx, domain.ChatRequest{
		Model:    s.model,
		Messages: []domain.Message{domain.NewUserMessage(prompt)},
	})
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp("nl2sql.generate", err)
	}

	stmt, ok := ExtractSQL(resp.Text)
	if !ok {
		err := domain.NewDomainError("Service.Ask", domain.ErrSQLExtract, resp.Text)
		tracer.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(tracer.StringAttr("nl2sql.sql", stmt))

	if err := s.validator.Validate(stmt); err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	cols, rows, truncated, err := s.executor.Query(ctx, stmt)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp("nl2sql.execute", err)
	}

	s.logger.Debug("nl2sql answered",
		"rows", len(rows),
		"truncated", truncated,
	)
	span.SetAttributes(tracer.IntAttr("nl2sql.rows", len(rows)))
	tracer.SetOK(span)

	return &Answer{SQL: stmt, Columns: cols, Rows: rows, Truncated: truncated}, nil
}
