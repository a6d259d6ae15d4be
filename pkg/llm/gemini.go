package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/kaia-ai/kaia/pkg/config"
	"github.com/kaia-ai/kaia/pkg/domain"
	"github.com/kaia-ai/kaia/pkg/tracer"
)

// GeminiClient implements domain.ChatClient for the Google Gemini API.
type GeminiClient struct {
	name    string
	model   string
	apiKey  string
	baseURL string
	rest    restCaller
	logger  *slog.Logger
}

// NewGeminiClient creates a client for the Google Gemini API.
func NewGeminiClient(cfg config.ClientConfig, logger *slog.Logger) *GeminiClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	return &GeminiClient{
		name:    cfg.Name,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		rest:    restCaller{http: NewHTTPClient(cfg)},
		logger:  logger,
	}
}

// Chat implements domain.ChatClient.
func (c *GeminiClient) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx, span := tracer.StartSpan(ctx, "llm.chat",
		trace.WithAttributes(
			tracer.StringAttr("llm.client", c.name),
			tracer.StringAttr("llm.model", req.Model),
		),
	)
	defer span.End()

	if req.Model == "" {
		req.Model = c.model
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, req.Model, c.apiKey)

	respBody, err := c.rest.postJSON(ctx, url, toGeminiRequest(req), nil)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	var gemResp geminiResponse
	if err := json.Unmarshal(respBody, &gemResp); err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	result := fromGeminiResponse(gemResp)
	result.Raw = respBody
	setUsageAttrs(span, result.Usage)
	tracer.SetOK(span)
	logChatCompleted(c.logger, c.name, result)

	return result, nil
}

// Name implements domain.ChatClient.
func (c *GeminiClient) Name() string { return c.name }

// --- Gemini API wire types ---

type geminiRequest struct {
	Contents          []geminiContent  `json:"contents"`
	Tools             []geminiTool     `json:"tools,omitempty"`
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiGenConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string              `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall `json:"functionCall,omitempty"`
	FunctionResponse *geminiFuncResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type geminiFuncResponse struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFuncDecl `json:"functionDeclarations"`
}

type geminiFuncDecl struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata *geminiUsage      `json:"usageMetadata,omitempty"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// newGeminiCallID synthesizes a call ID for a Gemini function call. The API
// does not assign IDs itself, but the message model pairs every tool response
// with its call by ID, so one is minted at the boundary.
func newGeminiCallID() string {
	return "call_" + uuid.NewString()
}

func toGeminiRequest(req domain.ChatRequest) geminiRequest {
	gemReq := geminiRequest{}

	if sys := systemPrompt(req); sys != "" {
		gemReq.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: sys}},
		}
	}

	// Gemini function responses carry the tool name, not the call ID, so the
	// names are recovered from the tool-call turns earlier in the history.
	callNames := make(map[string]string)
	for _, m := range req.Messages {
		if m.Kind == domain.KindToolCall {
			callNames[m.CallID] = m.ToolName
		}
	}

	history := req.Messages
	for i := 0; i < len(history); {
		m := history[i]
		switch m.Kind {
		case domain.KindSystem:
			i++

		case domain.KindUser:
			gemReq.Contents = append(gemReq.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: m.Content}},
			})
			i++

		case domain.KindAssistant, domain.KindToolCall:
			gc := geminiContent{Role: "model"}
			if m.Kind == domain.KindAssistant {
				if m.Content != "" {
					gc.Parts = append(gc.Parts, geminiPart{Text: m.Content})
				}
				i++
			}
			for i < len(history) && history[i].Kind == domain.KindToolCall {
				tc := history[i]
				gc.Parts = append(gc.Parts, geminiPart{
					FunctionCall: &geminiFunctionCall{
						Name: tc.ToolName,
						Args: tc.Arguments,
					},
				})
				i++
			}
			if len(gc.Parts) == 0 {
				gc.Parts = []geminiPart{{Text: ""}}
			}
			gemReq.Contents = append(gemReq.Contents, gc)

		case domain.KindToolResponse:
			gc := geminiContent{Role: "function"}
			for i < len(history) && history[i].Kind == domain.KindToolResponse {
				tr := history[i]
				payload, _ := json.Marshal(map[string]string{"content": tr.Content})
				gc.Parts = append(gc.Parts, geminiPart{
					FunctionResponse: &geminiFuncResponse{
						Name:     callNames[tr.CallID],
						Response: payload,
					},
				})
				i++
			}
			gemReq.Contents = append(gemReq.Contents, gc)

		default:
			i++
		}
	}

	if req.Temperature > 0 || req.MaxTokens > 0 || len(req.StopSequences) > 0 {
		gc := &geminiGenConfig{
			MaxOutputTokens: req.MaxTokens,
			StopSequences:   req.StopSequences,
		}
		if req.Temperature > 0 {
			gc.Temperature = &req.Temperature
		}
		gemReq.GenerationConfig = gc
	}

	if len(req.Tools) > 0 {
		var decls []geminiFuncDecl
		for _, t := range req.Tools {
			decls = append(decls, geminiFuncDecl{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
		gemReq.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}

	return gemReq
}

func fromGeminiResponse(resp geminiResponse) *domain.ChatResponse {
	result := &domain.ChatResponse{
		CreatedAt: time.Now(),
	}

	if resp.UsageMetadata != nil {
		result.Usage = domain.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}

	if len(resp.Candidates) > 0 {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.FunctionCall != nil {
				result.ToolCalls = append(result.ToolCalls, domain.ToolCall{
					ID:        newGeminiCallID(),
					Name:      part.FunctionCall.Name,
					Arguments: part.FunctionCall.Args,
				})
			} else if part.Text != "" {
				result.Text = part.Text
			}
		}
	}

	return result
}

// ChatStream implements domain.StreamingChatClient.
func (c *GeminiClient) ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamDelta, error) {
	if req.Model == "" {
		req.Model = c.model
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse&key=%s",
		c.baseURL, req.Model, c.apiKey)

	body, err := c.rest.openStream(ctx, url, toGeminiRequest(req), nil)
	if err != nil {
		return nil, err
	}

	// Gemini streams unnamed events; each data payload is a response chunk.
	ch := readSSEEvents(ctx, body, func(_ string, data []byte) (*domain.StreamDelta, error) {
		var chunk geminiResponse
		if err := json.Unmarshal(data, &chunk); err != nil {
			return nil, err
		}

		delta := &domain.StreamDelta{}
		if len(chunk.Candidates) > 0 {
			for _, part := range chunk.Candidates[0].Content.Parts {
				if part.FunctionCall != nil {
					delta.ToolCalls = append(delta.ToolCalls, domain.ToolCall{
						ID:        newGeminiCallID(),
						Name:      part.FunctionCall.Name,
						Arguments: part.FunctionCall.Args,
					})
				} else if part.Text != "" {
					delta.Content += part.Text
				}
			}
		}
		if chunk.UsageMetadata != nil {
			delta.Usage = &domain.Usage{
				PromptTokens:     chunk.UsageMetadata.PromptTokenCount,
				CompletionTokens: chunk.UsageMetadata.CandidatesTokenCount,
				TotalTokens:      chunk.UsageMetadata.TotalTokenCount,
			}
		}
		return delta, nil
	})

	return ch, nil
}

// Compile-time interface checks.
var (
	_ domain.ChatClient          = (*GeminiClient)(nil)
	_ domain.StreamingChatClient = (*GeminiClient)(nil)
)
