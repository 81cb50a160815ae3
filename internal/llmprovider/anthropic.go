package llmprovider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"crawlforge/internal/model"
)

// AnthropicProvider adapts Claude's Messages API to the toolbag's Provider
// contract. One Generate call maps to one non-streaming Messages.New call.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
}

// NewAnthropicProvider constructs a provider that holds no API key.
// apiKey is taken per-request from the toolbag's api_key argument rather
// than from process configuration, so Generate accepts it via req.
func NewAnthropicProvider(defaultModel string) *AnthropicProvider {
	if defaultModel == "" {
		defaultModel = "claude-sonnet-4-20250514"
	}
	return &AnthropicProvider{defaultModel: defaultModel}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// clientFor builds a client scoped to one call's API key. The SDK client is
// cheap to construct and carries no persistent connection state.
func clientFor(apiKey string) anthropic.Client {
	return anthropic.NewClient(option.WithAPIKey(apiKey))
}

func (p *AnthropicProvider) Generate(ctx context.Context, req model.GenerateRequest) (model.GenerateResponse, error) {
	if req.APIKey == "" {
		return model.GenerateResponse{}, wrapErr("anthropic", fmt.Errorf("missing api key"))
	}
	client := clientFor(req.APIKey)

	messages, system, err := convertMessages(req.Messages)
	if err != nil {
		return model.GenerateResponse{}, wrapErr("anthropic", err)
	}

	modelID := req.Model
	if modelID == "" {
		modelID = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelID),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: system}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return model.GenerateResponse{}, wrapErr("anthropic", err)
		}
		params.Tools = tools
	}

	msg, err := client.Messages.New(ctx, params)
	if err != nil {
		return model.GenerateResponse{}, wrapErr("anthropic", err)
	}

	resp := model.GenerateResponse{
		StopKind: string(msg.StopReason),
		Usage: model.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Content += variant.Text
		case anthropic.ToolUseBlock:
			var args map[string]any
			_ = json.Unmarshal(variant.Input, &args)
			resp.ToolCalls = append(resp.ToolCalls, model.ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: args,
			})
		}
	}
	return resp, nil
}

func convertMessages(messages []model.Message) ([]anthropic.MessageParam, string, error) {
	var system string
	var out []anthropic.MessageParam

	for _, m := range messages {
		if m.Role == "system" {
			system += m.Content
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if m.Content != "" {
			content = append(content, anthropic.NewTextBlock(m.Content))
		}
		for _, tc := range m.ToolCalls {
			content = append(content, anthropic.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
		}
		if m.ToolResult != nil {
			text := fmt.Sprintf("%v", m.ToolResult.Output)
			if m.ToolResult.Error != "" {
				text = m.ToolResult.Error
			}
			content = append(content, anthropic.NewToolResultBlock(m.ToolResult.CallID, text, m.ToolResult.IsError))
		}
		if len(content) == 0 {
			continue
		}

		if m.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(content...))
		} else {
			out = append(out, anthropic.NewUserMessage(content...))
		}
	}
	return out, system, nil
}

func convertTools(tools []model.ToolSchema) ([]anthropic.ToolUnionParam, error) {
	var out []anthropic.ToolUnionParam
	for _, t := range tools {
		raw, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("encode schema for %s: %w", t.Name, err)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", t.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if param.OfTool != nil {
			param.OfTool.Description = anthropic.String(t.Description)
		}
		out = append(out, param)
	}
	return out, nil
}
