package llmprovider

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"crawlforge/internal/model"
)

// OpenAIProvider adapts the chat-completions API to the toolbag's Provider
// contract via one non-streaming CreateChatCompletion call per Generate.
type OpenAIProvider struct {
	defaultModel string
}

// NewOpenAIProvider constructs a provider. Like AnthropicProvider, the API
// key travels per-request in GenerateRequest.APIKey rather than at
// construction time.
func NewOpenAIProvider(defaultModel string) *OpenAIProvider {
	if defaultModel == "" {
		defaultModel = "gpt-4o"
	}
	return &OpenAIProvider{defaultModel: defaultModel}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Generate(ctx context.Context, req model.GenerateRequest) (model.GenerateResponse, error) {
	if req.APIKey == "" {
		return model.GenerateResponse{}, wrapErr("openai", fmt.Errorf("missing api key"))
	}
	client := openai.NewClient(req.APIKey)

	modelID := req.Model
	if modelID == "" {
		modelID = p.defaultModel
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    modelID,
		Messages: convertOpenAIMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		tools, err := convertOpenAITools(req.Tools)
		if err != nil {
			return model.GenerateResponse{}, wrapErr("openai", err)
		}
		chatReq.Tools = tools
	}

	completion, err := client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return model.GenerateResponse{}, wrapErr("openai", err)
	}
	if len(completion.Choices) == 0 {
		return model.GenerateResponse{}, wrapErr("openai", fmt.Errorf("empty choices"))
	}

	choice := completion.Choices[0]
	resp := model.GenerateResponse{
		Content:  choice.Message.Content,
		StopKind: string(choice.FinishReason),
		Usage: model.Usage{
			InputTokens:  completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		resp.ToolCalls = append(resp.ToolCalls, model.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return resp, nil
}

func convertOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		switch {
		case m.ToolResult != nil:
			text := fmt.Sprintf("%v", m.ToolResult.Output)
			if m.ToolResult.Error != "" {
				text = m.ToolResult.Error
			}
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    text,
				ToolCallID: m.ToolResult.CallID,
			})
		case len(m.ToolCalls) > 0:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				args, _ := json.Marshal(tc.Arguments)
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
			out = append(out, msg)
		default:
			out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
		}
	}
	return out
}

func convertOpenAITools(tools []model.ToolSchema) ([]openai.Tool, error) {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return out, nil
}
