package reasoning

import (
	"context"
	"encoding/json"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/atypis/runops/pkg/log"
)

const defaultModel = "gpt-4o"

// OpenAIEngine implements Engine against an OpenAI-compatible chat
// completions API.
type OpenAIEngine struct {
	client openai.Client
	model  string
}

// OpenAIOption configures an OpenAIEngine.
type OpenAIOption func(*OpenAIEngine)

func WithModel(model string) OpenAIOption {
	return func(e *OpenAIEngine) {
		e.model = model
	}
}

// NewOpenAIEngine creates the engine. An empty apiKey falls back to
// OPENAI_API_KEY; baseURL is optional for compatible providers.
func NewOpenAIEngine(apiKey, baseURL string, opts ...OpenAIOption) (*OpenAIEngine, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	if apiKey == "" {
		return nil, protocolError("api key is required (provide via config or OPENAI_API_KEY)")
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}

	engine := &OpenAIEngine{
		client: openai.NewClient(clientOpts...),
		model:  defaultModel,
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine, nil
}

// Invoke sends one chat completion request carrying the system instructions,
// the transcript and the tool catalog, and maps the answer back into a
// Result. Any transport failure or malformed answer is a protocol error.
func (e *OpenAIEngine) Invoke(ctx context.Context, systemInstructions string, transcript []Turn, catalog []ToolDefinition) (*Result, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(transcript)+1)

	if systemInstructions != "" {
		messages = append(messages, openai.SystemMessage(systemInstructions))
	}

	for _, turn := range transcript {
		converted, err := convertTurn(turn)
		if err != nil {
			return nil, err
		}

		messages = append(messages, converted)
	}

	completion, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(e.model),
		Messages: messages,
		Tools:    convertCatalog(catalog),
	})
	if err != nil {
		return nil, protocolError("chat completion failed: %v", err)
	}

	if len(completion.Choices) == 0 {
		return nil, protocolError("chat completion returned no choices")
	}

	message := completion.Choices[0].Message

	result := &Result{
		FinalText: message.Content,
		Usage: Usage{
			Input:           completion.Usage.PromptTokens,
			Output:          completion.Usage.CompletionTokens,
			Total:           completion.Usage.TotalTokens,
			ReasoningTokens: completion.Usage.CompletionTokensDetails.ReasoningTokens,
		},
	}

	for _, call := range message.ToolCalls {
		arguments := make(map[string]any)

		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &arguments); err != nil {
				return nil, protocolError("malformed arguments for tool %s: %v", call.Function.Name, err)
			}
		}

		result.ToolRequests = append(result.ToolRequests, ToolRequest{
			Name:      call.Function.Name,
			Arguments: arguments,
			CallID:    call.ID,
		})
	}

	log.WithModule("reasoning").Debug("engine turn completed",
		"model", e.model, "tool_requests", len(result.ToolRequests),
		"total_tokens", result.Usage.Total)

	return result, nil
}

func convertTurn(turn Turn) (openai.ChatCompletionMessageParamUnion, error) {
	switch turn.Role {
	case RoleAssistant:
		assistant := openai.ChatCompletionAssistantMessageParam{}

		if turn.Content != "" {
			assistant.Content.OfString = openai.String(turn.Content)
		}

		for _, call := range turn.ToolCalls {
			arguments, err := json.Marshal(call.Arguments)
			if err != nil {
				return openai.ChatCompletionMessageParamUnion{},
					protocolError("failed to serialize arguments for tool %s: %v", call.Name, err)
			}

			assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
				ID: call.CallID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      call.Name,
					Arguments: string(arguments),
				},
			})
		}

		return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}, nil
	case RoleTool:
		return openai.ToolMessage(turn.Content, turn.ToolCallID), nil
	default:
		return openai.UserMessage(turn.Content), nil
	}
}

func convertCatalog(catalog []ToolDefinition) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, 0, len(catalog))

	for _, tool := range catalog {
		tools = append(tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  openai.FunctionParameters(tool.Schema),
			},
		})
	}

	return tools
}
