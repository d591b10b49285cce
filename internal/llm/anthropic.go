package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel     = "claude-haiku-4-5-20251001"
	defaultAnthropicMaxTokens = 1024
)

type anthropicMessagesAPI interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	messages anthropicMessagesAPI
	modelID  string
}

func NewAnthropicClient(apiKey, modelID string) (*AnthropicClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: anthropic api key is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return newAnthropicClientWithAPI(&client.Messages, modelID), nil
}

func newAnthropicClientWithAPI(api anthropicMessagesAPI, modelID string) *AnthropicClient {
	if strings.TrimSpace(modelID) == "" {
		modelID = defaultAnthropicModel
	}
	return &AnthropicClient{messages: api, modelID: modelID}
}

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = c.modelID
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	messages := make([]sdk.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		block := sdk.NewTextBlock(msg.Content)
		switch msg.Role {
		case RoleAssistant:
			messages = append(messages, sdk.NewAssistantMessage(block))
		default:
			messages = append(messages, sdk.NewUserMessage(block))
		}
	}
	if len(messages) == 0 {
		return Response{}, errors.New("llm: anthropic requires at least one message")
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	for _, s := range req.System {
		if strings.TrimSpace(s) != "" {
			params.System = append(params.System, sdk.TextBlockParam{Text: s})
		}
	}
	if req.Temperature >= 0 {
		params.Temperature = sdk.Float(float64(req.Temperature))
	}

	msg, err := c.messages.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("llm: anthropic create message: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return Response{}, errors.New("llm: anthropic response contained no text")
	}

	return Response{
		Text:       strings.TrimSpace(text.String()),
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:  int32(msg.Usage.InputTokens),
			OutputTokens: int32(msg.Usage.OutputTokens),
		},
	}, nil
}
