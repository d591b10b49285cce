// Package llm adapts hosted language-model APIs to a single completion call.
package llm

import (
	"context"
	"errors"
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrNoJSONObject is returned when a completion holds no JSON object.
var ErrNoJSONObject = errors.New("llm: response contained no JSON object")

// Message is one conversational turn.
type Message struct {
	Role    string
	Content string
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
}

// Request is a provider-neutral completion request. An empty Model uses the
// client's configured default.
type Request struct {
	Model       string
	System      []string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
}

type Response struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// Client is implemented by every provider adapter.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ExtractJSONObject returns the span from the first '{' to the last '}'.
// Models often wrap JSON in prose or code fences.
func ExtractJSONObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSONObject
	}
	return text[start : end+1], nil
}
