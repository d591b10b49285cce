package llm

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessages struct {
	params sdk.MessageNewParams
	msg    *sdk.Message
	err    error
}

func (f *fakeMessages) New(ctx context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	f.params = body
	return f.msg, f.err
}

func TestAnthropicClient_Complete(t *testing.T) {
	api := &fakeMessages{msg: &sdk.Message{
		Content:    []sdk.ContentBlockUnion{{Type: "text", Text: `{"priority":"high"}`}},
		StopReason: sdk.StopReasonEndTurn,
		Usage:      sdk.Usage{InputTokens: 10, OutputTokens: 5},
	}}
	client := newAnthropicClientWithAPI(api, "")

	resp, err := client.Complete(context.Background(), Request{
		System:   []string{"be strict"},
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"priority":"high"}`, resp.Text)
	assert.Equal(t, int32(5), resp.Usage.OutputTokens)
	assert.Equal(t, sdk.Model(defaultAnthropicModel), api.params.Model)
	assert.Equal(t, int64(defaultAnthropicMaxTokens), api.params.MaxTokens)
	require.Len(t, api.params.System, 1)
	assert.Equal(t, "be strict", api.params.System[0].Text)
}

func TestAnthropicClient_Errors(t *testing.T) {
	_, err := NewAnthropicClient("", "")
	assert.Error(t, err)

	boom := errors.New("overloaded")
	_, err = newAnthropicClientWithAPI(&fakeMessages{err: boom}, "m").Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	assert.ErrorIs(t, err, boom)

	_, err = newAnthropicClientWithAPI(&fakeMessages{msg: &sdk.Message{}}, "m").Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	assert.Error(t, err)

	_, err = newAnthropicClientWithAPI(&fakeMessages{}, "m").Complete(context.Background(), Request{})
	assert.Error(t, err)
}
