package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	inputs [][]*schema.Message
	reply  string
	err    error
}

func (f *fakeModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func TestAgentKeepsSessionHistory(t *testing.T) {
	fm := &fakeModel{reply: "Try the bakery on 5th street."}
	agent, err := NewAgent(context.Background(), fm)
	require.NoError(t, err)

	text, err := agent.DetectIntent(context.Background(), "s1", "where is bread?")
	require.NoError(t, err)
	assert.Equal(t, "Try the bakery on 5th street.", text)

	_, err = agent.DetectIntent(context.Background(), "s1", "and milk?")
	require.NoError(t, err)

	require.Len(t, fm.inputs, 2)
	first, second := fm.inputs[0], fm.inputs[1]
	assert.Len(t, first, 2)
	assert.Equal(t, schema.System, first[0].Role)
	assert.Len(t, second, 4)
	assert.Equal(t, "where is bread?", second[1].Content)
	assert.Equal(t, "and milk?", second[3].Content)

	_, err = agent.DetectIntent(context.Background(), "s2", "hi")
	require.NoError(t, err)
	assert.Len(t, fm.inputs[2], 2, "sessions do not share history")
}

func TestAgentHistoryIsBounded(t *testing.T) {
	agent, err := NewAgent(context.Background(), &fakeModel{reply: "ok"})
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		_, err := agent.DetectIntent(context.Background(), "s", "msg")
		require.NoError(t, err)
	}
	assert.Len(t, agent.snapshot("s"), historyLimit)
}

func TestAgentModelError(t *testing.T) {
	agent, err := NewAgent(context.Background(), &fakeModel{err: errors.New("quota")})
	require.NoError(t, err)

	_, err = agent.DetectIntent(context.Background(), "s", "hi")
	assert.Error(t, err)
	assert.Empty(t, agent.snapshot("s"))
}

func TestNewAgentRequiresModel(t *testing.T) {
	_, err := NewAgent(context.Background(), nil)
	assert.Error(t, err)
}
