package ai

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
)

const historyLimit = 10

// SystemPrompt frames the model as the FoodLoop marketplace assistant.
const SystemPrompt = `You are the FoodLoop assistant. FoodLoop connects restaurants, shops and households that have surplus food with people and charities who can use it.
Help users list donations, find nearby listings, arrange pickups and understand delivery confirmation.
Answer briefly and in plain language. If a question is unrelated to food donation or the marketplace, say so politely.`

// Agent answers widget messages with an LLM, keeping a short per-session
// history so follow-up questions have context.
type Agent struct {
	chain compose.Runnable[map[string]any, *schema.Message]

	mu      sync.Mutex
	history map[string][]*schema.Message
}

// NewAgent compiles the prompt chain around chatModel.
func NewAgent(ctx context.Context, chatModel model.BaseChatModel) (*Agent, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Agent{
		chain:   runnable,
		history: make(map[string][]*schema.Message),
	}, nil
}

// DetectIntent generates the assistant reply for text within sessionID.
func (a *Agent) DetectIntent(ctx context.Context, sessionID, text string) (string, error) {
	input := map[string]any{
		"system":  SystemPrompt,
		"history": a.snapshot(sessionID),
		"query":   text,
	}

	response, err := a.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	a.remember(sessionID, schema.UserMessage(text), schema.AssistantMessage(response.Content, nil))
	log.Debug().Str("session_id", sessionID).Int("length", len(response.Content)).Msg("generated ai response")
	return response.Content, nil
}

func (a *Agent) snapshot(sessionID string) []*schema.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*schema.Message(nil), a.history[sessionID]...)
}

func (a *Agent) remember(sessionID string, msgs ...*schema.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	h := append(a.history[sessionID], msgs...)
	if len(h) > historyLimit {
		h = h[len(h)-historyLimit:]
	}
	a.history[sessionID] = h
}
