package prompt

import (
	"strings"

	"github.com/junyaoz/solace/backend/internal/config"
	"github.com/junyaoz/solace/backend/internal/fault"
	"github.com/junyaoz/solace/backend/internal/llm"
	"github.com/junyaoz/solace/backend/internal/model/chat"
	"github.com/junyaoz/solace/backend/internal/persona"
)

// Assembler turns persona, transcript history and a new user message into the
// exact request payload for the model API.
type Assembler struct {
	model        config.ModelConfig
	historyLimit int
}

// NewAssembler binds the assembler to the model configuration and a history
// budget counted in non-system turns.
func NewAssembler(model config.ModelConfig, historyLimit int) *Assembler {
	return &Assembler{model: model, historyLimit: historyLimit}
}

// Build assembles the outbound request: persona system message first, then
// the trailing history window up to the budget (oldest turns dropped first),
// then the new user message. The user message is never dropped, even when the
// budget truncates the history to nothing.
func (a *Assembler) Build(p persona.Persona, history []chat.Turn, userMessage string) (llm.Request, error) {
	if strings.TrimSpace(p.SystemPrompt) == "" {
		return llm.Request{}, fault.New(fault.Configuration, "persona system prompt is empty")
	}

	window := a.window(history)

	messages := make([]llm.Message, 0, len(window)+2)
	messages = append(messages, llm.Message{Role: string(chat.RoleSystem), Content: p.SystemPrompt})
	for _, turn := range window {
		messages = append(messages, llm.Message{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: string(chat.RoleUser), Content: userMessage})

	return llm.Request{
		Model:       a.model.Name,
		Messages:    messages,
		Temperature: a.model.Temperature,
		TopP:        a.model.TopP,
		MaxTokens:   a.model.MaxTokens,
	}, nil
}

// window selects the newest non-system turns within the budget. The
// transcript's own leading system turn is skipped; the persona supplies the
// system message.
func (a *Assembler) window(history []chat.Turn) []chat.Turn {
	window := make([]chat.Turn, 0, len(history))
	for _, turn := range history {
		if turn.Role == chat.RoleSystem {
			continue
		}
		window = append(window, turn)
	}
	if len(window) > a.historyLimit {
		window = window[len(window)-a.historyLimit:]
	}
	return window
}
