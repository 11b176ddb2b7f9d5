package llm

import "context"

// Message is one role/content pair in an outbound request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the fully assembled payload for the chat-completion endpoint:
// system persona first, then the trimmed history, then the new user turn.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float32
	TopP        float32
	MaxTokens   int
}

// Reply is a completed assistant response.
type Reply struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Stream is a lazy, finite, non-restartable sequence of text fragments.
// Recv returns io.EOF after the final fragment; Close tears down the
// underlying transport and may be called at any point.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Client sends assembled requests to the model provider. Implementations are
// purely functional given the request: no side effects beyond the network
// call.
type Client interface {
	Complete(ctx context.Context, req Request) (Reply, error)
	Stream(ctx context.Context, req Request) (Stream, error)
}
