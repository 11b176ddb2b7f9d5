package llm

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/junyaoz/solace/backend/internal/config"
	"github.com/junyaoz/solace/backend/internal/fault"
)

// OpenAIClient talks to any GPT-compatible chat-completion endpoint with a
// bearer API key. Transient failures are retried per the configured policy;
// auth and provider failures surface immediately.
type OpenAIClient struct {
	client *openai.Client
	cfg    config.ModelConfig
	retry  Policy
}

// NewOpenAI builds a client from the model configuration.
func NewOpenAI(cfg config.ModelConfig) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(oc),
		cfg:    cfg,
		retry:  Policy{MaxAttempts: cfg.MaxAttempts},
	}
}

// Complete waits for the full completion and returns it as one unit.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Reply, error) {
	var reply Reply
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		actx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()

		resp, err := c.client.CreateChatCompletion(actx, c.toChatRequest(req, false))
		if err != nil {
			return classify(err)
		}
		if len(resp.Choices) == 0 {
			return fault.New(fault.Provider, "completion contained no choices")
		}

		reply = Reply{
			Content:          strings.TrimSpace(resp.Choices[0].Message.Content),
			Model:            resp.Model,
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
		return nil
	})
	if err != nil {
		return Reply{}, err
	}
	return reply, nil
}

// Stream opens a streaming completion. The retry budget applies to
// establishing the stream; the configured timeout bounds the whole stream.
// When provider streaming is disabled the reply is fetched in one blocking
// call and delivered as a single fragment.
func (c *OpenAIClient) Stream(ctx context.Context, req Request) (Stream, error) {
	if !c.cfg.Stream {
		reply, err := c.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		return &singleStream{content: reply.Content}, nil
	}

	sctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)

	var raw *openai.ChatCompletionStream
	err := c.retry.Do(sctx, func(ctx context.Context) error {
		s, err := c.client.CreateChatCompletionStream(ctx, c.toChatRequest(req, true))
		if err != nil {
			return classify(err)
		}
		raw = s
		return nil
	})
	if err != nil {
		cancel()
		return nil, err
	}

	return &openaiStream{raw: raw, cancel: cancel}, nil
}

func (c *OpenAIClient) toChatRequest(req Request, stream bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	model := req.Model
	if model == "" {
		model = c.cfg.Name
	}
	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
}

// singleStream yields one fragment then io.EOF. Used when provider
// streaming is turned off.
type singleStream struct {
	content string
	sent    bool
}

func (s *singleStream) Recv() (string, error) {
	if s.sent {
		return "", io.EOF
	}
	s.sent = true
	return s.content, nil
}

func (s *singleStream) Close() error { return nil }

type openaiStream struct {
	raw    *openai.ChatCompletionStream
	cancel context.CancelFunc
}

// Recv returns the next text fragment, io.EOF once the provider signals the
// end marker.
func (s *openaiStream) Recv() (string, error) {
	for {
		resp, err := s.raw.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", classify(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (s *openaiStream) Close() error {
	s.cancel()
	return s.raw.Close()
}

// classify maps a transport error onto the failure taxonomy. Context
// cancellation is passed through untouched so callers can tell a disconnected
// caller from a failing provider.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fault.New(fault.Timeout, "no response within deadline")
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, reqErr.Error())
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fault.New(fault.Timeout, "network timeout: %v", err)
	}
	return fault.New(fault.Network, "%v", err)
}

func classifyStatus(status int, detail string) *fault.Fault {
	switch {
	case status == 401 || status == 403:
		return fault.New(fault.Auth, "provider rejected credentials (status %d)", status)
	case status == 429:
		return fault.New(fault.RateLimited, "provider signalled backoff (status %d): %s", status, detail)
	case status == 408 || status == 504:
		return fault.New(fault.Timeout, "provider timed out (status %d)", status)
	default:
		return fault.New(fault.Provider, "unexpected provider response (status %d): %s", status, detail)
	}
}
