package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/junyaoz/solace/backend/internal/config"
	"github.com/junyaoz/solace/backend/internal/fault"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*OpenAIClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewOpenAI(config.ModelConfig{
		BaseURL:        srv.URL + "/v1",
		APIKey:         "test-key",
		Name:           "gpt-test",
		Temperature:    0.8,
		TopP:           0.9,
		MaxTokens:      500,
		Stream:         true,
		RequestTimeout: 2 * time.Second,
		MaxAttempts:    3,
	})
	c.retry = Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	return c, srv
}

func chatRequest() Request {
	return Request{
		Messages: []Message{
			{Role: "system", Content: "You are a counselor."},
			{Role: "user", Content: "I feel anxious"},
		},
	}
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"id":"cmpl-1","object":"chat.completion","model":"gpt-test",
		"choices":[{"index":0,"message":{"role":"assistant","content":%q}}],
		"usage":{"prompt_tokens":12,"completion_tokens":7,"total_tokens":19}}`, content)
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"invalid_request_error"}}`, message)
}

func TestCompleteSuccess(t *testing.T) {
	var gotAuth atomic.Value
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		writeCompletion(w, "Tell me more about that.")
	})

	reply, err := c.Complete(context.Background(), chatRequest())
	if err != nil {
		t.Fatalf("Complete err: %v", err)
	}
	if reply.Content != "Tell me more about that." {
		t.Fatalf("unexpected content: %q", reply.Content)
	}
	if reply.TotalTokens != 19 {
		t.Fatalf("usage not carried: %+v", reply)
	}
	if got := gotAuth.Load(); got != "Bearer test-key" {
		t.Fatalf("expected bearer auth header, got %v", got)
	}
}

func TestCompleteRateLimitedExhaustsBound(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeAPIError(w, http.StatusTooManyRequests, "rate limit exceeded")
	})

	_, err := c.Complete(context.Background(), chatRequest())
	if fault.KindOf(err) != fault.RateLimited {
		t.Fatalf("expected rate-limited fault, got %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("expected 3 attempts before surfacing, got %d", n)
	}
}

func TestCompleteRateLimitedThenSuccess(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeAPIError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		writeCompletion(w, "recovered")
	})

	reply, err := c.Complete(context.Background(), chatRequest())
	if err != nil {
		t.Fatalf("Complete err: %v", err)
	}
	if reply.Content != "recovered" {
		t.Fatalf("unexpected content: %q", reply.Content)
	}
}

func TestCompleteAuthErrorSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeAPIError(w, http.StatusUnauthorized, "invalid api key")
	})

	_, err := c.Complete(context.Background(), chatRequest())
	if fault.KindOf(err) != fault.Auth {
		t.Fatalf("expected auth fault, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("auth errors must not be retried, got %d attempts", n)
	}
	if f, _ := fault.As(err); f != nil && f.Detail == "invalid api key" {
		// Provider detail is intentionally dropped for credential failures.
		t.Fatalf("auth fault leaks provider message: %q", f.Detail)
	}
}

func TestCompleteProviderErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeAPIError(w, http.StatusInternalServerError, "upstream exploded")
	})

	_, err := c.Complete(context.Background(), chatRequest())
	if fault.KindOf(err) != fault.Provider {
		t.Fatalf("expected provider fault, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("provider errors must not be retried, got %d attempts", n)
	}
}

func TestCompleteTimeout(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	c.cfg.RequestTimeout = 50 * time.Millisecond

	_, err := c.Complete(context.Background(), chatRequest())
	if fault.KindOf(err) != fault.Timeout {
		t.Fatalf("expected timeout fault, got %v", err)
	}
}

func TestStreamDeliversFragmentsThenEOF(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, frag := range []string{"Tell me ", "more ", "about that."} {
			fmt.Fprintf(w, "data: {\"id\":\"cmpl-1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", frag)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stream, err := c.Stream(context.Background(), chatRequest())
	if err != nil {
		t.Fatalf("Stream err: %v", err)
	}
	defer stream.Close()

	var got string
	for {
		frag, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Recv err: %v", err)
		}
		got += frag
	}

	if got != "Tell me more about that." {
		t.Fatalf("unexpected concatenation: %q", got)
	}
}

func TestStreamDisabledFallsBackToBlocking(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, "Tell me more about that.")
	})
	c.cfg.Stream = false

	stream, err := c.Stream(context.Background(), chatRequest())
	if err != nil {
		t.Fatalf("Stream err: %v", err)
	}
	defer stream.Close()

	frag, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv err: %v", err)
	}
	if frag != "Tell me more about that." {
		t.Fatalf("unexpected fragment: %q", frag)
	}
	if _, err := stream.Recv(); err != io.EOF {
		t.Fatalf("expected io.EOF after single fragment, got %v", err)
	}
}

func TestStreamOpenFailureClassified(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeAPIError(w, http.StatusUnauthorized, "invalid api key")
	})

	_, err := c.Stream(context.Background(), chatRequest())
	if fault.KindOf(err) != fault.Auth {
		t.Fatalf("expected auth fault, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected single attempt, got %d", n)
	}
}
