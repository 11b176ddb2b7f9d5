package stream

import (
	"context"
	"io"
	"log"
	"net/http"

	"github.com/junyaoz/solace/backend/internal/fault"
	"github.com/junyaoz/solace/backend/internal/session"
	"github.com/junyaoz/solace/backend/pkg/utils"
)

// Handler relays streaming replies to the browser over Server-Sent Events.
type Handler struct {
	orchestrator *session.Orchestrator
}

// New creates the stream handler.
func New(orchestrator *session.Orchestrator) *Handler {
	return &Handler{orchestrator: orchestrator}
}

// Event is one SSE payload. Event values: start, delta, message, end, error.
type Event struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

// HandleStreamRequest drives one streaming turn for the session. When the
// client disconnects mid-stream the context cancels, the upstream call is
// torn down and the partial reply is discarded.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, string(fault.Unknown), "streaming unsupported")
		return nil
	}

	utils.SetupSSEHeaders(w)

	replies, err := h.orchestrator.SubmitStream(ctx, sessionID, userMessage)
	if err != nil {
		h.sendError(w, flusher, err)
		return err
	}
	defer replies.Close()

	utils.SendSSEChunk(w, flusher, Event{Event: "start", SessionID: sessionID})

	for {
		frag, err := replies.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			h.sendError(w, flusher, err)
			return err
		}
		if frag == "" {
			continue
		}
		utils.SendSSEChunk(w, flusher, Event{Event: "delta", SessionID: sessionID, Content: frag})
	}

	utils.SendSSEChunk(w, flusher, Event{Event: "message", SessionID: sessionID, Content: replies.Text()})
	utils.SendSSEChunk(w, flusher, Event{Event: "end", SessionID: sessionID, Finished: true})

	log.Printf("[stream] completed response for session=%s", sessionID)
	return nil
}

func (h *Handler) sendError(w http.ResponseWriter, flusher http.Flusher, err error) {
	detail := err.Error()
	if f, ok := fault.As(err); ok {
		detail = f.Detail
	}
	utils.SendSSEChunk(w, flusher, Event{
		Event: "error",
		Kind:  string(fault.KindOf(err)),
		Error: detail,
	})
}
