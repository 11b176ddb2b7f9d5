package ws

import (
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/junyaoz/solace/backend/internal/fault"
	"github.com/junyaoz/solace/backend/internal/session"
)

// Handler relays streaming replies over a WebSocket connection, one inbound
// chat frame at a time.
type Handler struct {
	orchestrator *session.Orchestrator
	upgrader     websocket.Upgrader
}

// New creates the WebSocket handler.
func New(orchestrator *session.Orchestrator) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundFrame struct {
	Message string `json:"message"`
}

type outboundFrame struct {
	Event   string `json:"event"`
	Content string `json:"content,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[ws] connection opened session=%s", sessionID)

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read failed session=%s: %v", sessionID, err)
			}
			return
		}

		if err := h.relayTurn(r, conn, sessionID, frame.Message); err != nil {
			return
		}
	}
}

// relayTurn streams one reply back over the connection. Write failures abort
// the connection; fault-tagged turn failures are reported in-band and leave
// the connection open for the next frame.
func (h *Handler) relayTurn(r *http.Request, conn *websocket.Conn, sessionID, message string) error {
	replies, err := h.orchestrator.SubmitStream(r.Context(), sessionID, message)
	if err != nil {
		return h.writeError(conn, err)
	}
	defer replies.Close()

	if err := conn.WriteJSON(outboundFrame{Event: "start"}); err != nil {
		return err
	}

	for {
		frag, err := replies.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return h.writeError(conn, err)
		}
		if frag == "" {
			continue
		}
		if err := conn.WriteJSON(outboundFrame{Event: "delta", Content: frag}); err != nil {
			return err
		}
	}

	if err := conn.WriteJSON(outboundFrame{Event: "message", Content: replies.Text()}); err != nil {
		return err
	}
	return conn.WriteJSON(outboundFrame{Event: "end"})
}

func (h *Handler) writeError(conn *websocket.Conn, err error) error {
	detail := err.Error()
	if f, ok := fault.As(err); ok {
		detail = f.Detail
	}
	return conn.WriteJSON(outboundFrame{
		Event: "error",
		Kind:  string(fault.KindOf(err)),
		Error: detail,
	})
}
