package session

import (
	"io"
	"log"
	"strings"
	"sync"

	"github.com/junyaoz/solace/backend/internal/fault"
	"github.com/junyaoz/solace/backend/internal/llm"
)

// ReplyStream relays model fragments to the caller while buffering them for
// the final assistant turn. The turn is committed only when the provider
// sequence completes; abandoning or cancelling the stream discards the
// partial output and returns the session to idle.
type ReplyStream struct {
	o         *Orchestrator
	sessionID string
	inner     llm.Stream

	mu   sync.Mutex
	buf  strings.Builder
	done bool
}

// Recv returns the next text fragment. io.EOF signals successful completion,
// after which the concatenated assistant turn has been recorded. Any other
// error means the turn was discarded.
func (rs *ReplyStream) Recv() (string, error) {
	frag, err := rs.inner.Recv()
	if err == nil {
		rs.mu.Lock()
		rs.buf.WriteString(frag)
		rs.mu.Unlock()
		return frag, nil
	}

	if err == io.EOF {
		if ferr := rs.finish(); ferr != nil {
			return "", ferr
		}
		return "", io.EOF
	}

	rs.abandon()
	log.Printf("[session] stream failed session=%s kind=%s", rs.sessionID, fault.KindOf(err))
	return "", err
}

// Text returns the fragments received so far, concatenated.
func (rs *ReplyStream) Text() string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.buf.String()
}

// Close tears down the underlying stream. If the sequence had not completed,
// the buffered partial output is discarded and the session released.
func (rs *ReplyStream) Close() error {
	rs.abandon()
	return rs.inner.Close()
}

// finish commits the assistant turn and releases the session.
func (rs *ReplyStream) finish() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.done {
		return nil
	}
	rs.done = true

	content := strings.TrimSpace(rs.buf.String())
	if content == "" {
		rs.o.release(rs.sessionID)
		return fault.New(fault.Provider, "provider streamed an empty completion")
	}
	rs.o.recordAssistant(rs.sessionID, content)
	rs.o.release(rs.sessionID)
	return nil
}

// abandon releases the session without committing anything.
func (rs *ReplyStream) abandon() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.done {
		return
	}
	rs.done = true
	rs.o.release(rs.sessionID)
}
