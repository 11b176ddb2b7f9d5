package session

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/junyaoz/solace/backend/internal/fault"
	"github.com/junyaoz/solace/backend/internal/llm"
	"github.com/junyaoz/solace/backend/internal/model/chat"
	"github.com/junyaoz/solace/backend/internal/persona"
	"github.com/junyaoz/solace/backend/internal/prompt"
	"github.com/junyaoz/solace/backend/internal/transcript"
)

// Orchestrator drives one user turn through assembler, model client and
// transcript store. It is safe for concurrent use across sessions and
// serializes submits within a session: a second submit while one is in flight
// fails fast with a session-busy fault instead of queuing.
type Orchestrator struct {
	store     *transcript.Store
	assembler *prompt.Assembler
	client    llm.Client
	persona   persona.Persona

	transcriptCap int

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New wires the orchestrator. transcriptCap bounds how many non-system turns
// each session retains; zero or negative disables trimming.
func New(store *transcript.Store, assembler *prompt.Assembler, client llm.Client, p persona.Persona, transcriptCap int) *Orchestrator {
	return &Orchestrator{
		store:         store,
		assembler:     assembler,
		client:        client,
		persona:       p,
		transcriptCap: transcriptCap,
		inflight:      make(map[string]struct{}),
	}
}

// Persona exposes the counselor identity for the web layer.
func (o *Orchestrator) Persona() persona.Persona {
	return o.persona
}

// StartSession provisions a fresh session seeded with the persona system turn.
func (o *Orchestrator) StartSession() chat.Session {
	id := uuid.NewString()
	o.store.Append(id, chat.RoleSystem, o.persona.SystemPrompt)
	session, _ := o.store.Session(id)
	log.Printf("[session] created session=%s", id)
	return session
}

// History returns the trailing limit turns of the transcript; limit <= 0
// returns everything.
func (o *Orchestrator) History(sessionID string, limit int) []chat.Turn {
	turns := o.store.History(sessionID)
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns
}

// Submit runs one blocking conversation turn. On success the user and
// assistant turns are both recorded; on failure the user turn stays recorded
// and no assistant turn is appended.
func (o *Orchestrator) Submit(ctx context.Context, sessionID, message string) (llm.Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return llm.Reply{}, fault.New(fault.Validation, "message must not be empty")
	}

	if err := o.acquire(sessionID); err != nil {
		return llm.Reply{}, err
	}
	defer o.release(sessionID)

	req, err := o.prepare(sessionID, message)
	if err != nil {
		return llm.Reply{}, err
	}

	reply, err := o.client.Complete(ctx, req)
	if err != nil {
		log.Printf("[session] completion failed session=%s kind=%s", sessionID, fault.KindOf(err))
		return llm.Reply{}, err
	}

	o.recordAssistant(sessionID, reply.Content)
	return reply, nil
}

// RetryLast re-sends the last unanswered user turn without recording it
// again. It fails with a validation fault when the session has no unanswered
// user turn.
func (o *Orchestrator) RetryLast(ctx context.Context, sessionID string) (llm.Reply, error) {
	if err := o.acquire(sessionID); err != nil {
		return llm.Reply{}, err
	}
	defer o.release(sessionID)

	history := o.store.History(sessionID)
	if len(history) == 0 || history[len(history)-1].Role != chat.RoleUser {
		return llm.Reply{}, fault.New(fault.Validation, "no unanswered user turn to retry")
	}
	last := history[len(history)-1]

	req, err := o.assembler.Build(o.persona, history[:len(history)-1], last.Content)
	if err != nil {
		return llm.Reply{}, err
	}

	reply, err := o.client.Complete(ctx, req)
	if err != nil {
		return llm.Reply{}, err
	}

	o.recordAssistant(sessionID, reply.Content)
	return reply, nil
}

// SubmitStream starts a streaming conversation turn. The caller must drain
// the returned stream and Close it; the session stays busy until then. The
// assistant turn is committed only when the fragment sequence completes, so a
// cancelled stream leaves no partial turn behind.
func (o *Orchestrator) SubmitStream(ctx context.Context, sessionID, message string) (*ReplyStream, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fault.New(fault.Validation, "message must not be empty")
	}

	if err := o.acquire(sessionID); err != nil {
		return nil, err
	}

	req, err := o.prepare(sessionID, message)
	if err != nil {
		o.release(sessionID)
		return nil, err
	}

	inner, err := o.client.Stream(ctx, req)
	if err != nil {
		o.release(sessionID)
		log.Printf("[session] stream open failed session=%s kind=%s", sessionID, fault.KindOf(err))
		return nil, err
	}

	return &ReplyStream{o: o, sessionID: sessionID, inner: inner}, nil
}

// prepare validates session state, records the user turn and assembles the
// outbound request. Unknown sessions are auto-created and seeded.
func (o *Orchestrator) prepare(sessionID, message string) (llm.Request, error) {
	if _, ok := o.store.Session(sessionID); !ok {
		o.store.Append(sessionID, chat.RoleSystem, o.persona.SystemPrompt)
		log.Printf("[session] auto-created session=%s", sessionID)
	}

	o.store.Append(sessionID, chat.RoleUser, message)

	history := o.store.History(sessionID)
	// The turn just appended is passed separately as the new user message.
	return o.assembler.Build(o.persona, history[:len(history)-1], message)
}

func (o *Orchestrator) recordAssistant(sessionID, content string) {
	o.store.Append(sessionID, chat.RoleAssistant, content)
	if o.transcriptCap > 0 {
		o.store.Trim(sessionID, o.transcriptCap)
	}
}

func (o *Orchestrator) acquire(sessionID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[sessionID]; busy {
		return fault.New(fault.SessionBusy, "a request for session %s is already processing", sessionID)
	}
	o.inflight[sessionID] = struct{}{}
	return nil
}

func (o *Orchestrator) release(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, sessionID)
}
