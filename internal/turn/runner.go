// Package turn executes one conversation turn end to end: advance the state
// machine, run the model when the machine asks for it, rewrite the links
// section, and persist the session and transcript.
package turn

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/evinav/internal/machine"
	"github.com/user/evinav/internal/postproc"
	"github.com/user/evinav/internal/prompt"
	"github.com/user/evinav/internal/types"
	"github.com/user/evinav/pkg/llm"
)

// fallbackReply covers model outages. Deterministic paths never need it.
const fallbackReply = "I'm having trouble answering that right now - please try again in a moment. For urgent medical help use NHS 111 online or call 111; in an emergency call 999."

// Runner processes turns. It owns no mutable state of its own; the gateway
// guarantees at most one in-flight turn per session.
type Runner struct {
	sessions    types.SessionStore
	transcripts types.TranscriptStore
	machine     *machine.Machine
	provider    llm.Provider
	engine      *prompt.Engine
	post        *postproc.Rewriter
}

// New wires a Runner. provider may be nil; the freeform path then degrades
// to the fallback reply while every deterministic path keeps working.
func New(
	sessions types.SessionStore,
	transcripts types.TranscriptStore,
	m *machine.Machine,
	provider llm.Provider,
	engine *prompt.Engine,
	post *postproc.Rewriter,
) *Runner {
	return &Runner{
		sessions:    sessions,
		transcripts: transcripts,
		machine:     m,
		provider:    provider,
		engine:      engine,
		post:        post,
	}
}

// HandleTurn processes one user message against the session with the given
// id. An empty or unknown id starts a fresh session. Returns the reply and
// the id the session ended up under.
func (r *Runner) HandleTurn(ctx context.Context, sessionID types.SessionID, source, message string) (string, types.SessionID, error) {
	if sessionID == "" {
		sessionID = types.NewSessionID()
	}
	sess, err := r.sessions.Load(ctx, sessionID)
	if err != nil {
		return "", "", fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		sess = types.NewSession(sessionID)
	}

	res := r.machine.Advance(ctx, sess, message)

	reply := res.Reply
	if res.NeedsLLM {
		reply = r.complete(ctx, sess)
	}
	reply = r.post.Rewrite(reply, res.Categories)
	if len(res.Suggestions) > 0 {
		reply += "\n\nYou could ask next:"
		for _, s := range res.Suggestions {
			reply += "\n- " + s
		}
	}
	sess.Append("assistant", reply)

	if err := r.sessions.Save(ctx, sess); err != nil {
		return "", "", fmt.Errorf("save session: %w", err)
	}

	// Transcript lines only after a successful save: a retried turn must
	// not re-log records from an attempt that never persisted.
	r.record(ctx, sess.ID, "user", message, source)
	for _, inv := range res.Invocations {
		r.record(ctx, sess.ID, "tool", invocationText(inv), source)
	}
	r.record(ctx, sess.ID, "assistant", reply, source)

	return reply, sess.ID, nil
}

// complete runs the freeform model path. Failures degrade to the fallback
// reply rather than failing the turn.
func (r *Runner) complete(ctx context.Context, sess *types.Session) string {
	if r.provider == nil {
		return fallbackReply
	}
	messages, err := r.engine.BuildPrompt(sess)
	if err != nil {
		slog.Error("build prompt failed", "session_id", sess.ID, "error", err)
		return fallbackReply
	}
	resp, err := r.provider.Complete(ctx, messages)
	if err != nil {
		slog.Error("completion failed", "session_id", sess.ID, "error", err)
		return fallbackReply
	}
	slog.Debug("completion ok", "session_id", sess.ID, "tokens", resp.Usage.TotalTokens)
	return resp.Content
}

// record appends a transcript line. Transcript failures are logged, not
// fatal: losing a log line must not lose the user's reply.
func (r *Runner) record(ctx context.Context, sid types.SessionID, role, text, source string) {
	rec := &types.Record{
		ID:        types.NewRecordID(),
		SessionID: sid,
		Role:      role,
		Text:      text,
		Source:    source,
		At:        time.Now(),
	}
	if err := r.transcripts.Append(ctx, rec); err != nil {
		slog.Error("transcript append failed", "session_id", sid, "role", role, "error", err)
	}
}

func invocationText(inv types.ToolInvocation) string {
	s := inv.Name
	if inv.Input != "" {
		s += " <- " + inv.Input
	}
	if inv.Output != "" {
		s += "\n" + inv.Output
	}
	return s
}

// Total exposes the onboarding question count so transports can derive the
// phase of a session they just handled.
func (r *Runner) Total() int {
	return r.machine.Total()
}
