// internal/types/models.go
package types

import "time"

// TriageState sentinel values. Any other value is a triage node id.
const (
	TriageNone     = "none"
	TriageComplete = "complete"
)

// Phase is the conversational mode a session is in for a given turn.
type Phase string

const (
	PhaseOnboarding Phase = "ONBOARDING"
	PhaseTriage     Phase = "TRIAGE"
	PhaseFreeform   Phase = "FREEFORM"
	PhaseEmergency  Phase = "EMERGENCY"
)

// Session status values used by the store and the maintenance scheduler.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Turn is one entry in a session's append-only history.
type Turn struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Session holds all per-conversation state. It is exclusively owned by the
// turn runner while a turn is in flight; the gateway serializes turns per id.
type Session struct {
	ID              SessionID         `json:"id"`
	Key             SessionKey        `json:"key,omitempty"`
	Profile         map[string]string `json:"profile"`
	OnboardingIndex int               `json:"onboarding_index"`
	TriageState     string            `json:"triage_state"`
	Emergency       bool              `json:"emergency"`
	PendingOffer    string            `json:"pending_offer,omitempty"`
	Status          string            `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	History         []Turn            `json:"history"`
}

// NewSession returns a fresh session in the initial onboarding state.
func NewSession(id SessionID) *Session {
	now := time.Now()
	return &Session{
		ID:          id,
		Profile:     make(map[string]string),
		TriageState: TriageNone,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Phase derives the active conversational mode. totalQuestions is the size of
// the onboarding catalog. The emergency latch always wins.
func (s *Session) Phase(totalQuestions int) Phase {
	switch {
	case s.Emergency:
		return PhaseEmergency
	case s.OnboardingIndex < totalQuestions:
		return PhaseOnboarding
	case s.TriageState != TriageNone && s.TriageState != TriageComplete:
		return PhaseTriage
	default:
		return PhaseFreeform
	}
}

// Append adds a turn to the session history.
func (s *Session) Append(role, text string) {
	s.History = append(s.History, Turn{Role: role, Text: text, At: time.Now()})
}

// SessionInfo is the index entry the store keeps per session.
type SessionInfo struct {
	ID        SessionID  `json:"id"`
	Key       SessionKey `json:"key,omitempty"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Record is one line of a session transcript. Unlike Session.History it also
// captures tool invocations and the source channel of each turn.
type Record struct {
	ID        RecordID  `json:"id"`
	SessionID SessionID `json:"session_id"`
	Seq       int64     `json:"seq"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Source    string    `json:"source,omitempty"`
	At        time.Time `json:"at"`
}

// ToolInvocation describes one tool firing during a turn. It is ephemeral:
// recorded to the transcript and then discarded.
type ToolInvocation struct {
	Name   string `json:"name"`
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
}

// InboundMessage is a user message arriving from a delivery channel.
type InboundMessage struct {
	Source     string     `json:"source"`
	SessionKey SessionKey `json:"session_key"`
	UserID     string     `json:"user_id"`
	Text       string     `json:"text"`
}
