package gateway

import (
	"context"
	"time"

	"github.com/user/evinav/internal/types"
)

// RunStatus represents the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run tracks a single execution of an inbound message against a session.
type Run struct {
	ID         types.TurnID
	SessionID  types.SessionID
	Message    *types.InboundMessage
	Status     RunStatus
	Attempts   int
	CreatedAt  time.Time
	Ctx        context.Context
	Error      error
	OnComplete func(response string)
}

// NewRun creates a Run in the Queued state for the given session and message.
func NewRun(sessionID types.SessionID, msg *types.InboundMessage) *Run {
	return &Run{
		ID:        types.NewTurnID(),
		SessionID: sessionID,
		Message:   msg,
		Status:    RunStatusQueued,
		CreatedAt: time.Now(),
	}
}
