// internal/types/ids.go
package types

import (
	"strings"

	"github.com/google/uuid"
)

type SessionKey string
type SessionID string
type TurnID string
type RecordID string

func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

func NewTurnID() TurnID {
	return TurnID(uuid.New().String())
}

func NewRecordID() RecordID {
	return RecordID(uuid.New().String())
}

func NewSessionKey(parts ...string) SessionKey {
	return SessionKey(strings.Join(parts, ":"))
}
