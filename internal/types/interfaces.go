// internal/types/interfaces.go
package types

import "context"

// SessionStore persists sessions. Load returns (nil, nil) for an unknown id
// so that callers can treat a missing session as a fresh one.
type SessionStore interface {
	Load(ctx context.Context, id SessionID) (*Session, error)
	Save(ctx context.Context, session *Session) error
	ResolveOrCreate(ctx context.Context, key SessionKey) (*Session, error)
	List(ctx context.Context) ([]*SessionInfo, error)
}

// TranscriptStore is an append-only log of per-session records.
type TranscriptStore interface {
	Append(ctx context.Context, record *Record) error
	Tail(ctx context.Context, sessionID SessionID, limit int) ([]*Record, error)
	Count(ctx context.Context, sessionID SessionID) (int64, error)
}
