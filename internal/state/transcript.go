// internal/state/transcript.go
package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/evinav/internal/types"
)

// TranscriptStore is a JSONL-backed append-only transcript log.
// Records are stored per-session in sessions/<sessionID>/transcript.jsonl.
type TranscriptStore struct {
	root  string
	mu    sync.Mutex
	locks map[types.SessionID]*sync.Mutex
}

// NewTranscriptStore creates a new file-backed TranscriptStore rooted at the given directory.
func NewTranscriptStore(root string) *TranscriptStore {
	return &TranscriptStore{
		root:  root,
		locks: make(map[types.SessionID]*sync.Mutex),
	}
}

// getLock returns the per-session mutex, creating one if it doesn't exist.
func (t *TranscriptStore) getLock(sessionID types.SessionID) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	if lock, ok := t.locks[sessionID]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	t.locks[sessionID] = lock
	return lock
}

func (t *TranscriptStore) transcriptPath(sessionID types.SessionID) string {
	return filepath.Join(t.root, "sessions", string(sessionID), "transcript.jsonl")
}

// count reads the transcript file and counts lines. Caller must hold the session lock.
func (t *TranscriptStore) count(sessionID types.SessionID) (int64, error) {
	f, err := os.Open(t.transcriptPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var count int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan transcript: %w", err)
	}
	return count, nil
}

// Append adds a record to the session's transcript with an auto-incremented
// sequence number.
func (t *TranscriptStore) Append(_ context.Context, record *types.Record) error {
	lock := t.getLock(record.SessionID)
	lock.Lock()
	defer lock.Unlock()

	dir := filepath.Dir(t.transcriptPath(record.SessionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	existing, err := t.count(record.SessionID)
	if err != nil {
		return err
	}
	record.Seq = existing + 1

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	f, err := os.OpenFile(t.transcriptPath(record.SessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	return nil
}

// Tail returns the last N records for the given session.
func (t *TranscriptStore) Tail(_ context.Context, sessionID types.SessionID, limit int) ([]*types.Record, error) {
	lock := t.getLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(t.transcriptPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var records []*types.Record
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 256*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		var record types.Record
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		records = append(records, &record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}

	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}

	return records, nil
}

// Count returns the number of records for the given session.
func (t *TranscriptStore) Count(_ context.Context, sessionID types.SessionID) (int64, error) {
	lock := t.getLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	return t.count(sessionID)
}
