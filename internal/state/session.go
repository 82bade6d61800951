// internal/state/session.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/evinav/internal/types"
)

// SessionStore is a JSON-file-backed session store.
// The index lives in sessions/sessions.json; each session's full state is
// written to sessions/<sessionID>/session.json.
type SessionStore struct {
	root string
	mu   sync.RWMutex
}

// NewSessionStore creates a new file-backed SessionStore rooted at the given directory.
func NewSessionStore(root string) *SessionStore {
	return &SessionStore{root: root}
}

func (s *SessionStore) indexPath() string {
	return filepath.Join(s.root, "sessions", "sessions.json")
}

func (s *SessionStore) sessionsDir() string {
	return filepath.Join(s.root, "sessions")
}

func (s *SessionStore) sessionPath(id types.SessionID) string {
	return filepath.Join(s.root, "sessions", string(id), "session.json")
}

// loadIndex reads sessions.json and returns a map keyed by SessionID.
func (s *SessionStore) loadIndex() (map[types.SessionID]*types.SessionInfo, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[types.SessionID]*types.SessionInfo), nil
		}
		return nil, fmt.Errorf("read session index: %w", err)
	}

	var infos []*types.SessionInfo
	if err := json.Unmarshal(data, &infos); err != nil {
		return nil, fmt.Errorf("unmarshal session index: %w", err)
	}

	index := make(map[types.SessionID]*types.SessionInfo, len(infos))
	for _, info := range infos {
		index[info.ID] = info
	}
	return index, nil
}

// saveIndex converts the map to a slice, marshals with indentation, and writes atomically.
func (s *SessionStore) saveIndex(index map[types.SessionID]*types.SessionInfo) error {
	infos := make([]*types.SessionInfo, 0, len(index))
	for _, info := range index {
		infos = append(infos, info)
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session index: %w", err)
	}

	if err := os.MkdirAll(s.sessionsDir(), 0o755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}

	return atomicWrite(s.indexPath(), data)
}

// atomicWrite writes to a temp file then renames it into place.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load returns the session with the given id, or (nil, nil) when it does not
// exist so that callers can start a fresh session under that id.
func (s *SessionStore) Load(_ context.Context, id types.SessionID) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.sessionPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	var sess types.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	if sess.Profile == nil {
		sess.Profile = make(map[string]string)
	}
	return &sess, nil
}

// Save persists the full session state and refreshes its index entry,
// setting UpdatedAt to now.
func (s *SessionStore) Save(_ context.Context, sess *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess.UpdatedAt = time.Now()

	dir := filepath.Dir(s.sessionPath(sess.ID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := atomicWrite(s.sessionPath(sess.ID), data); err != nil {
		return err
	}

	index, err := s.loadIndex()
	if err != nil {
		return err
	}
	index[sess.ID] = &types.SessionInfo{
		ID:        sess.ID,
		Key:       sess.Key,
		Status:    sess.Status,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	}
	return s.saveIndex(index)
}

// ResolveOrCreate returns the session bound to the given channel key,
// creating and persisting a fresh one if none exists.
func (s *SessionStore) ResolveOrCreate(ctx context.Context, key types.SessionKey) (*types.Session, error) {
	s.mu.RLock()
	index, err := s.loadIndex()
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	for _, info := range index {
		if info.Key == key && info.Status == types.StatusActive {
			sess, err := s.Load(ctx, info.ID)
			if err != nil {
				return nil, err
			}
			if sess != nil {
				return sess, nil
			}
		}
	}

	sess := types.NewSession(types.NewSessionID())
	sess.Key = key
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// List returns the index entries for all sessions.
func (s *SessionStore) List(_ context.Context) ([]*types.SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}

	infos := make([]*types.SessionInfo, 0, len(index))
	for _, info := range index {
		infos = append(infos, info)
	}
	return infos, nil
}
