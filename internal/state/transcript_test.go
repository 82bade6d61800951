// internal/state/transcript_test.go
package state

import (
	"context"
	"testing"

	"github.com/user/evinav/internal/types"
)

func TestTranscriptStoreAppendAssignsSeq(t *testing.T) {
	store := NewTranscriptStore(t.TempDir())
	ctx := context.Background()
	sid := types.NewSessionID()

	for i, text := range []string{"hello", "hi there", "bye"} {
		rec := &types.Record{
			ID:        types.NewRecordID(),
			SessionID: sid,
			Role:      "user",
			Text:      text,
		}
		if err := store.Append(ctx, rec); err != nil {
			t.Fatal(err)
		}
		if rec.Seq != int64(i+1) {
			t.Errorf("record %d got seq %d", i, rec.Seq)
		}
	}

	count, err := store.Count(ctx, sid)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestTranscriptStoreTail(t *testing.T) {
	store := NewTranscriptStore(t.TempDir())
	ctx := context.Background()
	sid := types.NewSessionID()

	for i := 0; i < 5; i++ {
		rec := &types.Record{ID: types.NewRecordID(), SessionID: sid, Role: "user", Text: "msg"}
		if err := store.Append(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	records, err := store.Tail(ctx, sid, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Seq != 4 || records[1].Seq != 5 {
		t.Errorf("wrong tail: seqs %d, %d", records[0].Seq, records[1].Seq)
	}
}

func TestTranscriptStoreEmptySession(t *testing.T) {
	store := NewTranscriptStore(t.TempDir())
	ctx := context.Background()
	sid := types.NewSessionID()

	records, err := store.Tail(ctx, sid, 10)
	if err != nil {
		t.Fatal(err)
	}
	if records != nil {
		t.Errorf("expected nil for empty session, got %v", records)
	}

	count, err := store.Count(ctx, sid)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("count = %d", count)
	}
}

func TestTranscriptStoreSessionsIsolated(t *testing.T) {
	store := NewTranscriptStore(t.TempDir())
	ctx := context.Background()
	a, b := types.NewSessionID(), types.NewSessionID()

	store.Append(ctx, &types.Record{ID: types.NewRecordID(), SessionID: a, Role: "user", Text: "a"})
	store.Append(ctx, &types.Record{ID: types.NewRecordID(), SessionID: b, Role: "user", Text: "b"})

	recs, err := store.Tail(ctx, a, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Text != "a" {
		t.Errorf("cross-session leak: %v", recs)
	}
}
