package services

import (
	"errors"
	"testing"
	"time"

	pkgerrors "github.com/lessonforge/backend/internal/pkg/errors"
	"github.com/lessonforge/backend/internal/types"
)

func newTestStore(t *testing.T) SessionStore {
	t.Helper()
	log, err := testLogger()
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	return NewSessionStore(log)
}

func TestSessionStore_CreateStartsIdle(t *testing.T) {
	store := newTestStore(t)
	id := store.Create()

	snap, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Status != types.SessionIdle {
		t.Fatalf("new session status = %s, want %s", snap.Status, types.SessionIdle)
	}
	if snap.LogCount != 0 || len(snap.Results) != 0 {
		t.Fatalf("new session not empty: logs=%d results=%d", snap.LogCount, len(snap.Results))
	}
}

func TestSessionStore_GetUnknownSession(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get("nope"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("Get unknown = %v, want ErrNotFound", err)
	}
}

func TestSessionStore_BeginClaimsOnce(t *testing.T) {
	store := newTestStore(t)
	id := store.Create()

	if err := store.Begin(id); err != nil {
		t.Fatalf("first Begin: %v", err)
	}
	if err := store.Begin(id); !errors.Is(err, pkgerrors.ErrConflict) {
		t.Fatalf("second Begin = %v, want ErrConflict", err)
	}
}

func TestSessionStore_TransitionsForwardOnly(t *testing.T) {
	store := newTestStore(t)

	// Idle sessions cannot jump straight to a terminal status.
	id := store.Create()
	if err := store.SetStatus(id, types.SessionCompleted, ""); !errors.Is(err, pkgerrors.ErrConflict) {
		t.Fatalf("idle -> completed = %v, want ErrConflict", err)
	}

	if err := store.Begin(id); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := store.SetStatus(id, types.SessionGenerating, "topic two"); err != nil {
		t.Fatalf("generating -> generating: %v", err)
	}
	if err := store.SetStatus(id, types.SessionCompleted, ""); err != nil {
		t.Fatalf("generating -> completed: %v", err)
	}

	// Terminal sessions are frozen.
	if err := store.SetStatus(id, types.SessionGenerating, "again"); !errors.Is(err, pkgerrors.ErrConflict) {
		t.Fatalf("completed -> generating = %v, want ErrConflict", err)
	}
	if err := store.SetStatus(id, types.SessionError, ""); !errors.Is(err, pkgerrors.ErrConflict) {
		t.Fatalf("completed -> error = %v, want ErrConflict", err)
	}
}

func TestSessionStore_TerminalClearsCurrentTopic(t *testing.T) {
	store := newTestStore(t)
	id := store.Create()
	if err := store.Begin(id); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := store.SetStatus(id, types.SessionGenerating, "airframe assembly"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := store.SetStatus(id, types.SessionCompleted, "ignored"); err != nil {
		t.Fatalf("SetStatus terminal: %v", err)
	}

	snap, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.CurrentTopic != "" {
		t.Fatalf("terminal snapshot kept current topic %q", snap.CurrentTopic)
	}
}

func TestSessionStore_LogsAreMonotonicAndRepeatable(t *testing.T) {
	store := newTestStore(t)
	id := store.Create()

	for i := 0; i < 5; i++ {
		idx, err := store.AppendLog(id, types.LogRecord{Time: "10:00:00", Message: string(rune('a' + i))})
		if err != nil {
			t.Fatalf("AppendLog %d: %v", i, err)
		}
		if idx != i {
			t.Fatalf("AppendLog returned index %d, want %d", idx, i)
		}
	}

	first, total, err := store.Logs(id, 2)
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if total != 5 || len(first) != 3 {
		t.Fatalf("Logs(2) = %d records, total %d, want 3 and 5", len(first), total)
	}

	// Same offset, same records.
	second, total2, err := store.Logs(id, 2)
	if err != nil {
		t.Fatalf("Logs repeat: %v", err)
	}
	if total2 != total || len(second) != len(first) {
		t.Fatalf("repeated poll diverged: %d/%d vs %d/%d", len(second), total2, len(first), total)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("record %d changed between polls: %+v vs %+v", i, first[i], second[i])
		}
	}

	// Beyond-the-end offset returns an empty page, not an error.
	none, total3, err := store.Logs(id, 99)
	if err != nil {
		t.Fatalf("Logs beyond end: %v", err)
	}
	if len(none) != 0 || total3 != 5 {
		t.Fatalf("Logs(99) = %d records, total %d, want 0 and 5", len(none), total3)
	}
}

func TestSessionStore_SnapshotIsolation(t *testing.T) {
	store := newTestStore(t)
	id := store.Create()
	if err := store.AppendResult(id, types.LessonResult{Topic: "one", Status: types.ResultSuccess}); err != nil {
		t.Fatalf("AppendResult: %v", err)
	}

	snap, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	snap.Results[0].Topic = "mutated"

	again, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get again: %v", err)
	}
	if again.Results[0].Topic != "one" {
		t.Fatalf("snapshot mutation leaked into store: %q", again.Results[0].Topic)
	}
}

func TestSessionStore_ExpireOlderThan(t *testing.T) {
	store := newTestStore(t)
	fresh := store.Create()
	stale := store.Create()

	// Push the stale session's activity into the past.
	raw := store.(*sessionStore)
	raw.mu.Lock()
	raw.sessions[stale].lastActivityAt = time.Now().Add(-time.Hour)
	raw.mu.Unlock()

	expired := store.ExpireOlderThan(30 * time.Minute)
	if len(expired) != 1 || expired[0] != stale {
		t.Fatalf("expired = %v, want [%s]", expired, stale)
	}
	if _, err := store.Get(stale); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("expired session still readable: %v", err)
	}
	if _, err := store.Get(fresh); err != nil {
		t.Fatalf("fresh session expired too: %v", err)
	}
}

func TestSessionStore_Delete(t *testing.T) {
	store := newTestStore(t)
	id := store.Create()
	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(id); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("double Delete = %v, want ErrNotFound", err)
	}
}
