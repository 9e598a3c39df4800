package services

import (
	"testing"
	"time"

	"github.com/lessonforge/backend/internal/types"
)

type recordingNotifier struct {
	logs     []int
	statuses []types.SessionStatus
	expired  []string
}

func (n *recordingNotifier) LogAppended(sessionID string, index int, rec types.LogRecord) {
	n.logs = append(n.logs, index)
}

func (n *recordingNotifier) StatusChanged(sessionID string, status types.SessionStatus, currentTopic string) {
	n.statuses = append(n.statuses, status)
}

func (n *recordingNotifier) SessionExpired(sessionID string) {
	n.expired = append(n.expired, sessionID)
}

func TestSessionLifecycle_SweepExpiresIdleSessions(t *testing.T) {
	log, err := testLogger()
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	store := NewSessionStore(log)
	notifier := &recordingNotifier{}
	mgr := NewSessionLifecycleManager(log, store, notifier, 30*time.Minute, time.Minute)

	active := store.Create()
	stale := store.Create()
	raw := store.(*sessionStore)
	raw.mu.Lock()
	raw.sessions[stale].lastActivityAt = time.Now().Add(-45 * time.Minute)
	raw.mu.Unlock()

	if n := mgr.Sweep(); n != 1 {
		t.Fatalf("Sweep = %d, want 1", n)
	}
	if len(notifier.expired) != 1 || notifier.expired[0] != stale {
		t.Fatalf("expiry notifications = %v, want [%s]", notifier.expired, stale)
	}
	if _, err := store.Get(active); err != nil {
		t.Fatalf("active session was swept: %v", err)
	}

	// Nothing left to expire on the next sweep.
	if n := mgr.Sweep(); n != 0 {
		t.Fatalf("second Sweep = %d, want 0", n)
	}
}

func TestSessionLifecycle_GeneratingSessionsExpireToo(t *testing.T) {
	log, err := testLogger()
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	store := NewSessionStore(log)
	mgr := NewSessionLifecycleManager(log, store, &recordingNotifier{}, 30*time.Minute, time.Minute)

	id := store.Create()
	if err := store.Begin(id); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	raw := store.(*sessionStore)
	raw.mu.Lock()
	raw.sessions[id].lastActivityAt = time.Now().Add(-time.Hour)
	raw.mu.Unlock()

	if n := mgr.Sweep(); n != 1 {
		t.Fatalf("Sweep = %d, want 1 (expiry ignores status)", n)
	}
}
