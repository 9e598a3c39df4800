package services

import (
	"context"
	"time"

	"github.com/lessonforge/backend/internal/logger"
)

// SessionLifecycleManager periodically reclaims sessions with no activity,
// whatever state they are in. Subscribers attached to a reclaimed session get
// their stream closed.
type SessionLifecycleManager interface {
	Start(ctx context.Context)
	Sweep() int
}

type sessionLifecycleManager struct {
	log      *logger.Logger
	store    SessionStore
	notifier SessionNotifier
	maxIdle  time.Duration
	interval time.Duration
}

func NewSessionLifecycleManager(baseLog *logger.Logger, store SessionStore, notifier SessionNotifier, maxIdle, interval time.Duration) SessionLifecycleManager {
	if maxIdle <= 0 {
		maxIdle = 30 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &sessionLifecycleManager{
		log:      baseLog.With("service", "SessionLifecycleManager"),
		store:    store,
		notifier: notifier,
		maxIdle:  maxIdle,
		interval: interval,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (m *sessionLifecycleManager) Start(ctx context.Context) {
	m.log.Info("session expiry sweep started", "max_idle", m.maxIdle.String(), "interval", m.interval.String())
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.log.Info("session expiry sweep stopped")
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep expires idle sessions once and returns how many were reclaimed.
func (m *sessionLifecycleManager) Sweep() int {
	expired := m.store.ExpireOlderThan(m.maxIdle)
	for _, id := range expired {
		if m.notifier != nil {
			m.notifier.SessionExpired(id)
		}
		m.log.Info("session expired", "session_id", id)
	}
	return len(expired)
}
