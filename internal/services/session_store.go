package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lessonforge/backend/internal/logger"
	pkgerrors "github.com/lessonforge/backend/internal/pkg/errors"
	"github.com/lessonforge/backend/internal/types"
)

// SessionStore is the registry of in-flight and recently finished generation
// sessions. Sessions live in memory only; expiry reclaims idle ones.
//
// Mutation discipline: only the one orchestrator run driving a session calls
// Begin/SetStatus/AppendLog/AppendResult for it. Begin enforces this by
// refusing any session that is not idle. Readers always get copies.
type SessionStore interface {
	Create() string
	Get(sessionID string) (*types.SessionSnapshot, error)
	Begin(sessionID string) error
	SetStatus(sessionID string, status types.SessionStatus, currentTopic string) error
	AppendLog(sessionID string, rec types.LogRecord) (int, error)
	AppendResult(sessionID string, res types.LessonResult) error
	Touch(sessionID string) error
	Delete(sessionID string) error
	Logs(sessionID string, from int) ([]types.LogRecord, int, error)
	ExpireOlderThan(maxIdle time.Duration) []string
}

type session struct {
	mu sync.RWMutex

	id             string
	status         types.SessionStatus
	currentTopic   string
	createdAt      time.Time
	lastActivityAt time.Time
	logs           []types.LogRecord
	results        []types.LessonResult
}

type sessionStore struct {
	mu       sync.RWMutex
	log      *logger.Logger
	sessions map[string]*session
}

func NewSessionStore(baseLog *logger.Logger) SessionStore {
	return &sessionStore{
		log:      baseLog.With("service", "SessionStore"),
		sessions: make(map[string]*session),
	}
}

func (s *sessionStore) Create() string {
	id := uuid.NewString()
	now := time.Now()
	sess := &session{
		id:             id,
		status:         types.SessionIdle,
		createdAt:      now,
		lastActivityAt: now,
	}
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.log.Debug("session created", "session_id", id)
	return id
}

func (s *sessionStore) find(sessionID string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, pkgerrors.ErrNotFound)
	}
	return sess, nil
}

func (s *sessionStore) Get(sessionID string) (*types.SessionSnapshot, error) {
	sess, err := s.find(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	sess.lastActivityAt = time.Now()
	snap := &types.SessionSnapshot{
		ID:             sess.id,
		Status:         sess.status,
		CurrentTopic:   sess.currentTopic,
		Results:        append([]types.LessonResult(nil), sess.results...),
		LogCount:       len(sess.logs),
		CreatedAt:      sess.createdAt,
		LastActivityAt: sess.lastActivityAt,
	}
	sess.mu.Unlock()
	return snap, nil
}

// Begin atomically moves an idle session to generating. A second caller gets
// ErrConflict, which is what keeps the one-writer invariant honest.
func (s *sessionStore) Begin(sessionID string) error {
	sess, err := s.find(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.status != types.SessionIdle {
		return fmt.Errorf("session %s is %s: %w", sessionID, sess.status, pkgerrors.ErrConflict)
	}
	sess.status = types.SessionGenerating
	sess.lastActivityAt = time.Now()
	return nil
}

func (s *sessionStore) SetStatus(sessionID string, status types.SessionStatus, currentTopic string) error {
	sess, err := s.find(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !validTransition(sess.status, status) {
		return fmt.Errorf("session %s: %s -> %s: %w", sessionID, sess.status, status, pkgerrors.ErrConflict)
	}
	sess.status = status
	if status.Terminal() {
		sess.currentTopic = ""
	} else {
		sess.currentTopic = currentTopic
	}
	sess.lastActivityAt = time.Now()
	return nil
}

func validTransition(from, to types.SessionStatus) bool {
	switch from {
	case types.SessionIdle:
		return to == types.SessionGenerating
	case types.SessionGenerating:
		return to == types.SessionGenerating || to == types.SessionCompleted || to == types.SessionError
	default:
		return false
	}
}

func (s *sessionStore) AppendLog(sessionID string, rec types.LogRecord) (int, error) {
	sess, err := s.find(sessionID)
	if err != nil {
		return 0, err
	}
	sess.mu.Lock()
	idx := len(sess.logs)
	sess.logs = append(sess.logs, rec)
	sess.lastActivityAt = time.Now()
	sess.mu.Unlock()
	return idx, nil
}

func (s *sessionStore) AppendResult(sessionID string, res types.LessonResult) error {
	sess, err := s.find(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.results = append(sess.results, res)
	sess.lastActivityAt = time.Now()
	sess.mu.Unlock()
	return nil
}

func (s *sessionStore) Touch(sessionID string) error {
	sess, err := s.find(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.lastActivityAt = time.Now()
	sess.mu.Unlock()
	return nil
}

func (s *sessionStore) Delete(sessionID string) error {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, pkgerrors.ErrNotFound)
	}
	return nil
}

// Logs returns a copy of the records at index >= from, plus the total count
// at read time. The same from always yields the same prefix of records.
func (s *sessionStore) Logs(sessionID string, from int) ([]types.LogRecord, int, error) {
	sess, err := s.find(sessionID)
	if err != nil {
		return nil, 0, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastActivityAt = time.Now()

	total := len(sess.logs)
	if from < 0 {
		from = 0
	}
	if from >= total {
		return []types.LogRecord{}, total, nil
	}
	return append([]types.LogRecord(nil), sess.logs[from:]...), total, nil
}

// ExpireOlderThan removes sessions idle past maxIdle and returns their ids so
// the caller can tear down any attached stream subscribers. Removal is
// whole-session; readers holding snapshots are unaffected.
func (s *sessionStore) ExpireOlderThan(maxIdle time.Duration) []string {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []string
	for id, sess := range s.sessions {
		sess.mu.RLock()
		idle := sess.lastActivityAt.Before(cutoff)
		sess.mu.RUnlock()
		if idle {
			delete(s.sessions, id)
			expired = append(expired, id)
		}
	}
	if len(expired) > 0 {
		s.log.Info("expired idle sessions", "count", len(expired))
	}
	return expired
}
