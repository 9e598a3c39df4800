package services

import (
	"github.com/lessonforge/backend/internal/logger"
	"github.com/lessonforge/backend/internal/types"
)

// PollResult is the catch-up payload for one poll. Clients persist TotalCount
// and pass it back as lastIndex on the next poll.
type PollResult struct {
	NewRecords   []types.LogRecord    `json:"new_records"`
	TotalCount   int                  `json:"total_count"`
	Status       types.SessionStatus  `json:"status"`
	CurrentTopic string               `json:"current_topic"`
	Results      []types.LessonResult `json:"results"`
	Resync       bool                 `json:"resync,omitempty"`
}

// LogDeliveryService is the pull half of log delivery. The push half (SSE)
// rides the hub; both observe the same append order because the session log
// is a single indexed sequence with one writer.
type LogDeliveryService interface {
	PollFrom(sessionID string, lastIndex int) (*PollResult, error)
}

type logDeliveryService struct {
	log   *logger.Logger
	store SessionStore
}

func NewLogDeliveryService(baseLog *logger.Logger, store SessionStore) LogDeliveryService {
	return &logDeliveryService{
		log:   baseLog.With("service", "LogDeliveryService"),
		store: store,
	}
}

// PollFrom returns every record appended at or after lastIndex. Calling it
// twice with the same lastIndex returns the same records. A lastIndex beyond
// the buffer means the client's offset no longer matches this session's log;
// the response flags a resync and replays from the start instead of silently
// returning nothing.
func (s *logDeliveryService) PollFrom(sessionID string, lastIndex int) (*PollResult, error) {
	from := lastIndex
	if from < 0 {
		from = 0
	}

	records, total, err := s.store.Logs(sessionID, from)
	if err != nil {
		return nil, err
	}

	// The resync decision and the records come from the same read, so an
	// append racing the poll can never flag a bookmark that fit the log.
	resync := false
	if from > total {
		resync = true
		records, total, err = s.store.Logs(sessionID, 0)
		if err != nil {
			return nil, err
		}
	}

	snap, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	// Status/results may have advanced past the record read; that is fine
	// (eventually consistent), but the record slice and total always agree.
	return &PollResult{
		NewRecords:   records,
		TotalCount:   total,
		Status:       snap.Status,
		CurrentTopic: snap.CurrentTopic,
		Results:      snap.Results,
		Resync:       resync,
	}, nil
}
