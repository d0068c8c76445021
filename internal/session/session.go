package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-yield/internal/actions"
	"github.com/miradorstack/mirador-yield/internal/models"
	"github.com/miradorstack/mirador-yield/internal/rca"
)

// MaxHistory bounds the analysis history kept per session.
const MaxHistory = 200

// Session is the state one conversation carries across turns. RCA is nil
// until an analysis is started.
type Session struct {
	ID        string                `json:"id"`
	RCA       *rca.Session          `json:"rca,omitempty"`
	Ledger    *actions.Ledger       `json:"ledger"`
	History   []models.HistoryEntry `json:"history"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// New returns an empty session.
func New(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Ledger:    actions.NewLedger(),
		History:   []models.HistoryEntry{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// Record appends a history entry, dropping the oldest beyond MaxHistory.
func (s *Session) Record(operation, summary string, at time.Time) {
	s.History = append(s.History, models.HistoryEntry{Operation: operation, At: at, Summary: summary})
	if over := len(s.History) - MaxHistory; over > 0 {
		s.History = append([]models.HistoryEntry(nil), s.History[over:]...)
	}
}

func encode(s *Session) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return data, nil
}

func decode(data []byte) (*Session, error) {
	s := &Session{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.Ledger == nil {
		s.Ledger = actions.NewLedger()
	}
	if s.History == nil {
		s.History = []models.HistoryEntry{}
	}
	return s, nil
}
