package models

import "time"

// HistoryEntry records a successful analysis call within a session.
type HistoryEntry struct {
	Operation string    `json:"operation"`
	At        time.Time `json:"at"`
	Summary   string    `json:"summary"`
}
