package models

import (
	"sort"
	"time"
)

// DefaultMaintenanceEventType is the event type treated as completed maintenance.
const DefaultMaintenanceEventType = "maintenance_completed"

// FailureEvent is one record from an equipment event log.
type FailureEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	ItemID    string    `json:"item_id"`
}

// PatternKey buckets failures by equipment item and failure type.
type PatternKey struct {
	ItemID    string
	EventType string
}

// TimeToFailure summarises elapsed hours between maintenance and failure.
type TimeToFailure struct {
	AverageHours   float64   `json:"average_hours"`
	Count          int       `json:"count"`
	DurationsHours []float64 `json:"all_durations_hours"`
}

// FailurePatternSummary holds failure counts and time-to-failure per bucket.
// Buckets without a preceding maintenance event appear only in FailureTypeCounts.
type FailurePatternSummary struct {
	FailureTypeCounts map[PatternKey]int
	TimeToFailure     map[PatternKey]TimeToFailure
}

// PatternBucket is the flattened form of one summary bucket.
type PatternBucket struct {
	ItemID        string         `json:"item_id"`
	FailureType   string         `json:"failure_type"`
	Count         int            `json:"count"`
	TimeToFailure *TimeToFailure `json:"time_to_failure"`
}

// Buckets flattens the summary, ordered by item then failure type.
func (s FailurePatternSummary) Buckets() []PatternBucket {
	buckets := make([]PatternBucket, 0, len(s.FailureTypeCounts))
	for key, count := range s.FailureTypeCounts {
		bucket := PatternBucket{ItemID: key.ItemID, FailureType: key.EventType, Count: count}
		if ttf, ok := s.TimeToFailure[key]; ok {
			ttf := ttf
			bucket.TimeToFailure = &ttf
		}
		buckets = append(buckets, bucket)
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].ItemID != buckets[j].ItemID {
			return buckets[i].ItemID < buckets[j].ItemID
		}
		return buckets[i].FailureType < buckets[j].FailureType
	})
	return buckets
}
