package models

import (
	"fmt"
	"strings"
	"time"
)

// ActionStatus tracks an action item through its lifecycle.
type ActionStatus string

const (
	StatusOpen       ActionStatus = "open"
	StatusInProgress ActionStatus = "in_progress"
	StatusDone       ActionStatus = "done"
	StatusCancelled  ActionStatus = "cancelled"
)

// ActionStatuses lists the recognised statuses in lifecycle order.
var ActionStatuses = []ActionStatus{StatusOpen, StatusInProgress, StatusDone, StatusCancelled}

// ParseActionStatus normalises case, spaces and dashes ("In Progress" is in_progress).
func ParseActionStatus(value string) (ActionStatus, error) {
	normalised := strings.ToLower(strings.TrimSpace(value))
	normalised = strings.NewReplacer(" ", "_", "-", "_").Replace(normalised)
	for _, status := range ActionStatuses {
		if string(status) == normalised {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown status %q (want one of open, in_progress, done, cancelled)", value)
}

// ActionItem is a remediation task tracked for the duration of a session.
type ActionItem struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	Owner       *string      `json:"owner"`
	Status      ActionStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// OwnerName returns the owner or an empty string.
func (a ActionItem) OwnerName() string {
	if a.Owner == nil {
		return ""
	}
	return *a.Owner
}
