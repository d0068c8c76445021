package actions

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-yield/internal/models"
	"github.com/miradorstack/mirador-yield/internal/utils"
)

const idPrefix = "act-"

// Ledger holds the action items of one session in insertion order.
type Ledger struct {
	items []models.ActionItem
	byID  map[string]int
	now   func() time.Time
	newID func() string
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDSource overrides id generation.
func WithIDSource(next func() string) Option {
	return func(l *Ledger) { l.newID = next }
}

// NewLedger returns an empty ledger.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		byID:  make(map[string]int),
		now:   func() time.Time { return time.Now().UTC() },
		newID: randomID,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func randomID() string {
	return idPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Len returns the number of items.
func (l *Ledger) Len() int { return len(l.items) }

// Add records a new item. An empty status means open; a blank owner is none.
func (l *Ledger) Add(description string, owner *string, status string) (models.ActionItem, error) {
	const op = "actions.add"
	description = strings.TrimSpace(description)
	if description == "" {
		return models.ActionItem{}, utils.InvalidInput(op, "description cannot be empty")
	}

	st := models.StatusOpen
	if strings.TrimSpace(status) != "" {
		parsed, err := models.ParseActionStatus(status)
		if err != nil {
			return models.ActionItem{}, utils.InvalidInput(op, "%v", err)
		}
		st = parsed
	}

	if owner != nil {
		trimmed := strings.TrimSpace(*owner)
		if trimmed == "" {
			owner = nil
		} else {
			owner = &trimmed
		}
	}

	id := l.newID()
	for attempts := 0; l.has(id); attempts++ {
		if attempts >= 16 {
			return models.ActionItem{}, fmt.Errorf("%s: could not allocate a unique action id", op)
		}
		id = l.newID()
	}

	now := l.now()
	item := models.ActionItem{
		ID:          id,
		Description: description,
		Owner:       owner,
		Status:      st,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	l.byID[id] = len(l.items)
	l.items = append(l.items, item)
	return item, nil
}

func (l *Ledger) has(id string) bool {
	_, ok := l.byID[id]
	return ok
}

// Filter narrows List; nil fields match everything.
type Filter struct {
	Status *models.ActionStatus
	Owner  *string
}

// List returns items matching every set filter field, in insertion order.
func (l *Ledger) List(filter Filter) []models.ActionItem {
	out := make([]models.ActionItem, 0, len(l.items))
	for _, item := range l.items {
		if filter.Status != nil && item.Status != *filter.Status {
			continue
		}
		if filter.Owner != nil && (item.Owner == nil || *item.Owner != *filter.Owner) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Get returns the item with id.
func (l *Ledger) Get(id string) (models.ActionItem, bool) {
	pos, ok := l.byID[id]
	if !ok {
		return models.ActionItem{}, false
	}
	return l.items[pos], true
}

// UpdateStatus replaces the status of id in place. The ledger is untouched on error.
func (l *Ledger) UpdateStatus(id, status string) (models.ActionItem, error) {
	const op = "actions.update_status"
	id = strings.TrimSpace(id)
	pos, ok := l.byID[id]
	if !ok {
		return models.ActionItem{}, utils.NotFound(op, "action item %q not found", id)
	}
	st, err := models.ParseActionStatus(status)
	if err != nil {
		return models.ActionItem{}, utils.InvalidInput(op, "%v", err)
	}

	l.items[pos].Status = st
	l.items[pos].UpdatedAt = l.now()
	return l.items[pos], nil
}

// MarshalJSON encodes the items for a session store.
func (l *Ledger) MarshalJSON() ([]byte, error) {
	items := l.items
	if items == nil {
		items = []models.ActionItem{}
	}
	return json.Marshal(items)
}

// UnmarshalJSON restores items written by MarshalJSON, keeping any options
// already applied to l.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	var items []models.ActionItem
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	byID := make(map[string]int, len(items))
	for i, item := range items {
		if _, dup := byID[item.ID]; dup {
			return fmt.Errorf("duplicate action id %q in snapshot", item.ID)
		}
		byID[item.ID] = i
	}
	if l.now == nil {
		l.now = func() time.Time { return time.Now().UTC() }
	}
	if l.newID == nil {
		l.newID = randomID
	}
	l.items = items
	l.byID = byID
	return nil
}
