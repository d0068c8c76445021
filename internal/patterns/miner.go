package patterns

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/miradorstack/mirador-yield/internal/models"
	"github.com/miradorstack/mirador-yield/internal/utils"
)

// Miner derives failure frequency and time-to-failure from equipment event logs.
type Miner struct {
	logger *slog.Logger
}

// NewMiner constructs a Miner; a nil logger falls back to slog.Default.
func NewMiner(logger *slog.Logger) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{logger: logger}
}

// Mine groups failures by item and type. Every event that is not of
// maintenanceType is a failure; it is paired with the most recent maintenance
// event of the same item at or before it, and the elapsed hours are recorded.
// Events are re-sorted per item by timestamp, keeping input order for ties.
func (m *Miner) Mine(events []models.FailureEvent, maintenanceType string) (models.FailurePatternSummary, error) {
	const op = "patterns.mine"
	maintenanceType = strings.TrimSpace(maintenanceType)
	if maintenanceType == "" {
		maintenanceType = models.DefaultMaintenanceEventType
	}

	byItem := make(map[string][]models.FailureEvent)
	order := make([]string, 0)
	for i, ev := range events {
		ev.ItemID = strings.TrimSpace(ev.ItemID)
		ev.EventType = strings.TrimSpace(ev.EventType)
		switch {
		case ev.ItemID == "":
			return models.FailurePatternSummary{}, utils.InvalidInput(op, "event %d has no item id", i)
		case ev.EventType == "":
			return models.FailurePatternSummary{}, utils.InvalidInput(op, "event %d has no event type", i)
		case ev.Timestamp.IsZero():
			return models.FailurePatternSummary{}, utils.InvalidInput(op, "event %d has no timestamp", i)
		}
		if _, ok := byItem[ev.ItemID]; !ok {
			order = append(order, ev.ItemID)
		}
		byItem[ev.ItemID] = append(byItem[ev.ItemID], ev)
	}

	counts := make(map[models.PatternKey]int)
	durations := make(map[models.PatternKey][]float64)
	for _, item := range order {
		itemEvents := byItem[item]
		sort.SliceStable(itemEvents, func(i, j int) bool {
			return itemEvents[i].Timestamp.Before(itemEvents[j].Timestamp)
		})

		var lastMaintenance *models.FailureEvent
		for i := range itemEvents {
			ev := itemEvents[i]
			if ev.EventType == maintenanceType {
				lastMaintenance = &itemEvents[i]
				continue
			}
			key := models.PatternKey{ItemID: item, EventType: ev.EventType}
			counts[key]++
			if lastMaintenance != nil {
				durations[key] = append(durations[key], utils.DurationHours(lastMaintenance.Timestamp, ev.Timestamp))
			}
		}
	}

	summary := models.FailurePatternSummary{
		FailureTypeCounts: counts,
		TimeToFailure:     make(map[models.PatternKey]models.TimeToFailure, len(durations)),
	}
	for key, hours := range durations {
		total := 0.0
		for _, h := range hours {
			total += h
		}
		summary.TimeToFailure[key] = models.TimeToFailure{
			AverageHours:   total / float64(len(hours)),
			Count:          len(hours),
			DurationsHours: hours,
		}
	}

	m.logger.Debug("mined failure patterns",
		slog.Int("events", len(events)),
		slog.Int("items", len(order)),
		slog.Int("buckets", len(counts)),
		slog.String("maintenance_type", maintenanceType))
	return summary, nil
}
