package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/uptrace/bun"

	"ms-scanner/internal/logger"
	"ms-scanner/internal/models"
)

// SelectorAll aggregates every known event.
const SelectorAll = "all"

// StatusAggregated is the event status reported for wildcard summaries.
const StatusAggregated = "Aggregated"

// HourStat is an hour-of-day label with its summed scan count.
type HourStat struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// Snapshot is the computed, read-only summary for one event or all events.
type Snapshot struct {
	TotalScans      int64      `json:"totalScans"`
	ValidScans      int64      `json:"validScans"`
	InvalidScans    int64      `json:"invalidScans"`
	NotScanned      int64      `json:"notScanned"`
	TotalTickets    int64      `json:"totalTickets"`
	TicketsSent     int64      `json:"ticketsSent"`
	AtDoorTickets   int64      `json:"atDoorTickets"`
	BusiestHour     HourStat   `json:"busiestHour"`
	MostInvalidHour HourStat   `json:"mostInvalidHour"`
	SuccessRate     string     `json:"successRate"`
	ScanRate        string     `json:"scanRate"`
	EventStatus     string     `json:"eventStatus"`
	LastUpdated     *time.Time `json:"lastUpdated"`
}

// Service reads event summaries and scan buckets and reduces them to a
// Snapshot. It never writes, and it does not require a consistent
// cross-bucket snapshot: racing with in-flight scans may undercount by at
// most the increments not yet committed at read time.
type Service struct {
	db     *bun.DB
	logger *logger.Logger
}

func NewService(db *bun.DB, log *logger.Logger) *Service {
	return &Service{db: db, logger: log}
}

// hourCounter keys counts by hour-of-day display label ("2 PM"). The calendar
// date is intentionally discarded, so buckets from different days at the same
// hour of day merge; this matches the source system's reporting. Insertion
// order is kept so ties break deterministically on the first-encountered
// label.
type hourCounter struct {
	counts map[string]int64
	order  []string
}

func newHourCounter() *hourCounter {
	return &hourCounter{counts: make(map[string]int64)}
}

func (h *hourCounter) add(slot time.Time, count int64) {
	label := hourLabel(slot)
	if _, seen := h.counts[label]; !seen {
		h.order = append(h.order, label)
	}
	h.counts[label] += count
}

func (h *hourCounter) max() HourStat {
	top := HourStat{Label: "N/A", Count: 0}
	for _, label := range h.order {
		if h.counts[label] > top.Count {
			top = HourStat{Label: label, Count: h.counts[label]}
		}
	}
	return top
}

// Summarize aggregates one event, or every known event when the selector is
// "all". Under the wildcard, a read failure for one event is logged and that
// event skipped so the rest can still be summarized; for a single-event
// selector any read failure fails the whole call.
func (s *Service) Summarize(ctx context.Context, selector string) (*Snapshot, error) {
	wildcard := selector == SelectorAll

	var eventIDs []string
	if wildcard {
		ids, err := s.listEventIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}
		eventIDs = ids
	} else {
		eventIDs = []string{selector}
	}

	snap := &Snapshot{EventStatus: StatusAggregated}
	if !wildcard {
		snap.EventStatus = models.EventStatusActive
	}

	validHours := newHourCounter()
	invalidHours := newHourCounter()

	for _, eventID := range eventIDs {
		if err := s.accumulateEvent(ctx, eventID, wildcard, snap, validHours, invalidHours); err != nil {
			if !wildcard {
				return nil, err
			}
			if s.logger != nil {
				s.logger.Error("ANALYTICS", fmt.Sprintf("Skipping event %s: %v", eventID, err))
			}
		}
	}

	snap.TotalScans = snap.ValidScans + snap.InvalidScans
	snap.BusiestHour = validHours.max()
	snap.MostInvalidHour = invalidHours.max()

	snap.NotScanned = snap.TicketsSent - snap.ValidScans
	if snap.NotScanned < 0 {
		snap.NotScanned = 0
	}

	snap.SuccessRate = percent(snap.ValidScans, snap.TotalScans)
	snap.ScanRate = percent(snap.ValidScans, snap.TicketsSent)

	return snap, nil
}

func (s *Service) accumulateEvent(ctx context.Context, eventID string, wildcard bool, snap *Snapshot, validHours, invalidHours *hourCounter) error {
	summary, err := s.getEventSummary(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to read event %s: %w", eventID, err)
	}
	if summary != nil {
		snap.TicketsSent += summary.TicketsSent
		snap.AtDoorTickets += summary.AtDoorTickets
		snap.TotalTickets += summary.TicketsSent + summary.AtDoorTickets
		if snap.LastUpdated == nil || summary.LastUpdated.After(*snap.LastUpdated) {
			lastUpdated := summary.LastUpdated
			snap.LastUpdated = &lastUpdated
		}
		if !wildcard && summary.Status != "" {
			snap.EventStatus = summary.Status
		}
	}

	validBuckets, err := s.listBuckets(ctx, eventID, models.ScanValid)
	if err != nil {
		return fmt.Errorf("failed to read valid scans for %s: %w", eventID, err)
	}
	for _, bucket := range validBuckets {
		snap.ValidScans += bucket.Count
		validHours.add(bucket.HourSlot, bucket.Count)
	}

	invalidBuckets, err := s.listBuckets(ctx, eventID, models.ScanInvalid)
	if err != nil {
		return fmt.Errorf("failed to read invalid scans for %s: %w", eventID, err)
	}
	for _, bucket := range invalidBuckets {
		snap.InvalidScans += bucket.Count
		invalidHours.add(bucket.HourSlot, bucket.Count)
	}
	return nil
}

func hourLabel(slot time.Time) string {
	return slot.Format("3 PM")
}

func percent(part, whole int64) string {
	if whole == 0 {
		return "0%"
	}
	return fmt.Sprintf("%d%%", int(math.Round(float64(part)/float64(whole)*100)))
}
