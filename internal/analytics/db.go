package analytics

import (
	"context"
	"database/sql"
	"errors"

	"ms-scanner/internal/models"
)

// Read-only queries backing the aggregator. Writes to these tables happen
// exclusively through the verification store.

// listEventIDs unions provisioned events with events that only exist as scan
// buckets. The sentinel group for unmatched identifiers has no summary row
// but its invalid scans still belong in the wildcard totals.
func (s *Service) listEventIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().
		Model((*models.EventSummary)(nil)).
		Column("event_id").
		Order("event_id").
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}

	var bucketIDs []string
	err = s.db.NewSelect().
		Model((*models.ScanBucket)(nil)).
		ColumnExpr("DISTINCT event_id").
		Order("event_id").
		Scan(ctx, &bucketIDs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range bucketIDs {
		if !seen[id] {
			ids = append(ids, id)
			seen[id] = true
		}
	}
	return ids, nil
}

// getEventSummary returns nil without error when the event has no summary
// row. Buckets can exist for events nobody provisioned (the sentinel group
// among them), and those must still be summarizable.
func (s *Service) getEventSummary(ctx context.Context, eventID string) (*models.EventSummary, error) {
	summary := new(models.EventSummary)
	err := s.db.NewSelect().
		Model(summary).
		Where("event_id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *Service) listBuckets(ctx context.Context, eventID string, class models.ValidityClass) ([]models.ScanBucket, error) {
	var buckets []models.ScanBucket
	err := s.db.NewSelect().
		Model(&buckets).
		Where("event_id = ?", eventID).
		Where("validity_class = ?", class).
		Order("hour_slot").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return buckets, nil
}
