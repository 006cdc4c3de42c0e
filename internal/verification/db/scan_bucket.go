package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-scanner/internal/models"
)

// IncrementBucket adds delta to the counter for (eventID, hourSlot, class),
// creating the bucket when absent. Exposed for callers that increment outside
// a scan transaction; the scan path uses the ScanTx variant.
func (s *Store) IncrementBucket(ctx context.Context, eventID string, class models.ValidityClass, hourSlot time.Time, delta int64) error {
	return incrementBucket(ctx, s.Bun, eventID, class, hourSlot, delta)
}

// ListBuckets returns every bucket for one event and validity class, oldest
// hour first.
func (s *Store) ListBuckets(ctx context.Context, eventID string, class models.ValidityClass) ([]models.ScanBucket, error) {
	var buckets []models.ScanBucket
	err := s.Bun.NewSelect().
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

// incrementBucket is a commutative add pushed down to the database. The
// upsert never reads the current count, so concurrent increments on the same
// key compose without lost updates regardless of isolation level.
func incrementBucket(ctx context.Context, idb bun.IDB, eventID string, class models.ValidityClass, hourSlot time.Time, delta int64) error {
	bucket := &models.ScanBucket{
		EventID:       eventID,
		HourSlot:      hourSlot,
		ValidityClass: class,
		Count:         delta,
		LastUpdated:   time.Now(),
	}
	_, err := idb.NewInsert().
		Model(bucket).
		On("CONFLICT (event_id, hour_slot, validity_class) DO UPDATE").
		Set("count = sb.count + EXCLUDED.count").
		Set("last_updated = EXCLUDED.last_updated").
		Exec(ctx)
	return err
}
