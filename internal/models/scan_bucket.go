package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ValidityClass says whether a recorded scan counted as a successful first
// redemption or a failed attempt.
type ValidityClass string

const (
	ScanValid   ValidityClass = "valid"
	ScanInvalid ValidityClass = "invalid"
)

// UnknownEvent is the sentinel bucket group for scans whose ticket could not
// be resolved to a real event. Keeping these visible in analytics is
// deliberate; bogus scan attempts must not be silently dropped.
const UnknownEvent = "unknown_event"

// ScanBucket is an hourly counter. HourSlot is the scan time truncated to the
// top of the hour, and Count only ever grows by addition, so concurrent
// increments merge into one row instead of racing.
type ScanBucket struct {
	bun.BaseModel `bun:"table:scan_buckets,alias:sb"`

	ID            int64         `bun:"id,pk,autoincrement"`
	EventID       string        `bun:"event_id,unique:scan_bucket_key"`
	HourSlot      time.Time     `bun:"hour_slot,unique:scan_bucket_key"`
	ValidityClass ValidityClass `bun:"validity_class,unique:scan_bucket_key"`
	Count         int64         `bun:"count"`
	LastUpdated   time.Time     `bun:"last_updated"`
}
