package models

import (
	"time"

	"github.com/uptrace/bun"
)

const EventStatusActive = "active"

// EventSummary holds per-event provisioning data. The ticket counts are
// written by the issuance side only; the scan path touches LastUpdated and
// nothing else.
type EventSummary struct {
	bun.BaseModel `bun:"table:event_summaries,alias:es"`

	EventID       string    `bun:"event_id,pk"`
	TicketsSent   int64     `bun:"tickets_sent"`
	AtDoorTickets int64     `bun:"at_door_tickets"`
	Status        string    `bun:"status,nullzero,default:'active'"`
	LastUpdated   time.Time `bun:"last_updated"`
}
