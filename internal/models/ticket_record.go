package models

import (
	"time"

	"github.com/uptrace/bun"
)

// TicketRecord is one physical ticket, keyed by the identifier encoded in its
// QR code. Scanned is monotonic: once a verification call flips it to true it
// never reverts, and ScannedAt is set on that same transition.
type TicketRecord struct {
	bun.BaseModel `bun:"table:ticket_records,alias:tr"`

	Identifier  string     `bun:"identifier,pk"`
	EventName   string     `bun:"event_name,nullzero"`
	BuyerName   string     `bun:"buyer_name,nullzero"`
	ContactInfo string     `bun:"contact_info,nullzero"`
	Scanned     bool       `bun:"scanned"`
	ScannedAt   *time.Time `bun:"scanned_at,nullzero"`
}
