package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-scanner/internal/models"
	"ms-scanner/internal/verification"
)

// Store is the bun-backed implementation of the verification service's
// transactional contract, plus the provisioning and read operations that
// live outside the scan transaction.
type Store struct {
	Bun *bun.DB
}

func (s *Store) RunScanTx(ctx context.Context, fn func(tx verification.ScanTx) error) error {
	return s.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(&scanTx{tx: tx})
	})
}

// GetTicket fetches one ticket record outside any transaction.
func (s *Store) GetTicket(ctx context.Context, identifier string) (*models.TicketRecord, error) {
	return getTicket(ctx, s.Bun, identifier)
}

// CreateTicket inserts a fresh, unscanned ticket record. Provisioning only;
// the scan path never creates tickets.
func (s *Store) CreateTicket(ctx context.Context, ticket models.TicketRecord) error {
	_, err := s.Bun.NewInsert().Model(&ticket).Exec(ctx)
	return err
}

// UpsertEventSummary creates or replaces the provisioning data for an event.
func (s *Store) UpsertEventSummary(ctx context.Context, summary models.EventSummary) error {
	_, err := s.Bun.NewInsert().
		Model(&summary).
		On("CONFLICT (event_id) DO UPDATE").
		Set("tickets_sent = EXCLUDED.tickets_sent").
		Set("at_door_tickets = EXCLUDED.at_door_tickets").
		Set("status = EXCLUDED.status").
		Set("last_updated = EXCLUDED.last_updated").
		Exec(ctx)
	return err
}

type scanTx struct {
	tx bun.Tx
}

func (t *scanTx) GetTicket(ctx context.Context, identifier string) (*models.TicketRecord, error) {
	return getTicket(ctx, t.tx, identifier)
}

// ClaimTicket attempts the false→true transition. The scanned = false guard
// makes the update the single linearization point for concurrent scans of
// the same identifier: exactly one caller sees one affected row.
func (t *scanTx) ClaimTicket(ctx context.Context, identifier string, at time.Time) (bool, error) {
	res, err := t.tx.NewUpdate().
		Model((*models.TicketRecord)(nil)).
		Set("scanned = ?", true).
		Set("scanned_at = ?", at).
		Where("identifier = ?", identifier).
		Where("scanned = ?", false).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (t *scanTx) IncrementBucket(ctx context.Context, eventID string, class models.ValidityClass, hourSlot time.Time, delta int64) error {
	return incrementBucket(ctx, t.tx, eventID, class, hourSlot, delta)
}

// TouchEventSummary advances last_updated for display purposes. A missing
// summary row is not an error; ticket event names are soft references.
func (t *scanTx) TouchEventSummary(ctx context.Context, eventID string, at time.Time) error {
	_, err := t.tx.NewUpdate().
		Model((*models.EventSummary)(nil)).
		Set("last_updated = ?", at).
		Where("event_id = ?", eventID).
		Exec(ctx)
	return err
}

func getTicket(ctx context.Context, idb bun.IDB, identifier string) (*models.TicketRecord, error) {
	ticket := new(models.TicketRecord)
	err := idb.NewSelect().
		Model(ticket).
		Where("identifier = ?", identifier).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, verification.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}
