package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-scanner/internal/logger"
	"ms-scanner/internal/models"
)

// Fallback display values for optional ticket metadata.
const (
	FallbackBuyerName   = "Unknown buyer"
	FallbackContactInfo = "No email provided"
	FallbackEventName   = "No event name provided"
)

// Store runs the atomic scan unit. Everything done inside the callback
// commits or aborts as one transaction.
type Store interface {
	RunScanTx(ctx context.Context, fn func(tx ScanTx) error) error
}

// ScanTx is the transactional surface VerifyAndMark needs. ClaimTicket is the
// linearization point: it performs a conditional update guarded by
// scanned = false and reports whether this call won the transition, so two
// concurrent scans of the same identifier can never both succeed.
type ScanTx interface {
	GetTicket(ctx context.Context, identifier string) (*models.TicketRecord, error)
	ClaimTicket(ctx context.Context, identifier string, at time.Time) (bool, error)
	IncrementBucket(ctx context.Context, eventID string, class models.ValidityClass, hourSlot time.Time, delta int64) error
	TouchEventSummary(ctx context.Context, eventID string, at time.Time) error
}

// TicketDetails is the display metadata returned to the scanning device.
// Absent fields are replaced with fallback values here so callers never see
// empty strings.
type TicketDetails struct {
	BuyerName   string `json:"buyerName"`
	ContactInfo string `json:"contactInfo"`
	EventName   string `json:"eventName"`
}

// VerificationResult distinguishes the three scan outcomes: not found
// (Valid false), duplicate (Valid true, AlreadyScanned true) and fresh
// success. EventID is the resolved bucket key, including the sentinel.
type VerificationResult struct {
	Valid          bool
	AlreadyScanned bool
	EventID        string
	Details        *TicketDetails
}

type Service struct {
	Store  Store
	Logger *logger.Logger

	now func() time.Time
}

func NewService(store Store, log *logger.Logger) *Service {
	return &Service{Store: store, Logger: log, now: time.Now}
}

// VerifyAndMark decides, exactly once per identifier, whether the ticket is
// valid and unused. The lookup, the scanned-flag claim and the hourly counter
// increment run in a single storage transaction; on any storage failure the
// whole unit aborts and a TransactionError is returned with no partial state.
func (s *Service) VerifyAndMark(ctx context.Context, identifier string) (*VerificationResult, error) {
	if identifier == "" {
		return nil, ErrBadRequest
	}

	now := s.now()
	hourSlot := now.Truncate(time.Hour)

	var result *VerificationResult
	err := s.Store.RunScanTx(ctx, func(tx ScanTx) error {
		ticket, err := tx.GetTicket(ctx, identifier)
		if errors.Is(err, ErrTicketNotFound) {
			// Unknown identifiers are counted against the sentinel event,
			// even when the string superficially resembles a real ticket ID.
			// No event inference is attempted.
			result = &VerificationResult{Valid: false, EventID: models.UnknownEvent}
			return tx.IncrementBucket(ctx, models.UnknownEvent, models.ScanInvalid, hourSlot, 1)
		}
		if err != nil {
			return err
		}

		if ticket.Scanned {
			// A repeat scan of a known ticket is neither a fresh valid scan
			// nor an invalid one; it must not inflate any counter.
			result = duplicateResult(ticket)
			return nil
		}

		won, err := tx.ClaimTicket(ctx, identifier, now)
		if err != nil {
			return err
		}
		if !won {
			// Lost the false→true race to a concurrent scanner.
			result = duplicateResult(ticket)
			return nil
		}

		eventID := ticket.EventName
		if eventID == "" {
			eventID = models.UnknownEvent
		}
		if err := tx.IncrementBucket(ctx, eventID, models.ScanValid, hourSlot, 1); err != nil {
			return err
		}
		if eventID != models.UnknownEvent {
			if err := tx.TouchEventSummary(ctx, eventID, now); err != nil {
				return err
			}
		}
		result = &VerificationResult{
			Valid:   true,
			EventID: eventID,
			Details: detailsFor(ticket),
		}
		return nil
	})
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("SCAN", fmt.Sprintf("Transaction failed for ticket %s: %v", identifier, err))
		}
		return nil, &TransactionError{Err: err}
	}

	if s.Logger != nil {
		s.Logger.LogScan(outcomeLabel(result), identifier)
	}
	return result, nil
}

func duplicateResult(ticket *models.TicketRecord) *VerificationResult {
	eventID := ticket.EventName
	if eventID == "" {
		eventID = models.UnknownEvent
	}
	return &VerificationResult{
		Valid:          true,
		AlreadyScanned: true,
		EventID:        eventID,
		Details:        detailsFor(ticket),
	}
}

func detailsFor(ticket *models.TicketRecord) *TicketDetails {
	details := &TicketDetails{
		BuyerName:   ticket.BuyerName,
		ContactInfo: ticket.ContactInfo,
		EventName:   ticket.EventName,
	}
	if details.BuyerName == "" {
		details.BuyerName = FallbackBuyerName
	}
	if details.ContactInfo == "" {
		details.ContactInfo = FallbackContactInfo
	}
	if details.EventName == "" {
		details.EventName = FallbackEventName
	}
	return details
}

func outcomeLabel(result *VerificationResult) string {
	switch {
	case !result.Valid:
		return "NOT_FOUND"
	case result.AlreadyScanned:
		return "ALREADY_SCANNED"
	default:
		return "MARKED"
	}
}
