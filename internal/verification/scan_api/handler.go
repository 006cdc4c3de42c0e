package scan_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-scanner/internal/issuance"
	"ms-scanner/internal/kafka"
	"ms-scanner/internal/logger"
	"ms-scanner/internal/models"
	"ms-scanner/internal/verification"
)

// TicketReader is the read-only store access the QR endpoint needs.
type TicketReader interface {
	GetTicket(ctx context.Context, identifier string) (*models.TicketRecord, error)
}

type Handler struct {
	Service     *verification.Service
	TicketStore TicketReader
	QRGenerator *issuance.QRGenerator
	Producer    *kafka.Producer
	Logger      *logger.Logger
}

func NewHandler(service *verification.Service, store TicketReader, producer *kafka.Producer, log *logger.Logger) *Handler {
	return &Handler{
		Service:     service,
		TicketStore: store,
		QRGenerator: issuance.NewQRGenerator(),
		Producer:    producer,
		Logger:      log,
	}
}

type verifyRequest struct {
	TicketID string `json:"ticketId"`
}

type verifyResponse struct {
	Valid          bool                          `json:"valid"`
	AlreadyScanned bool                          `json:"alreadyScanned"`
	Details        *verification.TicketDetails   `json:"details,omitempty"`
	Warning        string                        `json:"warning,omitempty"`
	Error          string                        `json:"error,omitempty"`
}

// VerifyTicket handles the scan path. The scanning device must be able to
// tell apart "ticket does not exist", "ticket already used" and "verification
// system unavailable", so the three outcomes map to distinct payloads and a
// storage failure is a 500, never an invalid-ticket response.
func (h *Handler) VerifyTicket(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSON(w, http.StatusBadRequest, verifyResponse{Valid: false, Error: "Invalid request format"})
		return
	}

	result, err := h.Service.VerifyAndMark(r.Context(), req.TicketID)
	if errors.Is(err, verification.ErrBadRequest) {
		sendJSON(w, http.StatusBadRequest, verifyResponse{Valid: false, Error: "Ticket ID is required"})
		return
	}
	var txErr *verification.TransactionError
	if errors.As(err, &txErr) {
		sendJSON(w, http.StatusInternalServerError, verifyResponse{Valid: false, Error: "Database transaction error"})
		return
	}
	if err != nil {
		sendJSON(w, http.StatusInternalServerError, verifyResponse{Valid: false, Error: "Server error"})
		return
	}

	switch {
	case !result.Valid:
		h.publishScan(req.TicketID, result.EventID, models.ScanInvalid)
		sendJSON(w, http.StatusOK, verifyResponse{
			Valid: false,
			Error: "Ticket not found in database",
		})
	case result.AlreadyScanned:
		sendJSON(w, http.StatusOK, verifyResponse{
			Valid:          true,
			AlreadyScanned: true,
			Details:        result.Details,
			Warning:        "This ticket was already scanned previously",
		})
	default:
		h.publishScan(req.TicketID, result.EventID, models.ScanValid)
		sendJSON(w, http.StatusOK, verifyResponse{
			Valid:   true,
			Details: result.Details,
		})
	}
}

// TicketQR serves the PNG QR code for an issued ticket.
func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")
	ticket, err := h.TicketStore.GetTicket(r.Context(), ticketID)
	if errors.Is(err, verification.ErrTicketNotFound) {
		http.Error(w, "Ticket not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load ticket: "+err.Error(), http.StatusInternalServerError)
		return
	}

	png, err := h.QRGenerator.Encode(ticket.Identifier)
	if err != nil {
		http.Error(w, "Failed to render QR: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// publishScan streams the outcome to Kafka outside the storage transaction.
// A publish failure is logged and otherwise ignored; it never affects the
// verification result.
func (h *Handler) publishScan(ticketID, eventID string, class models.ValidityClass) {
	if h.Producer == nil {
		return
	}
	event := kafka.ScanEvent{
		TicketID:      ticketID,
		EventID:       eventID,
		ValidityClass: string(class),
		ScannedAt:     time.Now(),
	}
	go func() {
		if err := h.Producer.PublishScanRecorded(event); err != nil && h.Logger != nil {
			h.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish scan for %s: %v", ticketID, err))
		}
	}()
}

func sendJSON(w http.ResponseWriter, status int, payload verifyResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
