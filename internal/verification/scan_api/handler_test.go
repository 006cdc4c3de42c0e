package scan_api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-scanner/internal/models"
	"ms-scanner/internal/verification"
	"ms-scanner/internal/verification/db"
	"ms-scanner/internal/verification/scan_api"
)

func setupHandler(t *testing.T) (*scan_api.Handler, *db.Store) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.TicketRecord)(nil),
		(*models.EventSummary)(nil),
		(*models.ScanBucket)(nil),
	} {
		_, err = bunDB.NewCreateTable().Model(model).Exec(ctx)
		require.NoError(t, err)
	}
	t.Cleanup(func() { bunDB.Close() })

	store := &db.Store{Bun: bunDB}
	service := verification.NewService(store, nil)
	return scan_api.NewHandler(service, store, nil, nil), store
}

func postVerify(t *testing.T, handler *scan_api.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/verify-ticket", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.VerifyTicket(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestVerifyTicketMalformedBody(t *testing.T) {
	handler, _ := setupHandler(t)

	rec := postVerify(t, handler, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	payload := decodeResponse(t, rec)
	assert.Equal(t, false, payload["valid"])
	assert.Equal(t, "Invalid request format", payload["error"])
}

func TestVerifyTicketMissingID(t *testing.T) {
	handler, _ := setupHandler(t)

	rec := postVerify(t, handler, `{"ticketId": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	payload := decodeResponse(t, rec)
	assert.Equal(t, false, payload["valid"])
	assert.Equal(t, "Ticket ID is required", payload["error"])
}

func TestVerifyTicketNotFound(t *testing.T) {
	handler, _ := setupHandler(t)

	rec := postVerify(t, handler, `{"ticketId": "does-not-exist"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	payload := decodeResponse(t, rec)
	assert.Equal(t, false, payload["valid"])
	assert.Equal(t, "Ticket not found in database", payload["error"])
}

func TestVerifyTicketFreshThenDuplicate(t *testing.T) {
	handler, store := setupHandler(t)

	require.NoError(t, store.CreateTicket(context.Background(), models.TicketRecord{
		Identifier:  "tkt-100",
		EventName:   "summer_fest_2023",
		BuyerName:   "Jordan Brown",
		ContactInfo: "jordan.brown@example.com",
	}))

	rec := postVerify(t, handler, `{"ticketId": "tkt-100"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	payload := decodeResponse(t, rec)
	assert.Equal(t, true, payload["valid"])
	assert.Equal(t, false, payload["alreadyScanned"])
	details := payload["details"].(map[string]interface{})
	assert.Equal(t, "Jordan Brown", details["buyerName"])
	assert.Equal(t, "summer_fest_2023", details["eventName"])

	rec = postVerify(t, handler, `{"ticketId": "tkt-100"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	payload = decodeResponse(t, rec)
	assert.Equal(t, true, payload["valid"])
	assert.Equal(t, true, payload["alreadyScanned"])
	assert.Equal(t, "This ticket was already scanned previously", payload["warning"])
}

func TestVerifyTicketStorageFailure(t *testing.T) {
	handler, store := setupHandler(t)

	// Closing the database makes the transaction fail, which must surface as
	// a 500, distinguishable from an invalid ticket.
	store.Bun.Close()

	rec := postVerify(t, handler, `{"ticketId": "tkt-100"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	payload := decodeResponse(t, rec)
	assert.Equal(t, false, payload["valid"])
	assert.Equal(t, "Database transaction error", payload["error"])
}

func TestTicketQR(t *testing.T) {
	handler, store := setupHandler(t)

	require.NoError(t, store.CreateTicket(context.Background(), models.TicketRecord{
		Identifier: "tkt-200",
		EventName:  "winter_gala_2023",
	}))

	r := chi.NewRouter()
	r.Get("/api/ticket/{ticketID}/qr", handler.TicketQR)

	req := httptest.NewRequest(http.MethodGet, "/api/ticket/tkt-200/qr", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	// PNG magic bytes.
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	req = httptest.NewRequest(http.MethodGet, "/api/ticket/nope/qr", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "Ticket not found"))
}
