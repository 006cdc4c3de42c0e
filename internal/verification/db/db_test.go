package db_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-scanner/internal/models"
	"ms-scanner/internal/verification"
	"ms-scanner/internal/verification/db"
)

func setupTestDB(t *testing.T) *db.Store {
	// Connect to an in-memory SQLite DB for testing
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	// A single connection so every goroutine sees the same in-memory database
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.TicketRecord)(nil),
		(*models.EventSummary)(nil),
		(*models.ScanBucket)(nil),
	} {
		_, err = bunDB.NewCreateTable().Model(model).Exec(ctx)
		if err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}

	t.Cleanup(func() { bunDB.Close() })
	return &db.Store{Bun: bunDB}
}

func TestVerifyAndMarkFreshTicket(t *testing.T) {
	store := setupTestDB(t)
	svc := verification.NewService(store, nil)
	ctx := context.Background()

	ticketID := uuid.New().String()
	err := store.CreateTicket(ctx, models.TicketRecord{
		Identifier:  ticketID,
		EventName:   "summer_fest_2023",
		BuyerName:   "Alex Smith",
		ContactInfo: "alex.smith@example.com",
	})
	require.NoError(t, err)

	result, err := svc.VerifyAndMark(ctx, ticketID)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.False(t, result.AlreadyScanned)
	assert.Equal(t, "summer_fest_2023", result.EventID)
	assert.Equal(t, "Alex Smith", result.Details.BuyerName)

	ticket, err := store.GetTicket(ctx, ticketID)
	require.NoError(t, err)
	assert.True(t, ticket.Scanned)
	require.NotNil(t, ticket.ScannedAt)

	buckets, err := store.ListBuckets(ctx, "summer_fest_2023", models.ScanValid)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, int64(1), buckets[0].Count)
	assert.Equal(t, buckets[0].HourSlot, ticket.ScannedAt.Truncate(time.Hour))
}

func TestVerifyAndMarkIdempotentRetry(t *testing.T) {
	store := setupTestDB(t)
	svc := verification.NewService(store, nil)
	ctx := context.Background()

	ticketID := uuid.New().String()
	require.NoError(t, store.CreateTicket(ctx, models.TicketRecord{
		Identifier: ticketID,
		EventName:  "winter_gala_2023",
	}))

	first, err := svc.VerifyAndMark(ctx, ticketID)
	require.NoError(t, err)
	assert.True(t, first.Valid)
	assert.False(t, first.AlreadyScanned)

	second, err := svc.VerifyAndMark(ctx, ticketID)
	require.NoError(t, err)
	assert.True(t, second.Valid)
	assert.True(t, second.AlreadyScanned)

	// The repeat scan must not have inflated the valid counter.
	buckets, err := store.ListBuckets(ctx, "winter_gala_2023", models.ScanValid)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, int64(1), buckets[0].Count)
}

func TestVerifyAndMarkUnknownIdentifier(t *testing.T) {
	store := setupTestDB(t)
	svc := verification.NewService(store, nil)
	ctx := context.Background()

	result, err := svc.VerifyAndMark(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.False(t, result.AlreadyScanned)
	assert.Equal(t, models.UnknownEvent, result.EventID)

	buckets, err := store.ListBuckets(ctx, models.UnknownEvent, models.ScanInvalid)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, int64(1), buckets[0].Count)

	// Nothing was created or mutated on the ticket side.
	_, err = store.GetTicket(ctx, "does-not-exist")
	assert.ErrorIs(t, err, verification.ErrTicketNotFound)
}

func TestVerifyAndMarkExactlyOnceUnderConcurrency(t *testing.T) {
	store := setupTestDB(t)
	svc := verification.NewService(store, nil)
	ctx := context.Background()

	ticketID := uuid.New().String()
	require.NoError(t, store.CreateTicket(ctx, models.TicketRecord{
		Identifier: ticketID,
		EventName:  "spring_show_2024",
	}))

	const scanners = 16
	results := make([]*verification.VerificationResult, scanners)
	errs := make([]error, scanners)

	var wg sync.WaitGroup
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.VerifyAndMark(ctx, ticketID)
		}(i)
	}
	wg.Wait()

	fresh := 0
	duplicates := 0
	for i := 0; i < scanners; i++ {
		require.NoError(t, errs[i])
		require.True(t, results[i].Valid)
		if results[i].AlreadyScanned {
			duplicates++
		} else {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh, "exactly one scanner must win the false→true transition")
	assert.Equal(t, scanners-1, duplicates)

	ticket, err := store.GetTicket(ctx, ticketID)
	require.NoError(t, err)
	assert.True(t, ticket.Scanned)

	buckets, err := store.ListBuckets(ctx, "spring_show_2024", models.ScanValid)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, int64(1), buckets[0].Count)
}

func TestVerifyAndMarkNoEventNameUsesSentinel(t *testing.T) {
	store := setupTestDB(t)
	svc := verification.NewService(store, nil)
	ctx := context.Background()

	ticketID := uuid.New().String()
	require.NoError(t, store.CreateTicket(ctx, models.TicketRecord{Identifier: ticketID}))

	result, err := svc.VerifyAndMark(ctx, ticketID)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, models.UnknownEvent, result.EventID)
	assert.Equal(t, verification.FallbackBuyerName, result.Details.BuyerName)
	assert.Equal(t, verification.FallbackContactInfo, result.Details.ContactInfo)
	assert.Equal(t, verification.FallbackEventName, result.Details.EventName)

	buckets, err := store.ListBuckets(ctx, models.UnknownEvent, models.ScanValid)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, int64(1), buckets[0].Count)
}

func TestVerifyAndMarkTouchesEventSummary(t *testing.T) {
	store := setupTestDB(t)
	svc := verification.NewService(store, nil)
	ctx := context.Background()

	provisionedAt := time.Now().Add(-24 * time.Hour)
	require.NoError(t, store.UpsertEventSummary(ctx, models.EventSummary{
		EventID:     "summer_fest_2023",
		TicketsSent: 10,
		Status:      models.EventStatusActive,
		LastUpdated: provisionedAt,
	}))

	ticketID := uuid.New().String()
	require.NoError(t, store.CreateTicket(ctx, models.TicketRecord{
		Identifier: ticketID,
		EventName:  "summer_fest_2023",
	}))

	_, err := svc.VerifyAndMark(ctx, ticketID)
	require.NoError(t, err)

	summary := new(models.EventSummary)
	err = store.Bun.NewSelect().Model(summary).Where("event_id = ?", "summer_fest_2023").Scan(ctx)
	require.NoError(t, err)
	assert.True(t, summary.LastUpdated.After(provisionedAt))
}

func TestUpsertEventSummaryReplacesCounts(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertEventSummary(ctx, models.EventSummary{
		EventID:     "winter_gala_2023",
		TicketsSent: 700,
		Status:      models.EventStatusActive,
		LastUpdated: time.Now(),
	}))
	require.NoError(t, store.UpsertEventSummary(ctx, models.EventSummary{
		EventID:       "winter_gala_2023",
		TicketsSent:   800,
		AtDoorTickets: 100,
		Status:        models.EventStatusActive,
		LastUpdated:   time.Now(),
	}))

	summary := new(models.EventSummary)
	err := store.Bun.NewSelect().Model(summary).Where("event_id = ?", "winter_gala_2023").Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(800), summary.TicketsSent)
	assert.Equal(t, int64(100), summary.AtDoorTickets)
}
