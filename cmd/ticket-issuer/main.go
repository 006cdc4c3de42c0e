package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"ms-scanner/internal/config"
	"ms-scanner/internal/database"
	"ms-scanner/internal/issuance"
	"ms-scanner/internal/logger"
	"ms-scanner/internal/models"
	verification_db "ms-scanner/internal/verification/db"
)

// ticket-issuer provisions an event: it upserts the event summary, creates N
// unscanned ticket records and renders their QR codes. Delivery of the codes
// to buyers happens elsewhere.
func main() {
	var (
		eventName = flag.String("event", "", "event name the tickets belong to (required)")
		count     = flag.Int64("count", 0, "number of pre-sent tickets to issue (required)")
		atDoor    = flag.Int64("at-door", 0, "at-door ticket allotment recorded on the event summary")
		outDir    = flag.String("out", "qr-codes", "directory QR PNGs are written to")
	)
	flag.Parse()

	if *eventName == "" || *count <= 0 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	bunDB, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect: %v", err))
	}
	defer bunDB.Close()

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatal("ISSUER", fmt.Sprintf("Failed to create output directory: %v", err))
	}

	ctx := context.Background()
	store := &verification_db.Store{Bun: bunDB}
	qrGen := issuance.NewQRGenerator()

	summary := models.EventSummary{
		EventID:       *eventName,
		TicketsSent:   *count,
		AtDoorTickets: *atDoor,
		Status:        models.EventStatusActive,
		LastUpdated:   time.Now(),
	}
	if err := store.UpsertEventSummary(ctx, summary); err != nil {
		log.Fatal("ISSUER", fmt.Sprintf("Failed to upsert event summary: %v", err))
	}

	for i := int64(0); i < *count; i++ {
		ticket := models.TicketRecord{
			Identifier: uuid.New().String(),
			EventName:  *eventName,
		}
		if err := store.CreateTicket(ctx, ticket); err != nil {
			log.Fatal("ISSUER", fmt.Sprintf("Failed to create ticket: %v", err))
		}

		png, err := qrGen.Encode(ticket.Identifier)
		if err != nil {
			log.Fatal("ISSUER", fmt.Sprintf("Failed to render QR: %v", err))
		}
		path := filepath.Join(*outDir, ticket.Identifier+".png")
		if err := os.WriteFile(path, png, 0644); err != nil {
			log.Fatal("ISSUER", fmt.Sprintf("Failed to write %s: %v", path, err))
		}
	}

	log.Info("ISSUER", fmt.Sprintf("Issued %d tickets for %s (QR codes in %s)", *count, *eventName, *outDir))
}
