package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"school_portal_echo/internal/config"
	"school_portal_echo/internal/payments"
	"school_portal_echo/internal/services"
)

// verify_reference settles one gateway reference from the command line, for
// payments whose callback never reached the server.
func main() {
	reference := flag.String("reference", "", "Gateway transaction reference (mandatory)")
	timeout := flag.Duration("timeout", time.Minute, "Overall timeout")
	flag.Parse()

	if *reference == "" {
		fmt.Println("Usage: verify_reference -reference <ref>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	var store payments.Store
	switch {
	case cfg.DatabaseURL != "":
		db, err := services.InitDB(cfg.DatabaseURL, true)
		if err != nil {
			logger.Error("failed to connect to database", "err", err)
			os.Exit(1)
		}
		store = payments.NewGormStore(db)
	case cfg.StoreFile != "":
		store, err = payments.NewFileStore(cfg.StoreFile)
		if err != nil {
			logger.Error("failed to open payment store", "path", cfg.StoreFile, "err", err)
			os.Exit(1)
		}
	default:
		logger.Error("set DATABASE_URL or PAYMENTS_STORE_FILE")
		os.Exit(1)
	}

	verifier := payments.NewVerifier(services.NewPaystackService(cfg.Paystack), store, payments.LogPublisher{Logger: logger}, nil, payments.VerifierConfig{
		PlatformSharePercent: cfg.Split.PlatformSharePercent,
		SplitCode:            cfg.Split.SplitCode,
		SubaccountCode:       cfg.Split.SubaccountCode,
		CurrencySymbol:       cfg.CurrencySymbol,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := verifier.Verify(ctx, *reference)
	if err != nil {
		logger.Error("verification failed", "reference", *reference, "client_error", payments.IsClientError(err), "err", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(map[string]interface{}{
		"reference":       result.Reference,
		"amount":          result.Amount,
		"paymentId":       result.Payment.ID,
		"receiptNumber":   result.Receipt.ReceiptNumber,
		"ledgerPaymentId": result.LedgerEntryID,
		"schoolNetKobo":   result.Split.SchoolNetKobo,
		"platformKobo":    result.Split.DeveloperShareKobo,
	}, "", "  ")
	fmt.Println(string(out))
}
