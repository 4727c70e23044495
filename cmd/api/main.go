package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/stonecrest/achgen/internal/aba"
	"github.com/stonecrest/achgen/internal/achfile"
	achfileStore "github.com/stonecrest/achgen/internal/achfile/store"
	"github.com/stonecrest/achgen/internal/batch"
	batchStore "github.com/stonecrest/achgen/internal/batch/store"
	"github.com/stonecrest/achgen/internal/config"
	"github.com/stonecrest/achgen/internal/database"
	achgenHttp "github.com/stonecrest/achgen/internal/http"
	achfileHandler "github.com/stonecrest/achgen/internal/http/achfile"
	batchHandler "github.com/stonecrest/achgen/internal/http/batch"
	returnsHandler "github.com/stonecrest/achgen/internal/http/returns"
	"github.com/stonecrest/achgen/internal/nacha"
	"github.com/stonecrest/achgen/internal/notify"
	"github.com/stonecrest/achgen/internal/returns"
	returnsStore "github.com/stonecrest/achgen/internal/returns/store"
	"github.com/stonecrest/achgen/internal/vault"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	for _, routing := range []string{
		cfg.Originator.OriginRouting,
		cfg.Originator.DestinationRouting,
		cfg.Originator.SettlementRouting,
	} {
		if !aba.ValidateRouting(routing) {
			slog.Error("originator routing number fails ABA checksum", "routing", routing)
			os.Exit(1)
		}
	}

	accountVault, err := vault.NewAESVault(cfg.Vault.Key)
	if err != nil {
		slog.Error("failed to build account vault", "error", err)
		os.Exit(1)
	}

	originator := nacha.Originator{
		CompanyID:          cfg.Originator.CompanyID,
		CompanyName:        cfg.Originator.CompanyName,
		OriginRouting:      cfg.Originator.OriginRouting,
		OriginName:         cfg.Originator.OriginName,
		DestinationRouting: cfg.Originator.DestinationRouting,
		DestinationName:    cfg.Originator.DestinationName,
		SettlementRouting:  cfg.Originator.SettlementRouting,
		SettlementAccount:  cfg.Originator.SettlementAccount,
	}

	var notifier returns.Notifier
	if cfg.Webhook.URL != "" {
		notifier = notify.NewWebhook(cfg.Webhook.URL)
	}

	bStore := batchStore.New(db)
	originRouting8 := cfg.Originator.OriginRouting[:8]

	offsetTraces := nacha.TraceSourceFunc(func() (string, error) {
		return bStore.AllocateTrace(context.Background(), originRouting8)
	})

	var (
		batchService   = batch.NewService(bStore, accountVault, originRouting8)
		fileService    = achfile.NewService(achfileStore.New(db), batchService, accountVault, originator, offsetTraces)
		returnsService = returns.NewService(returnsStore.New(db), notifier)
	)

	var (
		batchesH = batchHandler.NewHandler(batchService)
		filesH   = achfileHandler.NewHandler(fileService)
		returnsH = returnsHandler.NewHandler(returnsService)
	)

	router := achgenHttp.New(batchesH, filesH, returnsH, cfg.Auth.JWTSecret)

	port := fmt.Sprintf(":%d", cfg.App.Port)
	slog.Info("starting server", "port", port, "company", cfg.Originator.CompanyID)

	if err := http.ListenAndServe(port, router); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
