package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/angelmondragon/stockcast/internal/refresh"
	"github.com/angelmondragon/stockcast/internal/transactions"
	"github.com/angelmondragon/stockcast/pkg/config"
	"github.com/angelmondragon/stockcast/pkg/db"
	"github.com/angelmondragon/stockcast/pkg/logger"
	"github.com/angelmondragon/stockcast/pkg/migrate"
	"github.com/angelmondragon/stockcast/pkg/pubsub"
)

func runImport(ctx context.Context, cfg *config.Config, logg *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	path := fs.String("file", "", "CSV or XLSX file to import")
	sheet := fs.String("sheet", "", "worksheet name for XLSX files (default: first sheet)")
	notify := fs.Bool("notify", true, "publish a transactions-changed notification when a topic is configured")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*path) == "" {
		return errors.New("-file is required")
	}

	source, err := fileSource(*path, *sheet)
	if err != nil {
		return err
	}
	rows, err := source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("read %s: %w", *path, err)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()
	if err := migrate.MaybeAutoRun(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	inserted, err := transactions.NewRepository(dbClient.DB()).InsertBatch(ctx, rows)
	if err != nil {
		return err
	}
	ctx = logg.WithFields(ctx, map[string]any{"file": *path, "rows": len(rows), "inserted": inserted})
	logg.Info(ctx, "transactions imported")

	if !*notify || strings.TrimSpace(cfg.PubSub.TransactionsTopic) == "" {
		return nil
	}
	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, false, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub client", err)
		}
	}()
	publisher := client.TransactionsPublisher()
	if publisher == nil {
		return errors.New("transactions topic not configured")
	}
	defer publisher.Stop()

	id, err := refresh.Publish(ctx, publisher, refresh.NewNotification(filepath.Base(*path), inserted))
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "message_id", id), "transactions-changed notification published")
	return nil
}

func fileSource(path, sheet string) (transactions.Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return transactions.NewCSVSource(path)
	case ".xlsx", ".xlsm":
		return transactions.NewXLSXSource(path, sheet)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}
