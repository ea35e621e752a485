package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"treemap/internal/amqp"
	"treemap/internal/backend"
	"treemap/internal/config"
	"treemap/internal/log"
	"treemap/internal/services"
	"treemap/internal/worker"
)

func newImportCommand(envFile *string) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy Google Sheets tables into SQLite",
		Long: `Imports the tables listed in IMPORT_TABLES (every tab when empty) from the
Google spreadsheet into the SQLite database, then announces each table over
AMQP so running servers drop their cached records.

Without --once the import repeats every IMPORT_INTERVAL until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap(*envFile)
			if err != nil {
				return err
			}
			if err := cfg.ValidateSheets(); err != nil {
				return err
			}
			ctx, stop := GracefulShutdown(cmd.Context(), logger)
			defer stop()
			return runImport(ctx, cfg, logger, once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "import a single time and exit")
	return cmd
}

func runImport(ctx context.Context, cfg *config.Config, logger *log.Logger, once bool) error {
	logger = logger.WithComponent(log.ComponentWorker)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	src, err := backend.OpenSheets(ctx, bcfg)
	if err != nil {
		return err
	}
	dst, err := backend.OpenSQLite(bcfg)
	if err != nil {
		return err
	}
	defer dst.Close()

	var publisher services.ChangePublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, "")
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, imports will not be announced", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
		}
	}

	w := worker.NewImportWorker(src, dst, publisher, cfg.ImportTables, cfg.ImportConcurrency)
	if once {
		if err := w.ImportAll(ctx); err != nil {
			return fmt.Errorf("import: %w", err)
		}
		logger.Info("Import completed", log.FieldOperation, log.OpImport)
		return nil
	}
	return w.Run(ctx, cfg.ImportInterval)
}
