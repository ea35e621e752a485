package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"treemap/internal/amqp"
	"treemap/internal/backend"
	"treemap/internal/cache"
	"treemap/internal/config"
	apphttp "treemap/internal/http"
	"treemap/internal/log"
	"treemap/internal/middleware/ratelimit"
	"treemap/internal/properties"
	"treemap/internal/services"
	"treemap/internal/theme"
	"treemap/internal/watch"
)

const (
	shutdownTimeout      = 10 * time.Second
	cacheCleanupInterval = time.Minute
)

func newServeCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the treemap panel and JSON API",
		Long: fmt.Sprintf(`Starts the HTTP server. The properties file and CSV seed directory are
watched and reloaded on change; when AMQP_URL is set, record changes from
other processes invalidate the record cache.

DATA_BACKEND selects the record source: %s.`, strings.Join(backend.GetBackendTypeStrings(), ", ")),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap(*envFile)
			if err != nil {
				return err
			}
			ctx, stop := GracefulShutdown(cmd.Context(), logger)
			defer stop()
			return runServe(ctx, cfg, logger)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	logger.Info("Starting treemap server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"properties", cfg.PropertiesFile,
		log.FieldOperation, log.OpStartup)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Warn("Failed to close backend", log.FieldError, err)
		}
	}()

	props := properties.NewFileProvider(cfg.PropertiesFile)
	logger.WithComponent(log.ComponentProperties).Info("Using properties file", "path", props.Path())
	panels := services.NewTreemapService(res.Reader, props, theme.DefaultPalette(), cfg.CacheTTL, cfg.CacheSize)

	// AMQP is optional; the panel keeps working without it.
	var amqpClient *amqp.Client
	var publisher services.ChangePublisher
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.WithComponent(log.ComponentAMQP).Warn("Failed to initialize AMQP client, continuing without change notifications", log.FieldError, err)
			amqpClient = nil
		} else {
			publisher = amqpClient
			defer amqpClient.Close()
			logger.WithComponent(log.ComponentAMQP).Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	records := services.NewRecordService(res.Writer, panels, publisher, processOrigin())
	processor := services.NewChangeProcessor(panels, res.Reloader, func() error {
		_, err := props.Reload()
		return err
	})

	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
	srv := apphttp.NewServer(apphttp.Options{
		Addr:        ":" + cfg.Port,
		Panels:      panels,
		Records:     records,
		Logger:      logger,
		Limiter:     limiter,
		DefaultMode: theme.ParseMode(cfg.ThemeMode),
		CacheStats:  panels.RecordCache().Stats,
	})
	cacheManager := cache.NewManager(panels.RecordCache())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx, shutdownTimeout) })
	g.Go(func() error { return cacheManager.Run(gctx, cacheCleanupInterval) })
	g.Go(func() error { return limiter.Run(gctx) })

	if amqpClient != nil {
		g.Go(func() error {
			return amqpClient.ConsumeRecordsChanged(gctx, processor.HandleRecordsChanged)
		})
	}

	watchPaths := append([]string{props.Path()}, res.WatchPaths...)
	watcher, err := watch.New(watchPaths...)
	if err != nil {
		logger.WithComponent(log.ComponentWatch).Warn("File watching disabled", log.FieldError, err)
	} else {
		g.Go(func() error {
			return watcher.Run(gctx, func(target string) {
				if target == props.Path() {
					processor.PropertiesChanged(gctx)
					return
				}
				processor.DataChanged(gctx)
			})
		})
	}

	err = g.Wait()
	logger.Info("Treemap server stopped", log.FieldOperation, log.OpShutdown)
	return err
}

// processOrigin names this process in RecordsChanged messages.
func processOrigin() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("serve@%s:%d", host, os.Getpid())
}
