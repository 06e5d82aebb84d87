package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"SignalFeed/internal/domain/models"
	"SignalFeed/internal/usecase"
	pkgch "SignalFeed/pkg/clickhouse"
	"SignalFeed/pkg/config"
	xhttp "SignalFeed/pkg/http"
	pkgkafka "SignalFeed/pkg/kafka"
	applogger "SignalFeed/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	feed       *usecase.Feed
	collector  *usecase.FeedCollector
	archiver   *usecase.SignalArchiver
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	chClient   *pkgch.Client
	handler    xhttp.Handler
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	feed *usecase.Feed,
	collector *usecase.FeedCollector,
	archiver *usecase.SignalArchiver,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		feed:      feed,
		collector: collector,
		archiver:  archiver,
		consumer:  consumer,
		kh:        kh,
		chClient:  chClient,
		handler:   handler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Open the push channel. A failed connect leaves the feed serving
	// history over REST, so it is logged but not fatal.
	if err := a.collector.Start(ctx); err != nil {
		a.log.Warn("push channel unavailable", applogger.Error(err))
	}

	// Seed the watch scope from config: subscribes the push channel and
	// loads the first history page.
	if assets := a.watchAssets(); len(assets) > 0 {
		if err := a.feed.SetScope(ctx, assets); err != nil {
			a.log.Warn("initial scope load failed", applogger.Error(err))
		}
		a.log.Info("watch scope set", applogger.Int("assets", len(assets)))
	}

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("feed server started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

func (a *App) watchAssets() []models.Asset {
	assets := make([]models.Asset, 0, len(a.cfg.Watch.Assets))
	for _, wa := range a.cfg.Watch.Assets {
		assets = append(assets, models.Asset{ID: wa.ID, Symbol: wa.Symbol})
	}
	return assets
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	// Stop collector (pipeline + push channel)
	if err := a.collector.Shutdown(ctx); err != nil {
		a.log.Warn("collector stop error", applogger.Error(err))
	}

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Close archive resources (publisher/storage)
	if a.archiver != nil {
		a.archiver.Close()
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	// Flush any aggregated logs before the producer goes away.
	a.log.RemoveCollector()

	a.log.Info("shutdown complete")
	return nil
}
