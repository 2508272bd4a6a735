// main package for the tts-gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/voxbr/tts-gateway/internal/artifact"
	"github.com/voxbr/tts-gateway/internal/config"
	"github.com/voxbr/tts-gateway/internal/core"
	"github.com/voxbr/tts-gateway/internal/engine"
	"github.com/voxbr/tts-gateway/internal/health"
	"github.com/voxbr/tts-gateway/internal/notify"
	"github.com/voxbr/tts-gateway/internal/pipeline"
	"github.com/voxbr/tts-gateway/internal/server"
	"github.com/voxbr/tts-gateway/internal/text"
	"github.com/voxbr/tts-gateway/internal/voices"
	"github.com/voxbr/tts-gateway/internal/worker"
)

const version = "1.0.0"

const shutdownTimeout = 10 * time.Second

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

// messaging groups the optional NATS collaborators.
type messaging struct {
	conn      *nats.Conn
	mirror    *artifact.Mirror
	publisher core.Publisher
}

func connectMessaging(cfg *config.Config, log *logger.Logger) (*messaging, error) {
	if !cfg.NATS.Enabled {
		return &messaging{}, nil
	}

	conn, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}

	wired := &messaging{conn: conn}

	if cfg.NATS.MirrorBucket != "" {
		jetstreamContext, jsErr := conn.JetStream()
		if jsErr != nil {
			return nil, fmt.Errorf("failed to create JetStream context: %w", jsErr)
		}

		wired.mirror, err = artifact.NewMirror(jetstreamContext, cfg.NATS.MirrorBucket)
		if err != nil {
			return nil, err
		}
	}

	if cfg.NATS.AudioCreatedSubject != "" {
		wired.publisher = notify.NewNatsPublisher(conn, cfg.NATS.AudioCreatedSubject)
	}

	log.Info("NATS messaging connected at %s", cfg.NATS.URL)

	return wired, nil
}

func buildPipeline(
	cfg *config.Config,
	registry *voices.Registry,
	store *artifact.Store,
	wired *messaging,
	log *logger.Logger,
) (*pipeline.Pipeline, *health.Reporter) {
	cloud := engine.NewCloud(engine.CloudOptions{
		BaseURL: cfg.Engines.Cloud.URL,
		Timeout: cfg.CloudTimeout(),
		Retries: cfg.Engines.Cloud.Retries,
		Backoff: cfg.CloudBackoff(),
	}, log)

	local := engine.NewLocal(engine.LocalOptions{
		Binary:  cfg.Engines.Local.Binary,
		Timeout: cfg.LocalTimeout(),
	}, log)

	opts := pipeline.Options{
		Sanitizer:       text.NewSanitizer(cfg.TTS.MaxTextLength),
		Registry:        registry,
		CloudEngine:     cloud,
		LocalEngine:     local,
		Store:           store,
		Publisher:       wired.publisher,
		Logger:          log,
		DefaultVoice:    cfg.TTS.DefaultVoice,
		DefaultLanguage: cfg.TTS.DefaultLanguage,
		SampleRate:      cfg.TTS.SampleRate,
	}

	if wired.mirror != nil {
		opts.Mirror = wired.mirror
	}

	reporter := health.New(cloud, local, store, cfg.HealthBudget(), version)

	return pipeline.New(opts), reporter
}

func startSweeper(ctx context.Context, cfg *config.Config, store *artifact.Store, log *logger.Logger) {
	if cfg.Artifacts.RetentionHours <= 0 {
		return
	}

	interval := time.Duration(cfg.Artifacts.SweepIntervalMin) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}

	retention := time.Duration(cfg.Artifacts.RetentionHours) * time.Hour

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := store.Sweep(retention)
				if err != nil {
					log.Warn("Artifact sweep failed: %v", err)

					continue
				}

				if removed > 0 {
					log.Info("Artifact sweep removed %d files", removed)
				}
			}
		}
	}()
}

func serve(ctx context.Context, cfg *config.Config, handler http.Handler, log *logger.Logger) error {
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	log.System("tts-gateway listening on %s", cfg.ListenAddr())

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	return nil
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir(), "tts-gateway-bootstrap.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := setupLogger(cfg.Paths.BaseLogsDir, "tts-gateway.log")
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return err
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	registry, err := voices.LoadFile(cfg.Paths.VoicesFile)
	if err != nil {
		log.Error("Failed to load voice registry: %v", err)

		return fmt.Errorf("failed to load voice registry: %w", err)
	}

	store, err := artifact.New(cfg.Paths.OutputDir, cfg.TTS.SampleRate, log)
	if err != nil {
		log.Error("Failed to create artifact store: %v", err)

		return err
	}

	wired, err := connectMessaging(cfg, log)
	if err != nil {
		log.Error("Failed to wire NATS messaging: %v", err)

		return err
	}

	if wired.conn != nil {
		defer wired.conn.Close()
	}

	pipe, reporter := buildPipeline(cfg, registry, store, wired, log)
	gateway := server.New(pipe, registry, store, reporter, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startSweeper(ctx, cfg, store, log)

	if wired.conn != nil && cfg.NATS.JobsSubject != "" {
		jobWorker := worker.NewNatsWorker(wired.conn, cfg.NATS.JobsSubject, pipe, log)

		go func() {
			workerErr := jobWorker.Run(ctx)
			if workerErr != nil {
				log.Error("NATS worker stopped: %v", workerErr)
			}
		}()

		log.System("NATS worker listening for jobs on subject: %s", cfg.NATS.JobsSubject)
	}

	err = serve(ctx, cfg, gateway.Handler(), log)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	log.System("tts-gateway stopped.")

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
