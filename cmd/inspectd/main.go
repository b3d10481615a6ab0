package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/yegors/inspect-ocr/internal/api"
	"github.com/yegors/inspect-ocr/internal/config"
	"github.com/yegors/inspect-ocr/internal/extraction"
	"github.com/yegors/inspect-ocr/internal/inspection"
	"github.com/yegors/inspect-ocr/internal/normalize"
	"github.com/yegors/inspect-ocr/internal/ocr"
	"github.com/yegors/inspect-ocr/internal/prompt"
	"github.com/yegors/inspect-ocr/internal/review"
	"github.com/yegors/inspect-ocr/internal/storage"
	"github.com/yegors/inspect-ocr/internal/storage/memory"
	"github.com/yegors/inspect-ocr/internal/storage/postgres"
	"github.com/yegors/inspect-ocr/internal/storage/sqlite"
	"github.com/yegors/inspect-ocr/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the TOML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := prompt.NewRenderer(log).Render(cfg.Extraction.PromptPath)
	if err != nil {
		return err
	}
	requestor, err := extraction.New(cfg.Extraction, p, log)
	if err != nil {
		return err
	}
	service := ocr.NewService(requestor, normalize.New(log), cfg.Extraction.MaxImageMB<<20, log)
	drafts := review.NewManager(service, log)
	router := api.NewRouter(service, drafts, store, cfg.Server, log)

	srv := &http.Server{
		Handler:           router.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr, err)
	}
	if cfg.Server.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.Server.MaxConnections)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting HTTP server",
			logger.String("addr", ln.Addr().String()),
			logger.String("provider", cfg.Extraction.Provider),
			logger.String("model", cfg.Extraction.Model),
			logger.String("store", cfg.Storage.Driver),
			logger.Strings("cors_allowed_origins", cfg.Server.CORSAllowedOrigins))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (storage.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := sqlite.Open(cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		if cfg.SeedSamples {
			if err := seedIfEmpty(ctx, s, s.Seed); err != nil {
				s.Close()
				return nil, err
			}
		}
		return s, nil
	case "postgres":
		s, err := postgres.Connect(ctx, cfg.PostgresDSN, log)
		if err != nil {
			return nil, err
		}
		if cfg.SeedSamples {
			if err := seedIfEmpty(ctx, s, s.Seed); err != nil {
				s.Close()
				return nil, err
			}
		}
		return s, nil
	default:
		s := memory.New(log)
		if cfg.SeedSamples {
			s.Seed(inspection.Samples()...)
		}
		return s, nil
	}
}

func seedIfEmpty(ctx context.Context, s storage.Store, seed func(context.Context, ...inspection.Record) error) error {
	existing, err := s.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	if err := seed(ctx, inspection.Samples()...); err != nil {
		return fmt.Errorf("failed to seed sample records: %w", err)
	}
	return nil
}
