package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"treatment-plans/internal/adapters/ai/openai"
	"treatment-plans/internal/adapters/auth/identity"
	"treatment-plans/internal/adapters/files"
	"treatment-plans/internal/adapters/ocr/vision"
	redisqueue "treatment-plans/internal/adapters/queue/redis"
	pg "treatment-plans/internal/adapters/storage/postgres"
	"treatment-plans/internal/config"
	"treatment-plans/internal/domain/medications"
	"treatment-plans/internal/platform/logger"
	"treatment-plans/internal/platform/retry"
	"treatment-plans/internal/ports/auth"
	"treatment-plans/internal/router"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := router.Deps{
		Logger:         log,
		Location:       cfg.Location(),
		AITimeout:      cfg.AITimeout(),
		OCRTimeout:     cfg.OCRTimeout(),
		OCRMaxAttempts: cfg.OCRMaxAttempts,
		OCRWorkers:     cfg.OCRWorkers,
	}

	if cfg.DBDSN != "" {
		db, err := openDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		deps.DB = db
	} else {
		log.Warn("DB_DSN vacío, usando storage en memoria", nil)
	}

	if cfg.RedisURL != "" {
		rdb, err := redisqueue.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		deps.Queue = redisqueue.NewQueue(rdb, cfg.OCRQueueKey)
	} else {
		log.Warn("REDIS_URL vacío, cola de OCR en memoria", nil)
	}

	if cfg.UploadDir != "" {
		store, err := files.NewLocal(cfg.UploadDir)
		if err != nil {
			return fmt.Errorf("upload dir: %w", err)
		}
		deps.Files = store
	}

	if cfg.OpenAIKey != "" {
		drafter, err := openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAIKey,
			BaseURL:     cfg.OpenAIBase,
			Model:       cfg.OpenAIModel,
			Timeout:     time.Duration(cfg.OpenAITimeout) * time.Second,
			MaxTokens:   cfg.OpenAIMaxTokens,
			Temperature: cfg.OpenAITemp,
		})
		if err != nil {
			return fmt.Errorf("openai: %w", err)
		}
		deps.Drafter = drafter
	} else {
		log.Warn("OPENAI_API_KEY vacío, sugerencias IA deshabilitadas", nil)
	}

	extractor, err := vision.NewClient(vision.Config{
		APIKey:   cfg.VisionKey,
		Endpoint: cfg.VisionEndpoint,
		Feature:  cfg.VisionFeature,
		Timeout:  time.Duration(cfg.VisionTimeout) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("vision: %w", err)
	}
	deps.Extractor = extractor

	var verifier auth.AuthVerifier
	if cfg.IdentityBaseURL != "" {
		client, err := identity.NewClient(identity.Config{
			BaseURL: cfg.IdentityBaseURL,
			APIKey:  cfg.IdentityAPIKey,
			Timeout: 5 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("identity: %w", err)
		}
		verifier = identity.NewVerifier(client)
	} else if cfg.IsProduction() {
		return errors.New("IDENTITY_BASE_URL es obligatorio en producción")
	}

	svcs := router.BuildServices(deps)
	access := log.Zerolog()

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.NewRouter(router.Options{
			AuthVerifier: verifier,
			Services:     svcs,
			AccessLog:    &access,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting server", map[string]any{"addr": srv.Addr, "env": cfg.Env})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return svcs.Worker.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down", nil)
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runMigrate(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.DBDSN == "" {
		return errors.New("DB_DSN es obligatorio para migrar")
	}
	log := newLogger(cfg)

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := pg.Migrate(ctx, db)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("migrations applied", map[string]any{"count": len(applied), "names": applied})
	return nil
}

func runCatalogAdd(ctx context.Context, out io.Writer, name, summary, posology string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.DBDSN == "" {
		return errors.New("DB_DSN es obligatorio para el catálogo")
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := medications.NewService(pg.NewMedicationsRepo(db)).Register(ctx, name, summary, posology)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\t%s\t%s\n", m.ID, m.Slug, m.Name)
	return err
}

func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := pg.Open(ctx, cfg.DBDSN, pg.Options{
		MaxOpenConns: cfg.DBMaxOpenConns,
		Connect: retry.Config{
			MaxAttempts:   5,
			InitialDelay:  time.Second,
			MaxDelay:      10 * time.Second,
			BackoffFactor: 2,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return db, nil
}

func newLogger(cfg *config.Config) *logger.ZeroLogger {
	return logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    cfg.AppName,
	})
}
