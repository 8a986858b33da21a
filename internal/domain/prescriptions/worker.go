package prescriptions

import (
	"context"
	"errors"
	"time"

	"treatment-plans/internal/platform/logger"
	"treatment-plans/internal/platform/retry"

	"golang.org/x/sync/errgroup"
)

type WorkerOptions struct {
	Concurrency  int           // consumidores en paralelo; default 1
	InitialDelay time.Duration // backoff entre intentos; default 5s
	Logger       logger.Logger
}

// Worker consume la cola de OCR y procesa cada receta con reintentos.
type Worker struct {
	svc         *Service
	queue       Queue
	log         logger.Logger
	concurrency int
	retry       retry.Config
}

func NewWorker(svc *Service, queue Queue, opts WorkerOptions) *Worker {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	n := opts.Concurrency
	if n <= 0 {
		n = 1
	}
	delay := opts.InitialDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	return &Worker{
		svc:         svc,
		queue:       queue,
		log:         log.With(map[string]any{"component": "ocr_worker"}),
		concurrency: n,
		retry: retry.Config{
			MaxAttempts:   svc.MaxAttempts(),
			InitialDelay:  delay,
			MaxDelay:      time.Minute,
			BackoffFactor: 2,
		},
	}
}

// Run bloquea hasta que ctx termine.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("ocr worker started", map[string]any{"concurrency": w.concurrency})

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			w.consume(gctx)
			return nil
		})
	}
	err := g.Wait()

	w.log.Info("ocr worker stopped", nil)
	return err
}

func (w *Worker) consume(ctx context.Context) {
	for {
		job, err := w.queue.Dequeue(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			w.log.Error("dequeue failed", map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		w.Handle(ctx, job)
	}
}

// Handle procesa un trabajo. Un upload borrado mientras esperaba se descarta.
func (w *Worker) Handle(ctx context.Context, job Job) {
	err := retry.Do(ctx, w.retry, func(attempt int) error {
		err := w.svc.Process(ctx, job.UploadID, attempt)
		if errors.Is(err, ErrNotFound) {
			return retry.Permanent(err)
		}
		return err
	}, func(attempt int, err error, next time.Duration) {
		w.log.Warn("ocr attempt failed, retrying", map[string]any{
			"upload_id": job.UploadID,
			"attempt":   attempt,
			"next":      next.String(),
			"error":     err.Error(),
		})
	})

	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		w.log.Info("upload gone before processing", map[string]any{"upload_id": job.UploadID})
	case ctx.Err() != nil:
		// apagado: el trabajo queda en processing
	default:
		w.log.Error("ocr processing failed", map[string]any{"upload_id": job.UploadID, "error": err.Error()})
		if ferr := w.svc.Fail(ctx, job.UploadID, "Unexpected failure while processing the prescription."); ferr != nil {
			w.log.Error("mark upload failed", map[string]any{"upload_id": job.UploadID, "error": ferr.Error()})
		}
	}
}
