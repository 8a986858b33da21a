package router

import (
	"database/sql"
	"net/http"
	"time"

	"treatment-plans/internal/adapters/files"
	memqueue "treatment-plans/internal/adapters/queue/memory"
	mem "treatment-plans/internal/adapters/storage/memory"
	pg "treatment-plans/internal/adapters/storage/postgres"
	"treatment-plans/internal/domain/medications"
	"treatment-plans/internal/domain/plans"
	"treatment-plans/internal/domain/prescriptions"
	"treatment-plans/internal/middleware"
	"treatment-plans/internal/platform/logger"
	"treatment-plans/internal/ports/auth"

	_ "treatment-plans/docs"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Deps son los colaboradores externos. Todo es opcional: sin DB se usa
// storage en memoria, sin Queue una cola en proceso, sin Files memoria.
type Deps struct {
	DB        *sql.DB
	Queue     prescriptions.Queue
	Files     prescriptions.FileStore
	Drafter   plans.Drafter
	Extractor prescriptions.TextExtractor
	Logger    logger.Logger

	Location       *time.Location
	AITimeout      time.Duration
	OCRTimeout     time.Duration
	OCRMaxAttempts int
	OCRWorkers     int
}

type Services struct {
	Plans         *plans.Service
	Prescriptions *prescriptions.Service
	Medications   *medications.Service
	Queue         prescriptions.Queue
	Worker        *prescriptions.Worker
}

func BuildServices(d Deps) *Services {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}

	var (
		planRepo   plans.Repository
		uploadRepo prescriptions.Repository
		medRepo    medications.Repository
		patients   plans.PatientContext
	)
	if d.DB != nil {
		planRepo = pg.NewPlansRepo(d.DB)
		uploadRepo = pg.NewUploadsRepo(d.DB)
		medRepo = pg.NewMedicationsRepo(d.DB)
		patients = pg.NewPatients(d.DB)
	} else {
		planRepo = mem.NewPlanRepo()
		uploadRepo = mem.NewUploadRepo()
		medRepo = mem.NewMedicationRepo()
		patients = mem.NewPatients()
	}

	queue := d.Queue
	if queue == nil {
		queue = memqueue.NewQueue(100)
	}
	store := d.Files
	if store == nil {
		store = files.NewMemory()
	}

	medsSvc := medications.NewService(medRepo)
	plansSvc := plans.NewService(planRepo, plans.Options{
		Drafter:     d.Drafter,
		Patients:    patients,
		Medications: medsSvc,
		Logger:      log,
		Location:    d.Location,
		AITimeout:   d.AITimeout,
	})
	prescriptionsSvc := prescriptions.NewService(uploadRepo, store, queue, prescriptions.Options{
		Extractor:   d.Extractor,
		Plans:       plansSvc,
		Logger:      log,
		OCRTimeout:  d.OCRTimeout,
		MaxAttempts: d.OCRMaxAttempts,
	})

	return &Services{
		Plans:         plansSvc,
		Prescriptions: prescriptionsSvc,
		Medications:   medsSvc,
		Queue:         queue,
		Worker: prescriptions.NewWorker(prescriptionsSvc, queue, prescriptions.WorkerOptions{
			Concurrency: d.OCRWorkers,
			Logger:      log,
		}),
	}
}

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Services ya construidos (serve los comparte con el worker). nil => en memoria.
	Services *Services

	// AccessLog para el log de requests; nil => sin log.
	AccessLog *zerolog.Logger
}

func NewRouter(opts Options) http.Handler {
	svcs := opts.Services
	if svcs == nil {
		svcs = BuildServices(Deps{})
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))
	if opts.AccessLog != nil {
		r.Use(middleware.RequestLog(*opts.AccessLog))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Rutas por módulo
	plans.RegisterRoutes(r, svcs.Plans)
	prescriptions.RegisterRoutes(r, svcs.Prescriptions)
	medications.RegisterRoutes(r, svcs.Medications)

	return r
}
