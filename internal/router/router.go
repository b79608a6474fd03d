package router

import (
	"database/sql"
	"net/http"
	"time"

	_ "dose-mate/docs"
	mem "dose-mate/internal/adapters/storage/memory"
	pg "dose-mate/internal/adapters/storage/postgres"
	"dose-mate/internal/adapters/storage/redisstore"
	"dose-mate/internal/domain/devicesync"
	"dose-mate/internal/domain/medications"
	"dose-mate/internal/domain/reminders"
	"dose-mate/internal/middleware"
	"dose-mate/internal/ports/auth"
	"dose-mate/internal/scheduler"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)
	Logger       *zap.Logger

	// Opcional: si viene, medicamentos en Postgres. Si no, in-memory.
	DB *sql.DB
	// Opcional: si viene, registro del dispositivo en Redis. Si no, in-memory.
	Redis *redis.Client

	Strategy     devicesync.Strategy
	Wrap         reminders.WrapPolicy
	TickInterval time.Duration

	// Reloj para la ventana de recordatorios y el arbitraje (tests).
	Now func() time.Time
}

// App expone las piezas que main necesita además del handler.
type App struct {
	Handler     http.Handler
	Medications *medications.Service
	Sync        *devicesync.Synchronizer
	Scheduler   *scheduler.Scheduler
}

func NewRouter(opts Options) http.Handler {
	return Build(opts).Handler
}

func Build(opts Options) *App {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var (
		medRepo     medications.Repository
		deviceStore devicesync.Store
	)

	if opts.DB != nil {
		medRepo = pg.NewMedicationsRepo(opts.DB)
	} else {
		medRepo = mem.NewMedicationRepo()
	}
	if opts.Redis != nil {
		deviceStore = redisstore.NewDeviceStore(opts.Redis, log.Named("redis"))
	} else {
		deviceStore = mem.NewDeviceStore()
	}

	calc := reminders.NewCalculator(reminders.Options{
		OverdueGrace:  reminders.DefaultOptions().OverdueGrace,
		Horizon:       reminders.DefaultOptions().Horizon,
		SoonThreshold: reminders.DefaultOptions().SoonThreshold,
		Wrap:          opts.Wrap,
	})

	sync := devicesync.NewSynchronizer(deviceStore, medRepo, opts.Strategy, log.Named("devicesync")).
		WithClock(now)
	sched := scheduler.New(medRepo, calc, sync, log.Named("scheduler")).
		WithClock(now).
		WithInterval(opts.TickInterval)
	medsSvc := medications.NewService(medRepo, sync, sched)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recoverer(log))
	r.Use(middleware.AuthContext(opts.AuthVerifier, log))
	r.Use(middleware.RequestLogger(log.Named("http")))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// Rutas por módulo
	r.Route("/medications", func(mr chi.Router) {
		reminders.RegisterRoutes(mr, medsSvc, calc, now, sched, log)
		medications.RegisterRoutes(mr, medsSvc, log)
	})
	devicesync.RegisterRoutes(r, sync, log)

	return &App{
		Handler:     r,
		Medications: medsSvc,
		Sync:        sync,
		Scheduler:   sched,
	}
}
