package scheduler

import (
	"context"
	"sync"
	"time"

	"dose-mate/internal/domain/medications"
	"dose-mate/internal/domain/reminders"

	"go.uber.org/zap"
)

// Source es la vista de lectura del repositorio de medicamentos.
type Source interface {
	ListAccounts(ctx context.Context) ([]string, error)
	ListByAccount(ctx context.Context, accountID string) ([]medications.Medication, error)
}

// Arbiter re-publica la próxima dosis; nil o no arbitrado = no se toca el dispositivo.
type Arbiter interface {
	Arbitrated() bool
	ArbitrateWith(ctx context.Context, accountID string, meds []medications.Medication) error
}

const DefaultInterval = 1 * time.Minute

type Scheduler struct {
	source        Source
	calc          *reminders.Calculator
	arbiter       Arbiter
	log           *zap.Logger
	now           func() time.Time
	checkInterval time.Duration
	notifyCh      chan struct{}

	pendingMu sync.Mutex
	pending   map[string]struct{}

	subsMu sync.Mutex
	subs   map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch chan []reminders.UpcomingMedication
}

func New(source Source, calc *reminders.Calculator, arbiter Arbiter, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if calc == nil {
		calc = reminders.NewCalculator(reminders.DefaultOptions())
	}
	return &Scheduler{
		source:        source,
		calc:          calc,
		arbiter:       arbiter,
		log:           log,
		now:           time.Now,
		checkInterval: DefaultInterval,
		notifyCh:      make(chan struct{}, 1),
		pending:       make(map[string]struct{}),
		subs:          make(map[string]map[*subscriber]struct{}),
	}
}

// WithInterval cambia el período del tick. <= 0 deja el default.
func (s *Scheduler) WithInterval(d time.Duration) *Scheduler {
	if d > 0 {
		s.checkInterval = d
	}
	return s
}

func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Notify marca la cuenta para recalcular. No bloquea: si ya hay un aviso
// pendiente, la cuenta se suma al mismo lote.
func (s *Scheduler) Notify(accountID string) {
	s.pendingMu.Lock()
	s.pending[accountID] = struct{}{}
	s.pendingMu.Unlock()

	select {
	case s.notifyCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("scheduler started", zap.Duration("interval", s.checkInterval))
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	s.checkAll(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.checkAll(ctx)
		case <-s.notifyCh:
			s.checkPending(ctx)
		}
	}
}

// SubscribeUpcoming entrega la ventana de la cuenta en cada tick o cambio.
// El canal guarda solo el último cálculo: un lector lento se saltea los intermedios.
func (s *Scheduler) SubscribeUpcoming(accountID string) (<-chan []reminders.UpcomingMedication, func()) {
	sub := &subscriber{ch: make(chan []reminders.UpcomingMedication, 1)}

	s.subsMu.Lock()
	if s.subs[accountID] == nil {
		s.subs[accountID] = make(map[*subscriber]struct{})
	}
	s.subs[accountID][sub] = struct{}{}
	s.subsMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			delete(s.subs[accountID], sub)
			if len(s.subs[accountID]) == 0 {
				delete(s.subs, accountID)
			}
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// CheckAccount recalcula una cuenta ya mismo (lo usa el loop y los tests).
func (s *Scheduler) CheckAccount(ctx context.Context, accountID string) {
	meds, err := s.source.ListByAccount(ctx, accountID)
	if err != nil {
		s.log.Error("scheduler list medications failed",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
		return
	}

	upcoming := s.calc.Compute(s.now(), meds)
	s.broadcast(accountID, upcoming)

	if s.arbiter == nil || !s.arbiter.Arbitrated() {
		return
	}
	if err := s.arbiter.ArbitrateWith(ctx, accountID, meds); err != nil {
		s.log.Warn("scheduler arbitrate failed",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
	}
}

func (s *Scheduler) checkAll(ctx context.Context) {
	accounts, err := s.source.ListAccounts(ctx)
	if err != nil {
		s.log.Error("scheduler list accounts failed", zap.Error(err))
		return
	}

	// cuentas que se quedaron sin medicamentos pero siguen mirando el stream
	seen := make(map[string]struct{}, len(accounts))
	for _, id := range accounts {
		seen[id] = struct{}{}
	}
	for _, id := range s.subscribedAccounts() {
		if _, ok := seen[id]; !ok {
			accounts = append(accounts, id)
		}
	}

	for _, id := range accounts {
		if ctx.Err() != nil {
			return
		}
		s.CheckAccount(ctx, id)
	}
}

func (s *Scheduler) checkPending(ctx context.Context) {
	s.pendingMu.Lock()
	batch := s.pending
	s.pending = make(map[string]struct{})
	s.pendingMu.Unlock()

	for id := range batch {
		if ctx.Err() != nil {
			return
		}
		s.CheckAccount(ctx, id)
	}
}

func (s *Scheduler) subscribedAccounts() []string {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	out := make([]string, 0, len(s.subs))
	for id := range s.subs {
		out = append(out, id)
	}
	return out
}

func (s *Scheduler) broadcast(accountID string, upcoming []reminders.UpcomingMedication) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for sub := range s.subs[accountID] {
		// reemplaza el valor no leído por el más nuevo
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- upcoming
	}
}
