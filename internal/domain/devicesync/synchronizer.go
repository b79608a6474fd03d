package devicesync

import (
	"context"
	"strings"
	"sync"
	"time"

	"dose-mate/internal/apperrors"
	"dose-mate/internal/domain/medications"
	"dose-mate/internal/domain/reminders"

	"go.uber.org/zap"
)

// Strategy decide qué hora se publica al dispositivo.
type Strategy string

const (
	// StrategyArbitrated publica la próxima dosis calculada sobre todos los medicamentos.
	StrategyArbitrated Strategy = "arbitrated"
	// StrategyLastWrite publica la hora del último medicamento escrito.
	StrategyLastWrite Strategy = "last_write"
)

func ParseStrategy(s string) Strategy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "last_write", "last-write", "lastwrite", "legacy":
		return StrategyLastWrite
	default:
		return StrategyArbitrated
	}
}

// Mirror reenvía nextDoseTime por otro canal hacia el dispositivo (p.ej. MQTT).
type Mirror interface {
	MirrorNextDose(ctx context.Context, accountID, nextDoseTime string) error
}

// MedicationLister es lo único que el sincronizador necesita del store de medicamentos.
type MedicationLister interface {
	ListByAccount(ctx context.Context, accountID string) ([]medications.Medication, error)
}

type Synchronizer struct {
	store    Store
	meds     MedicationLister
	strategy Strategy
	log      *zap.Logger
	now      func() time.Time

	mu      sync.RWMutex
	mirrors []Mirror
}

func NewSynchronizer(store Store, meds MedicationLister, strategy Strategy, log *zap.Logger) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	if strategy == "" {
		strategy = StrategyArbitrated
	}
	return &Synchronizer{
		store:    store,
		meds:     meds,
		strategy: strategy,
		log:      log,
		now:      time.Now,
	}
}

// WithClock reemplaza el reloj (tests y replays).
func (s *Synchronizer) WithClock(now func() time.Time) *Synchronizer {
	s.now = now
	return s
}

func (s *Synchronizer) AddMirror(m Mirror) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirrors = append(s.mirrors, m)
}

func (s *Synchronizer) Strategy() Strategy { return s.strategy }

func (s *Synchronizer) Arbitrated() bool { return s.strategy == StrategyArbitrated }

// PublishReminderTime escribe solo nextDoseTime (merge), recortado a los primeros
// 5 caracteres sin validar. Un único intento: el retry es del caller.
func (s *Synchronizer) PublishReminderTime(ctx context.Context, accountID, reminderTime string) error {
	v := reminders.Normalize(reminderTime)

	if err := s.store.UpsertMerge(ctx, accountID, Patch{NextDoseTime: &v}); err != nil {
		return apperrors.Persistence("device upsert next_dose_time", err)
	}

	s.log.Debug("next dose time published",
		zap.String("account_id", accountID),
		zap.String("next_dose_time", v),
	)
	s.mirror(ctx, accountID, v)
	return nil
}

// MedicationWritten implementa medications.Publisher.
func (s *Synchronizer) MedicationWritten(ctx context.Context, ev medications.WriteEvent) error {
	if s.strategy == StrategyArbitrated {
		return s.Arbitrate(ctx, ev.AccountID)
	}

	switch ev.Kind {
	case medications.WriteCreated:
		if !reminders.HasTime(ev.Medication.ReminderTime) {
			return nil
		}
		return s.PublishReminderTime(ctx, ev.AccountID, ev.Medication.ReminderTime)
	case medications.WriteUpdated:
		if !ev.ReminderTimeInPatch || !reminders.HasTime(ev.Medication.ReminderTime) {
			return nil
		}
		return s.PublishReminderTime(ctx, ev.AccountID, ev.Medication.ReminderTime)
	default:
		// deletes nunca publican en last_write
		return nil
	}
}

// Arbitrate recalcula la próxima dosis con el set completo actual de la cuenta.
func (s *Synchronizer) Arbitrate(ctx context.Context, accountID string) error {
	meds, err := s.meds.ListByAccount(ctx, accountID)
	if err != nil {
		return apperrors.Persistence("device list medications", err)
	}
	return s.ArbitrateWith(ctx, accountID, meds)
}

// ArbitrateWith publica solo si el valor calculado difiere del guardado.
// Sin recordatorios utilizables se publica "" para que el dispositivo no
// siga mostrando una dosis que ya no existe.
//
// Get + Upsert no es atómico: dos arbitrajes concurrentes pueden dejar el
// snapshot más viejo; el próximo tick o Notify lo corrige.
func (s *Synchronizer) ArbitrateWith(ctx context.Context, accountID string, meds []medications.Medication) error {
	next, ok := reminders.NextDoseTime(s.now(), meds)

	current, found, err := s.store.Get(ctx, accountID)
	if err != nil {
		return apperrors.Persistence("device read", err)
	}
	if !ok {
		if !found || current.NextDoseTime == "" {
			return nil
		}
		next = ""
	}
	if found && current.NextDoseTime == next {
		return nil
	}
	return s.PublishReminderTime(ctx, accountID, next)
}

// ObserveDeviceState deja una suscripción permanente hasta Cancel (o fin de ctx).
func (s *Synchronizer) ObserveDeviceState(ctx context.Context, accountID string, onUpdate func(State), onError func(error)) (Subscription, error) {
	sub, err := s.store.Subscribe(ctx, accountID, onUpdate, onError)
	if err != nil {
		return nil, apperrors.Persistence("device subscribe", err)
	}
	return sub, nil
}

// State es la lectura puntual para el panel de estado.
func (s *Synchronizer) State(ctx context.Context, accountID string) (State, error) {
	st, found, err := s.store.Get(ctx, accountID)
	if err != nil {
		return State{}, apperrors.Persistence("device read", err)
	}
	if !found {
		return State{AccountID: accountID}, nil
	}
	return st, nil
}

// RecordHeartbeat es la escritura del lado del dispositivo.
func (s *Synchronizer) RecordHeartbeat(ctx context.Context, accountID string, connected bool) error {
	seen := s.now().UTC()
	if err := s.store.UpsertMerge(ctx, accountID, Patch{
		Connected:  &connected,
		LastSeenAt: &seen,
	}); err != nil {
		return apperrors.Persistence("device upsert heartbeat", err)
	}
	return nil
}

// mirror: el store es la fuente de verdad, las fallas acá solo se loguean.
func (s *Synchronizer) mirror(ctx context.Context, accountID, v string) {
	s.mu.RLock()
	mirrors := append([]Mirror(nil), s.mirrors...)
	s.mu.RUnlock()

	for _, m := range mirrors {
		if err := m.MirrorNextDose(ctx, accountID, v); err != nil {
			s.log.Warn("next dose mirror failed",
				zap.String("account_id", accountID),
				zap.Error(err),
			)
		}
	}
}
