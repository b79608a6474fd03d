package medications

import (
	"context"
	"errors"
	"strings"
	"time"

	"dose-mate/internal/apperrors"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = apperrors.ErrInvalidInput
	ErrNotFound     = apperrors.ErrNotFound
)

type WriteKind string

const (
	WriteCreated WriteKind = "created"
	WriteUpdated WriteKind = "updated"
	WriteDeleted WriteKind = "deleted"
)

// WriteEvent describe una escritura ya confirmada por el repositorio.
type WriteEvent struct {
	Kind       WriteKind
	AccountID  string
	Medication Medication

	// ReminderTimeInPatch: el update traía reminder_time (aunque sea igual al anterior).
	ReminderTimeInPatch bool
}

// Publisher recibe cada escritura para sincronizar el dispositivo.
type Publisher interface {
	MedicationWritten(ctx context.Context, ev WriteEvent) error
}

// Notifier dispara un recálculo inmediato de la ventana de recordatorios.
type Notifier interface {
	Notify(accountID string)
}

// SyncError indica que la escritura del medicamento se aplicó
// pero la publicación posterior al dispositivo falló.
type SyncError struct {
	Kind WriteKind
	Err  error
}

func (e *SyncError) Error() string {
	return "device sync after " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *SyncError) Unwrap() error { return e.Err }

func IsSyncError(err error) bool {
	var se *SyncError
	return errors.As(err, &se)
}

type Service struct {
	repo      Repository
	publisher Publisher
	notifier  Notifier
	now       func() time.Time
}

// NewService: publisher y notifier son opcionales (nil = no-op).
func NewService(repo Repository, publisher Publisher, notifier Notifier) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		notifier:  notifier,
		now:       time.Now,
	}
}

type CreateInput struct {
	Name         string
	Dosage       string
	FoodRelation string
	ReminderTime string
}

// Create guarda el medicamento y luego publica al dispositivo.
// Si la publicación falla el registro queda creado: se devuelve junto con el PersistenceError.
func (s *Service) Create(ctx context.Context, accountID string, in CreateInput) (Medication, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return Medication{}, apperrors.Invalid("account_id", "is required")
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Medication{}, apperrors.Invalid("name", "is required")
	}
	food := ParseFoodRelation(in.FoodRelation)
	if !food.Valid() {
		return Medication{}, apperrors.Invalid("food_relation", "must be one of before, with, after, any")
	}
	reminder := strings.TrimSpace(in.ReminderTime)
	if err := validateReminderTime(reminder); err != nil {
		return Medication{}, err
	}

	now := s.now()
	m := Medication{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Name:         name,
		Dosage:       strings.TrimSpace(in.Dosage),
		FoodRelation: food,
		ReminderTime: reminder,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return Medication{}, apperrors.Persistence("create medication", err)
	}

	return m, s.afterWrite(ctx, WriteEvent{
		Kind:       WriteCreated,
		AccountID:  accountID,
		Medication: m,
	})
}

type UpdateInput struct {
	// Punteros para PATCH real: nil = no tocar.
	Name         *string
	Dosage       *string
	FoodRelation *string
	ReminderTime *string // "" limpia el recordatorio
}

func (s *Service) Update(ctx context.Context, accountID, id string, in UpdateInput) (Medication, error) {
	current, err := s.Get(ctx, accountID, id)
	if err != nil {
		return Medication{}, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Medication{}, apperrors.Invalid("name", "is required")
		}
		current.Name = name
	}
	if in.Dosage != nil {
		current.Dosage = strings.TrimSpace(*in.Dosage)
	}
	if in.FoodRelation != nil {
		food := ParseFoodRelation(*in.FoodRelation)
		if !food.Valid() {
			return Medication{}, apperrors.Invalid("food_relation", "must be one of before, with, after, any")
		}
		current.FoodRelation = food
	}
	if in.ReminderTime != nil {
		reminder := strings.TrimSpace(*in.ReminderTime)
		if err := validateReminderTime(reminder); err != nil {
			return Medication{}, err
		}
		current.ReminderTime = reminder
	}
	current.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, current); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return Medication{}, ErrNotFound
		}
		return Medication{}, apperrors.Persistence("update medication", err)
	}

	return current, s.afterWrite(ctx, WriteEvent{
		Kind:                WriteUpdated,
		AccountID:           current.AccountID,
		Medication:          current,
		ReminderTimeInPatch: in.ReminderTime != nil,
	})
}

func (s *Service) Delete(ctx context.Context, accountID, id string) error {
	current, err := s.Get(ctx, accountID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, current.ID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return ErrNotFound
		}
		return apperrors.Persistence("delete medication", err)
	}

	return s.afterWrite(ctx, WriteEvent{
		Kind:       WriteDeleted,
		AccountID:  current.AccountID,
		Medication: current,
	})
}

// Get devuelve ErrNotFound también cuando el medicamento es de otra cuenta.
func (s *Service) Get(ctx context.Context, accountID, id string) (Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Medication{}, ErrNotFound
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return Medication{}, ErrNotFound
		}
		return Medication{}, apperrors.Persistence("get medication", err)
	}
	if m.AccountID != strings.TrimSpace(accountID) {
		return Medication{}, ErrNotFound
	}
	return m, nil
}

func (s *Service) List(ctx context.Context, accountID string) ([]Medication, error) {
	items, err := s.repo.ListByAccount(ctx, strings.TrimSpace(accountID))
	if err != nil {
		return nil, apperrors.Persistence("list medications", err)
	}
	return items, nil
}

func (s *Service) Accounts(ctx context.Context) ([]string, error) {
	ids, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, apperrors.Persistence("list accounts", err)
	}
	return ids, nil
}

func (s *Service) afterWrite(ctx context.Context, ev WriteEvent) error {
	if s.notifier != nil {
		s.notifier.Notify(ev.AccountID)
	}
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.MedicationWritten(ctx, ev); err != nil {
		return &SyncError{Kind: ev.Kind, Err: err}
	}
	return nil
}

// validateReminderTime acepta vacío o cualquier valor cuyo prefijo sea "HH:MM".
func validateReminderTime(v string) error {
	if v == "" {
		return nil
	}
	if len(v) < 5 {
		return apperrors.Invalid("reminder_time", "must be HH:MM")
	}
	if _, err := time.Parse("15:04", v[:5]); err != nil {
		return apperrors.Invalid("reminder_time", "must be HH:MM")
	}
	return nil
}
