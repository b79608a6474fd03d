package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// ValidationError indica campos faltantes o mal formados.
// Se devuelve al caller de inmediato y nunca se reintenta.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// Is permite errors.Is(err, ErrInvalidInput).
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// PersistenceError envuelve una falla contra el store externo (upsert o lectura).
// No hay retry automático: el caller decide.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// SubscriptionError se entrega al handler de error de una suscripción activa.
// La suscripción sigue viva salvo que se cancele explícitamente.
type SubscriptionError struct {
	AccountID string
	Err       error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %s: %v", e.AccountID, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsPersistence(err error) bool {
	var p *PersistenceError
	return errors.As(err, &p)
}
