package medications

import (
	"strings"
	"time"
)

// FoodRelation indica cómo se toma la dosis respecto de las comidas.
// @Enum before, with, after, any
type FoodRelation string

const (
	FoodBefore FoodRelation = "before"
	FoodWith   FoodRelation = "with"
	FoodAfter  FoodRelation = "after"
	FoodAny    FoodRelation = "any"
)

func (f FoodRelation) Valid() bool {
	switch f {
	case FoodBefore, FoodWith, FoodAfter, FoodAny:
		return true
	default:
		return false
	}
}

func ParseFoodRelation(s string) FoodRelation {
	return FoodRelation(strings.ToLower(strings.TrimSpace(s)))
}

// Medication es un medicamento registrado por una cuenta.
// ReminderTime es "HH:MM" (24h, sin zona). Vacío = sin recordatorio.
type Medication struct {
	ID        string
	AccountID string

	Name         string
	Dosage       string
	FoodRelation FoodRelation
	ReminderTime string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (m Medication) HasReminder() bool {
	return strings.TrimSpace(m.ReminderTime) != ""
}
