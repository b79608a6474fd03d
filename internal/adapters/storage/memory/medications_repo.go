package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"dose-mate/internal/apperrors"
	"dose-mate/internal/domain/medications"
)

var (
	ErrNotFound = apperrors.ErrNotFound
)

type medicationRepo struct {
	mu   sync.RWMutex
	byID map[string]medications.Medication
	seq  map[string]int // orden de inserción, desempata created_at iguales
	next int
}

func NewMedicationRepo() medications.Repository {
	return &medicationRepo{
		byID: make(map[string]medications.Medication),
		seq:  make(map[string]int),
	}
}

func (r *medicationRepo) Create(ctx context.Context, m medications.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(m.ID) == "" {
		return errors.New("medication id required")
	}
	if _, exists := r.byID[m.ID]; exists {
		return errors.New("medication already exists")
	}
	r.byID[m.ID] = m
	r.seq[m.ID] = r.next
	r.next++
	return nil
}

func (r *medicationRepo) Update(ctx context.Context, m medications.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[m.ID]; !exists {
		return ErrNotFound
	}
	r.byID[m.ID] = m
	return nil
}

func (r *medicationRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; !exists {
		return ErrNotFound
	}
	delete(r.byID, id)
	delete(r.seq, id)
	return nil
}

func (r *medicationRepo) GetByID(ctx context.Context, id string) (medications.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[id]
	if !ok {
		return medications.Medication{}, ErrNotFound
	}
	return m, nil
}

func (r *medicationRepo) ListByAccount(ctx context.Context, accountID string) ([]medications.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]medications.Medication, 0)
	for _, m := range r.byID {
		if m.AccountID == accountID {
			out = append(out, m)
		}
	}

	// Orden de creación: el calculador desempata por orden de entrada.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return r.seq[out[i].ID] < r.seq[out[j].ID]
	})

	return out, nil
}

func (r *medicationRepo) ListAccounts(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, m := range r.byID {
		if _, ok := seen[m.AccountID]; ok {
			continue
		}
		seen[m.AccountID] = struct{}{}
		out = append(out, m.AccountID)
	}
	sort.Strings(out)
	return out, nil
}
