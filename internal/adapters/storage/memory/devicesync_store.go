package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"dose-mate/internal/domain/devicesync"
)

// deviceStore guarda un registro por cuenta y avisa a los suscriptores en el
// mismo orden en que se aplican los upserts.
type deviceStore struct {
	mu   sync.Mutex
	byID map[string]devicesync.State
	subs map[string]map[*devicesync.Feed]struct{}
}

func NewDeviceStore() devicesync.Store {
	return &deviceStore{
		byID: make(map[string]devicesync.State),
		subs: make(map[string]map[*devicesync.Feed]struct{}),
	}
}

func (s *deviceStore) UpsertMerge(ctx context.Context, accountID string, p devicesync.Patch) error {
	if strings.TrimSpace(accountID) == "" {
		return errors.New("account id required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.byID[accountID]
	if !ok {
		st = devicesync.State{AccountID: accountID}
	}
	st = p.Apply(st)
	s.byID[accountID] = st

	// Push bajo el lock: el orden de entrega es el orden de escritura.
	for f := range s.subs[accountID] {
		f.Push(st)
	}
	return nil
}

func (s *deviceStore) Get(ctx context.Context, accountID string) (devicesync.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.byID[accountID]
	return st, ok, nil
}

func (s *deviceStore) Subscribe(ctx context.Context, accountID string, onChange func(devicesync.State), onError func(error)) (devicesync.Subscription, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, errors.New("account id required")
	}

	f := devicesync.NewFeed(ctx, accountID, onChange, onError, nil)
	f.OnStop(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[accountID], f)
		if len(s.subs[accountID]) == 0 {
			delete(s.subs, accountID)
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if f.Cancelled() {
		return f, nil
	}
	if s.subs[accountID] == nil {
		s.subs[accountID] = make(map[*devicesync.Feed]struct{})
	}
	s.subs[accountID][f] = struct{}{}

	if st, ok := s.byID[accountID]; ok {
		f.Push(st)
	}
	return f, nil
}
