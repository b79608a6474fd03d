package medications

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"dose-mate/internal/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

var errRepoNotFound = apperrors.ErrNotFound

type testRepo struct {
	byID      map[string]Medication
	createErr error
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Medication{}}
}

func (r *testRepo) Create(ctx context.Context, m Medication) error {
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.byID[m.ID]; ok {
		return errors.New("repo: already exists")
	}
	r.byID[m.ID] = m
	return nil
}

func (r *testRepo) Update(ctx context.Context, m Medication) error {
	if _, ok := r.byID[m.ID]; !ok {
		return errRepoNotFound
	}
	r.byID[m.ID] = m
	return nil
}

func (r *testRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.byID[id]; !ok {
		return errRepoNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Medication, error) {
	m, ok := r.byID[id]
	if !ok {
		return Medication{}, errRepoNotFound
	}
	return m, nil
}

func (r *testRepo) ListByAccount(ctx context.Context, accountID string) ([]Medication, error) {
	out := make([]Medication, 0)
	for _, m := range r.byID {
		if m.AccountID == accountID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *testRepo) ListAccounts(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	out := make([]string, 0)
	for _, m := range r.byID {
		if !seen[m.AccountID] {
			seen[m.AccountID] = true
			out = append(out, m.AccountID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// -------------------------
// Fakes
// -------------------------

type testPublisher struct {
	events []WriteEvent
	err    error
}

func (p *testPublisher) MedicationWritten(ctx context.Context, ev WriteEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

type testNotifier struct {
	accounts []string
}

func (n *testNotifier) Notify(accountID string) {
	n.accounts = append(n.accounts, accountID)
}

func newTestService() (*Service, *testRepo, *testPublisher, *testNotifier) {
	repo := newTestRepo()
	pub := &testPublisher{}
	notif := &testNotifier{}
	svc := NewService(repo, pub, notif)

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, repo, pub, notif
}

func strPtr(s string) *string { return &s }

// -------------------------
// Tests
// -------------------------

func TestService_Create(t *testing.T) {
	svc, repo, pub, notif := newTestService()

	m, err := svc.Create(context.Background(), "acc-1", CreateInput{
		Name:         "  Ibuprofen ",
		Dosage:       "200mg",
		FoodRelation: "With",
		ReminderTime: "08:00",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "Ibuprofen", m.Name)
	assert.Equal(t, FoodWith, m.FoodRelation)
	assert.Equal(t, "08:00", m.ReminderTime)
	assert.Contains(t, repo.byID, m.ID)

	require.Len(t, pub.events, 1)
	assert.Equal(t, WriteCreated, pub.events[0].Kind)
	assert.Equal(t, "acc-1", pub.events[0].AccountID)
	assert.Equal(t, []string{"acc-1"}, notif.accounts)
}

func TestService_CreateValidation(t *testing.T) {
	svc, repo, pub, _ := newTestService()
	ctx := context.Background()

	cases := map[string]CreateInput{
		"missing name":  {FoodRelation: "any"},
		"bad food":      {Name: "A", FoodRelation: "sometimes"},
		"bad reminder":  {Name: "A", FoodRelation: "any", ReminderTime: "8am"},
		"short time":    {Name: "A", FoodRelation: "any", ReminderTime: "8:00"},
		"hour too high": {Name: "A", FoodRelation: "any", ReminderTime: "24:00"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, "acc-1", in)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	_, err := svc.Create(ctx, " ", CreateInput{Name: "A", FoodRelation: "any"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Empty(t, repo.byID)
	assert.Empty(t, pub.events)
}

func TestService_CreateAcceptsReminderWithSuffix(t *testing.T) {
	svc, _, _, _ := newTestService()

	m, err := svc.Create(context.Background(), "acc-1", CreateInput{Name: "A", FoodRelation: "any", ReminderTime: "21:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, "21:00:00Z", m.ReminderTime)
}

func TestService_CreateRepoFailure(t *testing.T) {
	svc, repo, pub, notif := newTestService()
	repo.createErr = errors.New("disk full")

	_, err := svc.Create(context.Background(), "acc-1", CreateInput{Name: "A", FoodRelation: "any"})
	require.Error(t, err)
	assert.True(t, apperrors.IsPersistence(err))
	assert.False(t, IsSyncError(err))
	assert.Empty(t, pub.events)
	assert.Empty(t, notif.accounts)
}

func TestService_PublishFailureKeepsWrite(t *testing.T) {
	svc, repo, pub, _ := newTestService()
	pub.err = apperrors.Persistence("device upsert next_dose_time", errors.New("timeout"))

	m, err := svc.Create(context.Background(), "acc-1", CreateInput{Name: "A", FoodRelation: "any", ReminderTime: "08:00"})
	require.Error(t, err)
	assert.True(t, IsSyncError(err))
	assert.True(t, apperrors.IsPersistence(err))
	assert.NotEmpty(t, m.ID)
	assert.Contains(t, repo.byID, m.ID)
}

func TestService_UpdatePatch(t *testing.T) {
	svc, _, pub, _ := newTestService()
	ctx := context.Background()

	m, err := svc.Create(ctx, "acc-1", CreateInput{Name: "A", Dosage: "1", FoodRelation: "any", ReminderTime: "08:00"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "acc-1", m.ID, UpdateInput{Dosage: strPtr("2")})
	require.NoError(t, err)
	assert.Equal(t, "A", updated.Name)
	assert.Equal(t, "2", updated.Dosage)
	assert.Equal(t, "08:00", updated.ReminderTime)
	assert.True(t, updated.UpdatedAt.After(m.UpdatedAt))

	require.Len(t, pub.events, 2)
	assert.Equal(t, WriteUpdated, pub.events[1].Kind)
	assert.False(t, pub.events[1].ReminderTimeInPatch)

	cleared, err := svc.Update(ctx, "acc-1", m.ID, UpdateInput{ReminderTime: strPtr("")})
	require.NoError(t, err)
	assert.False(t, cleared.HasReminder())
	assert.True(t, pub.events[2].ReminderTimeInPatch)
}

func TestService_UpdateValidation(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	m, err := svc.Create(ctx, "acc-1", CreateInput{Name: "A", FoodRelation: "any"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "acc-1", m.ID, UpdateInput{Name: strPtr("  ")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Update(ctx, "acc-1", m.ID, UpdateInput{ReminderTime: strPtr("12:60")})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestService_OtherAccountIsNotFound(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	m, err := svc.Create(ctx, "acc-1", CreateInput{Name: "A", FoodRelation: "any"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "acc-2", m.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Update(ctx, "acc-2", m.ID, UpdateInput{Name: strPtr("B")})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, "acc-2", m.ID), ErrNotFound)
}

func TestService_Delete(t *testing.T) {
	svc, repo, pub, notif := newTestService()
	ctx := context.Background()

	m, err := svc.Create(ctx, "acc-1", CreateInput{Name: "A", FoodRelation: "any"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "acc-1", m.ID))
	assert.NotContains(t, repo.byID, m.ID)
	assert.Equal(t, WriteDeleted, pub.events[len(pub.events)-1].Kind)
	assert.Equal(t, []string{"acc-1", "acc-1"}, notif.accounts)

	assert.ErrorIs(t, svc.Delete(ctx, "acc-1", m.ID), ErrNotFound)
}

func TestService_ListAndAccounts(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	for _, acc := range []string{"acc-2", "acc-1", "acc-1"} {
		_, err := svc.Create(ctx, acc, CreateInput{Name: "A", FoodRelation: "any"})
		require.NoError(t, err)
	}

	items, err := svc.List(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	accounts, err := svc.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acc-1", "acc-2"}, accounts)
}

func TestService_NilCollaborators(t *testing.T) {
	svc := NewService(newTestRepo(), nil, nil)

	_, err := svc.Create(context.Background(), "acc-1", CreateInput{Name: "A", FoodRelation: "any", ReminderTime: "08:00"})
	assert.NoError(t, err)
}
