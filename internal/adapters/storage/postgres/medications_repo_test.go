package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"dose-mate/internal/apperrors"
	"dose-mate/internal/domain/medications"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var medicationColumns = []string{
	"id", "account_id",
	"name", "dosage", "food_relation", "reminder_time",
	"created_at", "updated_at",
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *MedicationsRepo) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db, mock, NewMedicationsRepo(db)
}

func TestMedicationsRepo_Create(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := medications.Medication{
		ID:           "med-1",
		AccountID:    "acc-1",
		Name:         "Ibuprofen",
		Dosage:       "200mg",
		FoodRelation: medications.FoodWith,
		ReminderTime: "08:00",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	mock.ExpectExec(`INSERT INTO medications`).
		WithArgs("med-1", "acc-1", "Ibuprofen", "200mg", "with", "08:00", now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), m))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicationsRepo_GetByID_NotFound(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(`SELECT`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicationsRepo_GetByID_BlankID(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	_, err := repo.GetByID(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicationsRepo_ListByAccount(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	t1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	rows := sqlmock.NewRows(medicationColumns).
		AddRow("med-1", "acc-1", "A", "1", "before", "08:00", t1, t1).
		AddRow("med-2", "acc-1", "B", "2", "any", "", t2, t2)

	mock.ExpectQuery(`ORDER BY created_at ASC, seq ASC`).
		WithArgs("acc-1").
		WillReturnRows(rows)

	out, err := repo.ListByAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "med-1", out[0].ID)
	assert.Equal(t, medications.FoodBefore, out[0].FoodRelation)
	assert.Equal(t, "08:00", out[0].ReminderTime)
	assert.Equal(t, "med-2", out[1].ID)
	assert.False(t, out[1].HasReminder())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicationsRepo_ListByAccount_QueryError(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	boom := errors.New("connection reset")
	mock.ExpectQuery(`SELECT`).WithArgs("acc-1").WillReturnError(boom)

	_, err := repo.ListByAccount(context.Background(), "acc-1")
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicationsRepo_Update_NoRows(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE medications`).
		WithArgs("med-9", "A", "1", "any", "10:00", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), medications.Medication{
		ID:           "med-9",
		Name:         "A",
		Dosage:       "1",
		FoodRelation: medications.FoodAny,
		ReminderTime: "10:00",
		UpdatedAt:    now,
	})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicationsRepo_Delete(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectExec(`DELETE FROM medications`).
		WithArgs("med-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM medications`).
		WithArgs("med-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "med-1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "med-1"), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicationsRepo_ListAccounts(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(`SELECT DISTINCT account_id`).
		WillReturnRows(sqlmock.NewRows([]string{"account_id"}).AddRow("acc-1").AddRow("acc-2"))

	out, err := repo.ListAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acc-1", "acc-2"}, out)
	require.NoError(t, mock.ExpectationsWereMet())
}
