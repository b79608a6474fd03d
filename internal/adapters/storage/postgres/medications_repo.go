package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"dose-mate/internal/domain/medications"
)

type MedicationsRepo struct {
	db *sql.DB
}

func NewMedicationsRepo(db *sql.DB) *MedicationsRepo {
	return &MedicationsRepo{db: db}
}

func (r *MedicationsRepo) Create(ctx context.Context, m medications.Medication) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO medications (
			id, account_id,
			name, dosage, food_relation, reminder_time,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		m.ID,
		m.AccountID,
		m.Name,
		m.Dosage,
		string(m.FoodRelation),
		m.ReminderTime,
		m.CreatedAt,
		m.UpdatedAt,
	)
	return err
}

func (r *MedicationsRepo) Update(ctx context.Context, m medications.Medication) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE medications
		SET
			name = $2,
			dosage = $3,
			food_relation = $4,
			reminder_time = $5,
			updated_at = $6
		WHERE id = $1
	`,
		m.ID,
		m.Name,
		m.Dosage,
		string(m.FoodRelation),
		m.ReminderTime,
		m.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MedicationsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM medications WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MedicationsRepo) GetByID(ctx context.Context, id string) (medications.Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return medications.Medication{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, account_id,
			name, dosage, food_relation, reminder_time,
			created_at, updated_at
		FROM medications
		WHERE id = $1
	`, id)

	m, err := scanMedication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return medications.Medication{}, ErrNotFound
		}
		return medications.Medication{}, err
	}
	return m, nil
}

func (r *MedicationsRepo) ListByAccount(ctx context.Context, accountID string) ([]medications.Medication, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id, account_id,
			name, dosage, food_relation, reminder_time,
			created_at, updated_at
		FROM medications
		WHERE account_id = $1
		ORDER BY created_at ASC, seq ASC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]medications.Medication, 0)
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	return out, rows.Err()
}

func (r *MedicationsRepo) ListAccounts(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT account_id FROM medications ORDER BY account_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMedication(s scanner) (medications.Medication, error) {
	var m medications.Medication
	var food string
	if err := s.Scan(
		&m.ID,
		&m.AccountID,
		&m.Name,
		&m.Dosage,
		&food,
		&m.ReminderTime,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return medications.Medication{}, err
	}
	m.FoodRelation = medications.FoodRelation(food)
	return m, nil
}
