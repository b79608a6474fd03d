package medications

import "context"

// Repository es el store externo de medicamentos.
// GetByID/Update/Delete devuelven apperrors.ErrNotFound si el id no existe.
type Repository interface {
	Create(ctx context.Context, m Medication) error
	Update(ctx context.Context, m Medication) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Medication, error)
	ListByAccount(ctx context.Context, accountID string) ([]Medication, error)

	// ListAccounts devuelve las cuentas con al menos un medicamento (para el scheduler).
	ListAccounts(ctx context.Context) ([]string, error)
}
