package devicesync

import "context"

// Store es el documento por cuenta que comparten app y dispositivo.
type Store interface {
	// UpsertMerge crea el registro si no existe y escribe solo los campos del patch.
	UpsertMerge(ctx context.Context, accountID string, p Patch) error

	// Get devuelve (State{}, false, nil) si la cuenta todavía no tiene registro.
	Get(ctx context.Context, accountID string) (State, bool, error)

	// Subscribe entrega el estado actual (si existe) y luego cada cambio, en orden.
	// onError recibe fallas de entrega; la suscripción sigue viva hasta Cancel.
	Subscribe(ctx context.Context, accountID string, onChange func(State), onError func(error)) (Subscription, error)
}

type Subscription interface {
	// Cancel es idempotente. Cuando retorna, no empieza ninguna entrega nueva.
	Cancel()
}
