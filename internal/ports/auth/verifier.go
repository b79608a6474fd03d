package auth

import (
	"context"
	"errors"
)

var ErrUnauthorized = errors.New("unauthorized")

// AuthVerifier valida un bearer token contra el servicio de identidad.
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}
