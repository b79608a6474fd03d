package auth

import "strings"

// Claims es la identidad verificada del request.
// En dose-mate la cuenta es el usuario: app y dispensador comparten UserID.
type Claims struct {
	UserID string
	Email  string

	// Device es true cuando el token pertenece al dispensador y no a la app.
	Device bool
}

// AccountID es la clave de partición de medicamentos y del registro de sync.
func (c Claims) AccountID() string {
	return strings.TrimSpace(c.UserID)
}
