package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"dose-mate/internal/ports/auth"

	"go.uber.org/zap"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// DebugUserHeader identifica la cuenta en modo dev (sin verifier).
const DebugUserHeader = "X-Debug-User-ID"

// DebugDeviceHeader marca el request como del dispensador en modo dev.
const DebugDeviceHeader = "X-Debug-Device"

// AuthContext:
// - Con verifier y Bearer token => Verify() y setea claims.
// - Sin verifier => modo dev: X-Debug-User-ID setea claims (X-Debug-Device: true => Device).
// - Sin claims el request sigue igual; cada handler decide el 401.
func AuthContext(verifier auth.AuthVerifier, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				if uid := strings.TrimSpace(r.Header.Get(DebugUserHeader)); uid != "" {
					device, _ := strconv.ParseBool(strings.TrimSpace(r.Header.Get(DebugDeviceHeader)))
					next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), auth.Claims{UserID: uid, Device: device})))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				token = queryToken(r)
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				log.Debug("token rejected", zap.String("path", r.URL.Path), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func WithClaims(ctx context.Context, c auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func GetClaims(ctx context.Context) (auth.Claims, bool) {
	v := ctx.Value(claimsKey)
	if v == nil {
		return auth.Claims{}, false
	}
	c, ok := v.(auth.Claims)
	return c, ok
}

func bearerToken(authHeader string) string {
	if strings.TrimSpace(authHeader) == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// queryToken: los browsers no pueden mandar headers en el upgrade de websocket.
func queryToken(r *http.Request) string {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}
