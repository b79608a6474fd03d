package reminders

import (
	"encoding/json"
	"net/http"
	"time"

	"dose-mate/internal/domain/medications"
	"dose-mate/internal/middleware"
	"dose-mate/internal/platform/wsstream"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UpcomingFeed publica la ventana recalculada en cada tick o cambio.
type UpcomingFeed interface {
	SubscribeUpcoming(accountID string) (<-chan []UpcomingMedication, func())
}

// RegisterRoutes monta /upcoming y /upcoming/stream sobre el router de /medications.
// feed puede ser nil: el stream entrega solo la foto inicial.
func RegisterRoutes(r chi.Router, svc *medications.Service, calc *Calculator, now func() time.Time, feed UpcomingFeed, log *zap.Logger) {
	if now == nil {
		now = time.Now
	}
	r.Get("/upcoming", upcomingHandler(svc, calc, now, log))
	r.Get("/upcoming/stream", upcomingStreamHandler(svc, calc, now, feed, log))
}

// UpcomingResponse es un medicamento dentro de la ventana de recordatorios.
type UpcomingResponse struct {
	medications.MedicationResponse

	MinutesUntilDue int     `json:"minutes_until_due"`
	Urgency         Urgency `json:"urgency" enums:"overdue,soon,scheduled"`
}

// upcomingHandler godoc
// @Summary Próximos medicamentos
// @Description Medicamentos con recordatorio dentro de la ventana (atrasados hasta 29 min, próximos 119 min), ordenados por vencimiento.
// @Tags reminders
// @Produce json
// @Success 200 {array} UpcomingResponse
// @Failure 401 {string} string "unauthorized"
// @Router /medications/upcoming [get]
func upcomingHandler(svc *medications.Service, calc *Calculator, now func() time.Time, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || claims.AccountID() == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.List(r.Context(), claims.AccountID())
		if err != nil {
			log.Error("list medications failed", zap.String("account_id", claims.AccountID()), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, ToResponses(calc.Compute(now(), items)))
	}
}

// upcomingStreamHandler godoc
// @Summary Stream de próximos medicamentos
// @Description Websocket. Envía la ventana actual y luego cada recálculo.
// @Tags reminders
// @Success 101
// @Router /medications/upcoming/stream [get]
func upcomingStreamHandler(svc *medications.Service, calc *Calculator, now func() time.Time, feed UpcomingFeed, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || claims.AccountID() == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		accountID := claims.AccountID()
		l := log.With(zap.String("account_id", accountID))

		wsstream.Serve(w, r, l, func(emit wsstream.Emit) (func(), error) {
			// suscribir antes de la foto inicial para no perder un recálculo
			var ch <-chan []UpcomingMedication
			cancel := func() {}
			if feed != nil {
				ch, cancel = feed.SubscribeUpcoming(accountID)
			}

			items, err := svc.List(r.Context(), accountID)
			if err != nil {
				cancel()
				return nil, err
			}
			emit(ToResponses(calc.Compute(now(), items)))

			if ch != nil {
				go func() {
					for list := range ch {
						emit(ToResponses(list))
					}
				}()
			}
			return cancel, nil
		})
	}
}

func ToResponses(items []UpcomingMedication) []UpcomingResponse {
	out := make([]UpcomingResponse, 0, len(items))
	for _, u := range items {
		out = append(out, UpcomingResponse{
			MedicationResponse: medications.ToResponse(u.Medication),
			MinutesUntilDue:    u.MinutesUntilDue,
			Urgency:            u.Urgency,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
