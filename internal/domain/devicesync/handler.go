package devicesync

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"dose-mate/internal/middleware"
	"dose-mate/internal/platform/wsstream"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func RegisterRoutes(r chi.Router, sync *Synchronizer, log *zap.Logger) {
	r.Route("/device", func(dr chi.Router) {
		// Lado app: panel de estado
		dr.Get("/", getStateHandler(sync, log))
		dr.Get("/stream", streamStateHandler(sync, log))

		// Lado dispositivo: polling de la próxima dosis + heartbeat
		dr.Get("/next-dose", nextDoseHandler(sync, log))
		dr.Post("/heartbeat", heartbeatHandler(sync, log))
	})
}

// StateResponse es el registro de sync tal como lo ve la UI.
type StateResponse struct {
	AccountID    string     `json:"account_id"`
	Connected    bool       `json:"connected"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
	NextDoseTime string     `json:"next_dose_time,omitempty"`
}

type nextDoseResponse struct {
	Time string `json:"time"`
}

type heartbeatRequest struct {
	Connected *bool `json:"connected"` // default true
}

type streamError struct {
	Error string `json:"error"`
}

// getStateHandler godoc
// @Summary Estado del dispositivo
// @Description Lectura puntual de connected / last_seen_at / next_dose_time.
// @Tags device
// @Produce json
// @Success 200 {object} StateResponse
// @Failure 401 {string} string "unauthorized"
// @Router /device [get]
func getStateHandler(sync *Synchronizer, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || claims.AccountID() == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		st, err := sync.State(r.Context(), claims.AccountID())
		if err != nil {
			log.Error("device state read failed", zap.String("account_id", claims.AccountID()), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, ToResponse(st))
	}
}

// streamStateHandler godoc
// @Summary Stream del estado del dispositivo
// @Description Websocket. Envía el estado actual y luego cada cambio. Cerrar el socket cancela la suscripción.
// @Tags device
// @Success 101
// @Router /device/stream [get]
func streamStateHandler(sync *Synchronizer, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || claims.AccountID() == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		accountID := claims.AccountID()
		l := log.With(zap.String("account_id", accountID))

		wsstream.Serve(w, r, l, func(emit wsstream.Emit) (func(), error) {
			sub, err := sync.ObserveDeviceState(r.Context(), accountID,
				func(st State) { emit(ToResponse(st)) },
				func(err error) {
					l.Warn("device subscription error", zap.Error(err))
					emit(streamError{Error: "subscription error"})
				},
			)
			if err != nil {
				return nil, err
			}
			return sub.Cancel, nil
		})
	}
}

// nextDoseHandler godoc
// @Summary Próxima dosis (dispositivo)
// @Description Endpoint que consulta el dispensador. `time` vacío si no hay ninguna publicada.
// @Tags device
// @Produce json
// @Success 200 {object} nextDoseResponse
// @Router /device/next-dose [get]
func nextDoseHandler(sync *Synchronizer, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || claims.AccountID() == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		st, err := sync.State(r.Context(), claims.AccountID())
		if err != nil {
			log.Error("device state read failed", zap.String("account_id", claims.AccountID()), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, nextDoseResponse{Time: st.NextDoseTime})
	}
}

// heartbeatHandler godoc
// @Summary Heartbeat del dispositivo
// @Description El dispensador informa connected; el servidor sella last_seen_at.
// @Tags device
// @Accept json
// @Param payload body heartbeatRequest false "connected (default true)"
// @Success 204
// @Failure 403 {string} string "device token required"
// @Router /device/heartbeat [post]
func heartbeatHandler(sync *Synchronizer, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || claims.AccountID() == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		// connected/last_seen_at los escribe solo el dispensador
		if !claims.Device {
			http.Error(w, "device token required", http.StatusForbidden)
			return
		}

		// body vacío = connected:true
		connected := true
		var req heartbeatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Connected != nil {
			connected = *req.Connected
		}

		if err := sync.RecordHeartbeat(r.Context(), claims.AccountID(), connected); err != nil {
			log.Error("device heartbeat failed", zap.String("account_id", claims.AccountID()), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func ToResponse(st State) StateResponse {
	return StateResponse{
		AccountID:    st.AccountID,
		Connected:    st.Connected,
		LastSeenAt:   st.LastSeenAt,
		NextDoseTime: st.NextDoseTime,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
