package medications

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"dose-mate/internal/apperrors"
	"dose-mate/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RegisterRoutes monta el CRUD sobre un router ya montado en /medications.
func RegisterRoutes(r chi.Router, svc *Service, log *zap.Logger) {
	r.Post("/", createMedicationHandler(svc, log))
	r.Get("/", listMedicationsHandler(svc, log))

	r.Get("/{medicationID}", getMedicationHandler(svc, log))
	r.Patch("/{medicationID}", updateMedicationHandler(svc, log))
	r.Delete("/{medicationID}", deleteMedicationHandler(svc, log))
}

// createMedicationRequest es el cuerpo para registrar un medicamento.
type createMedicationRequest struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	FoodRelation string `json:"food_relation" enums:"before,with,after,any"`
	ReminderTime string `json:"reminder_time"` // HH:MM opcional
}

type updateMedicationRequest struct {
	Name         *string `json:"name"`
	Dosage       *string `json:"dosage"`
	FoodRelation *string `json:"food_relation"`
	ReminderTime *string `json:"reminder_time"` // "" limpia el recordatorio
}

// MedicationResponse es la representación pública de un medicamento.
type MedicationResponse struct {
	ID           string       `json:"id"`
	AccountID    string       `json:"account_id"`
	Name         string       `json:"name"`
	Dosage       string       `json:"dosage"`
	FoodRelation FoodRelation `json:"food_relation"`
	ReminderTime string       `json:"reminder_time,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// writeResponse agrega el resultado del sync con el dispositivo.
type writeResponse struct {
	MedicationResponse
	DeviceSynced bool `json:"device_synced"`
}

// createMedicationHandler godoc
// @Summary Registrar medicamento
// @Description Crea un medicamento para la cuenta autenticada y sincroniza la próxima dosis con el dispositivo. Si el sync falla el medicamento queda creado y `device_synced` es false.
// @Tags medications
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de cuenta"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body createMedicationRequest true "Datos del medicamento"
// @Success 201 {object} writeResponse
// @Failure 400 {string} string "validation error"
// @Failure 401 {string} string "unauthorized"
// @Router /medications [post]
func createMedicationHandler(svc *Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || claims.AccountID() == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createMedicationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		m, err := svc.Create(r.Context(), claims.AccountID(), CreateInput{
			Name:         req.Name,
			Dosage:       req.Dosage,
			FoodRelation: req.FoodRelation,
			ReminderTime: req.ReminderTime,
		})
		if err != nil && !IsSyncError(err) {
			writeError(w, log, err)
			return
		}

		synced := err == nil
		if !synced {
			log.Warn("device sync failed after create",
				zap.String("account_id", claims.AccountID()),
				zap.String("medication_id", m.ID),
				zap.Error(err),
			)
		}

		writeJSON(w, http.StatusCreated, writeResponse{
			MedicationResponse: ToResponse(m),
			DeviceSynced:       synced,
		})
	}
}

// listMedicationsHandler godoc
// @Summary Listar medicamentos
// @Tags medications
// @Produce json
// @Success 200 {array} MedicationResponse
// @Failure 401 {string} string "unauthorized"
// @Router /medications [get]
func listMedicationsHandler(svc *Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || claims.AccountID() == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.List(r.Context(), claims.AccountID())
		if err != nil {
			writeError(w, log, err)
			return
		}

		out := make([]MedicationResponse, 0, len(items))
		for _, m := range items {
			out = append(out, ToResponse(m))
		}

		writeJSON(w, http.StatusOK, out)
	}
}

// getMedicationHandler godoc
// @Summary Obtener medicamento
// @Tags medications
// @Produce json
// @Param medicationID path string true "ID del medicamento"
// @Success 200 {object} MedicationResponse
// @Failure 404 {string} string "medication not found"
// @Router /medications/{medicationID} [get]
func getMedicationHandler(svc *Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || claims.AccountID() == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		m, err := svc.Get(r.Context(), claims.AccountID(), chi.URLParam(r, "medicationID"))
		if err != nil {
			writeError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, ToResponse(m))
	}
}

// updateMedicationHandler godoc
// @Summary Editar medicamento
// @Description PATCH parcial. En modo last_write solo un reminder_time no vacío se publica al dispositivo.
// @Tags medications
// @Accept json
// @Produce json
// @Param medicationID path string true "ID del medicamento"
// @Param payload body updateMedicationRequest true "Campos a modificar"
// @Success 200 {object} writeResponse
// @Failure 400 {string} string "validation error"
// @Failure 404 {string} string "medication not found"
// @Router /medications/{medicationID} [patch]
func updateMedicationHandler(svc *Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || claims.AccountID() == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()

		var req updateMedicationRequest
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		m, err := svc.Update(r.Context(), claims.AccountID(), chi.URLParam(r, "medicationID"), UpdateInput{
			Name:         req.Name,
			Dosage:       req.Dosage,
			FoodRelation: req.FoodRelation,
			ReminderTime: req.ReminderTime,
		})
		if err != nil && !IsSyncError(err) {
			writeError(w, log, err)
			return
		}

		synced := err == nil
		if !synced {
			log.Warn("device sync failed after update",
				zap.String("account_id", claims.AccountID()),
				zap.String("medication_id", m.ID),
				zap.Error(err),
			)
		}

		writeJSON(w, http.StatusOK, writeResponse{
			MedicationResponse: ToResponse(m),
			DeviceSynced:       synced,
		})
	}
}

// deleteMedicationHandler godoc
// @Summary Eliminar medicamento
// @Tags medications
// @Param medicationID path string true "ID del medicamento"
// @Success 204
// @Failure 404 {string} string "medication not found"
// @Router /medications/{medicationID} [delete]
func deleteMedicationHandler(svc *Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || claims.AccountID() == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		err := svc.Delete(r.Context(), claims.AccountID(), chi.URLParam(r, "medicationID"))
		if err != nil && !IsSyncError(err) {
			writeError(w, log, err)
			return
		}
		if err != nil {
			log.Warn("device sync failed after delete",
				zap.String("account_id", claims.AccountID()),
				zap.Error(err),
			)
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func ToResponse(m Medication) MedicationResponse {
	return MedicationResponse{
		ID:           m.ID,
		AccountID:    m.AccountID,
		Name:         m.Name,
		Dosage:       m.Dosage,
		FoodRelation: m.FoodRelation,
		ReminderTime: m.ReminderTime,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case apperrors.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "medication not found", http.StatusNotFound)
	default:
		log.Error("medication request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
