package reminders

import (
	"strings"
	"time"

	"dose-mate/internal/domain/medications"
)

// NextDoseTime elige el recordatorio que le toca al dispositivo:
// la próxima ocurrencia (hoy o mañana) más cercana a now, inclusive.
// Empates: gana el primero en el orden de entrada.
func NextDoseTime(now time.Time, meds []medications.Medication) (string, bool) {
	nowMinutes := now.Hour()*60 + now.Minute()

	candidates := make([]UpcomingMedication, 0, len(meds))
	for _, m := range meds {
		rm, ok := ParseMinutes(m.ReminderTime)
		if !ok {
			continue
		}
		ahead := ((rm-nowMinutes)%minutesPerDay + minutesPerDay) % minutesPerDay
		candidates = append(candidates, UpcomingMedication{
			Medication:      m,
			MinutesUntilDue: ahead,
		})
	}
	if len(candidates) == 0 {
		return "", false
	}

	sortByDue(candidates)
	return Normalize(candidates[0].ReminderTime), true
}

// Normalize recorta a "HH:MM". No valida: lo mal formado pasa tal cual.
func Normalize(reminderTime string) string {
	r := []rune(reminderTime)
	if len(r) <= 5 {
		return reminderTime
	}
	return string(r[:5])
}

// HasTime reporta si el valor viene informado (vacío = opt-out del sync).
func HasTime(reminderTime string) bool {
	return strings.TrimSpace(reminderTime) != ""
}
