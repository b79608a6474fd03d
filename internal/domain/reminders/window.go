package reminders

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"dose-mate/internal/domain/medications"
)

// Urgency clasifica un medicamento próximo según los minutos que faltan.
type Urgency string

const (
	UrgencyOverdue   Urgency = "overdue"
	UrgencySoon      Urgency = "soon"
	UrgencyScheduled Urgency = "scheduled"
)

const minutesPerDay = 24 * 60

// WrapPolicy decide cómo se calcula la diferencia cuando el recordatorio
// y "now" quedan de lados distintos de la medianoche.
type WrapPolicy int

const (
	// WrapNone: resta directa. 00:30 visto a las 23:50 da -1400.
	WrapNone WrapPolicy = iota
	// WrapMidnight: la diferencia se lleva a [-720, 720). 00:30 visto a las 23:50 da +40.
	WrapMidnight
)

func ParseWrapPolicy(s string) WrapPolicy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "wrap", "midnight":
		return WrapMidnight
	default:
		return WrapNone
	}
}

// Options define la ventana de visualización. Valores en minutos.
type Options struct {
	OverdueGrace  int // se muestran items con hasta OverdueGrace-1 minutos de atraso
	Horizon       int // se muestran items que vencen en menos de Horizon minutos
	SoonThreshold int
	Wrap          WrapPolicy
}

func DefaultOptions() Options {
	return Options{
		OverdueGrace:  30,
		Horizon:       120,
		SoonThreshold: 30,
		Wrap:          WrapNone,
	}
}

// UpcomingMedication es una vista efímera sobre un Medication, válida solo
// para el instante en que se calculó.
type UpcomingMedication struct {
	medications.Medication

	MinutesUntilDue int
	Urgency         Urgency
}

type Calculator struct {
	opts Options
}

func NewCalculator(opts Options) *Calculator {
	return &Calculator{opts: opts}
}

func (c *Calculator) Options() Options { return c.opts }

// ComputeUpcoming usa las opciones por defecto.
func ComputeUpcoming(now time.Time, meds []medications.Medication) []UpcomingMedication {
	return NewCalculator(DefaultOptions()).Compute(now, meds)
}

// Compute es una función pura de (now, meds): nunca falla y no guarda estado.
func (c *Calculator) Compute(now time.Time, meds []medications.Medication) []UpcomingMedication {
	nowMinutes := now.Hour()*60 + now.Minute()

	out := make([]UpcomingMedication, 0)
	for _, m := range meds {
		rm, ok := ParseMinutes(m.ReminderTime)
		if !ok {
			continue
		}

		diff := c.diff(rm, nowMinutes)
		if diff <= -c.opts.OverdueGrace || diff >= c.opts.Horizon {
			continue
		}

		out = append(out, UpcomingMedication{
			Medication:      m,
			MinutesUntilDue: diff,
			Urgency:         c.classify(diff),
		})
	}

	sortByDue(out)
	return out
}

func (c *Calculator) diff(reminderMinutes, nowMinutes int) int {
	d := reminderMinutes - nowMinutes
	if c.opts.Wrap == WrapMidnight {
		d = ((d+minutesPerDay/2)%minutesPerDay+minutesPerDay)%minutesPerDay - minutesPerDay/2
	}
	return d
}

func (c *Calculator) classify(minutesUntilDue int) Urgency {
	if minutesUntilDue < 0 {
		return UrgencyOverdue
	}
	if minutesUntilDue < c.opts.SoonThreshold {
		return UrgencySoon
	}
	return UrgencyScheduled
}

// sortByDue ordena ascendente por MinutesUntilDue; empates conservan el orden de entrada.
func sortByDue(items []UpcomingMedication) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].MinutesUntilDue < items[j].MinutesUntilDue
	})
}

// ParseMinutes convierte "HH:MM" (se ignora cualquier sufijo) a minutos desde medianoche.
func ParseMinutes(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 5 || s[2] != ':' || !isDigits(s[:2]) || !isDigits(s[3:5]) {
		return 0, false
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(s[3:5])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
