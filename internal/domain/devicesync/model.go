package devicesync

import "time"

// State es el registro compartido entre la app y el dispensador, uno por cuenta.
// El dispositivo solo lee NextDoseTime y escribe Connected/LastSeenAt;
// la app hace lo inverso. Last-write-wins por campo.
type State struct {
	AccountID    string
	Connected    bool
	LastSeenAt   *time.Time
	NextDoseTime string // "HH:MM" o vacío
}

// Patch es un upsert-merge: los campos nil no se tocan.
type Patch struct {
	Connected    *bool
	LastSeenAt   *time.Time
	NextDoseTime *string
}

func (p Patch) Empty() bool {
	return p.Connected == nil && p.LastSeenAt == nil && p.NextDoseTime == nil
}

// Apply devuelve s con el patch aplicado.
func (p Patch) Apply(s State) State {
	if p.Connected != nil {
		s.Connected = *p.Connected
	}
	if p.LastSeenAt != nil {
		t := *p.LastSeenAt
		s.LastSeenAt = &t
	}
	if p.NextDoseTime != nil {
		s.NextDoseTime = *p.NextDoseTime
	}
	return s
}
