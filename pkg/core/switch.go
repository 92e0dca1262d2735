package core

// SwitchField marks which fields of a SwitchSetupRequest carry a value.
type SwitchField uint8

const (
	FieldFaction SwitchField = 1 << iota
	FieldTeam
	FieldName
	FieldStatus
)

// SwitchSetupRequest is a client-submitted change to its own seat. ToSlot is
// -1 when the client stays put and only updates fields.
type SwitchSetupRequest struct {
	CurrentSlot int          `json:"currentSlot"`
	ToSlot      int          `json:"toSlot"`
	Faction     string       `json:"faction,omitempty"`
	Team        int          `json:"team,omitempty"`
	PlayerName  string       `json:"playerName,omitempty"`
	Status      PlayerStatus `json:"status,omitempty"`
	Fields      SwitchField  `json:"fields"`
}

// Has reports whether the request carries field f.
func (r *SwitchSetupRequest) Has(f SwitchField) bool {
	return r.Fields&f == f
}

// IsMove reports whether the request asks to change seats.
func (r *SwitchSetupRequest) IsMove() bool {
	return r.ToSlot != -1
}
