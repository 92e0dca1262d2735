// Package lang holds the localized diagnostics the lobby sends to players.
package lang

import (
	"fmt"
	"sort"

	"golang.org/x/text/language"
)

// Key identifies one diagnostic text.
type Key string

const (
	DataMismatch         Key = "data_mismatch"
	DataMismatchHeader   Key = "data_mismatch_header"
	UnassignedSlots      Key = "unassigned_slots"
	NoTechtrees          Key = "no_techtrees"
	NoHuman              Key = "no_human"
	LaunchHeader         Key = "launch_header"
	MasterserverError    Key = "masterserver_error"
	GeneralError         Key = "general_error"
	NetworkSlotFailed    Key = "network_slot_failed"
	AdminHandedOff       Key = "admin_handed_off"
	PlayerDisconnected   Key = "player_disconnected"
	PlayerJoinedOverflow Key = "player_joined_overflow"
)

var english = map[Key]string{
	DataMismatch:         "Player %s has a different %s: %s",
	DataMismatchHeader:   "Data mismatch",
	UnassignedSlots:      "Unassigned network slot(s) must be claimed or closed before the game can start",
	NoTechtrees:          "No tech trees are available",
	NoHuman:              "At least one human player is required",
	LaunchHeader:         "Cannot start game",
	MasterserverError:    "Masterserver did not accept the game: %s",
	GeneralError:         "Unexpected error: %s",
	NetworkSlotFailed:    "Could not open network slot %d: %s",
	AdminHandedOff:       "%s is now the game admin",
	PlayerDisconnected:   "%s disconnected",
	PlayerJoinedOverflow: "%s joined an unassigned slot, please switch to a free slot",
}

var german = map[Key]string{
	DataMismatch:         "Spieler %s hat abweichende Daten (%s): %s",
	DataMismatchHeader:   "Datenkonflikt",
	UnassignedSlots:      "Nicht zugewiesene Netzwerkplätze müssen belegt oder geschlossen werden, bevor das Spiel startet",
	NoTechtrees:          "Keine Techtrees verfügbar",
	NoHuman:              "Mindestens ein menschlicher Spieler wird benötigt",
	LaunchHeader:         "Spiel kann nicht gestartet werden",
	MasterserverError:    "Der Masterserver hat das Spiel nicht angenommen: %s",
	GeneralError:         "Unerwarteter Fehler: %s",
	NetworkSlotFailed:    "Netzwerkplatz %d konnte nicht geöffnet werden: %s",
	AdminHandedOff:       "%s ist jetzt Spieladministrator",
	PlayerDisconnected:   "%s hat die Verbindung getrennt",
	PlayerJoinedOverflow: "%s ist einem nicht zugewiesenen Platz beigetreten, bitte wechsle auf einen freien Platz",
}

var spanish = map[Key]string{
	DataMismatch:         "El jugador %s tiene un %s distinto: %s",
	DataMismatchHeader:   "Datos no coinciden",
	UnassignedSlots:      "Los puestos de red sin asignar deben ocuparse o cerrarse antes de empezar",
	NoTechtrees:          "No hay árboles tecnológicos disponibles",
	NoHuman:              "Se necesita al menos un jugador humano",
	LaunchHeader:         "No se puede iniciar la partida",
	MasterserverError:    "El servidor maestro no aceptó la partida: %s",
	GeneralError:         "Error inesperado: %s",
	NetworkSlotFailed:    "No se pudo abrir el puesto de red %d: %s",
	AdminHandedOff:       "%s es ahora el administrador de la partida",
	PlayerDisconnected:   "%s se ha desconectado",
	PlayerJoinedOverflow: "%s entró en un puesto sin asignar, cambia a un puesto libre",
}

// Catalog resolves texts for a requested language, falling back to English.
type Catalog struct {
	tags    []language.Tag
	texts   []map[Key]string
	matcher language.Matcher
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c := &Catalog{}
	c.Add(language.English, english)
	c.Add(language.German, german)
	c.Add(language.Spanish, spanish)
	return c
}

// Add registers texts for a language. The first language added is the
// fallback.
func (c *Catalog) Add(tag language.Tag, texts map[Key]string) {
	c.tags = append(c.tags, tag)
	c.texts = append(c.texts, texts)
	c.matcher = language.NewMatcher(c.tags)
}

// Text formats key in the language closest to lang.
func (c *Catalog) Text(lang string, key Key, args ...any) string {
	idx := 0
	if tag, err := language.Parse(lang); err == nil {
		_, idx, _ = c.matcher.Match(tag)
	}
	format, ok := c.texts[idx][key]
	if !ok {
		format, ok = c.texts[0][key]
	}
	if !ok {
		format = string(key)
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// Localize formats key once per distinct language in langs.
func (c *Catalog) Localize(langs []string, key Key, args ...any) map[string]string {
	out := make(map[string]string, len(langs))
	for _, l := range langs {
		if _, ok := out[l]; !ok {
			out[l] = c.Text(l, key, args...)
		}
	}
	return out
}

// Languages returns the distinct non-empty entries of langs, sorted.
func Languages(langs ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range langs {
		if l != "" && !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}
