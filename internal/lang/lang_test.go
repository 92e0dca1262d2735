package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestCatalog_Text(t *testing.T) {
	c := Default()

	tests := []struct {
		lang string
		want string
	}{
		{"en", "At least one human player is required"},
		{"de", "Mindestens ein menschlicher Spieler wird benötigt"},
		{"de-AT", "Mindestens ein menschlicher Spieler wird benötigt"},
		{"es", "Se necesita al menos un jugador humano"},
		{"ja", "At least one human player is required"},
		{"not a tag!", "At least one human player is required"},
	}
	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Text(tt.lang, NoHuman))
		})
	}
}

func TestCatalog_Format(t *testing.T) {
	c := Default()
	assert.Equal(t, "Player bob has a different map: island", c.Text("en", DataMismatch, "bob", "map", "island"))
}

func TestCatalog_MissingKeyFallsBack(t *testing.T) {
	c := Default()
	c.Add(language.French, map[Key]string{NoHuman: "Il faut au moins un joueur humain"})

	assert.Equal(t, "Il faut au moins un joueur humain", c.Text("fr", NoHuman))
	assert.Equal(t, "No tech trees are available", c.Text("fr", NoTechtrees))
	assert.Equal(t, "nope", c.Text("fr", Key("nope")))
}

func TestLocalize(t *testing.T) {
	c := Default()
	got := c.Localize(Languages("en", "de", "", "en"), PlayerDisconnected, "carl")
	assert.Equal(t, map[string]string{
		"en": "carl disconnected",
		"de": "carl hat die Verbindung getrennt",
	}, got)
}
