// MODUL: openclip/stub
// ZWECK: Stub-Implementierung wenn CGO nicht verfuegbar ist
// HINWEISE: Registriert den Namen trotzdem, damit Fehlermeldungen auf
// die fehlende native Bibliothek hinweisen statt auf einen Tippfehler

//go:build !openclip || !cgo

package openclip

import (
	"errors"

	"github.com/Magnet300/CAMME/backbone"
)

// ErrCGORequired wird zurueckgegeben wenn das native Backend fehlt.
var ErrCGORequired = errors.New("openclip: built without -tags openclip (libopenclip not linked)")

func init() {
	backbone.RegisterToDefault("openclip", func(modelPath string, opts backbone.LoadOptions) (backbone.Encoder, error) {
		return nil, ErrCGORequired
	})
}
