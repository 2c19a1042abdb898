// MODUL: encoders
// ZWECK: Backbone-Registrierung fuer das CLI
// INPUT: Keine
// OUTPUT: Keine (Seiteneffekt: Registry-Eintraege)
// NEBENEFFEKTE: Registriert alle Backbone-Encoder via init()
// ABHAENGIGKEITEN: backbone/openclip
// HINWEISE: Ohne -tags openclip registriert das Package einen Stub,
// der auf die fehlende native Bibliothek hinweist

package cmd

import (
	// Encoder-Registrierung via init()
	_ "github.com/Magnet300/CAMME/backbone/openclip"
)
