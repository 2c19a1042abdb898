// MODUL: device
// ZWECK: Compute-Geraet mit expliziter Synchronisations-Faehigkeit
// INPUT: Geraete-Name (cpu|cuda|metal)
// OUTPUT: Device-Wert, einmal beim Start aufgeloest
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: keine (nur Standardbibliothek)
// HINWEISE: Ersetzt String-Vergleiche an Messstellen durch ein
// Capability-Flag; Timing-Code fragt nur noch CanSynchronize ab

package backbone

import "strings"

// Device beschreibt das Compute-Geraet der Evaluation.
// CanSynchronize ist true wenn das Geraet Kernel asynchron einreiht
// und vor Zeitmessungen eine Barriere benoetigt.
type Device struct {
	Name           string
	CanSynchronize bool
}

// ResolveDevice loest einen Geraete-Namen einmalig in ein Device auf.
// Unbekannte Namen fallen auf die CPU zurueck.
func ResolveDevice(name string) Device {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cuda":
		return Device{Name: "cuda", CanSynchronize: true}
	case "metal":
		return Device{Name: "metal", CanSynchronize: true}
	default:
		return Device{Name: "cpu", CanSynchronize: false}
	}
}

// String gibt den Geraete-Namen zurueck.
func (d Device) String() string {
	return d.Name
}
