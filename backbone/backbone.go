// MODUL: backbone
// ZWECK: Abstraktion des vortrainierten Vision-Language-Encoders (CLIP)
// INPUT: Vorverarbeitete Bild-Tensoren (CHW) und Token-ID-Sequenzen
// OUTPUT: 768-dimensionale Embeddings pro Sample
// NEBENEFFEKTE: Keine (Implementierungen laden Modelle)
// ABHAENGIGKEITEN: registry.go, options.go, device.go
// HINWEISE: Das Backbone ist eine opake externe Abhaengigkeit; die
// Fusions-Gewichte liegen nicht hier, sondern im fusion-Package

package backbone

import (
	"errors"
	"fmt"
)

// HubRef ist die feste Modell-Hub-Referenz des eingefrorenen Backbones.
const HubRef = "hf-hub:laion/CLIP-convnext_large_d_320.laion2B-s29B-b131K-ft-soup"

// EmbeddingDim ist die Embedding-Breite beider Encoder-Zweige.
const EmbeddingDim = 768

// Fehler-Definitionen
var (
	ErrUnknownEncoder = errors.New("backbone: unknown encoder")
	ErrClosed         = errors.New("backbone: encoder already closed")
	ErrEmptyBatch     = errors.New("backbone: empty batch")
	ErrBadTensorSize  = errors.New("backbone: unexpected tensor size")
)

// ModelInfo enthaelt Metadaten ueber ein geladenes Backbone.
type ModelInfo struct {
	Name          string
	Type          string
	EmbeddingDim  int
	ImageSize     int
	ContextLength int
}

// Encoder ist das zentrale Interface fuer Vision-Language-Backbones.
// EncodeImageBatch erwartet CLIP-normalisierte CHW-Tensoren,
// EncodeTextBatch tokenisierte Captions fester Kontextlaenge.
type Encoder interface {
	EncodeImageBatch(images [][]float32) ([][]float32, error)
	EncodeTextBatch(tokens [][]int32) ([][]float32, error)

	// Synchronize blockiert bis alle asynchron eingereihten Kernel
	// abgeschlossen sind. No-op auf Geraeten ohne Befehls-Queue.
	Synchronize()

	Close() error
	Info() ModelInfo
}

// Factory erstellt einen Encoder aus Modell-Pfad und Optionen.
type Factory func(modelPath string, opts LoadOptions) (Encoder, error)

// Open erstellt einen Encoder ueber die Default-Registry.
func Open(name, modelPath string, opts ...Option) (Encoder, error) {
	loadOpts := DefaultLoadOptions()
	loadOpts.Apply(opts...)

	if err := loadOpts.Validate(); err != nil {
		return nil, err
	}

	factory, ok := GetFromDefault(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEncoder, name)
	}
	return factory(modelPath, loadOpts)
}
