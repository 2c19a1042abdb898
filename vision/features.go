// MODUL: features
// ZWECK: Feature-Extraktion fuer den Drei-Modalitaeten-Klassifikator
// INPUT: Bilddatei beliebiger Aufloesung und beliebigen Modus
// OUTPUT: Normalisierter RGB-Tensor [3,320,320] und DCT-Tensor [1,320,320]
// NEBENEFFEKTE: Dateisystem-Lesezugriff
// ABHAENGIGKEITEN: image.go, normalize.go, dct.go
// HINWEISE: Pipeline ist fest verdrahtet, nicht pro Instanz konfigurierbar

package vision

import (
	"fmt"
)

// ImageSize ist die feste Kantenlaenge der Eingabetensoren.
const ImageSize = 320

// Features enthaelt die beiden Bild-Modalitaeten eines Samples.
type Features struct {
	// RGB ist der CLIP-normalisierte Tensor, CHW, Laenge 3*ImageSize*ImageSize.
	RGB []float32
	// DCT sind die Frequenz-Koeffizienten, row-major, Laenge ImageSize*ImageSize.
	DCT []float32
}

// Extractor fuehrt die feste Vorverarbeitungs-Pipeline aus:
// bikubisches Resize auf 320x320, Center-Crop (No-op nach dem Resize),
// CLIP-Normalisierung, Graustufen auf [-1,1], orthonormale 2D DCT.
type Extractor struct {
	dct *DCT
}

// NewExtractor erstellt einen Extractor mit vorberechneter DCT-Basis.
func NewExtractor() *Extractor {
	return &Extractor{dct: NewDCT(ImageSize)}
}

// ExtractFile laedt eine Bilddatei und berechnet beide Modalitaeten.
// Jeder Fehler traegt den betroffenen Pfad; es wird nichts uebersprungen.
func (e *Extractor) ExtractFile(path string) (*Features, error) {
	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}

	feats, err := e.Extract(img)
	if err != nil {
		return nil, fmt.Errorf("features %s: %w", path, err)
	}
	return feats, nil
}

// Extract berechnet beide Modalitaeten aus einem dekodierten Bild.
func (e *Extractor) Extract(img *ImageInput) (*Features, error) {
	resized, err := ResizeBicubic(img, ImageSize, ImageSize)
	if err != nil {
		return nil, err
	}

	cropped, err := CenterCrop(resized, ImageSize, ImageSize)
	if err != nil {
		return nil, err
	}

	rgb := NormalizeCHW(cropped, ClipMean, ClipStd)
	gray := GrayscaleCHW(rgb, ImageSize, ImageSize)

	dct, err := e.dct.Transform(gray)
	if err != nil {
		return nil, err
	}

	return &Features{RGB: rgb, DCT: dct}, nil
}
