// MODUL: dataset
// ZWECK: Label-partitionierter Bilddatensatz fuer die Evaluation
// INPUT: Zwei flache Verzeichnisse (echt = Label 0, synthetisch = Label 1)
// OUTPUT: Indexierte Samples mit Bild-Tensor, DCT-Tensor, Label und Caption
// NEBENEFFEKTE: Dateisystem-Lesezugriff
// ABHAENGIGKEITEN: vision (Feature-Extraktion)
// HINWEISE: Reihenfolge ist deterministisch: erst alle echten, dann alle
// synthetischen Eintraege, jeweils lexikalisch sortiert (os.ReadDir)

package dataset

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Magnet300/CAMME/vision"
)

// Labels der beiden Partitionen.
const (
	LabelReal = 0
	LabelFake = 1
)

// ErrEmptyDataset wird zurueckgegeben wenn keine Bilddatei gefunden wurde.
var ErrEmptyDataset = errors.New("dataset: no matching image files")

// imageExtensions sind die akzeptierten Endungen (case-insensitive).
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Sample ist ein enumerierter Eintrag: Pfad plus Partitions-Label.
// Unveraenderlich nach der Enumeration.
type Sample struct {
	Path  string
	Label int
}

// Item ist ein vollstaendig geladenes Sample.
type Item struct {
	Image   []float32 // CLIP-normalisiert, CHW, 3*320*320
	DCT     []float32 // Frequenz-Koeffizienten, 320*320
	Label   int
	Caption string
}

// Dataset enumeriert zwei Verzeichnisse und liefert indexierten Zugriff.
// Nur-Lese-Zugriff ist nebenlaeufig sicher; der Extractor haelt keinen
// veraenderlichen Zustand.
type Dataset struct {
	samples   []Sample
	realCount int
	extractor *vision.Extractor
}

// New enumeriert realDir (Label 0) und fakeDir (Label 1).
func New(realDir, fakeDir string) (*Dataset, error) {
	real, err := listImages(realDir, LabelReal)
	if err != nil {
		return nil, err
	}
	fake, err := listImages(fakeDir, LabelFake)
	if err != nil {
		return nil, err
	}

	samples := append(real, fake...)
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w in %s und %s", ErrEmptyDataset, realDir, fakeDir)
	}

	slog.Debug("dataset enumeriert", "real", len(real), "fake", len(fake))

	return &Dataset{
		samples:   samples,
		realCount: len(real),
		extractor: vision.NewExtractor(),
	}, nil
}

// listImages sammelt alle Bilddateien eines Verzeichnisses.
func listImages(dir string, label int) ([]Sample, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("verzeichnis lesen %s: %w", dir, err)
	}

	var samples []Sample
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !imageExtensions[ext] {
			continue
		}
		samples = append(samples, Sample{
			Path:  filepath.Join(dir, entry.Name()),
			Label: label,
		})
	}
	return samples, nil
}

// Len gibt die Gesamtzahl der Samples zurueck.
func (d *Dataset) Len() int {
	return len(d.samples)
}

// RealCount gibt die Anzahl der Label-0-Samples zurueck.
func (d *Dataset) RealCount() int {
	return d.realCount
}

// Sample gibt den enumerierten Eintrag an Index i zurueck.
func (d *Dataset) Sample(i int) Sample {
	return d.samples[i]
}

// Item laedt das Sample an Index i vollstaendig:
// Feature-Extraktion plus Caption-Ableitung.
// Dekodier-Fehler propagieren mit Pfad, es wird nichts uebersprungen.
func (d *Dataset) Item(i int) (*Item, error) {
	s := d.samples[i]

	feats, err := d.extractor.ExtractFile(s.Path)
	if err != nil {
		return nil, err
	}

	return &Item{
		Image:   feats.RGB,
		DCT:     feats.DCT,
		Label:   s.Label,
		Caption: Caption(s.Path),
	}, nil
}

// Caption leitet die Bildunterschrift aus dem Dateinamen ab:
// Basename ohne Endung, Unterstriche durch Leerzeichen ersetzt.
// Pur und total, keine Fehlerfaelle.
func Caption(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.ReplaceAll(name, "_", " ")
}
