// MODUL: image
// ZWECK: Bild-Lade- und Verarbeitungsfunktionen fuer die Feature-Extraktion
// INPUT: Dateipfad, Bytes oder io.Reader
// OUTPUT: ImageInput Struktur mit dekodiertem RGBA-Bild
// NEBENEFFEKTE: Dateisystem-Lesezugriff bei LoadImage
// ABHAENGIGKEITEN: golang.org/x/image/draw (extern), image/jpeg, image/png
// HINWEISE: Nicht-RGB-Bilder werden vor jeder Verarbeitung zu RGBA konvertiert

package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	// Standard-Decoder registrieren
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// jpegEOI ist der End-of-Image Marker; wird bei JPEG-Dateien mit
// abgeschnittenem Dateiende angehaengt. Das rettet Dateien, deren
// Scan-Daten vollstaendig sind und denen nur der Abschluss fehlt;
// mitten im Scan abgeschnittene Dateien bleiben ein Fehler.
var jpegEOI = []byte{0xff, 0xd9}

// ErrEmptyImage wird zurueckgegeben wenn keine Bilddaten vorliegen.
var ErrEmptyImage = errors.New("vision: empty image data")

// ImageInput enthaelt ein dekodiertes Bild mit Metadaten
type ImageInput struct {
	Image  *image.RGBA
	Width  int
	Height int
}

// LoadImage laedt ein Bild von einem Dateipfad.
// Fehler enthalten immer den betroffenen Pfad (fail loud, kein Skip).
func LoadImage(path string) (*ImageInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bild lesen %s: %w", path, err)
	}

	img, err := DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("bild dekodieren %s: %w", path, err)
	}
	return img, nil
}

// DecodeImage dekodiert ein Bild aus einem io.Reader und konvertiert zu RGBA.
// Abgeschnittene JPEG-Stroeme werden toleriert indem ein EOI-Marker
// angehaengt wird; anderweitig unlesbare Daten schlagen fehl.
func DecodeImage(reader io.Reader) (*ImageInput, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("daten lesen fehlgeschlagen: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil && isTruncated(err) && looksLikeJPEG(data) {
		img, _, err = image.Decode(bytes.NewReader(append(data, jpegEOI...)))
	}
	if err != nil {
		return nil, fmt.Errorf("bild dekodieren fehlgeschlagen: %w", err)
	}

	rgba := toRGBA(img)
	bounds := rgba.Bounds()

	return &ImageInput{
		Image:  rgba,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// isTruncated erkennt abgeschnittene Datenstroeme.
func isTruncated(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

// looksLikeJPEG prueft den SOI-Marker.
func looksLikeJPEG(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xff && data[1] == 0xd8
}

// toRGBA konvertiert ein beliebiges image.Image zu *image.RGBA
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba
}

// ResizeBicubic skaliert ein Bild bikubisch auf die angegebene Groesse.
// CatmullRom ist der bikubische Kernel von x/image/draw.
func ResizeBicubic(img *ImageInput, width, height int) (*ImageInput, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("ungueltige groesse: %dx%d", width, height)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img.Image, img.Image.Bounds(), draw.Src, nil)

	return &ImageInput{
		Image:  dst,
		Width:  width,
		Height: height,
	}, nil
}

// CenterCrop schneidet einen zentrierten Bereich aus.
// No-op wenn das Bild bereits die Zielgroesse hat.
func CenterCrop(img *ImageInput, width, height int) (*ImageInput, error) {
	if width > img.Width || height > img.Height {
		return nil, fmt.Errorf("crop groesser als bild: %dx%d > %dx%d", width, height, img.Width, img.Height)
	}
	if width == img.Width && height == img.Height {
		return img, nil
	}

	offsetX := (img.Width - width) / 2
	offsetY := (img.Height - height) / 2

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	srcRect := image.Rect(offsetX, offsetY, offsetX+width, offsetY+height)
	draw.Draw(dst, dst.Bounds(), img.Image, srcRect.Min, draw.Src)

	return &ImageInput{
		Image:  dst,
		Width:  width,
		Height: height,
	}, nil
}
