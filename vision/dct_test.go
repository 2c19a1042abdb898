// MODUL: dct_test
// ZWECK: Tests fuer die orthonormale 2D DCT
// HINWEISE: Prueft Konstant-Signal, Parseval-Eigenschaft und Dimensionen

package vision

import (
	"math"
	"math/rand"
	"testing"
)

func TestDCTConstantSignal(t *testing.T) {
	// Fuer ein konstantes Signal c traegt nur der DC-Koeffizient:
	// Y[0][0] = n * c, alle anderen ~0
	n := 8
	c := float32(0.5)
	d := NewDCT(n)

	in := make([]float32, n*n)
	for i := range in {
		in[i] = c
	}

	out, err := d.Transform(in)
	if err != nil {
		t.Fatalf("Transform fehlgeschlagen: %v", err)
	}

	wantDC := float64(n) * float64(c)
	if math.Abs(float64(out[0])-wantDC) > 1e-5 {
		t.Errorf("DC-Koeffizient = %f, erwartet %f", out[0], wantDC)
	}

	for i := 1; i < n*n; i++ {
		if math.Abs(float64(out[i])) > 1e-5 {
			t.Errorf("Koeffizient %d = %f, erwartet ~0", i, out[i])
		}
	}
}

func TestDCTParseval(t *testing.T) {
	// Orthonormale Transformation erhaelt die Energie
	n := 16
	d := NewDCT(n)
	rng := rand.New(rand.NewSource(7))

	in := make([]float32, n*n)
	var inEnergy float64
	for i := range in {
		in[i] = float32(rng.NormFloat64())
		inEnergy += float64(in[i]) * float64(in[i])
	}

	out, err := d.Transform(in)
	if err != nil {
		t.Fatalf("Transform fehlgeschlagen: %v", err)
	}

	var outEnergy float64
	for _, v := range out {
		outEnergy += float64(v) * float64(v)
	}

	if math.Abs(inEnergy-outEnergy)/inEnergy > 1e-5 {
		t.Errorf("Energie nicht erhalten: in=%f out=%f", inEnergy, outEnergy)
	}
}

func TestDCTDimensionCheck(t *testing.T) {
	d := NewDCT(4)
	if _, err := d.Transform(make([]float32, 15)); err == nil {
		t.Error("erwartet Fehler bei falscher Eingabelaenge")
	}
	if d.Size() != 4 {
		t.Errorf("Size() = %d, erwartet 4", d.Size())
	}
}
