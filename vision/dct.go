// MODUL: dct
// ZWECK: Orthonormale 2D Diskrete Kosinustransformation (DCT-II)
// INPUT: Quadratischer Graustufen-Tensor (row-major float32)
// OUTPUT: DCT-Koeffizienten gleicher Groesse
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: gonum.org/v1/gonum/mat (extern)
// HINWEISE: Y = C * X * C^T mit vorberechneter Orthonormal-Basis

package vision

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DCT fuehrt die orthonormale 2D DCT-II fuer eine feste Kantenlaenge aus.
// Die Basis-Matrix wird einmal vorberechnet; Transform ist danach
// nebenlaeufig nutzbar (nur Lesezugriff auf die Basis).
type DCT struct {
	n     int
	basis *mat.Dense
}

// NewDCT erstellt eine DCT fuer n x n Eingaben.
func NewDCT(n int) *DCT {
	basis := mat.NewDense(n, n, nil)

	// Orthonormale DCT-II Basis:
	// C[k][j] = s(k) * cos(pi * (2j+1) * k / (2n))
	// s(0) = sqrt(1/n), s(k>0) = sqrt(2/n)
	for k := 0; k < n; k++ {
		scale := math.Sqrt(2.0 / float64(n))
		if k == 0 {
			scale = math.Sqrt(1.0 / float64(n))
		}
		for j := 0; j < n; j++ {
			basis.Set(k, j, scale*math.Cos(math.Pi*float64(2*j+1)*float64(k)/(2*float64(n))))
		}
	}

	return &DCT{n: n, basis: basis}
}

// Size gibt die Kantenlaenge zurueck.
func (d *DCT) Size() int {
	return d.n
}

// Transform wendet die 2D DCT auf einen row-major n*n Tensor an.
func (d *DCT) Transform(gray []float32) ([]float32, error) {
	if len(gray) != d.n*d.n {
		return nil, fmt.Errorf("dct: erwartet %d werte, erhalten %d", d.n*d.n, len(gray))
	}

	x := mat.NewDense(d.n, d.n, nil)
	for i := 0; i < d.n; i++ {
		for j := 0; j < d.n; j++ {
			x.Set(i, j, float64(gray[i*d.n+j]))
		}
	}

	var tmp, y mat.Dense
	tmp.Mul(d.basis, x)
	y.Mul(&tmp, d.basis.T())

	out := make([]float32, d.n*d.n)
	for i := 0; i < d.n; i++ {
		for j := 0; j < d.n; j++ {
			out[i*d.n+j] = float32(y.At(i, j))
		}
	}
	return out, nil
}
