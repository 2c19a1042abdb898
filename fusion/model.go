// MODUL: model
// ZWECK: Fusions-Netz: drei 768er Embeddings pro Sample zu Klassen-Logits
// INPUT: Bild-Tensoren, Token-Sequenzen, DCT-Tensoren eines Batches
// OUTPUT: Rohe Logits ueber 2 Klassen plus Attention-Gewichte
// NEBENEFFEKTE: Keine; das Backbone bleibt eingefroren
// ABHAENGIGKEITEN: backbone (Encoder), gonum blas32, attention.go
// HINWEISE: Logits sind unskaliert (kein Softmax); der Aufrufer wendet
// Cross-Entropy oder Argmax an

package fusion

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/Magnet300/CAMME/backbone"
)

// Modell-Konstanten; fest durch den trainierten Checkpoint.
const (
	EmbedDim      = 768
	NumHeads      = 8
	HeadDim       = EmbedDim / NumHeads
	NumClasses    = 2
	NumModalities = 3
	DCTInputDim   = 320 * 320
)

// logEps verhindert log(0) bei DCT-Koeffizienten exakt 0.
const logEps = 1e-12

var (
	ErrNilBackbone   = errors.New("fusion: nil backbone")
	ErrBatchMismatch = errors.New("fusion: batch fields have different lengths")
)

// Output ist das Ergebnis eines Forward-Passes.
type Output struct {
	// Logits sind rohe Klassen-Scores, [batch][2].
	Logits [][]float32
	// Attention sind die ueber Koepfe gemittelten Gewichte, [batch][3][3].
	// Token-Reihenfolge: Bild, DCT, Text.
	Attention [][][]float32
}

// Net kombiniert das eingefrorene Backbone mit dem DCT-Projektor und
// dem Cross-Attention-Fusions-Kopf.
type Net struct {
	backbone backbone.Encoder
	params   *Params
	dctW     blas32.General
}

// NewNet erstellt ein Netz aus Backbone und geladenen Parametern.
func NewNet(enc backbone.Encoder, p *Params) (*Net, error) {
	if enc == nil {
		return nil, ErrNilBackbone
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &Net{
		backbone: enc,
		params:   p,
		dctW: blas32.General{
			Rows:   EmbedDim,
			Cols:   p.DCTWidth(),
			Stride: p.DCTWidth(),
			Data:   p.DCTWeight,
		},
	}, nil
}

// Params gibt die geladenen Parameter zurueck.
func (n *Net) Params() *Params {
	return n.params
}

// Synchronize wartet auf ausstehende Backbone-Arbeit (Kernel-Queues
// auf Beschleunigern); auf der CPU ein No-op.
func (n *Net) Synchronize() {
	n.backbone.Synchronize()
}

// Forward fuehrt einen Batch durch alle drei Zweige und die Fusion.
func (n *Net) Forward(images [][]float32, tokens [][]int32, dcts [][]float32) (*Output, error) {
	b := len(images)
	if len(tokens) != b || len(dcts) != b {
		return nil, ErrBatchMismatch
	}

	imgEmb, err := n.backbone.EncodeImageBatch(images)
	if err != nil {
		return nil, fmt.Errorf("image branch: %w", err)
	}
	txtEmb, err := n.backbone.EncodeTextBatch(tokens)
	if err != nil {
		return nil, fmt.Errorf("text branch: %w", err)
	}

	out := &Output{
		Logits:    make([][]float32, b),
		Attention: make([][][]float32, b),
	}

	for i := 0; i < b; i++ {
		dctEmb, err := n.embedDCT(dcts[i])
		if err != nil {
			return nil, err
		}

		// Modalitaets-Sequenz: Bild, DCT, Text
		seq := make([]float32, NumModalities*EmbedDim)
		copy(seq[0*EmbedDim:], imgEmb[i])
		copy(seq[1*EmbedDim:], dctEmb)
		copy(seq[2*EmbedDim:], txtEmb[i])

		logits, attn := n.params.attendAndClassify(seq)
		out.Logits[i] = logits
		out.Attention[i] = attn
	}

	return out, nil
}

// embedDCT bildet einen DCT-Tensor auf ein 768er Embedding ab:
// log(|x| + 1e-12), Standardisierung pro Sample, Linearprojektion, ReLU.
func (n *Net) embedDCT(dct []float32) ([]float32, error) {
	if len(dct) != n.dctW.Cols {
		return nil, fmt.Errorf("fusion: dct tensor has %d values, want %d", len(dct), n.dctW.Cols)
	}

	x := make([]float32, len(dct))
	for i, v := range dct {
		x[i] = float32(math.Log(math.Abs(float64(v)) + logEps))
	}
	Standardize(x)

	emb := make([]float32, EmbedDim)
	blas32.Gemv(blas.NoTrans, 1,
		n.dctW,
		blas32.Vector{N: n.dctW.Cols, Inc: 1, Data: x},
		0,
		blas32.Vector{N: EmbedDim, Inc: 1, Data: emb},
	)

	// ReLU
	for i, v := range emb {
		if v < 0 {
			emb[i] = 0
		}
	}
	return emb, nil
}

// Standardize skaliert einen Tensor in-place auf Mittelwert 0 und
// Standardabweichung 1, rein instanzweise (keine Batch-Statistik,
// keine laufenden Mittelwerte). Stichproben-Std mit Nenner n-1.
func Standardize(x []float32) {
	n := float64(len(x))
	if n < 2 {
		return
	}

	var sum float64
	for _, v := range x {
		sum += float64(v)
	}
	mean := sum / n

	var sq float64
	for _, v := range x {
		d := float64(v) - mean
		sq += d * d
	}
	std := math.Sqrt(sq / (n - 1))
	if std == 0 {
		for i := range x {
			x[i] = 0
		}
		return
	}

	for i := range x {
		x[i] = float32((float64(x[i]) - mean) / std)
	}
}
