// MODUL: attention
// ZWECK: Multi-Head Cross-Attention ueber die drei Modalitaets-Tokens
// INPUT: Sequenz [3 x 768] (Bild, DCT, Text), Parameter-Satz
// OUTPUT: Klassen-Logits [2] und kopfgemittelte Attention [3 x 3]
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: gonum blas32
// HINWEISE: Query = Key = Value = Modalitaets-Sequenz (Selbst-Attention
// ueber Modalitaeten); Pooling ist das Mittel ueber die 3 Tokens

package fusion

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// Params enthaelt alle trainierten Gewichte des Fusions-Kopfes.
// Layout folgt der PyTorch-Konvention [out, in], row-major.
type Params struct {
	DCTWeight        []float32 // [768, 102400], ohne Bias
	InProjWeight     []float32 // [2304, 768] = [Wq; Wk; Wv]
	InProjBias       []float32 // [2304]
	OutProjWeight    []float32 // [768, 768]
	OutProjBias      []float32 // [768]
	ClassifierWeight []float32 // [2, 768]
	ClassifierBias   []float32 // [2]
}

// ErrBadParamShape zeigt eine Formabweichung beim Laden an.
var ErrBadParamShape = errors.New("fusion: parameter shape mismatch")

// Validate prueft alle Parameter-Formen. Die Eingangsbreite des
// DCT-Projektors ergibt sich aus dem Checkpoint selbst (beim
// trainierten Modell 320*320 = 102400).
func (p *Params) Validate() error {
	if len(p.DCTWeight) == 0 || len(p.DCTWeight)%EmbedDim != 0 {
		return fmt.Errorf("%w: DCT_Embedder.weight has %d values, want a positive multiple of %d",
			ErrBadParamShape, len(p.DCTWeight), EmbedDim)
	}
	checks := []struct {
		name string
		got  int
		want int
	}{
		{"attn.in_proj_weight", len(p.InProjWeight), 3 * EmbedDim * EmbedDim},
		{"attn.in_proj_bias", len(p.InProjBias), 3 * EmbedDim},
		{"attn.out_proj.weight", len(p.OutProjWeight), EmbedDim * EmbedDim},
		{"attn.out_proj.bias", len(p.OutProjBias), EmbedDim},
		{"classifier.weight", len(p.ClassifierWeight), NumClasses * EmbedDim},
		{"classifier.bias", len(p.ClassifierBias), NumClasses},
	}
	for _, c := range checks {
		if c.got != c.want {
			return fmt.Errorf("%w: %s has %d values, want %d", ErrBadParamShape, c.name, c.got, c.want)
		}
	}
	return nil
}

// DCTWidth gibt die Eingangsbreite des DCT-Projektors zurueck.
func (p *Params) DCTWidth() int {
	return len(p.DCTWeight) / EmbedDim
}

// Count gibt die Gesamtzahl der Parameter-Skalare zurueck.
func (p *Params) Count() int {
	return len(p.DCTWeight) + len(p.InProjWeight) + len(p.InProjBias) +
		len(p.OutProjWeight) + len(p.OutProjBias) +
		len(p.ClassifierWeight) + len(p.ClassifierBias)
}

// SizeMB gibt die Parametergroesse in Megabyte zurueck (float32).
func (p *Params) SizeMB() float64 {
	return float64(p.Count()) * 4 / (1024 * 1024)
}

// attendAndClassify fuehrt Attention, Pooling und Klassifikation fuer
// eine einzelne Modalitaets-Sequenz aus.
func (p *Params) attendAndClassify(seq []float32) ([]float32, [][]float32) {
	x := blas32.General{Rows: NumModalities, Cols: EmbedDim, Stride: EmbedDim, Data: seq}

	// QKV-Projektion: [3 x 2304] = X * W^T + b
	qkv := blas32.General{
		Rows:   NumModalities,
		Cols:   3 * EmbedDim,
		Stride: 3 * EmbedDim,
		Data:   make([]float32, NumModalities*3*EmbedDim),
	}
	w := blas32.General{Rows: 3 * EmbedDim, Cols: EmbedDim, Stride: EmbedDim, Data: p.InProjWeight}
	blas32.Gemm(blas.NoTrans, blas.Trans, 1, x, w, 0, qkv)
	for t := 0; t < NumModalities; t++ {
		row := qkv.Data[t*qkv.Stride : t*qkv.Stride+3*EmbedDim]
		for j, b := range p.InProjBias {
			row[j] += b
		}
	}

	// Attention pro Kopf; Kontext wird kopfweise in ctx konkateniert
	ctx := make([]float32, NumModalities*EmbedDim)
	attnAvg := make([][]float32, NumModalities)
	for i := range attnAvg {
		attnAvg[i] = make([]float32, NumModalities)
	}

	scale := 1 / math.Sqrt(float64(HeadDim))
	for h := 0; h < NumHeads; h++ {
		qOff := h * HeadDim
		kOff := EmbedDim + h*HeadDim
		vOff := 2*EmbedDim + h*HeadDim

		// Scores [3 x 3] mit Softmax pro Zeile
		var scores [NumModalities][NumModalities]float64
		for i := 0; i < NumModalities; i++ {
			qi := qkv.Data[i*qkv.Stride+qOff : i*qkv.Stride+qOff+HeadDim]
			maxScore := math.Inf(-1)
			for j := 0; j < NumModalities; j++ {
				kj := qkv.Data[j*qkv.Stride+kOff : j*qkv.Stride+kOff+HeadDim]
				var dot float64
				for d := 0; d < HeadDim; d++ {
					dot += float64(qi[d]) * float64(kj[d])
				}
				scores[i][j] = dot * scale
				if scores[i][j] > maxScore {
					maxScore = scores[i][j]
				}
			}

			var sum float64
			for j := 0; j < NumModalities; j++ {
				scores[i][j] = math.Exp(scores[i][j] - maxScore)
				sum += scores[i][j]
			}
			for j := 0; j < NumModalities; j++ {
				scores[i][j] /= sum
				attnAvg[i][j] += float32(scores[i][j] / NumHeads)
			}
		}

		// Kontext: scores * V
		for i := 0; i < NumModalities; i++ {
			dst := ctx[i*EmbedDim+h*HeadDim : i*EmbedDim+(h+1)*HeadDim]
			for j := 0; j < NumModalities; j++ {
				vj := qkv.Data[j*qkv.Stride+vOff : j*qkv.Stride+vOff+HeadDim]
				s := float32(scores[i][j])
				for d := 0; d < HeadDim; d++ {
					dst[d] += s * vj[d]
				}
			}
		}
	}

	// Output-Projektion: [3 x 768] = Ctx * Wout^T + b
	ctxM := blas32.General{Rows: NumModalities, Cols: EmbedDim, Stride: EmbedDim, Data: ctx}
	proj := blas32.General{
		Rows:   NumModalities,
		Cols:   EmbedDim,
		Stride: EmbedDim,
		Data:   make([]float32, NumModalities*EmbedDim),
	}
	wOut := blas32.General{Rows: EmbedDim, Cols: EmbedDim, Stride: EmbedDim, Data: p.OutProjWeight}
	blas32.Gemm(blas.NoTrans, blas.Trans, 1, ctxM, wOut, 0, proj)

	// Mittel ueber die Modalitaets-Tokens plus Bias
	pooled := make([]float32, EmbedDim)
	for t := 0; t < NumModalities; t++ {
		row := proj.Data[t*proj.Stride : t*proj.Stride+EmbedDim]
		for d := 0; d < EmbedDim; d++ {
			pooled[d] += row[d] / NumModalities
		}
	}
	for d := 0; d < EmbedDim; d++ {
		pooled[d] += p.OutProjBias[d]
	}

	// Klassifikation: [2] = pooled * Wcls^T + b
	logits := make([]float32, NumClasses)
	for c := 0; c < NumClasses; c++ {
		w := p.ClassifierWeight[c*EmbedDim : (c+1)*EmbedDim]
		var acc float64
		for d := 0; d < EmbedDim; d++ {
			acc += float64(w[d]) * float64(pooled[d])
		}
		logits[c] = float32(acc) + p.ClassifierBias[c]
	}

	return logits, attnAvg
}
