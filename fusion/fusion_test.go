// MODUL: fusion_test
// ZWECK: Tests fuer Standardisierung, Fusions-Kopf und Checkpoint-Laden
// INPUT: Synthetische Parameter und kleine Safetensors-Dateien
// OUTPUT: -
// NEBENEFFEKTE: Temporaere Dateien via t.TempDir
// ABHAENGIGKEITEN: testify, backbone (static-Encoder)

package fusion

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Magnet300/CAMME/backbone"
)

// testParams baut einen kleinen, deterministischen Parameter-Satz.
func testParams(dctWidth int) *Params {
	rng := rand.New(rand.NewSource(7))
	fill := func(n int) []float32 {
		out := make([]float32, n)
		for i := range out {
			out[i] = float32(rng.NormFloat64()) * 0.05
		}
		return out
	}
	return &Params{
		DCTWeight:        fill(EmbedDim * dctWidth),
		InProjWeight:     fill(3 * EmbedDim * EmbedDim),
		InProjBias:       fill(3 * EmbedDim),
		OutProjWeight:    fill(EmbedDim * EmbedDim),
		OutProjBias:      fill(EmbedDim),
		ClassifierWeight: fill(NumClasses * EmbedDim),
		ClassifierBias:   fill(NumClasses),
	}
}

func TestStandardize(t *testing.T) {
	x := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	Standardize(x)

	var sum, sq float64
	for _, v := range x {
		sum += float64(v)
	}
	mean := sum / float64(len(x))
	for _, v := range x {
		d := float64(v) - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(x)-1))

	require.InDelta(t, 0, mean, 1e-6)
	require.InDelta(t, 1, std, 1e-5)
}

func TestStandardizeConstant(t *testing.T) {
	x := []float32{3, 3, 3, 3}
	Standardize(x)
	for _, v := range x {
		require.Zero(t, v)
	}
}

func TestParamsValidate(t *testing.T) {
	p := testParams(16)
	require.NoError(t, p.Validate())
	require.Equal(t, 16, p.DCTWidth())

	bad := testParams(16)
	bad.InProjBias = bad.InProjBias[:10]
	require.ErrorIs(t, bad.Validate(), ErrBadParamShape)

	bad = testParams(16)
	bad.DCTWeight = nil
	require.ErrorIs(t, bad.Validate(), ErrBadParamShape)

	bad = testParams(16)
	bad.DCTWeight = bad.DCTWeight[:EmbedDim+1]
	require.ErrorIs(t, bad.Validate(), ErrBadParamShape)
}

func testEncoder(t *testing.T) backbone.Encoder {
	t.Helper()
	enc, err := backbone.Open("static", "")
	require.NoError(t, err)
	t.Cleanup(func() { enc.Close() })
	return enc
}

func testBatch(rng *rand.Rand, b, dctWidth int) (images [][]float32, tokens [][]int32, dcts [][]float32) {
	for i := 0; i < b; i++ {
		img := make([]float32, 32)
		dct := make([]float32, dctWidth)
		for j := range img {
			img[j] = float32(rng.Float64())
		}
		for j := range dct {
			dct[j] = float32(rng.NormFloat64())
		}
		images = append(images, img)
		tokens = append(tokens, []int32{1, int32(10 + i), 2})
		dcts = append(dcts, dct)
	}
	return
}

func TestNetForward(t *testing.T) {
	const dctWidth = 16
	net, err := NewNet(testEncoder(t), testParams(dctWidth))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	images, tokens, dcts := testBatch(rng, 2, dctWidth)

	out, err := net.Forward(images, tokens, dcts)
	require.NoError(t, err)
	require.Len(t, out.Logits, 2)
	require.Len(t, out.Attention, 2)

	for i := range out.Logits {
		require.Len(t, out.Logits[i], NumClasses)
		for _, v := range out.Logits[i] {
			require.False(t, math.IsNaN(float64(v)))
			require.False(t, math.IsInf(float64(v), 0))
		}

		// Attention: 3x3, Zeilen summieren zu 1 (Softmax)
		require.Len(t, out.Attention[i], NumModalities)
		for _, row := range out.Attention[i] {
			require.Len(t, row, NumModalities)
			var sum float64
			for _, w := range row {
				require.Greater(t, w, float32(0))
				sum += float64(w)
			}
			require.InDelta(t, 1, sum, 1e-4)
		}
	}
}

func TestNetForwardDeterministic(t *testing.T) {
	const dctWidth = 16
	net, err := NewNet(testEncoder(t), testParams(dctWidth))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(9))
	images, tokens, dcts := testBatch(rng, 3, dctWidth)

	a, err := net.Forward(images, tokens, dcts)
	require.NoError(t, err)
	b, err := net.Forward(images, tokens, dcts)
	require.NoError(t, err)
	require.Equal(t, a.Logits, b.Logits)
}

func TestNetForwardBatchMismatch(t *testing.T) {
	net, err := NewNet(testEncoder(t), testParams(16))
	require.NoError(t, err)

	_, err = net.Forward(make([][]float32, 2), make([][]int32, 3), make([][]float32, 2))
	require.ErrorIs(t, err, ErrBatchMismatch)
}

func TestNetForwardBadDCTSize(t *testing.T) {
	net, err := NewNet(testEncoder(t), testParams(16))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	images, tokens, dcts := testBatch(rng, 1, 16)
	dcts[0] = dcts[0][:7]

	_, err = net.Forward(images, tokens, dcts)
	require.Error(t, err)
}

func TestNewNetErrors(t *testing.T) {
	_, err := NewNet(nil, testParams(16))
	require.ErrorIs(t, err, ErrNilBackbone)

	bad := testParams(16)
	bad.ClassifierBias = nil
	_, err = NewNet(testEncoder(t), bad)
	require.ErrorIs(t, err, ErrBadParamShape)
}

// ============================================================
// Safetensors
// ============================================================

// writeSafetensors schreibt einen minimalen Safetensors-Checkpoint.
func writeSafetensors(t *testing.T, path string, tensors map[string][]float32) {
	t.Helper()

	keys := make([]string, 0, len(tensors))
	for _, spec := range paramSpecs {
		if _, ok := tensors[spec.key]; ok {
			keys = append(keys, spec.key)
		}
	}

	header := map[string]safetensorEntry{}
	var offset int64
	for _, k := range keys {
		n := int64(len(tensors[k])) * 4
		header[k] = safetensorEntry{
			DType:   "F32",
			Shape:   []int64{int64(len(tensors[k]))},
			Offsets: [2]int64{offset, offset + n},
		}
		offset += n
	}
	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, binary.Write(f, binary.LittleEndian, uint64(len(headerJSON))))
	_, err = f.Write(headerJSON)
	require.NoError(t, err)
	for _, k := range keys {
		require.NoError(t, binary.Write(f, binary.LittleEndian, tensors[k]))
	}
}

func paramsToTensors(p *Params) map[string][]float32 {
	return map[string][]float32{
		"DCT_Embedder.weight":                   p.DCTWeight,
		"TransformerModel.attn.in_proj_weight":  p.InProjWeight,
		"TransformerModel.attn.in_proj_bias":    p.InProjBias,
		"TransformerModel.attn.out_proj.weight": p.OutProjWeight,
		"TransformerModel.attn.out_proj.bias":   p.OutProjBias,
		"TransformerModel.classifier.weight":    p.ClassifierWeight,
		"TransformerModel.classifier.bias":      p.ClassifierBias,
	}
}

func TestLoadSafetensors(t *testing.T) {
	want := testParams(8)
	path := filepath.Join(t.TempDir(), "ckpt.safetensors")
	writeSafetensors(t, path, paramsToTensors(want))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, want.DCTWeight, got.DCTWeight)
	require.Equal(t, want.InProjWeight, got.InProjWeight)
	require.Equal(t, want.ClassifierBias, got.ClassifierBias)
	require.Equal(t, want.Count(), got.Count())
}

func TestLoadSafetensorsMissingKey(t *testing.T) {
	p := testParams(8)
	tensors := paramsToTensors(p)
	delete(tensors, "TransformerModel.classifier.bias")

	path := filepath.Join(t.TempDir(), "ckpt.safetensors")
	writeSafetensors(t, path, tensors)

	_, err := Load(path)
	require.ErrorIs(t, err, ErrMissingParam)
}

func TestLoadSafetensorsBadShape(t *testing.T) {
	p := testParams(8)
	tensors := paramsToTensors(p)
	tensors["TransformerModel.attn.out_proj.bias"] = tensors["TransformerModel.attn.out_proj.bias"][:5]

	path := filepath.Join(t.TempDir(), "ckpt.safetensors")
	writeSafetensors(t, path, tensors)

	_, err := Load(path)
	require.ErrorIs(t, err, ErrBadParamShape)
}

func TestLoadUnknownExtension(t *testing.T) {
	_, err := Load("model.onnx")
	require.ErrorIs(t, err, ErrBadCheckpoint)
}

func TestParamsCountAndSize(t *testing.T) {
	p := testParams(8)
	want := EmbedDim*8 + 3*EmbedDim*EmbedDim + 3*EmbedDim +
		EmbedDim*EmbedDim + EmbedDim + NumClasses*EmbedDim + NumClasses
	require.Equal(t, want, p.Count())
	require.InDelta(t, float64(want)*4/(1024*1024), p.SizeMB(), 1e-9)
}
