// MODUL: static
// ZWECK: Deterministischer Pseudo-Encoder fuer Trockenlaeufe und Tests
// INPUT: Bild-Tensoren bzw. Token-Sequenzen
// OUTPUT: Reproduzierbare, normierte 768er Embeddings
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: hash/fnv, math/rand (stdlib), seed
// HINWEISE: Embeddings haengen nur vom Eingabeinhalt und dem Prozess-Seed
// ab; zwei identische Batches liefern identische Embeddings

package backbone

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/Magnet300/CAMME/seed"
)

func init() {
	// Der Encoder haengt nur vom konfigurierten Seed ab, nicht vom
	// fortschreitenden RNG-Strom: zwei Open-Aufrufe liefern identische
	// Embeddings fuer identische Eingaben.
	RegisterToDefault("static", func(modelPath string, opts LoadOptions) (Encoder, error) {
		return NewStaticEncoder(seed.Value()), nil
	})
}

// StaticEncoder erzeugt inhaltsabhaengige Pseudo-Embeddings.
// Er dient als Backbone-Ersatz wo keine CLIP-Bibliothek verfuegbar ist:
// die Pipeline bleibt vollstaendig ausfuehrbar und deterministisch.
type StaticEncoder struct {
	seed   int64
	closed bool
}

// NewStaticEncoder erstellt einen StaticEncoder mit festem Seed.
func NewStaticEncoder(s int64) *StaticEncoder {
	return &StaticEncoder{seed: s}
}

// EncodeImageBatch bildet jeden CHW-Tensor auf ein Embedding ab.
func (e *StaticEncoder) EncodeImageBatch(images [][]float32) ([][]float32, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if len(images) == 0 {
		return nil, ErrEmptyBatch
	}

	out := make([][]float32, len(images))
	for i, img := range images {
		h := fnv.New64a()
		var buf [4]byte
		for _, v := range img {
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
			h.Write(buf[:])
		}
		out[i] = e.embed(h.Sum64())
	}
	return out, nil
}

// EncodeTextBatch bildet jede Token-Sequenz auf ein Embedding ab.
func (e *StaticEncoder) EncodeTextBatch(tokens [][]int32) ([][]float32, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if len(tokens) == 0 {
		return nil, ErrEmptyBatch
	}

	out := make([][]float32, len(tokens))
	for i, seq := range tokens {
		h := fnv.New64a()
		var buf [4]byte
		for _, id := range seq {
			binary.LittleEndian.PutUint32(buf[:], uint32(id))
			h.Write(buf[:])
		}
		out[i] = e.embed(h.Sum64())
	}
	return out, nil
}

// embed erzeugt ein normiertes Embedding aus einem Inhalts-Hash.
func (e *StaticEncoder) embed(contentHash uint64) []float32 {
	rng := rand.New(rand.NewSource(int64(contentHash) ^ e.seed))

	vec := make([]float32, EmbeddingDim)
	var norm float64
	for i := range vec {
		v := rng.NormFloat64()
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= float32(norm)
		}
	}
	return vec
}

// Synchronize ist ein No-op; der StaticEncoder arbeitet synchron.
func (e *StaticEncoder) Synchronize() {}

// Close markiert den Encoder als geschlossen.
func (e *StaticEncoder) Close() error {
	if e.closed {
		return ErrClosed
	}
	e.closed = true
	return nil
}

// Info gibt Metadaten zurueck.
func (e *StaticEncoder) Info() ModelInfo {
	return ModelInfo{
		Name:          "static",
		Type:          "static",
		EmbeddingDim:  EmbeddingDim,
		ImageSize:     320,
		ContextLength: 77,
	}
}
