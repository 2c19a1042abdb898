// MODUL: evaluate_test
// ZWECK: Tests fuer Metriken, Evaluationsschleife, Probe, Report, Store
// INPUT: Synthetische Batch-Quelle und kleiner Parameter-Satz
// OUTPUT: -
// NEBENEFFEKTE: Temporaere SQLite-Datei via t.TempDir
// ABHAENGIGKEITEN: testify, backbone (static-Encoder)

package evaluate

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Magnet300/CAMME/backbone"
	"github.com/Magnet300/CAMME/dataset"
	"github.com/Magnet300/CAMME/fusion"
	"github.com/Magnet300/CAMME/tokenizer"
)

// ============================================================
// Metriken
// ============================================================

func TestConfusionAdd(t *testing.T) {
	var c Confusion
	c.Add(0, 0) // tp
	c.Add(1, 1) // tn
	c.Add(0, 1) // fp
	c.Add(1, 0) // fn
	c.Add(0, 0) // tp

	require.Equal(t, Confusion{TP: 2, TN: 1, FP: 1, FN: 1}, c)
	require.Equal(t, 5, c.Total())
}

func TestConfusionMetrics(t *testing.T) {
	c := Confusion{TP: 8, TN: 6, FP: 2, FN: 4}

	require.InDelta(t, 0.8, c.Precision(), 1e-6) // 8/10
	require.InDelta(t, 8.0/12, c.Recall(), 1e-6) // 8/12
	p, r := c.Precision(), c.Recall()
	require.InDelta(t, 2*p*r/(p+r), c.F1(), 1e-6)

	// Accuracy exakt (tp+tn)/total, ohne eps im Nenner.
	require.Equal(t, 0.7, c.Accuracy()) // 14/20
}

func TestConfusionZeroSafe(t *testing.T) {
	var c Confusion
	require.Zero(t, c.Precision())
	require.Zero(t, c.Recall())
	require.Zero(t, c.F1())
	require.Zero(t, c.Accuracy())
}

func TestArgmax(t *testing.T) {
	require.Equal(t, 0, Argmax([]float32{2, 1}))
	require.Equal(t, 1, Argmax([]float32{-3, 0.5}))
	require.Equal(t, 0, Argmax([]float32{1, 1})) // Gleichstand: erster Index
}

func TestCrossEntropy(t *testing.T) {
	// Gleiche Logits: -log(0.5) = ln 2
	require.InDelta(t, math.Ln2, CrossEntropy([]float32{0, 0}, 0), 1e-6)
	require.InDelta(t, math.Ln2, CrossEntropy([]float32{0, 0}, 1), 1e-6)

	// Stark getrennte Logits: korrekte Klasse nahe 0, falsche gross
	require.Less(t, CrossEntropy([]float32{10, -10}, 0), 1e-6)
	require.Greater(t, CrossEntropy([]float32{10, -10}, 1), 10.0)

	// Numerisch stabil bei grossen Werten
	require.False(t, math.IsNaN(CrossEntropy([]float32{1000, -1000}, 0)))
}

// ============================================================
// Schleife und Probe
// ============================================================

const testDCTWidth = 16

// fakeSource liefert vorgebaute Batches in fester Reihenfolge.
type fakeSource struct {
	batches []*dataset.Batch
}

func (f *fakeSource) NumBatches() int { return len(f.batches) }

func (f *fakeSource) Stream(ctx context.Context) (<-chan *dataset.Batch, func() error) {
	ch := make(chan *dataset.Batch)
	done := make(chan error, 1)
	go func() {
		defer close(ch)
		for _, b := range f.batches {
			select {
			case ch <- b:
			case <-ctx.Done():
				done <- ctx.Err()
				return
			}
		}
		done <- nil
	}()
	return ch, func() error { return <-done }
}

func testSource(numBatches, batchSize int) *fakeSource {
	rng := rand.New(rand.NewSource(11))
	src := &fakeSource{}
	for i := 0; i < numBatches; i++ {
		b := &dataset.Batch{Index: i}
		for j := 0; j < batchSize; j++ {
			img := make([]float32, 48)
			dct := make([]float32, testDCTWidth)
			for k := range img {
				img[k] = float32(rng.Float64())
			}
			for k := range dct {
				dct[k] = float32(rng.NormFloat64())
			}
			b.Images = append(b.Images, img)
			b.DCTs = append(b.DCTs, dct)
			b.Labels = append(b.Labels, j%2)
			b.Captions = append(b.Captions, fmt.Sprintf("bild %c", 'a'+rune(j)))
			b.Paths = append(b.Paths, fmt.Sprintf("test/%d_%d.png", i, j))
		}
		src.batches = append(src.batches, b)
	}
	return src
}

func testParams() *fusion.Params {
	rng := rand.New(rand.NewSource(7))
	fill := func(n int) []float32 {
		out := make([]float32, n)
		for i := range out {
			out[i] = float32(rng.NormFloat64()) * 0.05
		}
		return out
	}
	return &fusion.Params{
		DCTWeight:        fill(fusion.EmbedDim * testDCTWidth),
		InProjWeight:     fill(3 * fusion.EmbedDim * fusion.EmbedDim),
		InProjBias:       fill(3 * fusion.EmbedDim),
		OutProjWeight:    fill(fusion.EmbedDim * fusion.EmbedDim),
		OutProjBias:      fill(fusion.EmbedDim),
		ClassifierWeight: fill(fusion.NumClasses * fusion.EmbedDim),
		ClassifierBias:   fill(fusion.NumClasses),
	}
}

func testTokenizer(t *testing.T) *tokenizer.Tokenizer {
	t.Helper()
	vocab := map[string]int32{
		tokenizer.StartToken: 1,
		tokenizer.EndToken:   2,
	}
	id := int32(10)
	for c := 'a'; c <= 'z'; c++ {
		vocab[string(c)] = id
		id++
		vocab[string(c)+"</w>"] = id
		id++
	}
	tok, err := tokenizer.New(vocab, nil)
	require.NoError(t, err)
	return tok
}

func testEvaluator(t *testing.T, src BatchSource) *Evaluator {
	t.Helper()
	enc, err := backbone.Open("static", "")
	require.NoError(t, err)
	t.Cleanup(func() { enc.Close() })

	net, err := fusion.NewNet(enc, testParams())
	require.NoError(t, err)

	return &Evaluator{
		Net:       net,
		Tokenizer: testTokenizer(t),
		Loader:    src,
		Device:    backbone.ResolveDevice("cpu"),
	}
}

func TestEvaluatorRun(t *testing.T) {
	e := testEvaluator(t, testSource(4, 4))

	var progress []int
	e.Progress = func(done, total int) {
		require.Equal(t, 4, total)
		progress = append(progress, done)
	}

	res, err := e.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 4, res.Batches)
	require.Equal(t, 16, res.Samples)
	require.Equal(t, 4, res.BatchSize)
	require.Equal(t, 16, res.Confusion.Total())
	require.Equal(t, []int{1, 2, 3, 4}, progress)

	require.Len(t, res.Records, 16)
	require.Equal(t, "test/0_0.png", res.Records[0].Path)
	for _, r := range res.Records {
		require.Contains(t, []int{0, 1}, r.Pred)
	}

	require.False(t, math.IsNaN(res.Loss))
	require.Greater(t, res.Loss, 0.0)
	require.Greater(t, res.Inference, time.Duration(0))
	require.Greater(t, res.PerSampleMS(), 0.0)
	require.Greater(t, res.PerBatchMS(), 0.0)
	require.Greater(t, res.Throughput(), 0.0)
}

func TestEvaluatorRunFewBatchesThanWarmup(t *testing.T) {
	// Weniger Batches als Warmup-Vorgabe: trotzdem vollstaendige Messung
	e := testEvaluator(t, testSource(2, 3))
	e.WarmupBatches = 5

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, res.Batches)
	require.Equal(t, 6, res.Samples)
}

func TestEvaluatorRunDeterministicCounts(t *testing.T) {
	a, err := testEvaluator(t, testSource(3, 4)).Run(context.Background())
	require.NoError(t, err)
	b, err := testEvaluator(t, testSource(3, 4)).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, a.Confusion, b.Confusion)
	require.InDelta(t, a.Loss, b.Loss, 1e-9)
}

func TestEvaluatorRunEmpty(t *testing.T) {
	e := testEvaluator(t, &fakeSource{})
	_, err := e.Run(context.Background())
	require.ErrorIs(t, err, ErrNoBatches)
}

func TestProbe(t *testing.T) {
	e := testEvaluator(t, testSource(3, 4))

	res, err := e.Probe(context.Background(), 2, 20)
	require.NoError(t, err)

	require.Equal(t, 20, res.Runs)
	require.Equal(t, 4, res.BatchSize)
	require.Greater(t, res.MeanMS, 0.0)
	require.GreaterOrEqual(t, res.StdMS, 0.0)
	require.Greater(t, res.MedianMS, 0.0)
	require.InDelta(t, res.MeanMS/4, res.PerSampleMS, 1e-9)
	require.Greater(t, res.Throughput, 0.0)
}

// countingEncoder zaehlt EncodeBatch-Aufrufe.
type countingEncoder struct {
	inner CaptionEncoder
	calls int
}

func (c *countingEncoder) EncodeBatch(captions []string, n int) [][]int32 {
	c.calls++
	return c.inner.EncodeBatch(captions, n)
}

func TestProbeTokenizesOnce(t *testing.T) {
	e := testEvaluator(t, testSource(2, 3))
	enc := &countingEncoder{inner: e.Tokenizer}
	e.Tokenizer = enc

	// Gemessen wird nur der Forward-Pass: die Captions des festen
	// Batches werden genau einmal vorab tokenisiert, unabhaengig von
	// Warmup- und Messwiederholungen.
	_, err := e.Probe(context.Background(), 3, 5)
	require.NoError(t, err)
	require.Equal(t, 1, enc.calls)
}

func TestProbeErrors(t *testing.T) {
	e := testEvaluator(t, testSource(1, 2))
	_, err := e.Probe(context.Background(), 0, 0)
	require.ErrorIs(t, err, ErrNoProbeRuns)

	e = testEvaluator(t, &fakeSource{})
	_, err = e.Probe(context.Background(), 0, 5)
	require.ErrorIs(t, err, ErrNoBatches)
}

// ============================================================
// Report und Store
// ============================================================

func TestReport(t *testing.T) {
	res := &Result{
		Confusion: Confusion{TP: 8, TN: 6, FP: 2, FN: 4},
		Loss:      0.42,
		Samples:   20,
		Batches:   5,
		BatchSize: 4,
		Inference: 200 * time.Millisecond,
	}
	probe := &ProbeResult{Runs: 10, BatchSize: 4, MeanMS: 2.5, StdMS: 0.1, MedianMS: 2.4, PerSampleMS: 0.625, Throughput: 1600}

	var buf bytes.Buffer
	Report(&buf, res, probe)
	out := buf.String()

	require.Contains(t, out, "Precision")
	require.Contains(t, out, "Pro Batch (Groesse 4)")
	require.Contains(t, out, "Timing-Probe")
	// Slash-Zeile: 80.00 / 66.67 / 72.73 / 70.00
	require.Contains(t, out, "80.00 / 66.67 / 72.73 / 70.00")
}

func TestReportWithoutProbe(t *testing.T) {
	var buf bytes.Buffer
	Report(&buf, &Result{Samples: 1, Batches: 1}, nil)
	require.NotContains(t, buf.String(), "Timing-Probe")
}

func TestStoreSaveRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := OpenStore(path)
	require.NoError(t, err)
	defer s.Close()

	res := &Result{
		Confusion: Confusion{TP: 3, TN: 2, FP: 1, FN: 1},
		Records: []Record{
			{Path: "a.png", Label: 0, Pred: 0},
			{Path: "b.png", Label: 1, Pred: 0},
		},
		Loss:      0.3,
		Samples:   7,
		Batches:   2,
		Inference: 100 * time.Millisecond,
	}
	meta := RunMeta{Seed: 24, Backbone: "static", BatchSize: 4, Device: "cpu"}

	id1, err := s.SaveRun(res, nil, meta)
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	id2, err := s.SaveRun(res, &ProbeResult{Runs: 10, BatchSize: 4, MeanMS: 1}, meta)
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	n, err := s.CountRuns()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	preds, err := s.CountPredictions(id1)
	require.NoError(t, err)
	require.Equal(t, 2, preds)
}
