// MODUL: loop
// ZWECK: Evaluationsschleife: Warmup, gemessener Durchlauf, Aggregation
// INPUT: Fusions-Netz, Tokenizer, Batch-Loader, Geraet
// OUTPUT: Result mit Konfusionszaehlern, Loss und Timing-Summen
// NEBENEFFEKTE: Fortschritts-Callback, strukturierte Logs
// ABHAENGIGKEITEN: fusion, tokenizer, dataset, backbone
// HINWEISE: Warmup-Batches laufen einmal durch das Netz und werden
// verworfen; danach wird JEDER Batch genau einmal gemessen. Fehler
// eines Batches brechen den Lauf ab, nichts wird uebersprungen.

package evaluate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Magnet300/CAMME/backbone"
	"github.com/Magnet300/CAMME/dataset"
	"github.com/Magnet300/CAMME/fusion"
	"github.com/Magnet300/CAMME/tokenizer"
)

// DefaultWarmupBatches primt Caches und Kernel vor der Messung.
const DefaultWarmupBatches = 3

var ErrNoBatches = errors.New("evaluate: loader produced no batches")

// BatchSource liefert geordnete Batches; dataset.Loader erfuellt es.
type BatchSource interface {
	Stream(ctx context.Context) (<-chan *dataset.Batch, func() error)
	NumBatches() int
}

// CaptionEncoder tokenisiert Captions zu festen Sequenzen;
// tokenizer.Tokenizer erfuellt es.
type CaptionEncoder interface {
	EncodeBatch(captions []string, n int) [][]int32
}

// Evaluator fuehrt den Messdurchlauf ueber einen Test-Split aus.
type Evaluator struct {
	Net       *fusion.Net
	Tokenizer CaptionEncoder
	Loader    BatchSource
	Device    backbone.Device

	// WarmupBatches <= 0 bedeutet DefaultWarmupBatches.
	WarmupBatches int

	// Progress wird nach jedem gemessenen Batch gerufen (optional).
	Progress func(done, total int)
}

// Record haelt die Vorhersage eines einzelnen Samples fest.
type Record struct {
	Path  string
	Label int
	Pred  int
}

// Result sind die aggregierten Werte eines kompletten Durchlaufs.
type Result struct {
	Confusion Confusion

	// Records enthaelt Pfad, Label und Vorhersage pro Sample,
	// in Dataset-Reihenfolge.
	Records []Record

	// Loss ist die mittlere Cross-Entropy ueber alle Samples.
	Loss float64

	Samples int
	Batches int

	// BatchSize ist die volle Batch-Groesse des Laufs (der letzte
	// Batch darf kleiner sein).
	BatchSize int

	// Inference ist die reine Forward-Zeit ueber alle Batches.
	Inference time.Duration
}

// PerSampleMS gibt die mittlere Latenz pro Sample in Millisekunden.
func (r *Result) PerSampleMS() float64 {
	if r.Samples == 0 {
		return 0
	}
	return r.Inference.Seconds() * 1000 / float64(r.Samples)
}

// PerBatchMS gibt die mittlere Latenz pro Batch in Millisekunden.
func (r *Result) PerBatchMS() float64 {
	if r.Batches == 0 {
		return 0
	}
	return r.Inference.Seconds() * 1000 / float64(r.Batches)
}

// Throughput gibt Samples pro Sekunde zurueck.
func (r *Result) Throughput() float64 {
	if r.Inference <= 0 {
		return 0
	}
	return float64(r.Samples) / r.Inference.Seconds()
}

// Run fuehrt Warmup und Messdurchlauf aus.
func (e *Evaluator) Run(ctx context.Context) (*Result, error) {
	warmup := e.WarmupBatches
	if warmup <= 0 {
		warmup = DefaultWarmupBatches
	}

	if err := e.warmup(ctx, warmup); err != nil {
		return nil, fmt.Errorf("warmup: %w", err)
	}
	return e.measure(ctx)
}

// forward tokenisiert die Captions und laesst den Batch durchs Netz.
func (e *Evaluator) forward(b *dataset.Batch) (*fusion.Output, error) {
	tokens := e.Tokenizer.EncodeBatch(b.Captions, tokenizer.ContextLength)
	out, err := e.Net.Forward(b.Images, tokens, b.DCTs)
	if err != nil {
		return nil, fmt.Errorf("batch %d: %w", b.Index, err)
	}
	return out, nil
}

// warmup laesst die ersten Batches ungemessen durch das Netz.
func (e *Evaluator) warmup(ctx context.Context, n int) error {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	batches, wait := e.Loader.Stream(wctx)
	done := 0
	for b := range batches {
		if _, err := e.forward(b); err != nil {
			return err
		}
		done++
		if done >= n {
			cancel()
			break
		}
	}
	for range batches {
	}

	// Abbruch nach n Batches ist hier der Normalfall.
	if err := wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Debug("warmup abgeschlossen", "batches", done)
	return nil
}

// measure iteriert jeden Batch genau einmal und akkumuliert Zaehler,
// Loss und reine Forward-Zeit.
func (e *Evaluator) measure(ctx context.Context) (*Result, error) {
	batches, wait := e.Loader.Stream(ctx)
	total := e.Loader.NumBatches()

	res := &Result{}
	var lossSum float64

	for b := range batches {
		tokens := e.Tokenizer.EncodeBatch(b.Captions, tokenizer.ContextLength)

		if e.Device.CanSynchronize {
			e.Net.Synchronize()
		}
		start := time.Now()
		out, err := e.Net.Forward(b.Images, tokens, b.DCTs)
		if e.Device.CanSynchronize {
			e.Net.Synchronize()
		}
		elapsed := time.Since(start)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", b.Index, err)
		}

		for i, label := range b.Labels {
			pred := Argmax(out.Logits[i])
			res.Confusion.Add(pred, label)
			lossSum += CrossEntropy(out.Logits[i], label)

			var path string
			if i < len(b.Paths) {
				path = b.Paths[i]
			}
			res.Records = append(res.Records, Record{Path: path, Label: label, Pred: pred})
		}

		res.Samples += b.Size()
		res.Batches++
		if b.Size() > res.BatchSize {
			res.BatchSize = b.Size()
		}
		res.Inference += elapsed

		if e.Progress != nil {
			e.Progress(res.Batches, total)
		}
	}

	if err := wait(); err != nil {
		return nil, err
	}
	if res.Batches == 0 {
		return nil, ErrNoBatches
	}

	res.Loss = lossSum / float64(res.Samples)
	slog.Debug("messung abgeschlossen",
		"batches", res.Batches,
		"samples", res.Samples,
		"inference", res.Inference,
	)
	return res, nil
}
