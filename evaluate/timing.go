// MODUL: timing
// ZWECK: Timing-Probe: wiederholte Forward-Passes auf EINEM festen Batch
// INPUT: Evaluator (Netz, Loader, Geraet), Warmup- und Messwiederholungen
// OUTPUT: Mittelwert/Std/Median pro Batch, Zeit pro Sample, Durchsatz
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: gonum stat
// HINWEISE: Isoliert die reine Modell-Latenz von Laden und Warmup;
// die Schleifenmessung in loop.go enthaelt dagegen jeden Batch genau einmal

package evaluate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Magnet300/CAMME/dataset"
	"github.com/Magnet300/CAMME/tokenizer"
)

// Voreinstellungen der Probe.
const (
	DefaultProbeWarmup = 10
	DefaultProbeRuns   = 100
)

var ErrNoProbeRuns = errors.New("evaluate: timing probe needs at least one run")

// ProbeResult sind die Statistiken der wiederholten Messungen.
type ProbeResult struct {
	Runs      int
	BatchSize int

	MeanMS   float64
	StdMS    float64
	MedianMS float64

	// PerSampleMS ist MeanMS geteilt durch die Batch-Groesse.
	PerSampleMS float64
	// Throughput ist Samples pro Sekunde bei mittlerer Latenz.
	Throughput float64
}

// Probe zieht genau einen Batch, verwirft den Rest des Streams und
// misst wiederholte Forward-Passes auf diesem festen Batch.
func (e *Evaluator) Probe(ctx context.Context, warmup, runs int) (*ProbeResult, error) {
	if warmup < 0 {
		warmup = DefaultProbeWarmup
	}
	if runs <= 0 {
		return nil, ErrNoProbeRuns
	}

	b, err := e.firstBatch(ctx)
	if err != nil {
		return nil, err
	}

	// Tokenisierung einmal vorab: gemessen wird nur der Forward-Pass.
	tokens := e.Tokenizer.EncodeBatch(b.Captions, tokenizer.ContextLength)

	for i := 0; i < warmup; i++ {
		if _, err := e.Net.Forward(b.Images, tokens, b.DCTs); err != nil {
			return nil, fmt.Errorf("probe warmup: %w", err)
		}
	}

	durationsMS := make([]float64, 0, runs)
	for i := 0; i < runs; i++ {
		if e.Device.CanSynchronize {
			e.Net.Synchronize()
		}
		start := time.Now()
		_, err := e.Net.Forward(b.Images, tokens, b.DCTs)
		if e.Device.CanSynchronize {
			e.Net.Synchronize()
		}
		if err != nil {
			return nil, fmt.Errorf("probe run %d: %w", i, err)
		}
		durationsMS = append(durationsMS, time.Since(start).Seconds()*1000)
	}

	sort.Float64s(durationsMS)
	mean := stat.Mean(durationsMS, nil)
	std := 0.0
	if runs > 1 {
		std = stat.StdDev(durationsMS, nil)
	}
	res := &ProbeResult{
		Runs:        runs,
		BatchSize:   b.Size(),
		MeanMS:      mean,
		StdMS:       std,
		MedianMS:    stat.Quantile(0.5, stat.Empirical, durationsMS, nil),
		PerSampleMS: mean / float64(b.Size()),
	}
	if mean > 0 {
		res.Throughput = float64(b.Size()) * 1000 / mean
	}
	return res, nil
}

// firstBatch liefert den ersten Batch des Loaders.
func (e *Evaluator) firstBatch(ctx context.Context) (*dataset.Batch, error) {
	bctx, cancel := context.WithCancel(ctx)
	defer cancel()

	batches, wait := e.Loader.Stream(bctx)
	var first *dataset.Batch
	for b := range batches {
		first = b
		cancel()
		break
	}
	for range batches {
	}

	if err := wait(); err != nil && !errors.Is(err, context.Canceled) {
		return nil, err
	}
	if first == nil {
		return nil, ErrNoBatches
	}
	return first, nil
}
