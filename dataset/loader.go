// MODUL: loader
// ZWECK: Paralleler, geordneter Batch-Loader ueber dem Dataset
// INPUT: Dataset, Batch-Groesse, Worker-Anzahl
// OUTPUT: Kanal mit Batches in strikter Index-Reihenfolge
// NEBENEFFEKTE: Startet Worker-Goroutinen
// ABHAENGIGKEITEN: golang.org/x/sync/errgroup (extern)
// HINWEISE: Der erste Fehler bricht den gesamten Strom ab (kein Skip)

package dataset

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Batch ist eine geordnete Gruppe von bis zu BatchSize Samples.
type Batch struct {
	Index    int
	Images   [][]float32
	DCTs     [][]float32
	Labels   []int
	Captions []string
	Paths    []string
}

// Size gibt die Anzahl der Samples im Batch zurueck.
func (b *Batch) Size() int {
	return len(b.Labels)
}

// Loader liefert Batches in fester Reihenfolge; die Dekodierung der
// Batches laeuft parallel in einem begrenzten Worker-Pool.
type Loader struct {
	ds        *Dataset
	batchSize int
	workers   int
}

// NewLoader erstellt einen Loader.
func NewLoader(ds *Dataset, batchSize, workers int) (*Loader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("loader: batch size must be > 0, got %d", batchSize)
	}
	if workers <= 0 {
		workers = 1
	}
	return &Loader{ds: ds, batchSize: batchSize, workers: workers}, nil
}

// NumBatches gibt die Anzahl der Batches zurueck.
func (l *Loader) NumBatches() int {
	return (l.ds.Len() + l.batchSize - 1) / l.batchSize
}

// BatchSize gibt die konfigurierte Batch-Groesse zurueck.
func (l *Loader) BatchSize() int {
	return l.batchSize
}

// Stream startet die Worker und liefert Batches in Index-Reihenfolge.
// Nach dem Schliessen des Kanals muss die zurueckgegebene Wait-Funktion
// aufgerufen werden; sie liefert den ersten aufgetretenen Fehler.
func (l *Loader) Stream(ctx context.Context) (<-chan *Batch, func() error) {
	out := make(chan *Batch, l.workers)
	unordered := make(chan *Batch, l.workers)
	jobs := make(chan int)

	g, gctx := errgroup.WithContext(ctx)

	// Produzent: Batch-Indizes verteilen
	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < l.NumBatches(); i++ {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	// Worker-Pool: Batches parallel laden
	workers, wctx := errgroup.WithContext(gctx)
	for w := 0; w < l.workers; w++ {
		workers.Go(func() error {
			for idx := range jobs {
				b, err := l.loadBatch(idx)
				if err != nil {
					return err
				}
				select {
				case unordered <- b:
				case <-wctx.Done():
					return wctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(unordered)
		return workers.Wait()
	})

	// Umsortierung: Batches strikt nach Index ausliefern
	g.Go(func() error {
		defer close(out)
		pending := make(map[int]*Batch)
		next := 0
		for b := range unordered {
			pending[b.Index] = b
			for {
				nb, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				select {
				case out <- nb:
				case <-gctx.Done():
					return gctx.Err()
				}
				next++
			}
		}
		return nil
	})

	return out, g.Wait
}

// loadBatch laedt die Samples eines Batch-Index sequenziell.
func (l *Loader) loadBatch(idx int) (*Batch, error) {
	start := idx * l.batchSize
	end := start + l.batchSize
	if end > l.ds.Len() {
		end = l.ds.Len()
	}

	n := end - start
	b := &Batch{
		Index:    idx,
		Images:   make([][]float32, 0, n),
		DCTs:     make([][]float32, 0, n),
		Labels:   make([]int, 0, n),
		Captions: make([]string, 0, n),
		Paths:    make([]string, 0, n),
	}

	for i := start; i < end; i++ {
		item, err := l.ds.Item(i)
		if err != nil {
			return nil, err
		}
		b.Images = append(b.Images, item.Image)
		b.DCTs = append(b.DCTs, item.DCT)
		b.Labels = append(b.Labels, item.Label)
		b.Captions = append(b.Captions, item.Caption)
		b.Paths = append(b.Paths, l.ds.Sample(i).Path)
	}

	return b, nil
}
