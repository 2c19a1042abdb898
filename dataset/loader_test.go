// MODUL: loader_test
// ZWECK: Tests fuer den geordneten parallelen Batch-Loader
// HINWEISE: Prueft Reihenfolge, Batch-Groessen und Fehlerabbruch

package dataset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoaderOrderedBatches(t *testing.T) {
	realDir, fakeDir := buildDirs(t)
	ds, err := New(realDir, fakeDir)
	if err != nil {
		t.Fatalf("New fehlgeschlagen: %v", err)
	}

	loader, err := NewLoader(ds, 2, 3)
	if err != nil {
		t.Fatalf("NewLoader fehlgeschlagen: %v", err)
	}

	// 5 Samples, Batch-Groesse 2 -> 3 Batches (2, 2, 1)
	if got := loader.NumBatches(); got != 3 {
		t.Fatalf("NumBatches() = %d, erwartet 3", got)
	}

	batches, wait := loader.Stream(context.Background())

	var sizes []int
	next := 0
	total := 0
	for b := range batches {
		if b.Index != next {
			t.Errorf("Batch-Index %d ausser der Reihe, erwartet %d", b.Index, next)
		}
		next++
		sizes = append(sizes, b.Size())
		total += b.Size()

		if len(b.Images) != b.Size() || len(b.DCTs) != b.Size() || len(b.Captions) != b.Size() || len(b.Paths) != b.Size() {
			t.Errorf("Batch %d: inkonsistente Feldlaengen", b.Index)
		}
	}
	if err := wait(); err != nil {
		t.Fatalf("Stream-Fehler: %v", err)
	}

	if total != ds.Len() {
		t.Errorf("Samples gesamt = %d, erwartet %d", total, ds.Len())
	}
	if len(sizes) != 3 || sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 1 {
		t.Errorf("Batch-Groessen = %v, erwartet [2 2 1]", sizes)
	}
}

func TestLoaderAbortsOnCorruptFile(t *testing.T) {
	realDir, fakeDir := buildDirs(t)

	// Undekodierbare Datei in die fake-Partition legen
	corrupt := filepath.Join(fakeDir, "zz_kaputt.png")
	if err := os.WriteFile(corrupt, []byte{0x00, 0x01, 0x02}, 0o644); err != nil {
		t.Fatalf("korrupte datei schreiben: %v", err)
	}

	ds, err := New(realDir, fakeDir)
	if err != nil {
		t.Fatalf("New fehlgeschlagen: %v", err)
	}

	loader, err := NewLoader(ds, 2, 2)
	if err != nil {
		t.Fatalf("NewLoader fehlgeschlagen: %v", err)
	}

	batches, wait := loader.Stream(context.Background())
	for range batches {
		// Kanal leeren; der Fehler kommt ueber wait()
	}

	err = wait()
	if err == nil {
		t.Fatal("erwartet Abbruch durch korrupte Datei")
	}
	if !strings.Contains(err.Error(), corrupt) {
		t.Errorf("Fehler enthaelt Pfad nicht: %v", err)
	}
}

func TestLoaderInvalidBatchSize(t *testing.T) {
	realDir, fakeDir := buildDirs(t)
	ds, err := New(realDir, fakeDir)
	if err != nil {
		t.Fatalf("New fehlgeschlagen: %v", err)
	}

	if _, err := NewLoader(ds, 0, 2); err == nil {
		t.Fatal("erwartet Fehler fuer batch size 0")
	}
}
