// MODUL: options
// ZWECK: Functional Options Pattern fuer das Laden von Backbones
// INPUT: Optionale Konfigurationsparameter (Device, Threads, GPU-Layers)
// OUTPUT: LoadOptions Struct mit Konfiguration
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: runtime (stdlib), device.go
// HINWEISE: Defaults sind CPU-sicher; GPU-Parameter wirken nur bei
// Implementierungen mit Geraete-Unterstuetzung

package backbone

import (
	"errors"
	"runtime"
)

// Fehler-Definitionen fuer Options
var (
	ErrInvalidThreads = errors.New("backbone: invalid thread count")
)

// LoadOptions enthaelt die Konfiguration fuer das Laden eines Encoders.
type LoadOptions struct {
	Device    Device // Compute-Geraet inkl. Sync-Faehigkeit
	Threads   int    // Anzahl CPU-Threads
	GPULayers int    // Anzahl GPU-Layers (-1 fuer alle)
	MainGPU   int    // Index des Haupt-GPUs
	UseMmap   bool   // Memory-Mapping aktivieren
}

// Option ist eine funktionale Option fuer LoadOptions.
type Option func(*LoadOptions)

// DefaultLoadOptions gibt eine Standard-Konfiguration zurueck.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Device:    ResolveDevice("cpu"),
		Threads:   runtime.NumCPU(),
		GPULayers: -1,
		MainGPU:   0,
		UseMmap:   true,
	}
}

// Apply wendet alle Optionen an.
func (o *LoadOptions) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// Validate prueft die Konfiguration.
func (o *LoadOptions) Validate() error {
	if o.Threads <= 0 {
		return ErrInvalidThreads
	}
	return nil
}

// WithDevice setzt das Compute-Geraet.
func WithDevice(d Device) Option {
	return func(o *LoadOptions) {
		o.Device = d
	}
}

// WithThreads setzt die Anzahl der CPU-Threads.
// Werte <= 0 werden durch runtime.NumCPU() ersetzt.
func WithThreads(n int) Option {
	return func(o *LoadOptions) {
		if n > 0 {
			o.Threads = n
		}
	}
}

// WithGPULayers setzt die Anzahl der GPU-Layers.
// -1 bedeutet alle Layer auf GPU.
func WithGPULayers(n int) Option {
	return func(o *LoadOptions) {
		o.GPULayers = n
	}
}

// WithMainGPU setzt den Index des Haupt-GPUs.
func WithMainGPU(gpu int) Option {
	return func(o *LoadOptions) {
		if gpu >= 0 {
			o.MainGPU = gpu
		}
	}
}

// WithMmap aktiviert oder deaktiviert Memory-Mapping.
func WithMmap(enabled bool) Option {
	return func(o *LoadOptions) {
		o.UseMmap = enabled
	}
}
