// config.go - Haupt-Konfigurationsfunktionen fuer CAMME
//
// Dieses Modul enthaelt:
// - Device: Compute-Backend (CAMME_DEVICE)
// - Workers: Anzahl Loader-Worker (CAMME_WORKERS)
// - BatchSize: Batch-Groesse fuer die Evaluation (CAMME_BATCH_SIZE)
// - Backbone: Name des Vision-Language-Encoders (CAMME_BACKBONE)
// - TokenizerDir: Verzeichnis mit vocab.json + merges.txt (CAMME_TOKENIZER)
// - LogLevel: Log-Level (CAMME_DEBUG)
//
// Flags haben Vorrang vor Environment-Variablen; Aufloesung geschieht
// einmal beim Prozessstart im cmd-Package.
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Var liest eine Environment-Variable und trimmt Whitespace und Quotes.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// Device gibt das Compute-Backend zurueck
// Konfigurierbar via CAMME_DEVICE (cpu|cuda|metal)
// Default: cpu
func Device() string {
	switch d := strings.ToLower(Var("CAMME_DEVICE")); d {
	case "cpu", "cuda", "metal":
		return d
	case "":
		return "cpu"
	default:
		slog.Warn("unbekanntes device, fallback auf cpu", "CAMME_DEVICE", d)
		return "cpu"
	}
}

// Workers gibt die Anzahl der Daten-Loader-Worker zurueck
// Konfigurierbar via CAMME_WORKERS
// Default: 4
func Workers() int {
	return intVar("CAMME_WORKERS", 4)
}

// BatchSize gibt die Batch-Groesse fuer die Evaluation zurueck
// Konfigurierbar via CAMME_BATCH_SIZE
// Default: 64
func BatchSize() int {
	return intVar("CAMME_BATCH_SIZE", 64)
}

// Backbone gibt den Namen des registrierten Encoders zurueck
// Konfigurierbar via CAMME_BACKBONE
// Default: openclip
func Backbone() string {
	if s := Var("CAMME_BACKBONE"); s != "" {
		return s
	}
	return "openclip"
}

// TokenizerDir gibt das Tokenizer-Verzeichnis zurueck (vocab.json + merges.txt)
// Konfigurierbar via CAMME_TOKENIZER
func TokenizerDir() string {
	return Var("CAMME_TOKENIZER")
}

// LogLevel gibt das slog-Level zurueck
// CAMME_DEBUG=1 oder true aktiviert Debug-Ausgaben
func LogLevel() slog.Level {
	if on, err := strconv.ParseBool(Var("CAMME_DEBUG")); err == nil && on {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// intVar liest eine positive Ganzzahl mit Default-Wert.
func intVar(key string, defaultValue int) int {
	if s := Var(key); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			return defaultValue
		}
		return n
	}
	return defaultValue
}

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
// Enthaelt Namen, aktuelle Werte und Beschreibungen
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"CAMME_DEVICE":     {"CAMME_DEVICE", Device(), "Compute backend: cpu, cuda or metal (default cpu)"},
		"CAMME_WORKERS":    {"CAMME_WORKERS", Workers(), "Number of data loader workers (default 4)"},
		"CAMME_BATCH_SIZE": {"CAMME_BATCH_SIZE", BatchSize(), "Evaluation batch size (default 64)"},
		"CAMME_BACKBONE":   {"CAMME_BACKBONE", Backbone(), "Registered vision-language encoder name (default openclip)"},
		"CAMME_TOKENIZER":  {"CAMME_TOKENIZER", TokenizerDir(), "Directory containing vocab.json and merges.txt"},
		"CAMME_DEBUG":      {"CAMME_DEBUG", LogLevel(), "Show additional debug information (e.g. CAMME_DEBUG=1)"},
	}
}

// Values gibt alle effektiven Konfigurationswerte als String-Map zurueck
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
