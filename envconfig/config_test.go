// config_test.go - Tests fuer die Environment-Konfiguration
package envconfig

import (
	"log/slog"
	"testing"
)

func TestDeviceDefault(t *testing.T) {
	t.Setenv("CAMME_DEVICE", "")
	if got := Device(); got != "cpu" {
		t.Errorf("Device() = %q, erwartet cpu", got)
	}
}

func TestDeviceValues(t *testing.T) {
	cases := map[string]string{
		"cpu":     "cpu",
		"cuda":    "cuda",
		"metal":   "metal",
		"CUDA":    "cuda",
		"unsinn":  "cpu",
		"  cpu  ": "cpu",
	}
	for in, want := range cases {
		t.Setenv("CAMME_DEVICE", in)
		if got := Device(); got != want {
			t.Errorf("Device(%q) = %q, erwartet %q", in, got, want)
		}
	}
}

func TestWorkersAndBatchSize(t *testing.T) {
	t.Setenv("CAMME_WORKERS", "")
	if got := Workers(); got != 4 {
		t.Errorf("Workers() Default = %d, erwartet 4", got)
	}

	t.Setenv("CAMME_WORKERS", "8")
	if got := Workers(); got != 8 {
		t.Errorf("Workers() = %d, erwartet 8", got)
	}

	// Ungueltige Werte fallen auf den Default zurueck
	t.Setenv("CAMME_BATCH_SIZE", "-3")
	if got := BatchSize(); got != 64 {
		t.Errorf("BatchSize(-3) = %d, erwartet Default 64", got)
	}

	t.Setenv("CAMME_BATCH_SIZE", "16")
	if got := BatchSize(); got != 16 {
		t.Errorf("BatchSize() = %d, erwartet 16", got)
	}
}

func TestLogLevel(t *testing.T) {
	t.Setenv("CAMME_DEBUG", "")
	if got := LogLevel(); got != slog.LevelInfo {
		t.Errorf("LogLevel() = %v, erwartet Info", got)
	}

	t.Setenv("CAMME_DEBUG", "1")
	if got := LogLevel(); got != slog.LevelDebug {
		t.Errorf("LogLevel(1) = %v, erwartet Debug", got)
	}
}

func TestAsMapContainsAllVars(t *testing.T) {
	m := AsMap()
	for _, key := range []string{
		"CAMME_DEVICE", "CAMME_WORKERS", "CAMME_BATCH_SIZE",
		"CAMME_BACKBONE", "CAMME_TOKENIZER", "CAMME_DEBUG",
	} {
		if _, ok := m[key]; !ok {
			t.Errorf("AsMap() fehlt Eintrag %s", key)
		}
	}
}
