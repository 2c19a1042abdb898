// MODUL: store
// ZWECK: Optionale Ablage von Evaluationslaeufen in SQLite
// INPUT: Result, ProbeResult und Lauf-Metadaten
// OUTPUT: Persistierte Zeile mit UUID pro Lauf
// NEBENEFFEKTE: Legt Datenbankdatei und Schema an
// ABHAENGIGKEITEN: mattn/go-sqlite3, google/uuid
// HINWEISE: SQLite serialisiert Schreiber selbst; WAL-Modus reicht,
// Application-Level-Locks sind nicht noetig

package evaluate

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite-Treiber registrieren
)

// RunMeta beschreibt die Konfiguration eines Laufs.
type RunMeta struct {
	Seed      int64
	Backbone  string
	ModelPath string
	RealDir   string
	FakeDir   string
	BatchSize int
	Device    string
}

// Store haelt die Lauf-Historie in einer SQLite-Datei.
type Store struct {
	conn *sql.DB
}

// OpenStore oeffnet (oder erstellt) die Historie-Datenbank.
func OpenStore(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping results db: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.init(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize results db: %w", err)
	}
	return s, nil
}

// Close schliesst die Datenbankverbindung.
func (s *Store) Close() error {
	return s.conn.Close()
}

// init legt das Schema an.
func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		seed INTEGER NOT NULL,
		backbone TEXT NOT NULL,
		model_path TEXT NOT NULL,
		real_dir TEXT NOT NULL,
		fake_dir TEXT NOT NULL,
		batch_size INTEGER NOT NULL,
		device TEXT NOT NULL,
		samples INTEGER NOT NULL,
		tp INTEGER NOT NULL,
		tn INTEGER NOT NULL,
		fp INTEGER NOT NULL,
		fn INTEGER NOT NULL,
		precision REAL NOT NULL,
		recall REAL NOT NULL,
		f1 REAL NOT NULL,
		accuracy REAL NOT NULL,
		loss REAL NOT NULL,
		inference_seconds REAL NOT NULL,
		per_sample_ms REAL NOT NULL,
		throughput REAL NOT NULL,
		probe_mean_ms REAL,
		probe_std_ms REAL,
		probe_median_ms REAL
	);
	CREATE TABLE IF NOT EXISTS predictions (
		run_id TEXT NOT NULL REFERENCES runs(id),
		path TEXT NOT NULL,
		label INTEGER NOT NULL,
		pred INTEGER NOT NULL
	)`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// SaveRun persistiert einen kompletten Lauf und gibt seine ID zurueck.
func (s *Store) SaveRun(res *Result, probe *ProbeResult, meta RunMeta) (string, error) {
	id := uuid.New().String()
	c := res.Confusion

	var probeMean, probeStd, probeMedian sql.NullFloat64
	if probe != nil {
		probeMean = sql.NullFloat64{Float64: probe.MeanMS, Valid: true}
		probeStd = sql.NullFloat64{Float64: probe.StdMS, Valid: true}
		probeMedian = sql.NullFloat64{Float64: probe.MedianMS, Valid: true}
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
	INSERT INTO runs (
		id, created_at, seed, backbone, model_path, real_dir, fake_dir,
		batch_size, device, samples, tp, tn, fp, fn,
		precision, recall, f1, accuracy, loss,
		inference_seconds, per_sample_ms, throughput,
		probe_mean_ms, probe_std_ms, probe_median_ms
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now().UTC().Format(time.RFC3339), meta.Seed, meta.Backbone,
		meta.ModelPath, meta.RealDir, meta.FakeDir, meta.BatchSize, meta.Device,
		res.Samples, c.TP, c.TN, c.FP, c.FN,
		c.Precision(), c.Recall(), c.F1(), c.Accuracy(), res.Loss,
		res.Inference.Seconds(), res.PerSampleMS(), res.Throughput(),
		probeMean, probeStd, probeMedian,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	if len(res.Records) > 0 {
		stmt, err := tx.Prepare("INSERT INTO predictions (run_id, path, label, pred) VALUES (?, ?, ?, ?)")
		if err != nil {
			return "", fmt.Errorf("prepare predictions: %w", err)
		}
		defer stmt.Close()
		for _, r := range res.Records {
			if _, err := stmt.Exec(id, r.Path, r.Label, r.Pred); err != nil {
				return "", fmt.Errorf("insert prediction: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return id, nil
}

// CountPredictions liefert die Zahl gespeicherter Einzelvorhersagen
// eines Laufs.
func (s *Store) CountPredictions(runID string) (int, error) {
	var n int
	if err := s.conn.QueryRow("SELECT COUNT(*) FROM predictions WHERE run_id = ?", runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count predictions: %w", err)
	}
	return n, nil
}

// CountRuns liefert die Zahl gespeicherter Laeufe.
func (s *Store) CountRuns() (int, error) {
	var n int
	if err := s.conn.QueryRow("SELECT COUNT(*) FROM runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}
