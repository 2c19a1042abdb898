// cmd_evaluate.go - Evaluate Command: kompletter Messdurchlauf
// Hauptfunktionen: newEvaluateCmd, EvaluateHandler
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Magnet300/CAMME/backbone"
	"github.com/Magnet300/CAMME/dataset"
	"github.com/Magnet300/CAMME/envconfig"
	"github.com/Magnet300/CAMME/evaluate"
	"github.com/Magnet300/CAMME/fusion"
	"github.com/Magnet300/CAMME/seed"
	"github.com/Magnet300/CAMME/tokenizer"
)

// evaluateOptions enthaelt alle CLI-Flags des Evaluate-Commands.
type evaluateOptions struct {
	seed           int64
	modelPath      string
	realDir        string
	fakeDir        string
	detailedTiming bool
	timingRuns     int
	batchSize      int
	workers        int
	backboneName   string
	backbonePath   string
	tokenizerDir   string
	resultsDB      string
}

// newEvaluateCmd - Erstellt den Evaluate-Command
func newEvaluateCmd() *cobra.Command {
	var opts evaluateOptions

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluiert einen Test-Split und berichtet Metriken und Latenz",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return EvaluateHandler(cmd, &opts)
		},
	}

	f := cmd.Flags()
	f.Int64Var(&opts.seed, "seed", seed.DefaultSeed, "Seed fuer alle Zufallsquellen")
	f.StringVar(&opts.modelPath, "model_path", "", "Pfad zum Fusions-Checkpoint (.pt oder .safetensors)")
	f.StringVar(&opts.realDir, "test_real_dir", "", "Verzeichnis mit echten Testbildern")
	f.StringVar(&opts.fakeDir, "test_fake_dir", "", "Verzeichnis mit gefaelschten Testbildern")
	f.BoolVar(&opts.detailedTiming, "detailed_timing", false, "Timing-Probe auf einem festen Batch ausfuehren")
	f.IntVar(&opts.timingRuns, "timing_runs", evaluate.DefaultProbeRuns, "Gemessene Wiederholungen der Timing-Probe")
	f.IntVar(&opts.batchSize, "batch_size", envconfig.BatchSize(), "Samples pro Batch")
	f.IntVar(&opts.workers, "workers", envconfig.Workers(), "Parallele Lade-Worker")
	f.StringVar(&opts.backboneName, "backbone", envconfig.Backbone(), "Registrierter Backbone-Encoder")
	f.StringVar(&opts.backbonePath, "backbone_path", "", "Pfad zu den Backbone-Gewichten")
	f.StringVar(&opts.tokenizerDir, "tokenizer_dir", envconfig.TokenizerDir(), "Verzeichnis mit vocab.json und merges.txt")
	f.StringVar(&opts.resultsDB, "results_db", "", "Optionale SQLite-Datei fuer die Lauf-Historie")

	_ = cmd.MarkFlagRequired("model_path")
	_ = cmd.MarkFlagRequired("test_real_dir")
	_ = cmd.MarkFlagRequired("test_fake_dir")

	return cmd
}

// EvaluateHandler - Fuehrt den kompletten Evaluationslauf aus
func EvaluateHandler(cmd *cobra.Command, opts *evaluateOptions) error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: envconfig.LogLevel(),
	})))

	seed.Init(opts.seed)
	device := backbone.ResolveDevice(envconfig.Device())

	if opts.tokenizerDir == "" {
		return fmt.Errorf("kein Tokenizer: --tokenizer_dir oder CAMME_TOKENIZER setzen")
	}
	tok, err := tokenizer.Load(opts.tokenizerDir)
	if err != nil {
		return err
	}

	params, err := fusion.Load(opts.modelPath)
	if err != nil {
		return err
	}

	enc, err := backbone.Open(opts.backboneName, opts.backbonePath,
		backbone.WithDevice(device),
		backbone.WithThreads(runtime.NumCPU()),
	)
	if err != nil {
		return err
	}
	defer enc.Close()

	net, err := fusion.NewNet(enc, params)
	if err != nil {
		return err
	}

	ds, err := dataset.New(opts.realDir, opts.fakeDir)
	if err != nil {
		return err
	}
	loader, err := dataset.NewLoader(ds, opts.batchSize, opts.workers)
	if err != nil {
		return err
	}

	slog.Info("evaluation startet",
		"backbone", enc.Info().Name,
		"device", device.String(),
		"params", params.Count(),
		"size_mb", fmt.Sprintf("%.1f", params.SizeMB()),
		"samples", ds.Len(),
		"real", ds.RealCount(),
		"fake", ds.Len()-ds.RealCount(),
		"batches", loader.NumBatches(),
	)

	e := &evaluate.Evaluator{
		Net:       net,
		Tokenizer: tok,
		Loader:    loader,
		Device:    device,
	}

	// Fortschritt nur auf einem echten Terminal
	if term.IsTerminal(int(os.Stderr.Fd())) {
		e.Progress = func(done, total int) {
			fmt.Fprintf(os.Stderr, "\rBatch %d/%d", done, total)
			if done == total {
				fmt.Fprintln(os.Stderr)
			}
		}
	}

	res, err := e.Run(cmd.Context())
	if err != nil {
		return err
	}

	var probe *evaluate.ProbeResult
	if opts.detailedTiming {
		probe, err = e.Probe(cmd.Context(), evaluate.DefaultProbeWarmup, opts.timingRuns)
		if err != nil {
			return err
		}
	}

	evaluate.Report(os.Stdout, res, probe)

	if opts.resultsDB != "" {
		store, err := evaluate.OpenStore(opts.resultsDB)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := store.SaveRun(res, probe, evaluate.RunMeta{
			Seed:      opts.seed,
			Backbone:  opts.backboneName,
			ModelPath: opts.modelPath,
			RealDir:   opts.realDir,
			FakeDir:   opts.fakeDir,
			BatchSize: opts.batchSize,
			Device:    device.String(),
		})
		if err != nil {
			return err
		}
		slog.Info("lauf gespeichert", "db", opts.resultsDB, "id", id)
	}

	return nil
}
