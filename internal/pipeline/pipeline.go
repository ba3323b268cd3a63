// Package pipeline orchestrates the one-shot conversion: resolve the
// model, load config and weights, persist tokenizer artifacts, export
// the two graphs, then validate them. Steps run strictly in order on a
// single goroutine; a fatal step aborts the run and partial outputs
// stay on disk for inspection.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/born-ml/gramconv/internal/backend/cpu"
	"github.com/born-ml/gramconv/internal/export"
	"github.com/born-ml/gramconv/internal/hub"
	"github.com/born-ml/gramconv/internal/loader"
	"github.com/born-ml/gramconv/internal/logger"
	"github.com/born-ml/gramconv/internal/t5"
	"github.com/born-ml/gramconv/internal/tokenizer"
	"github.com/born-ml/gramconv/internal/validate"
)

// Environment variables read by ConfigFromEnv. There are no CLI flags;
// the tool is a one-shot batch job configured from the environment.
const (
	EnvModel     = "GRAMCONV_MODEL"
	EnvRevision  = "GRAMCONV_REVISION"
	EnvOutputDir = "GRAMCONV_OUTPUT_DIR"
)

// DefaultModel is the grammar-correction checkpoint the tool was built
// around.
const DefaultModel = "prithivida/grammar_error_correcter_v1"

// Config describes one conversion run.
type Config struct {
	// Model is a HuggingFace model id (owner/name) resolved through the
	// local hub cache, or a direct path to a snapshot directory.
	Model string

	// Revision selects the cached revision, default "main".
	Revision string

	// OutputDir receives the graph files and tokenizer artifacts.
	OutputDir string

	// Export holds the dummy-input exemplar shapes.
	Export export.ExportConfig
}

// DefaultConfig returns the stock run configuration.
func DefaultConfig() Config {
	return Config{
		Model:     DefaultModel,
		Revision:  hub.DefaultRevision,
		OutputDir: "models",
		Export:    export.DefaultExportConfig(),
	}
}

// ConfigFromEnv overlays environment variables on DefaultConfig.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv(EnvModel); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv(EnvRevision); v != "" {
		cfg.Revision = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		cfg.OutputDir = v
	}
	return cfg
}

// Run executes the conversion. The returned error is fatal: the model
// could not be loaded, traced or serialized. Degraded tokenizer
// persistence and validation failures are logged and do not fail the
// run.
func Run(cfg Config, log logger.Logger) error {
	log.Info("resolving model", "model", cfg.Model, "revision", cfg.Revision)
	modelDir, err := hub.Resolve(cfg.Model, cfg.Revision)
	if err != nil {
		return fmt.Errorf("resolve model %q: %w", cfg.Model, err)
	}

	t5cfg, err := t5.LoadConfig(modelDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log.Info("model configuration loaded",
		"vocab_size", t5cfg.VocabSize, "d_model", t5cfg.DModel,
		"layers", t5cfg.NumLayers, "decoder_layers", t5cfg.DecoderLayers())

	ckpt, err := loader.Open(modelDir)
	if err != nil {
		return fmt.Errorf("open checkpoint: %w", err)
	}
	defer ckpt.Close()
	log.Info("checkpoint opened", "format", ckpt.Format())

	model, err := t5.LoadModel(t5cfg, ckpt)
	if err != nil {
		return fmt.Errorf("load weights: %w", err)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tokResult, err := tokenizer.SaveArtifacts(modelDir, cfg.OutputDir, log)
	if err != nil {
		return fmt.Errorf("save tokenizer artifacts: %w", err)
	}
	log.Info("tokenizer artifacts saved",
		"native", tokResult.NativeFiles, "fast", tokResult.FastSaved)

	backend := cpu.New()
	dummy := export.NewDummyInputs(cfg.Export, t5cfg)
	exp := export.NewExporter(model, backend)

	encPath := filepath.Join(cfg.OutputDir, export.EncoderFile)
	if err := exp.ExportEncoder(dummy, encPath); err != nil {
		return fmt.Errorf("export encoder: %w", err)
	}
	log.Info("encoder exported", "path", encPath)

	decPath := filepath.Join(cfg.OutputDir, export.DecoderFile)
	if err := exp.ExportDecoder(dummy, decPath); err != nil {
		return fmt.Errorf("export decoder: %w", err)
	}
	log.Info("decoder exported", "path", decPath)

	report := validate.Run(encPath, decPath, dummy, t5cfg, backend, log)

	// Extra advisory pass at a natural sentence length. The tiktoken
	// encodings live outside the snapshot, so failing to get one (e.g.
	// offline) only skips the replay.
	if tok, tokErr := tokenizer.Load(cfg.Model); tokErr != nil {
		log.Warn("no sample tokenizer available, skipping sentence replay", "error", tokErr)
	} else {
		validate.RunSentence(encPath, validate.SampleText, tok, t5cfg, backend, log)
	}

	if report.OK() {
		log.Info("conversion complete, both artifacts validated", "output", cfg.OutputDir)
	} else {
		log.Warn("conversion complete with validation warnings, artifacts kept",
			"output", cfg.OutputDir)
	}
	return nil
}
