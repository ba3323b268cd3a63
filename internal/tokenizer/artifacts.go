package tokenizer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/born-ml/gramconv/internal/logger"
)

// Artifact file names inside a T5 model snapshot.
const (
	// SentencePieceFile is the native (slow) tokenizer model.
	SentencePieceFile = "spiece.model"

	// FastTokenizerFile is the consolidated fast representation.
	FastTokenizerFile = "tokenizer.json"
)

// optionalNativeFiles accompany the sentencepiece model when present.
var optionalNativeFiles = []string{
	"tokenizer_config.json",
	"special_tokens_map.json",
	"added_tokens.json",
}

// SaveResult reports which tokenizer artifacts reached the output
// directory.
type SaveResult struct {
	// NativeFiles lists the copied slow-tokenizer files.
	NativeFiles []string

	// FastSaved is true when tokenizer.json was copied and verified.
	FastSaved bool

	// FastErr carries the reason the fast path was skipped, when it was.
	FastErr error

	// Meta is the parsed fast-tokenizer metadata, nil without FastSaved.
	Meta *Metadata
}

// SaveArtifacts copies the tokenizer files from a model directory to the
// output directory. The native sentencepiece model is required: exported
// graphs are useless without a tokenizer. The fast tokenizer.json is
// attempted afterwards and a failure there only degrades the result,
// matching how tokenizer exporters treat the fast representation as
// best-effort.
func SaveArtifacts(modelDir, outDir string, log logger.Logger) (*SaveResult, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &SaveResult{}

	if err := copyFile(filepath.Join(modelDir, SentencePieceFile), filepath.Join(outDir, SentencePieceFile)); err != nil {
		return nil, fmt.Errorf("native tokenizer: %w", err)
	}
	result.NativeFiles = append(result.NativeFiles, SentencePieceFile)

	for _, name := range optionalNativeFiles {
		src := filepath.Join(modelDir, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := copyFile(src, filepath.Join(outDir, name)); err != nil {
			return nil, fmt.Errorf("native tokenizer: %w", err)
		}
		result.NativeFiles = append(result.NativeFiles, name)
	}

	result.FastSaved, result.Meta, result.FastErr = saveFast(modelDir, outDir)
	if result.FastErr != nil {
		log.Warn("could not save fast tokenizer, continuing with slow tokenizer only",
			"error", result.FastErr)
	}

	return result, nil
}

// saveFast copies tokenizer.json and verifies it parses as a known
// tokenizer model.
func saveFast(modelDir, outDir string) (bool, *Metadata, error) {
	src := filepath.Join(modelDir, FastTokenizerFile)
	if _, err := os.Stat(src); err != nil {
		return false, nil, fmt.Errorf("no %s in model directory: %w", FastTokenizerFile, err)
	}

	meta, err := DetectType(src)
	if err != nil {
		return false, nil, err
	}
	if meta.Type == TypeUnknown {
		return false, nil, fmt.Errorf("unrecognized tokenizer model %q", meta.ModelName)
	}

	if err := copyFile(src, filepath.Join(outDir, FastTokenizerFile)); err != nil {
		return false, nil, err
	}
	return true, meta, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // G304: Paths derive from user-supplied directories.
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst) //nolint:gosec // G304: Paths derive from user-supplied directories.
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close() // Best effort close on error
		return err
	}
	return out.Close()
}
