package transcribe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"podscraper/pkg/logging"
)

// DefaultModel is the model size used when none is configured.
const DefaultModel = "base"

// DefaultBinary is the whisper CLI driven by the default service.
const DefaultBinary = "whisper-ctranslate2"

// Transcriber maps downloaded audio to transcript text. The speech-to-text
// engine itself is an external collaborator; this package only drives it.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, modelSize string) (string, error)
}

// WhisperCLI transcribes audio by invoking a whisper-compatible CLI that
// writes a plain-text transcript next to its other outputs.
type WhisperCLI struct {
	binary        string
	commandRunner func(ctx context.Context, name string, args ...string) error
	logger        zerolog.Logger
}

// NewWhisperCLI creates a transcriber driving the given binary. An empty
// binary selects DefaultBinary.
func NewWhisperCLI(binary string) *WhisperCLI {
	if binary == "" {
		binary = DefaultBinary
	}
	return &WhisperCLI{
		binary: binary,
		logger: logging.WithComponent("transcribe"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (w *WhisperCLI) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	w.commandRunner = runner
}

// Transcribe runs the whisper CLI over audioPath and returns the transcript.
// The CLI writes its outputs into a temporary directory that is removed when
// the call returns; only the text survives.
func (w *WhisperCLI) Transcribe(ctx context.Context, audioPath, modelSize string) (string, error) {
	if modelSize == "" {
		modelSize = DefaultModel
	}

	outputDir, err := os.MkdirTemp("", "podscraper-transcribe-")
	if err != nil {
		return "", fmt.Errorf("create transcription output dir: %w", err)
	}
	defer os.RemoveAll(outputDir)

	args := buildArgs(audioPath, modelSize, outputDir)

	w.logger.Info().
		Str("audio", filepath.Base(audioPath)).
		Str("model", modelSize).
		Msg("transcribing audio")

	if err := w.run(ctx, w.binary, args...); err != nil {
		return "", fmt.Errorf("run %s: %w", w.binary, err)
	}

	transcript, err := readTranscript(outputDir, audioPath)
	if err != nil {
		return "", err
	}

	w.logger.Info().
		Int("words", len(strings.Fields(transcript))).
		Msg("transcription complete")
	return transcript, nil
}

func (w *WhisperCLI) run(ctx context.Context, name string, args ...string) error {
	if w.commandRunner != nil {
		return w.commandRunner(ctx, name, args...)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func buildArgs(audioPath, modelSize, outputDir string) []string {
	return []string{
		audioPath,
		"--model", modelSize,
		"--output_format", "txt",
		"--output_dir", outputDir,
	}
}

// readTranscript reads the .txt output the CLI produced for audioPath.
func readTranscript(outputDir, audioPath string) (string, error) {
	base := filepath.Base(audioPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	data, err := os.ReadFile(filepath.Join(outputDir, base+".txt"))
	if err != nil {
		return "", fmt.Errorf("read transcript output: %w", err)
	}

	transcript := strings.TrimSpace(string(data))
	if transcript == "" {
		return "", fmt.Errorf("transcription produced empty text for %s", base)
	}
	return transcript, nil
}
