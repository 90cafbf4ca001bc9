package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// pcmCodec is the canonical encoding the model expects: 16-bit PCM,
// 16 kHz, mono. Inputs already in this codec skip conversion.
const (
	pcmCodec        = "pcm_s16le"
	canonicalRate   = "16000"
	canonicalLayout = "1"
)

// StreamInfo is the probed description of the first audio stream.
type StreamInfo struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	SampleRate string `json:"sample_rate"`
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// probeAudio validates that the file contains a decodable audio stream and
// returns its codec/stream info for diagnostics.
func probeAudio(ctx context.Context, runner commandRunner, path string) (*StreamInfo, error) {
	stdout, stderr, err := runner.Run(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=codec_type,codec_name,sample_rate",
		"-of", "json",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("file is not a valid audio file: %s", bytes.TrimSpace(stderr))
	}

	var probed struct {
		Streams []StreamInfo `json:"streams"`
	}
	if err := json.Unmarshal(stdout, &probed); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if len(probed.Streams) == 0 || probed.Streams[0].CodecType != "audio" {
		return nil, fmt.Errorf("file does not contain an audio stream")
	}

	return &probed.Streams[0], nil
}

// convertToWav transcodes the input to the canonical PCM layout.
func convertToWav(ctx context.Context, runner commandRunner, inputPath, outputPath string) error {
	_, stderr, err := runner.Run(ctx, "ffmpeg",
		"-y",
		"-i", inputPath,
		"-ar", canonicalRate,
		"-ac", canonicalLayout,
		"-c:a", pcmCodec,
		outputPath,
	)
	if err != nil {
		return fmt.Errorf("ffmpeg conversion failed: %s", bytes.TrimSpace(stderr))
	}
	return nil
}
