package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRunner returns canned output for each invocation.
type scriptedRunner struct {
	stdout []byte
	stderr []byte
	err    error

	name string
	args []string
}

func (s *scriptedRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.name = name
	s.args = args
	return s.stdout, s.stderr, s.err
}

func TestProbeAudio_ValidStream(t *testing.T) {
	runner := &scriptedRunner{
		stdout: []byte(`{"streams":[{"codec_type":"audio","codec_name":"aac","sample_rate":"48000"}]}`),
	}

	info, err := probeAudio(context.Background(), runner, "/tmp/in.m4a")

	require.NoError(t, err)
	assert.Equal(t, "ffprobe", runner.name)
	assert.Contains(t, runner.args, "/tmp/in.m4a")
	assert.Equal(t, "aac", info.CodecName)
	assert.Equal(t, "48000", info.SampleRate)
}

func TestProbeAudio_CommandFailure(t *testing.T) {
	runner := &scriptedRunner{
		stderr: []byte("Invalid data found when processing input"),
		err:    errors.New("exit status 1"),
	}

	_, err := probeAudio(context.Background(), runner, "/tmp/in.bin")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid audio file")
	assert.Contains(t, err.Error(), "Invalid data found")
}

func TestProbeAudio_NoAudioStream(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
	}{
		{"empty streams", `{"streams":[]}`},
		{"video stream only", `{"streams":[{"codec_type":"video","codec_name":"h264"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &scriptedRunner{stdout: []byte(tt.stdout)}

			_, err := probeAudio(context.Background(), runner, "/tmp/in.mp4")

			require.Error(t, err)
			assert.Contains(t, err.Error(), "does not contain an audio stream")
		})
	}
}

func TestConvertToWav_ArgsAndSuccess(t *testing.T) {
	runner := &scriptedRunner{}

	err := convertToWav(context.Background(), runner, "/tmp/in.mp3", "/tmp/out.wav")

	require.NoError(t, err)
	assert.Equal(t, "ffmpeg", runner.name)
	assert.Equal(t, []string{
		"-y",
		"-i", "/tmp/in.mp3",
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"/tmp/out.wav",
	}, runner.args)
}

func TestConvertToWav_Failure(t *testing.T) {
	runner := &scriptedRunner{
		stderr: []byte("Unsupported codec"),
		err:    errors.New("exit status 1"),
	}

	err := convertToWav(context.Background(), runner, "/tmp/in.mp3", "/tmp/out.wav")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffmpeg conversion failed")
	assert.Contains(t, err.Error(), "Unsupported codec")
}
