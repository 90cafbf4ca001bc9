// Package pipeline runs the fetch→validate→normalize→infer→persist
// sequence for one transcription job.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fourTheorem/podwhisperer/internal/inference"
	"github.com/fourTheorem/podwhisperer/internal/timing"
	"github.com/fourTheorem/podwhisperer/internal/worker/domain"
)

// Config holds per-process pipeline settings. Changing the model
// configuration requires a fresh process; cached models are never
// invalidated.
type Config struct {
	ModelName   string
	Device      string // "cuda" or "cpu"
	Language    string
	MinSpeakers int
	MaxSpeakers int // 0 = auto-detect
}

// ComputeType returns the engine compute type for the configured device.
func (c *Config) ComputeType() string {
	if c.Device == "cuda" {
		return "float16"
	}
	return "int8"
}

// BatchSize returns the transcription batch size for the configured device.
func (c *Config) BatchSize() int {
	if c.Device == "cuda" {
		return 16
	}
	return 4
}

// SuccessReporter delivers the success callback on the pipeline's success
// path. Failure callbacks are the worker loop's responsibility.
type SuccessReporter interface {
	Success(ctx context.Context, callbackID string, result any) error
}

// Pipeline executes jobs against cached model state. The caches are
// populated lazily, guarded by a mutex so a pooled variant stays race-free,
// and live for the process lifetime.
type Pipeline struct {
	store    ObjectStore
	engine   inference.Engine
	reporter SuccessReporter
	config   *Config
	logger   *slog.Logger
	runner   commandRunner

	mu          sync.Mutex
	whisper     *inference.ModelHandle
	alignModels map[string]inference.ModelHandle
	diarizer    *inference.ModelHandle
}

// NewPipeline wires a pipeline from its collaborators.
func NewPipeline(store ObjectStore, engine inference.Engine, reporter SuccessReporter, config *Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:       store,
		engine:      engine,
		reporter:    reporter,
		config:      config,
		logger:      logger,
		runner:      execRunner{},
		alignModels: make(map[string]inference.ModelHandle),
	}
}

// Run processes one job. Every stage is measured; every failure propagates
// to the caller. The scratch directory is removed on all exit paths.
func (p *Pipeline) Run(ctx context.Context, req domain.JobRequest) (*domain.JobResult, error) {
	logger := p.logger.With(slog.String("s3_key", req.S3Key))
	collector := timing.NewCollector()

	scratch, err := os.MkdirTemp("", "whisperx_")
	if err != nil {
		return nil, domain.NewInfrastructureError("create scratch dir", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			logger.Warn("Failed to remove scratch dir",
				slog.String("dir", scratch),
				slog.String("error", rmErr.Error()),
			)
		}
	}()

	localPath := filepath.Join(scratch, "input_audio")

	// 1. Fetch the input artifact.
	if err := collector.Measure(timing.StepDownload, logger, func() error {
		return p.store.Download(ctx, req.S3Key, localPath)
	}); err != nil {
		return nil, domain.NewInfrastructureError("download input", err)
	}

	// 2. Validate that it contains a decodable audio stream.
	var info *StreamInfo
	if err := collector.Measure(timing.StepValidateAudio, logger, func() error {
		var probeErr error
		info, probeErr = probeAudio(ctx, p.runner, localPath)
		return probeErr
	}); err != nil {
		return nil, domain.NewValidationError("unsupported input", err)
	}
	logger.Info("Audio stream probed",
		slog.String("codec", info.CodecName),
		slog.String("sample_rate", info.SampleRate),
	)

	// 3. Normalize to canonical PCM unless the input already matches.
	audioPath := localPath
	if info.CodecName != pcmCodec {
		wavPath := filepath.Join(scratch, "audio.wav")
		if err := collector.Measure(timing.StepConvertToWav, logger, func() error {
			return convertToWav(ctx, p.runner, localPath, wavPath)
		}); err != nil {
			return nil, domain.NewProcessingError(string(timing.StepConvertToWav), err)
		}
		audioPath = wavPath
	} else {
		collector.RecordSkipped(timing.StepConvertToWav)
	}

	// 4. Primary model, loaded once per process.
	model, err := p.ensureWhisperModel(ctx, collector, logger)
	if err != nil {
		return nil, domain.NewProcessingError(string(timing.StepLoadModel), err)
	}

	// 5. Load audio into the engine.
	var audio inference.AudioHandle
	if err := collector.Measure(timing.StepLoadAudio, logger, func() error {
		var loadErr error
		audio, loadErr = p.engine.LoadAudio(ctx, audioPath)
		return loadErr
	}); err != nil {
		return nil, domain.NewProcessingError(string(timing.StepLoadAudio), err)
	}

	// 6. Transcribe.
	var transcript *inference.Transcript
	if err := collector.Measure(timing.StepTranscription, logger, func() error {
		var trErr error
		transcript, trErr = p.engine.Transcribe(ctx, model, audio, inference.TranscribeOptions{
			BatchSize: p.config.BatchSize(),
			Language:  p.config.Language,
		})
		return trErr
	}); err != nil {
		return nil, domain.NewProcessingError(string(timing.StepTranscription), err)
	}

	// 7. Alignment model, loaded once per language.
	alignModel, err := p.ensureAlignModel(ctx, collector, logger, p.config.Language)
	if err != nil {
		return nil, domain.NewProcessingError(string(timing.StepLoadAlignModel), err)
	}

	// 8. Align.
	if err := collector.Measure(timing.StepAlignment, logger, func() error {
		aligned, alignErr := p.engine.Align(ctx, alignModel, transcript.Segments, audio)
		if alignErr != nil {
			return alignErr
		}
		transcript.Segments = aligned
		return nil
	}); err != nil {
		return nil, domain.NewProcessingError(string(timing.StepAlignment), err)
	}

	// 9. Diarizer, loaded once per process.
	diarizer, err := p.ensureDiarizer(ctx, collector, logger)
	if err != nil {
		return nil, domain.NewProcessingError(string(timing.StepLoadDiarizeModel), err)
	}

	// 10. Diarize and merge speaker labels onto the transcript.
	if err := collector.Measure(timing.StepDiarization, logger, func() error {
		turns, dErr := p.engine.Diarize(ctx, diarizer, audio, inference.SpeakerHints{
			MinSpeakers: p.config.MinSpeakers,
			MaxSpeakers: p.config.MaxSpeakers,
		})
		if dErr != nil {
			return dErr
		}
		transcript.Segments = assignSpeakers(transcript.Segments, turns)
		return nil
	}); err != nil {
		return nil, domain.NewProcessingError(string(timing.StepDiarization), err)
	}

	// 11. Persist the transcript at the derived key.
	rawTranscriptKey := TranscriptKey(req.S3Key)
	if err := collector.Measure(timing.StepUploadTranscript, logger, func() error {
		body, mErr := json.Marshal(transcript)
		if mErr != nil {
			return mErr
		}
		return p.store.Upload(ctx, rawTranscriptKey, body)
	}); err != nil {
		return nil, domain.NewInfrastructureError("upload transcript", err)
	}

	logger.Info("Job processed",
		slog.String("raw_transcript_key", rawTranscriptKey),
	)

	result := &domain.JobResult{
		RawTranscriptKey: rawTranscriptKey,
		Stats:            collector.Stats(),
	}

	if req.CallbackID != "" {
		if err := p.reporter.Success(ctx, req.CallbackID, result); err != nil {
			return nil, domain.NewInfrastructureError("success callback", err)
		}
	}

	return result, nil
}

// TranscriptKey derives the output key from the input key: strip the
// extension from the basename and append the transcript suffix.
func TranscriptKey(inputKey string) string {
	base := path.Base(inputKey)
	base = strings.TrimSuffix(base, path.Ext(base))
	return fmt.Sprintf("output/%s_raw_transcript.json", base)
}

func (p *Pipeline) ensureWhisperModel(ctx context.Context, collector *timing.Collector, logger *slog.Logger) (inference.ModelHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.whisper != nil {
		collector.RecordSkipped(timing.StepLoadModel)
		return *p.whisper, nil
	}

	var handle inference.ModelHandle
	err := collector.Measure(timing.StepLoadModel, logger, func() error {
		var loadErr error
		handle, loadErr = p.engine.LoadModel(ctx, inference.ModelSpec{
			Name:        p.config.ModelName,
			Device:      p.config.Device,
			ComputeType: p.config.ComputeType(),
			Language:    p.config.Language,
		})
		return loadErr
	})
	if err != nil {
		return inference.ModelHandle{}, err
	}

	p.whisper = &handle
	return handle, nil
}

func (p *Pipeline) ensureAlignModel(ctx context.Context, collector *timing.Collector, logger *slog.Logger, language string) (inference.ModelHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if handle, ok := p.alignModels[language]; ok {
		collector.RecordSkipped(timing.StepLoadAlignModel)
		return handle, nil
	}

	var handle inference.ModelHandle
	err := collector.Measure(timing.StepLoadAlignModel, logger, func() error {
		var loadErr error
		handle, loadErr = p.engine.LoadAlignModel(ctx, language)
		return loadErr
	})
	if err != nil {
		return inference.ModelHandle{}, err
	}

	p.alignModels[language] = handle
	return handle, nil
}

func (p *Pipeline) ensureDiarizer(ctx context.Context, collector *timing.Collector, logger *slog.Logger) (inference.ModelHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.diarizer != nil {
		collector.RecordSkipped(timing.StepLoadDiarizeModel)
		return *p.diarizer, nil
	}

	var handle inference.ModelHandle
	err := collector.Measure(timing.StepLoadDiarizeModel, logger, func() error {
		var loadErr error
		handle, loadErr = p.engine.LoadDiarizer(ctx)
		return loadErr
	})
	if err != nil {
		return inference.ModelHandle{}, err
	}

	p.diarizer = &handle
	return handle, nil
}
