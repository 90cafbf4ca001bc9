// Package inference defines the call contract for the co-located
// transcription engine and a client implementation for its HTTP surface.
// The engine itself (model execution, GPU management) is an external
// collaborator; this package only speaks its protocol.
package inference

import "context"

// ModelSpec selects the primary transcription model.
type ModelSpec struct {
	Name        string `json:"name"`
	Device      string `json:"device"`
	ComputeType string `json:"compute_type"`
	Language    string `json:"language,omitempty"`
}

// ModelHandle references a model the engine has loaded. Handles stay valid
// for the engine's lifetime and are cached by the caller.
type ModelHandle struct {
	ID       string `json:"id"`
	Language string `json:"language,omitempty"`
}

// AudioHandle references audio the engine has loaded and resampled.
type AudioHandle struct {
	ID              string  `json:"id"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// TranscribeOptions tune a transcription run.
type TranscribeOptions struct {
	BatchSize int    `json:"batch_size"`
	Language  string `json:"language,omitempty"`
}

// Segment is one time-aligned piece of transcript text. Speaker is empty
// until diarization labels are merged in.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
}

// Transcript is the engine output for one audio input.
type Transcript struct {
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

// SpeakerTurn is one diarization interval attributed to a speaker.
type SpeakerTurn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// SpeakerHints bound the expected speaker count. MaxSpeakers zero means
// auto-detect.
type SpeakerHints struct {
	MinSpeakers int `json:"min_speakers,omitempty"`
	MaxSpeakers int `json:"max_speakers,omitempty"`
}

// Engine is the fixed contract with the inference collaborator. Load calls
// are idempotent on the engine side; callers cache the returned handles so
// repeat loads are skipped entirely.
type Engine interface {
	LoadModel(ctx context.Context, spec ModelSpec) (ModelHandle, error)
	LoadAudio(ctx context.Context, path string) (AudioHandle, error)
	Transcribe(ctx context.Context, model ModelHandle, audio AudioHandle, opts TranscribeOptions) (*Transcript, error)
	LoadAlignModel(ctx context.Context, language string) (ModelHandle, error)
	Align(ctx context.Context, model ModelHandle, segments []Segment, audio AudioHandle) ([]Segment, error)
	LoadDiarizer(ctx context.Context) (ModelHandle, error)
	Diarize(ctx context.Context, model ModelHandle, audio AudioHandle, hints SpeakerHints) ([]SpeakerTurn, error)
}
