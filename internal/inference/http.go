package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultRequestTimeout = 30 * time.Minute

// Client talks to the engine sidecar over HTTP. It implements Engine.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the engine listening at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultRequestTimeout},
	}
}

// LoadModel asks the engine to load (or reuse) the primary model.
func (c *Client) LoadModel(ctx context.Context, spec ModelSpec) (ModelHandle, error) {
	var out ModelHandle
	err := c.post(ctx, "/v1/models/whisper", spec, &out)
	return out, err
}

// LoadAudio asks the engine to load and resample an audio file.
func (c *Client) LoadAudio(ctx context.Context, path string) (AudioHandle, error) {
	var out AudioHandle
	err := c.post(ctx, "/v1/audio", struct {
		Path string `json:"path"`
	}{Path: path}, &out)
	return out, err
}

// Transcribe runs the primary model over loaded audio.
func (c *Client) Transcribe(ctx context.Context, model ModelHandle, audio AudioHandle, opts TranscribeOptions) (*Transcript, error) {
	var out Transcript
	err := c.post(ctx, "/v1/transcribe", struct {
		ModelID string            `json:"model_id"`
		AudioID string            `json:"audio_id"`
		Options TranscribeOptions `json:"options"`
	}{ModelID: model.ID, AudioID: audio.ID, Options: opts}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// LoadAlignModel asks the engine to load the alignment model for a
// language.
func (c *Client) LoadAlignModel(ctx context.Context, language string) (ModelHandle, error) {
	var out ModelHandle
	err := c.post(ctx, "/v1/models/align", struct {
		Language string `json:"language"`
	}{Language: language}, &out)
	return out, err
}

// Align refines segment timings against the loaded audio.
func (c *Client) Align(ctx context.Context, model ModelHandle, segments []Segment, audio AudioHandle) ([]Segment, error) {
	var out struct {
		Segments []Segment `json:"segments"`
	}
	err := c.post(ctx, "/v1/align", struct {
		ModelID  string    `json:"model_id"`
		AudioID  string    `json:"audio_id"`
		Segments []Segment `json:"segments"`
	}{ModelID: model.ID, AudioID: audio.ID, Segments: segments}, &out)
	if err != nil {
		return nil, err
	}
	return out.Segments, nil
}

// LoadDiarizer asks the engine to load the diarization pipeline.
func (c *Client) LoadDiarizer(ctx context.Context) (ModelHandle, error) {
	var out ModelHandle
	err := c.post(ctx, "/v1/models/diarize", struct{}{}, &out)
	return out, err
}

// Diarize assigns speaker turns over the loaded audio.
func (c *Client) Diarize(ctx context.Context, model ModelHandle, audio AudioHandle, hints SpeakerHints) ([]SpeakerTurn, error) {
	var out struct {
		Turns []SpeakerTurn `json:"turns"`
	}
	err := c.post(ctx, "/v1/diarize", struct {
		ModelID string       `json:"model_id"`
		AudioID string       `json:"audio_id"`
		Hints   SpeakerHints `json:"hints"`
	}{ModelID: model.ID, AudioID: audio.ID, Hints: hints}, &out)
	if err != nil {
		return nil, err
	}
	return out.Turns, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("engine request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("engine request %s returned %d: %s", path, resp.StatusCode, bytes.TrimSpace(detail))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode engine response for %s: %w", path, err)
	}

	return nil
}
