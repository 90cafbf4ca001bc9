package domain

import "github.com/fourTheorem/podwhisperer/internal/timing"

// MessageTypeWarmup marks a lifecycle-control message. Any other "type"
// value, or its absence, means the body describes a transcription job.
const MessageTypeWarmup = "warmup"

// QueueMessage is one received queue message. The receipt is the opaque
// acknowledgment token; deleting with it permanently removes the message.
type QueueMessage struct {
	ID      string
	Receipt string
	Body    []byte
}

// Envelope is the parsed JSON body of a queue message. Warmup messages set
// Type to "warmup" and may carry an explicit expiry; job messages carry the
// object key of the audio to process.
type Envelope struct {
	Type       string `json:"type,omitempty"`
	Until      string `json:"until,omitempty"`
	S3Key      string `json:"s3_key,omitempty"`
	CallbackID string `json:"callback_id,omitempty"`
}

// JobRequest is an immutable transcription job parsed from a message body.
type JobRequest struct {
	S3Key      string
	CallbackID string
}

// JobResult is the pipeline output reported back to the coordinator.
type JobResult struct {
	RawTranscriptKey string              `json:"rawTranscriptKey"`
	Stats            []timing.StepTiming `json:"stats"`
}
