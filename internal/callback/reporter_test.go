package callback

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLambda struct {
	inputs    []*lambda.InvokeInput
	invokeErr error
}

func (f *fakeLambda) Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.invokeErr != nil {
		return nil, f.invokeErr
	}
	return &lambda.InvokeOutput{}, nil
}

func TestReporter_Success(t *testing.T) {
	api := &fakeLambda{}
	r := NewReporter(api, "transcript-coordinator", slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := r.Success(context.Background(), "cb-1", map[string]string{
		"rawTranscriptKey": "output/ep1_raw_transcript.json",
	})

	require.NoError(t, err)
	require.Len(t, api.inputs, 1)
	assert.Equal(t, "transcript-coordinator", aws.ToString(api.inputs[0].FunctionName))
	assert.Equal(t, types.InvocationTypeEvent, api.inputs[0].InvocationType)

	var p struct {
		CallbackID string `json:"callbackId"`
		Status     string `json:"status"`
		Result     struct {
			RawTranscriptKey string `json:"rawTranscriptKey"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(api.inputs[0].Payload, &p))
	assert.Equal(t, "cb-1", p.CallbackID)
	assert.Equal(t, "success", p.Status)
	assert.Equal(t, "output/ep1_raw_transcript.json", p.Result.RawTranscriptKey)
}

func TestReporter_Failure(t *testing.T) {
	api := &fakeLambda{}
	r := NewReporter(api, "transcript-coordinator", slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := r.Failure(context.Background(), "cb-2", "ValidationError", "file does not contain an audio stream")

	require.NoError(t, err)
	require.Len(t, api.inputs, 1)

	var p struct {
		CallbackID string `json:"callbackId"`
		Status     string `json:"status"`
		Error      struct {
			ErrorType    string `json:"errorType"`
			ErrorMessage string `json:"errorMessage"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(api.inputs[0].Payload, &p))
	assert.Equal(t, "cb-2", p.CallbackID)
	assert.Equal(t, "failure", p.Status)
	assert.Equal(t, "ValidationError", p.Error.ErrorType)
	assert.Equal(t, "file does not contain an audio stream", p.Error.ErrorMessage)
}

func TestReporter_InvokeError(t *testing.T) {
	api := &fakeLambda{invokeErr: errors.New("function not found")}
	r := NewReporter(api, "missing", slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := r.Failure(context.Background(), "cb-3", "ProcessingError", "boom")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to invoke callback function")
}
