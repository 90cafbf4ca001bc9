// Package callback reports job outcomes to the external execution
// coordinator.
package callback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

// API is the subset of the Lambda client the reporter uses.
type API interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// payload is the callback envelope the coordinator function consumes.
type payload struct {
	CallbackID string          `json:"callbackId"`
	Status     string          `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      *callbackError  `json:"error,omitempty"`
}

type callbackError struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
}

// Reporter delivers success and failure callbacks by invoking the
// coordinator function asynchronously.
type Reporter struct {
	api          API
	functionName string
	logger       *slog.Logger
}

// NewReporter creates a reporter targeting the named coordinator function.
func NewReporter(api API, functionName string, logger *slog.Logger) *Reporter {
	return &Reporter{
		api:          api,
		functionName: functionName,
		logger:       logger,
	}
}

// Success reports a completed job with its result payload.
func (r *Reporter) Success(ctx context.Context, callbackID string, result any) error {
	r.logger.Info("Sending success callback",
		slog.String("callback_id", callbackID),
	)

	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode callback result: %w", err)
	}

	if err := r.invoke(ctx, payload{
		CallbackID: callbackID,
		Status:     "success",
		Result:     encoded,
	}); err != nil {
		return err
	}

	r.logger.Info("Success callback sent",
		slog.String("callback_id", callbackID),
	)
	return nil
}

// Failure reports a failed job with the error's kind and message.
func (r *Reporter) Failure(ctx context.Context, callbackID, errorType, errorMessage string) error {
	r.logger.Info("Sending failure callback",
		slog.String("callback_id", callbackID),
		slog.String("error_type", errorType),
	)

	if err := r.invoke(ctx, payload{
		CallbackID: callbackID,
		Status:     "failure",
		Error: &callbackError{
			ErrorType:    errorType,
			ErrorMessage: errorMessage,
		},
	}); err != nil {
		return err
	}

	r.logger.Info("Failure callback sent",
		slog.String("callback_id", callbackID),
	)
	return nil
}

func (r *Reporter) invoke(ctx context.Context, p payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode callback payload: %w", err)
	}

	_, err = r.api.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(r.functionName),
		InvocationType: types.InvocationTypeEvent,
		Payload:        body,
	})
	if err != nil {
		return fmt.Errorf("failed to invoke callback function: %w", err)
	}

	return nil
}
