// Package sqsclient wraps the SQS API with the poll/delete contract the
// worker loop consumes.
package sqsclient

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/fourTheorem/podwhisperer/internal/worker/domain"
)

// Config holds queue polling configuration. VisibilityTimeout must equal
// the per-job timeout so an in-flight message cannot be redelivered to
// another worker while it is being processed.
type Config struct {
	QueueURL          string
	MaxMessages       int32
	WaitTime          time.Duration
	VisibilityTimeout time.Duration
}

// API is the subset of the SQS client the wrapper uses.
type API interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Client polls and deletes messages on one queue.
type Client struct {
	api    API
	config *Config
	logger *slog.Logger
}

// NewClient creates a queue client.
func NewClient(api API, config *Config, logger *slog.Logger) *Client {
	return &Client{
		api:    api,
		config: config,
		logger: logger,
	}
}

// Poll performs one bounded receive. An empty slice is a normal outcome.
func (c *Client) Poll(ctx context.Context) ([]domain.QueueMessage, error) {
	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.config.QueueURL),
		MaxNumberOfMessages: c.config.MaxMessages,
		WaitTimeSeconds:     int32(c.config.WaitTime / time.Second),
		VisibilityTimeout:   int32(c.config.VisibilityTimeout / time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}

	msgs := make([]domain.QueueMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, domain.QueueMessage{
			ID:      aws.ToString(m.MessageId),
			Receipt: aws.ToString(m.ReceiptHandle),
			Body:    []byte(aws.ToString(m.Body)),
		})
	}

	return msgs, nil
}

// Delete acknowledges a message, permanently removing it from the queue.
func (c *Client) Delete(ctx context.Context, receipt string) error {
	_, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.config.QueueURL),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	c.logger.Debug("Message deleted from queue")
	return nil
}
