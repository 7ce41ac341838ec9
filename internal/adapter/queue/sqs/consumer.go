package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/bucketscan/internal/adapter/observability"
	"github.com/fairyhunter13/bucketscan/internal/config"
	"github.com/fairyhunter13/bucketscan/internal/domain"
	obsctx "github.com/fairyhunter13/bucketscan/internal/observability"
)

// ReceiveAPI is the slice of the SQS client the consumer uses.
type ReceiveAPI interface {
	ReceiveMessage(ctx domain.Context, params *awssqs.ReceiveMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx domain.Context, params *awssqs.DeleteMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.DeleteMessageOutput, error)
}

// TaskHandler processes one scan task. A non-nil error leaves the message
// on the queue so it reappears after the visibility timeout.
type TaskHandler interface {
	Process(ctx domain.Context, task domain.ScanTask) error
}

// Consumer long-polls the queue and drives the handler one message at a
// time. Horizontal scaling happens by running more worker processes, not
// by fanning out inside one consumer.
type Consumer struct {
	api               ReceiveAPI
	queueURL          string
	waitSeconds       int32
	visibilityTimeout int32
	handler           TaskHandler
	retry             backoff.BackOff
}

// NewConsumer builds a Consumer from the shared AWS configuration and the
// queue settings in cfg.
func NewConsumer(awsCfg aws.Config, cfg config.Config, handler TaskHandler) *Consumer {
	api := awssqs.NewFromConfig(awsCfg, func(o *awssqs.Options) {
		if cfg.AWSEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		}
	})
	return &Consumer{
		api:               api,
		queueURL:          cfg.QueueURL,
		waitSeconds:       cfg.ReceiveWaitSeconds,
		visibilityTimeout: cfg.VisibilityTimeoutSeconds,
		handler:           handler,
		retry:             cfg.NewReceiveBackoff(),
	}
}

// Run receives and processes messages until ctx is cancelled. Receive
// failures back off and retry so the loop outlives broker outages; it
// only returns on shutdown.
func (c *Consumer) Run(ctx context.Context) error {
	lg := obsctx.LoggerFromContext(ctx)
	for {
		if ctx.Err() != nil {
			return nil
		}
		out, err := c.api.ReceiveMessage(ctx, &awssqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     c.waitSeconds,
			VisibilityTimeout:   c.visibilityTimeout,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			lg.Error("queue receive failed", slog.Any("error", err))
			select {
			case <-time.After(c.retry.NextBackOff()):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		c.retry.Reset()
		for _, msg := range out.Messages {
			c.handleMessage(ctx, msg)
		}
	}
}

// handleMessage runs one message to completion. The message context is
// detached from the run context so a shutdown mid-message does not leave
// the object row and the ack out of step; the visibility timeout bounds
// how long the detached work may take.
func (c *Consumer) handleMessage(ctx context.Context, msg types.Message) {
	msgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Duration(c.visibilityTimeout)*time.Second)
	defer cancel()
	msgCtx, lg := obsctx.WithAttrs(msgCtx, slog.String("message_id", aws.ToString(msg.MessageId)))

	task, err := parseTask(aws.ToString(msg.Body))
	if err != nil {
		// Poison-message guard: a body that cannot be parsed would
		// otherwise be redelivered forever.
		lg.Error("dropping malformed queue message", slog.Any("error", err))
		observability.ReceiveTask("malformed")
		c.deleteMessage(msgCtx, msg)
		return
	}

	if err := c.handler.Process(msgCtx, task); err != nil {
		lg.Error("scan task failed, leaving message for redelivery",
			slog.String("job_id", task.JobID),
			slog.String("bucket", task.Bucket),
			slog.String("key", task.Key),
			slog.Any("error", err))
		observability.ReceiveTask("retried")
		return
	}
	observability.ReceiveTask("processed")
	c.deleteMessage(msgCtx, msg)
}

func (c *Consumer) deleteMessage(ctx context.Context, msg types.Message) {
	_, err := c.api.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		obsctx.LoggerFromContext(ctx).Warn("queue delete failed, message will be redelivered",
			slog.Any("error", err))
	}
}

// parseTask decodes and validates a queue message body.
func parseTask(body string) (domain.ScanTask, error) {
	var t domain.ScanTask
	if err := json.Unmarshal([]byte(body), &t); err != nil {
		return domain.ScanTask{}, fmt.Errorf("decode task: %w", err)
	}
	if t.JobID == "" || t.Bucket == "" || t.Key == "" {
		return domain.ScanTask{}, fmt.Errorf("task missing job_id, bucket or key")
	}
	return t, nil
}
