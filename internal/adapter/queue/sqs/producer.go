// Package sqs implements the scan-task queue on Amazon SQS.
//
// The producer publishes scan tasks in batches of up to ten entries. The
// consumer long-polls for one message at a time; whether a message is
// deleted or left to reappear after the visibility timeout is decided by
// the processing outcome, so the queue itself carries the retry state.
package sqs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/bucketscan/internal/adapter/observability"
	"github.com/fairyhunter13/bucketscan/internal/config"
	"github.com/fairyhunter13/bucketscan/internal/domain"
)

const (
	// maxBatchEntries is the SQS SendMessageBatch entry limit.
	maxBatchEntries = 10
	// publishRetries bounds how often one batch send is retried.
	publishRetries = 3
)

// SendAPI is the slice of the SQS client the producer uses.
type SendAPI interface {
	SendMessageBatch(ctx domain.Context, params *awssqs.SendMessageBatchInput, optFns ...func(*awssqs.Options)) (*awssqs.SendMessageBatchOutput, error)
	GetQueueAttributes(ctx domain.Context, params *awssqs.GetQueueAttributesInput, optFns ...func(*awssqs.Options)) (*awssqs.GetQueueAttributesOutput, error)
}

// Publisher implements domain.TaskQueue on SQS.
type Publisher struct {
	api        SendAPI
	queueURL   string
	newBackoff func() backoff.BackOff
}

// NewPublisher builds a Publisher for the queue named in the configuration.
func NewPublisher(awsCfg aws.Config, cfg config.Config) *Publisher {
	api := awssqs.NewFromConfig(awsCfg, func(o *awssqs.Options) {
		if cfg.AWSEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		}
	})
	return &Publisher{
		api:      api,
		queueURL: cfg.QueueURL,
		newBackoff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), publishRetries)
		},
	}
}

// PublishBatch sends the tasks in chunks of up to ten entries and returns
// how many the queue accepted. Entries the queue rejects are logged and
// skipped; a batch call that keeps failing after retries stops the publish
// and reports the count accepted so far.
func (p *Publisher) PublishBatch(ctx domain.Context, tasks []domain.ScanTask) (int, error) {
	sent := 0
	for start := 0; start < len(tasks); start += maxBatchEntries {
		end := min(start+maxBatchEntries, len(tasks))
		n, err := p.sendChunk(ctx, tasks[start:end])
		sent += n
		if err != nil {
			return sent, fmt.Errorf("op=queue.publish_batch: %w", err)
		}
	}
	return sent, nil
}

func (p *Publisher) sendChunk(ctx domain.Context, tasks []domain.ScanTask) (int, error) {
	entries := make([]types.SendMessageBatchRequestEntry, 0, len(tasks))
	for i, t := range tasks {
		body, err := json.Marshal(t)
		if err != nil {
			return 0, fmt.Errorf("marshal task: %w", err)
		}
		entries = append(entries, types.SendMessageBatchRequestEntry{
			Id:          aws.String(strconv.Itoa(i)),
			MessageBody: aws.String(string(body)),
		})
	}
	in := &awssqs.SendMessageBatchInput{
		QueueUrl: aws.String(p.queueURL),
		Entries:  entries,
	}

	var out *awssqs.SendMessageBatchOutput
	send := func() error {
		var err error
		out, err = p.api.SendMessageBatch(ctx, in)
		return err
	}
	if err := backoff.Retry(send, backoff.WithContext(p.newBackoff(), ctx)); err != nil {
		return 0, err
	}

	for _, f := range out.Failed {
		slog.Warn("queue rejected scan task",
			slog.String("entry_id", aws.ToString(f.Id)),
			slog.String("code", aws.ToString(f.Code)),
			slog.String("message", aws.ToString(f.Message)))
	}
	observability.EnqueueTasks(len(out.Successful))
	return len(out.Successful), nil
}

// Ping verifies the queue exists and is reachable with the current
// credentials.
func (p *Publisher) Ping(ctx domain.Context) error {
	_, err := p.api.GetQueueAttributes(ctx, &awssqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(p.queueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return fmt.Errorf("op=queue.ping: %w", err)
	}
	return nil
}
