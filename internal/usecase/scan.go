// Package usecase wires the domain rules of bucket scanning: starting
// jobs, processing queued objects, reporting progress and paging stored
// findings. Services hold ports only; adapters stay behind interfaces.
package usecase

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/bucketscan/internal/domain"
	obsctx "github.com/fairyhunter13/bucketscan/internal/observability"
)

// ScanService starts scan jobs: it lists the bucket, records one tracking
// row per object version and enqueues a scan task for each.
type ScanService struct {
	Jobs    domain.JobRepository
	Objects domain.ObjectRepository
	Blobs   domain.BlobStore
	Queue   domain.TaskQueue
}

// NewScanService constructs a ScanService with the given ports.
func NewScanService(j domain.JobRepository, o domain.ObjectRepository, b domain.BlobStore, q domain.TaskQueue) ScanService {
	return ScanService{Jobs: j, Objects: o, Blobs: b, Queue: q}
}

// ScanReceipt summarizes what starting a scan achieved.
type ScanReceipt struct {
	JobID         string
	ObjectCount   int
	EnqueuedCount int
}

// Start creates a job over bucket/prefix, walks the listing and publishes
// one scan task per non-empty object. Zero-size objects are skipped
// entirely. Publish failures after the rows exist do not fail the request:
// the receipt reports how many tasks the queue accepted, and re-running
// the scan heals the gap because object rows deduplicate on upsert.
func (s ScanService) Start(ctx domain.Context, bucket, prefix string) (ScanReceipt, error) {
	if strings.TrimSpace(bucket) == "" {
		return ScanReceipt{}, fmt.Errorf("%w: bucket is required", domain.ErrInvalidArgument)
	}

	jobID, err := s.Jobs.Create(ctx, domain.Job{Bucket: bucket, Prefix: prefix})
	if err != nil {
		return ScanReceipt{}, err
	}
	ctx, lg := obsctx.WithAttrs(ctx, slog.String("job_id", jobID), slog.String("bucket", bucket))

	var tasks []domain.ScanTask
	err = s.Blobs.ListObjects(ctx, bucket, prefix, func(page []domain.ListedObject) error {
		for _, o := range page {
			if o.Size == 0 {
				continue
			}
			if _, err := s.Objects.Upsert(ctx, domain.ObjectRef{
				JobID:  jobID,
				Bucket: bucket,
				Key:    o.Key,
				ETag:   o.ETag,
				Status: domain.ObjectQueued,
			}); err != nil {
				return err
			}
			tasks = append(tasks, domain.ScanTask{JobID: jobID, Bucket: bucket, Key: o.Key, ETag: o.ETag})
		}
		return nil
	})
	if err != nil {
		return ScanReceipt{}, err
	}

	enqueued, err := s.Queue.PublishBatch(ctx, tasks)
	if err != nil {
		lg.Error("publishing scan tasks failed",
			slog.Int("objects", len(tasks)),
			slog.Int("enqueued", enqueued),
			slog.Any("error", err))
	}
	lg.Info("scan started", slog.Int("objects", len(tasks)), slog.Int("enqueued", enqueued))
	return ScanReceipt{JobID: jobID, ObjectCount: len(tasks), EnqueuedCount: enqueued}, nil
}
