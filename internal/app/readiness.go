package app

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/bucketscan/internal/config"
)

// Pinger is the minimal interface for a database pool capable of Ping.
type Pinger interface{ Ping(ctx context.Context) error }

// QueuePinger checks that the task queue answers attribute reads.
type QueuePinger interface{ Ping(ctx context.Context) error }

// BucketPinger checks that one bucket answers a metadata request.
type BucketPinger interface {
	Ping(ctx context.Context, bucket string) error
}

// BuildReadinessChecks returns three readiness checks: database, queue and
// blob store. The blob-store check is skipped (always ready) when no scan
// bucket is configured, since scans may target arbitrary buckets.
func BuildReadinessChecks(cfg config.Config, pool Pinger, queue QueuePinger, blobs BucketPinger) (
	func(ctx context.Context) error,
	func(ctx context.Context) error,
	func(ctx context.Context) error,
) {
	dbCheck := func(ctx context.Context) error {
		if pool == nil {
			return fmt.Errorf("db not configured")
		}
		return pool.Ping(ctx)
	}
	queueCheck := func(ctx context.Context) error {
		if queue == nil {
			return fmt.Errorf("queue not configured")
		}
		return queue.Ping(ctx)
	}
	bucketCheck := func(ctx context.Context) error {
		if blobs == nil {
			return fmt.Errorf("blob store not configured")
		}
		if cfg.ScanBucket == "" {
			return nil
		}
		return blobs.Ping(ctx, cfg.ScanBucket)
	}
	return dbCheck, queueCheck, bucketCheck
}
