// Package domain contains core entities, ports and business rules for
// scanning blob-store objects for sensitive data.
//
// It defines the scan job lifecycle, per-object status tracking and the
// finding model, together with the repository, blob-store and queue
// interfaces the adapters implement. The package is free of transport
// and storage concerns.
package domain

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
)

// Context is an alias to context.Context to keep signatures short.
type Context = context.Context

// Common sentinel errors for mapping to API error codes.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("rate limited")
	ErrTooLarge        = errors.New("object too large")
	ErrTransport       = errors.New("transport failure")
	ErrInternal        = errors.New("internal error")
)

// MaxObjectSizeBytes is the largest object the fetcher will download.
// Objects above this size fail the scan instead of being truncated.
const MaxObjectSizeBytes = 100 << 20

// ObjectStatus is the lifecycle state of a single object within a scan job.
type ObjectStatus string

// Object statuses. An object moves queued -> processing -> succeeded|failed;
// succeeded and failed are terminal.
const (
	ObjectQueued     ObjectStatus = "queued"
	ObjectProcessing ObjectStatus = "processing"
	ObjectSucceeded  ObjectStatus = "succeeded"
	ObjectFailed     ObjectStatus = "failed"
)

// JobStatus is derived from the per-object statuses of a job. It is never
// stored; readers compute it from the status counts at query time.
type JobStatus string

// Derived job statuses.
const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
)

// Job is one scan request over a bucket, optionally narrowed by a key prefix.
type Job struct {
	ID        string
	Bucket    string
	Prefix    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ObjectRef identifies one object version tracked by a scan job. The entity
// tag pins the version: re-listing the same key with a new tag yields a new
// row rather than overwriting the old one.
type ObjectRef struct {
	JobID     string
	Bucket    string
	Key       string
	ETag      string
	Status    ObjectStatus
	LastError *string
	UpdatedAt time.Time
}

// ListedObject is one entry returned by a bucket listing page.
type ListedObject struct {
	Key  string
	ETag string
	Size int64
}

// ObjectContent is the decoded text of a fetched object together with the
// entity tag and size the store reported for it.
type ObjectContent struct {
	Text string
	ETag string
	Size int64
}

// ScanTask is the queue payload that tells a worker to scan one object.
type ScanTask struct {
	JobID  string `json:"job_id"`
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	ETag   string `json:"etag"`
}

// Match is one raw detector hit inside a text, before it is attached to an
// object as a Finding.
type Match struct {
	Detector    string
	MaskedMatch string
	Context     string
	ByteOffset  int
}

// Finding is one masked sensitive-data match persisted for an object.
// The raw matched text is never stored.
type Finding struct {
	ID          int64
	JobID       string
	Bucket      string
	Key         string
	ETag        string
	Detector    string
	MaskedMatch string
	Context     string
	ByteOffset  int
	CreatedAt   time.Time
}

// StatusCounts aggregates the object statuses of one job.
type StatusCounts struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
}

// Total returns the number of objects the job tracks.
func (c StatusCounts) Total() int {
	return c.Queued + c.Processing + c.Succeeded + c.Failed
}

// Completed returns the number of objects in a terminal status.
func (c StatusCounts) Completed() int { return c.Succeeded + c.Failed }

// Percentage returns the completion percentage rounded to the nearest
// integer, or 0 when the job tracks no objects.
func (c StatusCounts) Percentage() int {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(c.Completed()) / float64(total)))
}

// DeriveStatus computes the job-level status from the counts. Completed
// and pending both require at least one tracked object; a job whose
// listing produced nothing reports running.
func (c StatusCounts) DeriveStatus() JobStatus {
	total := c.Total()
	switch {
	case total > 0 && c.Completed() == total:
		return JobCompleted
	case total > 0 && c.Queued == total:
		return JobPending
	default:
		return JobRunning
	}
}

// scannableSuffixes lists the key suffixes the worker scans as text.
var scannableSuffixes = []string{".txt", ".csv", ".json", ".log"}

// ScannableKey reports whether the object key carries a supported text
// suffix. The comparison is case-insensitive; everything else is skipped
// without being fetched.
func ScannableKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range scannableSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// JobRepository persists scan jobs.
type JobRepository interface {
	Create(ctx Context, j Job) (string, error)
	Get(ctx Context, id string) (Job, error)
	Delete(ctx Context, id string) error
}

// ObjectRepository tracks per-object scan state inside jobs.
type ObjectRepository interface {
	// Upsert inserts the object row if absent and reports whether a row was
	// created. Re-ingesting a known (job, bucket, key, etag) is a no-op.
	Upsert(ctx Context, ref ObjectRef) (bool, error)
	// SetStatus transitions one object row. Terminal rows are never moved
	// back to a non-terminal status.
	SetStatus(ctx Context, jobID, bucket, key, etag string, status ObjectStatus, lastError *string) error
	CountByStatus(ctx Context, jobID string) (StatusCounts, error)
	// MarkStuckProcessingFailed fails rows that have sat in processing
	// longer than olderThan and returns how many rows it moved.
	MarkStuckProcessingFailed(ctx Context, olderThan time.Duration) (int64, error)
}

// FindingRepository persists detector findings.
type FindingRepository interface {
	// InsertBatch inserts findings, silently skipping rows that collide with
	// the content-identity unique key, and returns the number inserted.
	InsertBatch(ctx Context, fs []Finding) (int64, error)
	// List returns findings ordered by ascending id, starting strictly after
	// afterID. bucket and prefix narrow the result when non-empty; prefix
	// matches bytes at the start of the object key.
	List(ctx Context, bucket, prefix string, afterID int64, limit int) ([]Finding, error)
	CountByJob(ctx Context, jobID string) (int64, error)
}

// BlobStore abstracts the object store the scanner reads from.
type BlobStore interface {
	// Fetch downloads and decodes one object as UTF-8 text. Oversized
	// objects fail with ErrTooLarge before any bytes are transferred.
	Fetch(ctx Context, bucket, key string) (ObjectContent, error)
	// ListObjects walks the bucket under prefix, invoking fn once per page.
	// A non-nil error from fn stops the walk.
	ListObjects(ctx Context, bucket, prefix string, fn func([]ListedObject) error) error
}

// TaskQueue publishes scan tasks for workers and reports how many of the
// given tasks were accepted by the broker.
type TaskQueue interface {
	PublishBatch(ctx Context, tasks []ScanTask) (int, error)
}

// Scanner finds sensitive data in decoded object text.
type Scanner interface {
	Scan(ctx Context, text string) []Match
}
