package postgres

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/bucketscan/internal/domain"
)

// ObjectRepo tracks per-object scan state in PostgreSQL. Rows are keyed by
// (job_id, bucket, key, entity_tag) so the same key listed under a new
// entity tag gets its own row.
type ObjectRepo struct{ Pool PgxPool }

// NewObjectRepo constructs an ObjectRepo with the given pool.
func NewObjectRepo(p PgxPool) *ObjectRepo { return &ObjectRepo{Pool: p} }

// Upsert inserts the object row if absent and reports whether a row was
// created. Conflicts on the composite key are skipped so re-ingesting an
// already tracked object version never resets its status.
func (r *ObjectRepo) Upsert(ctx domain.Context, ref domain.ObjectRef) (bool, error) {
	tracer := otel.Tracer("repo.objects")
	ctx, span := tracer.Start(ctx, "objects.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "job_objects"),
	)

	status := ref.Status
	if status == "" {
		status = domain.ObjectQueued
	}
	q := `INSERT INTO job_objects (job_id, bucket, key, entity_tag, status, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6)
	ON CONFLICT (job_id, bucket, key, entity_tag) DO NOTHING`
	tag, err := r.Pool.Exec(ctx, q, ref.JobID, ref.Bucket, ref.Key, ref.ETag, string(status), time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("op=object.upsert: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetStatus transitions one object row. Terminal rows only accept terminal
// statuses, so a slow duplicate delivery can never drag a finished object
// back to processing; a retry that eventually succeeds may still flip a
// failed row to succeeded.
func (r *ObjectRepo) SetStatus(ctx domain.Context, jobID, bucket, key, etag string, status domain.ObjectStatus, lastError *string) error {
	tracer := otel.Tracer("repo.objects")
	ctx, span := tracer.Start(ctx, "objects.SetStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "job_objects"),
		attribute.String("object.status", string(status)),
	)

	q := `UPDATE job_objects SET status=$5, last_error=$6, updated_at=$7
	WHERE job_id=$1 AND bucket=$2 AND key=$3 AND entity_tag=$4
	AND (status IN ('queued','processing') OR $5 IN ('succeeded','failed'))`
	tag, err := r.Pool.Exec(ctx, q, jobID, bucket, key, etag, string(status), lastError, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=object.set_status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=object.set_status: %w", domain.ErrConflict)
	}
	return nil
}

// CountByStatus aggregates the job's object rows into status counts.
func (r *ObjectRepo) CountByStatus(ctx domain.Context, jobID string) (domain.StatusCounts, error) {
	tracer := otel.Tracer("repo.objects")
	ctx, span := tracer.Start(ctx, "objects.CountByStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "job_objects"),
	)

	q := `SELECT status, COUNT(*) FROM job_objects WHERE job_id=$1 GROUP BY status`
	rows, err := r.Pool.Query(ctx, q, jobID)
	if err != nil {
		return domain.StatusCounts{}, fmt.Errorf("op=object.count_by_status: %w", err)
	}
	defer rows.Close()

	var counts domain.StatusCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return domain.StatusCounts{}, fmt.Errorf("op=object.count_by_status: %w", err)
		}
		switch domain.ObjectStatus(status) {
		case domain.ObjectQueued:
			counts.Queued = n
		case domain.ObjectProcessing:
			counts.Processing = n
		case domain.ObjectSucceeded:
			counts.Succeeded = n
		case domain.ObjectFailed:
			counts.Failed = n
		}
	}
	if err := rows.Err(); err != nil {
		return domain.StatusCounts{}, fmt.Errorf("op=object.count_by_status: %w", err)
	}
	return counts, nil
}

// MarkStuckProcessingFailed fails processing rows whose last update is older
// than olderThan. Crashed workers leave such rows behind; the queue redrives
// the message while this keeps the status table honest.
func (r *ObjectRepo) MarkStuckProcessingFailed(ctx domain.Context, olderThan time.Duration) (int64, error) {
	tracer := otel.Tracer("repo.objects")
	ctx, span := tracer.Start(ctx, "objects.MarkStuckProcessingFailed")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "job_objects"),
	)

	cutoff := time.Now().UTC().Add(-olderThan)
	q := `UPDATE job_objects SET status='failed', last_error=$1, updated_at=$2
	WHERE status='processing' AND updated_at < $3`
	tag, err := r.Pool.Exec(ctx, q, "processing timed out", time.Now().UTC(), cutoff)
	if err != nil {
		return 0, fmt.Errorf("op=object.mark_stuck: %w", err)
	}
	return tag.RowsAffected(), nil
}
