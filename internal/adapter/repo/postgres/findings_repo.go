package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/bucketscan/internal/domain"
)

// FindingRepo persists detector findings in PostgreSQL.
type FindingRepo struct{ Pool PgxPool }

// NewFindingRepo constructs a FindingRepo with the given pool.
func NewFindingRepo(p PgxPool) *FindingRepo { return &FindingRepo{Pool: p} }

// InsertBatch inserts findings inside one transaction and returns how many
// rows were actually created. Rows colliding with the content-identity
// unique key (bucket, key, entity_tag, detector, byte_offset) are skipped,
// which makes replayed scans of the same object version idempotent.
func (r *FindingRepo) InsertBatch(ctx domain.Context, fs []domain.Finding) (int64, error) {
	if len(fs) == 0 {
		return 0, nil
	}
	tracer := otel.Tracer("repo.findings")
	ctx, span := tracer.Start(ctx, "findings.InsertBatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "findings"),
		attribute.Int("findings.count", len(fs)),
	)

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("op=finding.insert_batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := `INSERT INTO findings (job_id, bucket, key, entity_tag, detector, masked_match, context, byte_offset, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	ON CONFLICT (bucket, key, entity_tag, detector, byte_offset) DO NOTHING`
	now := time.Now().UTC()
	var inserted int64
	for _, f := range fs {
		tag, err := tx.Exec(ctx, q, f.JobID, f.Bucket, f.Key, f.ETag, f.Detector, f.MaskedMatch, f.Context, f.ByteOffset, now)
		if err != nil {
			return 0, fmt.Errorf("op=finding.insert_batch: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("op=finding.insert_batch: %w", err)
	}
	return inserted, nil
}

// List returns findings ordered by ascending id, starting strictly after
// afterID. bucket and prefix narrow the result when non-empty; comparisons
// are byte-exact, so the prefix filter uses starts_with rather than LIKE.
func (r *FindingRepo) List(ctx domain.Context, bucket, prefix string, afterID int64, limit int) ([]domain.Finding, error) {
	tracer := otel.Tracer("repo.findings")
	ctx, span := tracer.Start(ctx, "findings.List")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "findings"),
	)

	q := `SELECT id, job_id, bucket, key, entity_tag, detector, masked_match, context, byte_offset, created_at
	FROM findings WHERE id > $1`
	args := []any{afterID}
	if bucket != "" {
		args = append(args, bucket)
		q += fmt.Sprintf(" AND bucket=$%d", len(args))
	}
	if prefix != "" {
		args = append(args, prefix)
		q += fmt.Sprintf(" AND starts_with(key, $%d)", len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY id ASC LIMIT $%d", len(args))

	rows, err := r.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("op=finding.list: %w", err)
	}
	defer rows.Close()

	var out []domain.Finding
	for rows.Next() {
		var f domain.Finding
		if err := rows.Scan(&f.ID, &f.JobID, &f.Bucket, &f.Key, &f.ETag, &f.Detector, &f.MaskedMatch, &f.Context, &f.ByteOffset, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("op=finding.list: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=finding.list: %w", err)
	}
	return out, nil
}

// CountByJob returns the number of findings stored for one job.
func (r *FindingRepo) CountByJob(ctx domain.Context, jobID string) (int64, error) {
	tracer := otel.Tracer("repo.findings")
	ctx, span := tracer.Start(ctx, "findings.CountByJob")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "findings"),
	)

	var n int64
	row := r.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM findings WHERE job_id=$1`, jobID)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("op=finding.count_by_job: %w", err)
	}
	return n, nil
}
