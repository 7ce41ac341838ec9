package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/bucketscan/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/bucketscan/internal/domain"
)

func TestObjectRepo_Upsert_Inserted(t *testing.T) {
	t.Parallel()
	pool := &poolStub{execTags: []pgconn.CommandTag{tag("INSERT 0 1")}}
	repo := postgres.NewObjectRepo(pool)

	created, err := repo.Upsert(context.Background(), domain.ObjectRef{
		JobID: "job-1", Bucket: "data", Key: "a.txt", ETag: "e1", Status: domain.ObjectQueued,
	})
	require.NoError(t, err)
	assert.True(t, created)

	args := pool.execs[0].args
	assert.Equal(t, []any{"job-1", "data", "a.txt", "e1"}, args[:4])
	assert.Equal(t, "queued", args[4])
}

func TestObjectRepo_Upsert_DuplicateIsNoop(t *testing.T) {
	t.Parallel()
	pool := &poolStub{execTags: []pgconn.CommandTag{tag("INSERT 0 0")}}
	repo := postgres.NewObjectRepo(pool)

	created, err := repo.Upsert(context.Background(), domain.ObjectRef{JobID: "job-1", Bucket: "data", Key: "a.txt", ETag: "e1"})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestObjectRepo_Upsert_DefaultsToQueued(t *testing.T) {
	t.Parallel()
	pool := &poolStub{}
	repo := postgres.NewObjectRepo(pool)

	_, err := repo.Upsert(context.Background(), domain.ObjectRef{JobID: "job-1", Bucket: "data", Key: "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "queued", pool.execs[0].args[4])
}

func TestObjectRepo_Upsert_ExecError(t *testing.T) {
	t.Parallel()
	pool := &poolStub{execErr: errors.New("down")}
	repo := postgres.NewObjectRepo(pool)

	_, err := repo.Upsert(context.Background(), domain.ObjectRef{JobID: "job-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=object.upsert")
}

func TestObjectRepo_SetStatus(t *testing.T) {
	t.Parallel()
	pool := &poolStub{execTags: []pgconn.CommandTag{tag("UPDATE 1")}}
	repo := postgres.NewObjectRepo(pool)

	note := "fetch failed"
	err := repo.SetStatus(context.Background(), "job-1", "data", "a.txt", "e1", domain.ObjectFailed, &note)
	require.NoError(t, err)

	args := pool.execs[0].args
	assert.Equal(t, "failed", args[4])
	assert.Equal(t, &note, args[5])
}

func TestObjectRepo_SetStatus_NoMatchingRow(t *testing.T) {
	t.Parallel()
	pool := &poolStub{execTags: []pgconn.CommandTag{tag("UPDATE 0")}}
	repo := postgres.NewObjectRepo(pool)

	err := repo.SetStatus(context.Background(), "job-1", "data", "a.txt", "e1", domain.ObjectProcessing, nil)
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestObjectRepo_CountByStatus(t *testing.T) {
	t.Parallel()
	pool := &poolStub{rows: &rowsStub{rows: [][]any{
		{"queued", 3},
		{"processing", 1},
		{"succeeded", 7},
		{"failed", 2},
	}}}
	repo := postgres.NewObjectRepo(pool)

	counts, err := repo.CountByStatus(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCounts{Queued: 3, Processing: 1, Succeeded: 7, Failed: 2}, counts)
	assert.Equal(t, 13, counts.Total())
}

func TestObjectRepo_CountByStatus_RowsError(t *testing.T) {
	t.Parallel()
	pool := &poolStub{rows: &rowsStub{err: errors.New("conn reset")}}
	repo := postgres.NewObjectRepo(pool)

	_, err := repo.CountByStatus(context.Background(), "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=object.count_by_status")
}

func TestObjectRepo_MarkStuckProcessingFailed(t *testing.T) {
	t.Parallel()
	pool := &poolStub{execTags: []pgconn.CommandTag{tag("UPDATE 4")}}
	repo := postgres.NewObjectRepo(pool)

	n, err := repo.MarkStuckProcessingFailed(context.Background(), 3*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	// The cutoff argument must sit olderThan in the past.
	cutoff, ok := pool.execs[0].args[2].(time.Time)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().UTC().Add(-3*time.Minute), cutoff, 2*time.Second)
}
