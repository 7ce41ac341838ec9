package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/bucketscan/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/bucketscan/internal/domain"
)

func TestJobRepo_Create_GeneratesID(t *testing.T) {
	t.Parallel()
	pool := &poolStub{}
	repo := postgres.NewJobRepo(pool)

	id, err := repo.Create(context.Background(), domain.Job{Bucket: "data", Prefix: "logs/"})
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err, "generated id must be a UUID")

	require.Len(t, pool.execs, 1)
	args := pool.execs[0].args
	assert.Equal(t, id, args[0])
	assert.Equal(t, "data", args[1])
	assert.Equal(t, "logs/", args[2])
}

func TestJobRepo_Create_KeepsGivenID(t *testing.T) {
	t.Parallel()
	pool := &poolStub{}
	repo := postgres.NewJobRepo(pool)

	id, err := repo.Create(context.Background(), domain.Job{ID: "11111111-2222-3333-4444-555555555555", Bucket: "b"})
	require.NoError(t, err)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", id)
}

func TestJobRepo_Create_ExecError(t *testing.T) {
	t.Parallel()
	pool := &poolStub{execErr: errors.New("down")}
	repo := postgres.NewJobRepo(pool)

	_, err := repo.Create(context.Background(), domain.Job{Bucket: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=job.create")
}

func TestJobRepo_Get(t *testing.T) {
	t.Parallel()
	created := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	pool := &poolStub{row: rowStub{scan: func(dest ...any) error {
		*(dest[0].(*string)) = "job-1"
		*(dest[1].(*string)) = "data"
		*(dest[2].(*string)) = "logs/"
		*(dest[3].(*time.Time)) = created
		*(dest[4].(*time.Time)) = created.Add(time.Hour)
		return nil
	}}}
	repo := postgres.NewJobRepo(pool)

	j, err := repo.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", j.ID)
	assert.Equal(t, "data", j.Bucket)
	assert.Equal(t, "logs/", j.Prefix)
	assert.Equal(t, created, j.CreatedAt)
}

func TestJobRepo_Get_NotFound(t *testing.T) {
	t.Parallel()
	pool := &poolStub{row: rowStub{scan: func(_ ...any) error { return pgx.ErrNoRows }}}
	repo := postgres.NewJobRepo(pool)

	_, err := repo.Get(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobRepo_Delete(t *testing.T) {
	t.Parallel()
	pool := &poolStub{execTags: []pgconn.CommandTag{tag("DELETE 1")}}
	repo := postgres.NewJobRepo(pool)
	require.NoError(t, repo.Delete(context.Background(), "job-1"))
}

func TestJobRepo_Delete_NotFound(t *testing.T) {
	t.Parallel()
	pool := &poolStub{execTags: []pgconn.CommandTag{tag("DELETE 0")}}
	repo := postgres.NewJobRepo(pool)
	err := repo.Delete(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
