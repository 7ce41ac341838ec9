package usecase_test

import (
	"time"

	"github.com/fairyhunter13/bucketscan/internal/domain"
)

type fakeJobRepo struct {
	createdJobs []domain.Job
	createID    string
	createErr   error
	getJob      domain.Job
	getErr      error
	deletedIDs  []string
	deleteErr   error
}

func (f *fakeJobRepo) Create(_ domain.Context, j domain.Job) (string, error) {
	f.createdJobs = append(f.createdJobs, j)
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.createID, nil
}

func (f *fakeJobRepo) Get(_ domain.Context, id string) (domain.Job, error) {
	if f.getErr != nil {
		return domain.Job{}, f.getErr
	}
	return f.getJob, nil
}

func (f *fakeJobRepo) Delete(_ domain.Context, id string) error {
	f.deletedIDs = append(f.deletedIDs, id)
	return f.deleteErr
}

type statusCall struct {
	jobID  string
	bucket string
	key    string
	etag   string
	status domain.ObjectStatus
	note   string
}

type fakeObjectRepo struct {
	upserts    []domain.ObjectRef
	upsertErr  error
	statuses   []statusCall
	statusErrs map[domain.ObjectStatus]error
	counts     domain.StatusCounts
	countsErr  error
	stuckMoved int64
	stuckAge   time.Duration
	stuckErr   error
}

func (f *fakeObjectRepo) Upsert(_ domain.Context, ref domain.ObjectRef) (bool, error) {
	f.upserts = append(f.upserts, ref)
	if f.upsertErr != nil {
		return false, f.upsertErr
	}
	return true, nil
}

func (f *fakeObjectRepo) SetStatus(_ domain.Context, jobID, bucket, key, etag string, status domain.ObjectStatus, lastError *string) error {
	call := statusCall{jobID: jobID, bucket: bucket, key: key, etag: etag, status: status}
	if lastError != nil {
		call.note = *lastError
	}
	f.statuses = append(f.statuses, call)
	if f.statusErrs != nil {
		return f.statusErrs[status]
	}
	return nil
}

func (f *fakeObjectRepo) CountByStatus(_ domain.Context, _ string) (domain.StatusCounts, error) {
	return f.counts, f.countsErr
}

func (f *fakeObjectRepo) MarkStuckProcessingFailed(_ domain.Context, olderThan time.Duration) (int64, error) {
	f.stuckAge = olderThan
	return f.stuckMoved, f.stuckErr
}

type listCall struct {
	bucket  string
	prefix  string
	afterID int64
	limit   int
}

type fakeFindingRepo struct {
	inserted  []domain.Finding
	insertErr error
	rows      []domain.Finding
	listCalls []listCall
	listErr   error
	countJob  int64
	countErr  error
}

func (f *fakeFindingRepo) InsertBatch(_ domain.Context, fs []domain.Finding) (int64, error) {
	f.inserted = append(f.inserted, fs...)
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	return int64(len(fs)), nil
}

func (f *fakeFindingRepo) List(_ domain.Context, bucket, prefix string, afterID int64, limit int) ([]domain.Finding, error) {
	f.listCalls = append(f.listCalls, listCall{bucket: bucket, prefix: prefix, afterID: afterID, limit: limit})
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Finding
	for _, r := range f.rows {
		if r.ID > afterID {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeFindingRepo) CountByJob(_ domain.Context, _ string) (int64, error) {
	return f.countJob, f.countErr
}

type fakeBlobStore struct {
	content  domain.ObjectContent
	fetchErr error
	fetched  []string
	pages    [][]domain.ListedObject
	listErr  error
}

func (f *fakeBlobStore) Fetch(_ domain.Context, bucket, key string) (domain.ObjectContent, error) {
	f.fetched = append(f.fetched, bucket+"/"+key)
	if f.fetchErr != nil {
		return domain.ObjectContent{}, f.fetchErr
	}
	return f.content, nil
}

func (f *fakeBlobStore) ListObjects(_ domain.Context, _, _ string, fn func([]domain.ListedObject) error) error {
	if f.listErr != nil {
		return f.listErr
	}
	for _, p := range f.pages {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

type fakeQueue struct {
	tasks []domain.ScanTask
	err   error
	// acceptFewer simulates a broker dropping that many entries.
	acceptFewer int
}

func (f *fakeQueue) PublishBatch(_ domain.Context, tasks []domain.ScanTask) (int, error) {
	f.tasks = append(f.tasks, tasks...)
	n := len(tasks) - f.acceptFewer
	if n < 0 {
		n = 0
	}
	return n, f.err
}

type fakeScanner struct {
	matches []domain.Match
	scanned []string
}

func (f *fakeScanner) Scan(_ domain.Context, text string) []domain.Match {
	f.scanned = append(f.scanned, text)
	return f.matches
}
