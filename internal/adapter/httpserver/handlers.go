package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/bucketscan/internal/config"
	"github.com/fairyhunter13/bucketscan/internal/domain"
	"github.com/fairyhunter13/bucketscan/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg         config.Config
	Scans       usecase.ScanService
	Status      usecase.StatusService
	Findings    usecase.FindingsService
	DBCheck     func(ctx context.Context) error
	QueueCheck  func(ctx context.Context) error
	BucketCheck func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, scans usecase.ScanService, status usecase.StatusService, findings usecase.FindingsService, dbCheck, queueCheck, bucketCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Scans: scans, Status: status, Findings: findings, DBCheck: dbCheck, QueueCheck: queueCheck, BucketCheck: bucketCheck}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// notAcceptable rejects requests that cannot take a JSON response.
func notAcceptable(w http.ResponseWriter, r *http.Request) bool {
	a := r.Header.Get("Accept")
	if a == "" || a == "*/*" || strings.Contains(a, "application/json") {
		return false
	}
	writeJSON(w, http.StatusNotAcceptable, errorEnvelope{Error: apiError{
		Code: "INVALID_ARGUMENT", Message: "not acceptable", Details: map[string]any{"accept": a},
	}})
	return true
}

// CreateScanHandler starts a scan over a bucket, optionally narrowed by a
// key prefix, and reports how much work was recorded and enqueued.
func (s *Server) CreateScanHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if notAcceptable(w, r) {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		var req struct {
			Bucket string `json:"bucket" validate:"required,max=255"`
			Prefix string `json:"prefix" validate:"max=1024"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			verrs := map[string]string{}
			if ve, ok := err.(validator.ValidationErrors); ok {
				for _, fe := range ve {
					verrs[strings.ToLower(fe.Field())] = fe.Tag()
				}
			}
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), verrs)
			return
		}

		receipt, err := s.Scans.Start(r.Context(), req.Bucket, req.Prefix)
		if err != nil {
			writeError(w, r, fmt.Errorf("start scan: %w", err), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id":         receipt.JobID,
			"message":        "scan started",
			"object_count":   receipt.ObjectCount,
			"enqueued_count": receipt.EnqueuedCount,
		})
	}
}

// GetJobHandler returns one job with progress derived from its per-object
// status counts.
func (s *Server) GetJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if notAcceptable(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		progress, err := s.Status.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id":     progress.Job.ID,
			"bucket":     progress.Job.Bucket,
			"prefix":     progress.Job.Prefix,
			"status":     string(progress.Counts.DeriveStatus()),
			"created_at": progress.Job.CreatedAt.UTC().Format(time.RFC3339),
			"updated_at": progress.Job.UpdatedAt.UTC().Format(time.RFC3339),
			"progress": map[string]int{
				"total":      progress.Counts.Total(),
				"completed":  progress.Counts.Completed(),
				"percentage": progress.Counts.Percentage(),
			},
			"counts":         progress.Counts,
			"findings_count": progress.FindingsCount,
		})
	}
}

// findingDTO is the wire form of one finding. The id is string-encoded so
// JSON consumers never lose precision on large sequence values.
type findingDTO struct {
	ID          string `json:"id"`
	JobID       string `json:"job_id"`
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	Detector    string `json:"detector"`
	MaskedMatch string `json:"masked_match"`
	Context     string `json:"context"`
	ByteOffset  int    `json:"byte_offset"`
	CreatedAt   string `json:"created_at"`
}

// ListFindingsHandler pages stored findings by ascending id.
func (s *Server) ListFindingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if notAcceptable(w, r) {
			return
		}
		q, err := parseFindingsQuery(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		page, err := s.Findings.List(r.Context(), q.bucket, q.prefix, q.limit, q.cursor)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		dtos := make([]findingDTO, 0, len(page.Findings))
		for _, f := range page.Findings {
			dtos = append(dtos, findingDTO{
				ID:          strconv.FormatInt(f.ID, 10),
				JobID:       f.JobID,
				Bucket:      f.Bucket,
				Key:         f.Key,
				Detector:    f.Detector,
				MaskedMatch: f.MaskedMatch,
				Context:     f.Context,
				ByteOffset:  f.ByteOffset,
				CreatedAt:   f.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"findings":    dtos,
			"count":       len(dtos),
			"next_cursor": page.NextCursor,
		})
	}
}

// ReadyzHandler probes the database, the task queue and the blob store.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	probe := func(ctx context.Context, name string, fn func(context.Context) error) check {
		if err := fn(ctx); err != nil {
			return check{Name: name, OK: false, Details: err.Error()}
		}
		return check{Name: name, OK: true}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 3)
		if s.DBCheck != nil {
			checks = append(checks, probe(ctx, "db", s.DBCheck))
		}
		if s.QueueCheck != nil {
			checks = append(checks, probe(ctx, "queue", s.QueueCheck))
		}
		if s.BucketCheck != nil {
			checks = append(checks, probe(ctx, "blobstore", s.BucketCheck))
		}
		st := http.StatusOK
		for _, c := range checks {
			if !c.OK {
				st = http.StatusServiceUnavailable
				break
			}
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
