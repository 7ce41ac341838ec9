package usecase

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fairyhunter13/bucketscan/internal/adapter/observability"
	"github.com/fairyhunter13/bucketscan/internal/domain"
	obsctx "github.com/fairyhunter13/bucketscan/internal/observability"
)

// skipNote is stored on object rows whose key suffix the scanner does not
// handle. Skipped objects count as succeeded so jobs still complete.
const skipNote = "Unsupported file type - skipped"

// ProcessService runs one scan task end to end: fetch, detect, persist,
// mark. It is driven by the queue consumer, one message at a time.
type ProcessService struct {
	Objects  domain.ObjectRepository
	Findings domain.FindingRepository
	Blobs    domain.BlobStore
	Scanner  domain.Scanner
}

// NewProcessService constructs a ProcessService with the given ports.
func NewProcessService(o domain.ObjectRepository, f domain.FindingRepository, b domain.BlobStore, sc domain.Scanner) ProcessService {
	return ProcessService{Objects: o, Findings: f, Blobs: b, Scanner: sc}
}

// Process handles one scan task. A nil return acknowledges the message; a
// non-nil return leaves it on the queue for redelivery after the
// visibility timeout. Every step is idempotent, so a redelivered task
// converges on the same terminal row and findings.
func (s ProcessService) Process(ctx domain.Context, task domain.ScanTask) error {
	start := time.Now()
	observability.StartProcessingObject()
	ctx, lg := obsctx.WithAttrs(ctx,
		slog.String("job_id", task.JobID),
		slog.String("bucket", task.Bucket),
		slog.String("key", task.Key))

	// Mark the row processing. Failure here is logged but not fatal: the
	// scan itself decides the terminal state.
	if err := s.Objects.SetStatus(ctx, task.JobID, task.Bucket, task.Key, task.ETag, domain.ObjectProcessing, nil); err != nil {
		lg.Warn("could not mark object processing", slog.Any("error", err))
	}

	if !domain.ScannableKey(task.Key) {
		note := skipNote
		if err := s.Objects.SetStatus(ctx, task.JobID, task.Bucket, task.Key, task.ETag, domain.ObjectSucceeded, &note); err != nil {
			lg.Warn("could not mark skipped object", slog.Any("error", err))
		}
		lg.Info("object skipped, unsupported suffix")
		observability.FinishObject("skipped", time.Since(start))
		return nil
	}

	content, err := s.Blobs.Fetch(ctx, task.Bucket, task.Key)
	if err != nil {
		msg := err.Error()
		if serr := s.Objects.SetStatus(ctx, task.JobID, task.Bucket, task.Key, task.ETag, domain.ObjectFailed, &msg); serr != nil {
			lg.Warn("could not mark failed object", slog.Any("error", serr))
		}
		lg.Error("object fetch failed", slog.Any("error", err))
		observability.FinishObject("failed", time.Since(start))
		// An oversize object fails identically on every delivery, so the
		// message is acknowledged instead of retried.
		if errors.Is(err, domain.ErrTooLarge) {
			return nil
		}
		return err
	}
	observability.ObserveFetchSize(content.Size)
	lg.Debug("object fetched",
		slog.Int64("size", content.Size),
		slog.String("content_type", mimetype.Detect([]byte(content.Text)).String()))

	// Resolve the entity tag: the message tag wins, the fetched tag fills
	// a blank. When the blank is filled the row keyed by the resolved tag
	// may not exist yet, so make sure it does before writing through it.
	etag := task.ETag
	if etag == "" {
		etag = content.ETag
		if _, err := s.Objects.Upsert(ctx, domain.ObjectRef{
			JobID:  task.JobID,
			Bucket: task.Bucket,
			Key:    task.Key,
			ETag:   etag,
			Status: domain.ObjectProcessing,
		}); err != nil {
			lg.Warn("could not record resolved entity tag", slog.Any("error", err))
		}
	}

	matches := s.Scanner.Scan(ctx, content.Text)
	if len(matches) > 0 {
		findings := make([]domain.Finding, 0, len(matches))
		for _, m := range matches {
			findings = append(findings, domain.Finding{
				JobID:       task.JobID,
				Bucket:      task.Bucket,
				Key:         task.Key,
				ETag:        etag,
				Detector:    m.Detector,
				MaskedMatch: m.MaskedMatch,
				Context:     m.Context,
				ByteOffset:  m.ByteOffset,
			})
		}
		inserted, err := s.Findings.InsertBatch(ctx, findings)
		if err != nil {
			msg := err.Error()
			if serr := s.Objects.SetStatus(ctx, task.JobID, task.Bucket, task.Key, etag, domain.ObjectFailed, &msg); serr != nil {
				lg.Warn("could not mark failed object", slog.Any("error", serr))
			}
			lg.Error("storing findings failed", slog.Any("error", err))
			observability.FinishObject("failed", time.Since(start))
			return err
		}
		for det, n := range countByDetector(matches) {
			observability.InsertFindings(det, n)
		}
		lg.Info("findings stored",
			slog.Int("matches", len(matches)),
			slog.Int64("inserted", inserted))
	}

	if err := s.Objects.SetStatus(ctx, task.JobID, task.Bucket, task.Key, etag, domain.ObjectSucceeded, nil); err != nil {
		lg.Error("could not mark object succeeded", slog.Any("error", err))
		observability.FinishObject("failed", time.Since(start))
		return err
	}
	lg.Info("object scanned", slog.Int("matches", len(matches)), slog.Duration("took", time.Since(start)))
	observability.FinishObject("succeeded", time.Since(start))
	return nil
}

func countByDetector(matches []domain.Match) map[string]int {
	counts := make(map[string]int, 4)
	for _, m := range matches {
		counts[m.Detector]++
	}
	return counts
}
