package usecase

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/fairyhunter13/bucketscan/internal/domain"
)

// StatusService reads job progress. Progress is never stored; it is
// derived from the per-object status counts on every read.
type StatusService struct {
	Jobs     domain.JobRepository
	Objects  domain.ObjectRepository
	Findings domain.FindingRepository
}

// NewStatusService constructs a StatusService with the given repositories.
func NewStatusService(j domain.JobRepository, o domain.ObjectRepository, f domain.FindingRepository) StatusService {
	return StatusService{Jobs: j, Objects: o, Findings: f}
}

// JobProgress is one job with its derived progress counters.
type JobProgress struct {
	Job           domain.Job
	Counts        domain.StatusCounts
	FindingsCount int64
}

// Get returns the job with derived counts, or ErrInvalidArgument when the
// id is not a UUID and ErrNotFound when no such job exists.
func (s StatusService) Get(ctx domain.Context, id string) (JobProgress, error) {
	if _, err := uuid.Parse(id); err != nil {
		return JobProgress{}, fmt.Errorf("%w: job id must be a UUID", domain.ErrInvalidArgument)
	}
	job, err := s.Jobs.Get(ctx, id)
	if err != nil {
		return JobProgress{}, err
	}
	counts, err := s.Objects.CountByStatus(ctx, id)
	if err != nil {
		return JobProgress{}, err
	}
	n, err := s.Findings.CountByJob(ctx, id)
	if err != nil {
		return JobProgress{}, err
	}
	return JobProgress{Job: job, Counts: counts, FindingsCount: n}, nil
}

// Delete removes a job and, through the schema's cascades, every object
// row and finding recorded under it.
func (s StatusService) Delete(ctx domain.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: job id must be a UUID", domain.ErrInvalidArgument)
	}
	return s.Jobs.Delete(ctx, id)
}
