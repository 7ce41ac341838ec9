package usecase

import (
	"fmt"

	"github.com/fairyhunter13/bucketscan/internal/domain"
)

// Finding listing limits.
const (
	DefaultFindingsLimit = 100
	MaxFindingsLimit     = 1000
)

// FindingsService pages stored findings by ascending id.
type FindingsService struct {
	Findings domain.FindingRepository
}

// NewFindingsService constructs a FindingsService with the given repository.
func NewFindingsService(f domain.FindingRepository) FindingsService {
	return FindingsService{Findings: f}
}

// FindingsPage is one page of findings plus the cursor for the next page.
// NextCursor is nil once the listing is exhausted.
type FindingsPage struct {
	Findings   []domain.Finding
	NextCursor *int64
}

// List returns up to limit findings with id greater than cursor, optionally
// narrowed to a bucket and key prefix. A zero limit means the default.
// Pages are keyed by id, so rows inserted while paging never shift or
// repeat earlier pages.
func (s FindingsService) List(ctx domain.Context, bucket, prefix string, limit int, cursor int64) (FindingsPage, error) {
	if limit == 0 {
		limit = DefaultFindingsLimit
	}
	if limit < 1 || limit > MaxFindingsLimit {
		return FindingsPage{}, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrInvalidArgument, MaxFindingsLimit)
	}
	if cursor < 0 {
		return FindingsPage{}, fmt.Errorf("%w: cursor must not be negative", domain.ErrInvalidArgument)
	}

	rows, err := s.Findings.List(ctx, bucket, prefix, cursor, limit)
	if err != nil {
		return FindingsPage{}, err
	}
	page := FindingsPage{Findings: rows}
	if len(rows) == limit {
		last := rows[len(rows)-1].ID
		page.NextCursor = &last
	}
	return page, nil
}
