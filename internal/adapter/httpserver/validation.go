package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/fairyhunter13/bucketscan/internal/domain"
)

// findingsQuery carries the parsed query parameters of a findings listing.
type findingsQuery struct {
	bucket string
	prefix string
	limit  int
	cursor int64
}

// parseFindingsQuery validates the listing parameters. A zero limit means
// the caller sent none; an explicit limit must be positive here, while the
// upper bound is enforced by the usecase.
func parseFindingsQuery(r *http.Request) (findingsQuery, error) {
	q := findingsQuery{
		bucket: SanitizeString(r.URL.Query().Get("bucket")),
		prefix: SanitizeString(r.URL.Query().Get("prefix")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return findingsQuery{}, fmt.Errorf("%w: limit must be an integer", domain.ErrInvalidArgument)
		}
		if n < 1 {
			return findingsQuery{}, fmt.Errorf("%w: limit must be positive", domain.ErrInvalidArgument)
		}
		q.limit = n
	}
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return findingsQuery{}, fmt.Errorf("%w: cursor must be an integer", domain.ErrInvalidArgument)
		}
		q.cursor = n
	}
	return q, nil
}

// SanitizeString strips null bytes, trims whitespace, caps the length and
// repairs invalid UTF-8 in a user-supplied value.
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	input = strings.TrimSpace(input)
	if len(input) > 1024 {
		input = input[:1024]
	}
	if !utf8.ValidString(input) {
		input = strings.ToValidUTF8(input, "")
	}
	return input
}
