package httpserver

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fairyhunter13/bucketscan/internal/domain"
)

func Test_parseFindingsQuery(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/v1/findings", nil)
		q, err := parseFindingsQuery(r)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if q.bucket != "" || q.prefix != "" || q.limit != 0 || q.cursor != 0 {
			t.Fatalf("expected zero query, got %+v", q)
		}
	})

	t.Run("all params", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/v1/findings?bucket=data&prefix=logs%2F&limit=25&cursor=120", nil)
		q, err := parseFindingsQuery(r)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if q.bucket != "data" || q.prefix != "logs/" || q.limit != 25 || q.cursor != 120 {
			t.Fatalf("bad parse: %+v", q)
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		for _, raw := range []string{"ten", "0", "-5"} {
			r := httptest.NewRequest("GET", "/v1/findings?limit="+raw, nil)
			if _, err := parseFindingsQuery(r); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Fatalf("limit=%s: want ErrInvalidArgument, got %v", raw, err)
			}
		}
	})

	t.Run("bad cursor", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/v1/findings?cursor=1.5", nil)
		if _, err := parseFindingsQuery(r); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("want ErrInvalidArgument, got %v", err)
		}
	})
}

func Test_SanitizeString(t *testing.T) {
	if got := SanitizeString("  data \x00bucket  "); got != "data bucket" {
		t.Fatalf("got %q", got)
	}
	long := strings.Repeat("k", 2000)
	if got := SanitizeString(long); len(got) != 1024 {
		t.Fatalf("expected cap at 1024, got %d", len(got))
	}
	if got := SanitizeString("a\xffb"); got != "ab" {
		t.Fatalf("expected invalid UTF-8 dropped, got %q", got)
	}
}
