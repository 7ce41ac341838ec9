package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/bucketscan/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details"`
	RequestID string `json:"request_id,omitempty"`
}

// statusMap pairs domain sentinels with HTTP statuses and stable error
// codes. Anything unmapped reports INTERNAL; transport failures from
// the blob store or queue during ingestion also surface as 500.
var statusMap = []struct {
	sentinel error
	status   int
	code     string
}{
	{domain.ErrInvalidArgument, http.StatusBadRequest, "INVALID_ARGUMENT"},
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{domain.ErrConflict, http.StatusConflict, "CONFLICT"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
	{domain.ErrTransport, http.StatusInternalServerError, "TRANSPORT"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates err into the error envelope. The request id set
// by the middleware rides along so callers can quote it in reports.
func writeError(w http.ResponseWriter, r *http.Request, err error, details any) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	for _, m := range statusMap {
		if errors.Is(err, m.sentinel) {
			status, code = m.status, m.code
			break
		}
	}
	writeJSON(w, status, errorEnvelope{Error: apiError{
		Code:      code,
		Message:   err.Error(),
		Details:   details,
		RequestID: r.Header.Get("X-Request-Id"),
	}})
}
