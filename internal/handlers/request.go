package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/vendormart/api/internal/platform/httpx"
)

const defaultBodyLimit = 16 << 10

var (
	errMissingBody  = httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest)
	errOversized    = httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge)
	errUnreadable   = httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest)
	errMalformedDoc = httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest)
)

// readBody returns at most limit bytes of the request body. Failures are
// httpx.Error values ready to be written.
func readBody(r *http.Request, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	if r.Body == nil {
		return nil, errMissingBody
	}
	var buf bytes.Buffer
	n, err := buf.ReadFrom(io.LimitReader(r.Body, limit+1))
	switch {
	case err != nil:
		return nil, errUnreadable
	case n > limit:
		return nil, errOversized
	case len(bytes.TrimSpace(buf.Bytes())) == 0:
		return nil, errMissingBody
	}
	return buf.Bytes(), nil
}

// decodeJSONBody fills target from the body. On failure it has already written
// the response and returns false.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, limit int64, target any) bool {
	body, err := readBody(r, limit)
	if err == nil && json.Unmarshal(body, target) != nil {
		err = errMalformedDoc
	}
	if err != nil {
		var apiErr httpx.Error
		if !errors.As(err, &apiErr) {
			apiErr = errUnreadable
		}
		httpx.WriteError(r.Context(), w, apiErr)
		return false
	}
	return true
}

// parseFilterValues flattens repeated and comma separated query values into
// a lowercase list without duplicates.
func parseFilterValues(values []string) []string {
	parts := lo.FlatMap(values, func(raw string, _ int) []string { return strings.Split(raw, ",") })
	filters := lo.Uniq(lo.FilterMap(parts, func(part string, _ int) (string, bool) {
		part = strings.ToLower(strings.TrimSpace(part))
		return part, part != ""
	}))
	if len(filters) == 0 {
		return nil
	}
	return filters
}

var timeLayouts = []string{time.RFC3339Nano, time.DateOnly}

// parseTimeParam accepts RFC3339 timestamps or plain YYYY-MM-DD dates.
func parseTimeParam(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, errors.New("must be RFC3339 timestamp or YYYY-MM-DD date")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseDateRange reads the startDate/endDate pair. A date-only endDate covers
// that whole day. The string result is a client-facing problem, empty when valid.
func parseDateRange(rawStart, rawEnd string) (start, end *time.Time, problem string) {
	bound := func(param, raw string) (*time.Time, string) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil, ""
		}
		ts, err := parseTimeParam(raw)
		if err != nil {
			return nil, param + " " + err.Error()
		}
		if param == "endDate" && len(raw) == len(time.DateOnly) {
			ts = ts.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		return &ts, ""
	}
	if start, problem = bound("startDate", rawStart); problem != "" {
		return nil, nil, problem
	}
	if end, problem = bound("endDate", rawEnd); problem != "" {
		return nil, nil, problem
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, "endDate must not be before startDate"
	}
	return start, end, ""
}
