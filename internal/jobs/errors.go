package jobs

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrNotFound is returned by Store.Get when no record exists for the id.
var ErrNotFound = errors.New("record not found")

// Validation rejection reasons shared between the normalizer and tests.
const (
	ReasonUnparseableDate = "unparseable_date"
	ReasonInvalidCity     = "invalid_city"
	ReasonInvalidLink     = "invalid_link"
)

// FetchError is returned after a fetch gives up. StatusCode is zero when
// the failure happened below HTTP (DNS, timeout). RetryAfter carries the
// server's Retry-After hint on 429 responses, when present.
type FetchError struct {
	URL        string
	StatusCode int
	Attempts   int
	RetryAfter time.Duration
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("fetch %s: %v after %d attempt(s)", e.URL, e.Err, e.Attempts)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying: timeouts,
// 5xx responses, and 429 throttling. Other 4xx and DNS failures are not.
func (e *FetchError) Transient() bool {
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500 {
		return true
	}
	if e.StatusCode != 0 {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(e.Err, &dnsErr) {
		return false
	}
	var netErr net.Error
	if errors.As(e.Err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// ParseError marks a single candidate that could not be extracted.
// Adapters skip and count these; they never abort the source.
type ParseError struct {
	Source SourceName
	URL    string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s item %s: %v", e.Source, e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError rejects a candidate with a field-level reason.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: field %q reason %q", e.Field, e.Reason)
}

// WriteError marks a record that could not be persisted after per-item
// retries.
type WriteError struct {
	ID  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write record %s: %v", e.ID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// SourceFailure terminates one adapter; other adapters are unaffected.
type SourceFailure struct {
	Source SourceName
	Err    error
}

func (e *SourceFailure) Error() string {
	return fmt.Sprintf("source %s failed: %v", e.Source, e.Err)
}

func (e *SourceFailure) Unwrap() error { return e.Err }
