package debrid

import (
	"errors"
	"fmt"
	"net/http"

	"resolvarr/models"
)

// ErrorKind classifies every failure a backend client can report.
type ErrorKind int

const (
	KindUnauthorized ErrorKind = iota + 1
	KindNotPremium
	KindInvalidHash
	KindTorrentNotFound
	KindFileNotReady
	KindRateLimited
	KindHTTP
	KindNetwork
	KindTimeout
	KindUnsupported
	KindNoBackends
)

var kindNames = map[ErrorKind]string{
	KindUnauthorized:    "unauthorized",
	KindNotPremium:      "not_premium",
	KindInvalidHash:     "invalid_hash",
	KindTorrentNotFound: "torrent_not_found",
	KindFileNotReady:    "file_not_ready",
	KindRateLimited:     "rate_limited",
	KindHTTP:            "http_error",
	KindNetwork:         "network_error",
	KindTimeout:         "timeout",
	KindUnsupported:     "unsupported",
	KindNoBackends:      "no_backends",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error is the only error type that leaves a backend client.
type Error struct {
	Kind       ErrorKind
	Backend    models.BackendType
	StatusCode int    // KindHTTP only
	Body       string // KindHTTP only
	Reason     string
	Err        error
}

func (e *Error) Error() string {
	prefix := "debrid"
	if e.Backend != "" {
		prefix = string(e.Backend)
	}
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("%s: http error %d: %s", prefix, e.StatusCode, truncate(e.Body, 256))
	case KindFileNotReady, KindNetwork, KindTorrentNotFound, KindUnsupported, KindTimeout, KindInvalidHash:
		if e.Reason != "" {
			return fmt.Sprintf("%s: %s: %s", prefix, e.Kind, e.Reason)
		}
	}
	return fmt.Sprintf("%s: %s", prefix, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the exported sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnauthorized    = &Error{Kind: KindUnauthorized}
	ErrNotPremium      = &Error{Kind: KindNotPremium}
	ErrInvalidHash     = &Error{Kind: KindInvalidHash}
	ErrTorrentNotFound = &Error{Kind: KindTorrentNotFound}
	ErrFileNotReady    = &Error{Kind: KindFileNotReady}
	ErrRateLimited     = &Error{Kind: KindRateLimited}
	ErrHTTP            = &Error{Kind: KindHTTP}
	ErrNetwork         = &Error{Kind: KindNetwork}
	ErrTimeout         = &Error{Kind: KindTimeout}
	ErrUnsupported     = &Error{Kind: KindUnsupported}
	ErrNoBackends      = &Error{Kind: KindNoBackends}
)

// KindOf returns the kind of err, or 0 when err is not a debrid error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsFileNotReady reports whether err means the backend is still processing.
func IsFileNotReady(err error) bool { return errors.Is(err, ErrFileNotReady) }

func newError(backend models.BackendType, kind ErrorKind, reason string) *Error {
	return &Error{Kind: kind, Backend: backend, Reason: reason}
}

func fileNotReady(backend models.BackendType, reason string) *Error {
	return newError(backend, KindFileNotReady, reason)
}

func torrentNotFound(backend models.BackendType, reason string) *Error {
	return newError(backend, KindTorrentNotFound, reason)
}

func invalidHash(backend models.BackendType, reason string) *Error {
	return newError(backend, KindInvalidHash, reason)
}

func unsupported(backend models.BackendType, reason string) *Error {
	return newError(backend, KindUnsupported, reason)
}

func httpError(backend models.BackendType, code int, body string) *Error {
	return &Error{Kind: KindHTTP, Backend: backend, StatusCode: code, Body: body}
}

func networkError(backend models.BackendType, err error) *Error {
	return &Error{Kind: KindNetwork, Backend: backend, Reason: err.Error(), Err: err}
}

// statusError maps a non-2xx HTTP status to the taxonomy. It returns nil for 2xx.
func statusError(backend models.BackendType, code int, body []byte) *Error {
	switch {
	case code >= 200 && code <= 299:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return newError(backend, KindUnauthorized, "")
	case code == http.StatusTooManyRequests:
		return newError(backend, KindRateLimited, "")
	default:
		return httpError(backend, code, string(body))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
