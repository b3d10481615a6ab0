package extraction

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedMediaType is returned before any network use when the
	// payload is not a JPEG or PNG image
	ErrUnsupportedMediaType = errors.New("unsupported media type: only JPG/PNG images are supported")
	// ErrRequestFailed matches every *RequestFailedError
	ErrRequestFailed = errors.New("extraction request failed")
	// ErrMissingAPIKey is a configuration error raised when building a requestor
	ErrMissingAPIKey = errors.New("missing API key")
)

// maxDetailLen caps diagnostic body excerpts
const maxDetailLen = 200

// RequestFailedError describes a failed call to the vision model
type RequestFailedError struct {
	Provider   string
	StatusCode int    // 0 when no HTTP response was received
	Detail     string // truncated response body or reason
	Err        error
}

func (e *RequestFailedError) Error() string {
	msg := fmt.Sprintf("%s request failed", e.Provider)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RequestFailedError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrRequestFailed) match
func (e *RequestFailedError) Is(target error) bool { return target == ErrRequestFailed }

func requestFailed(provider string, status int, detail string, err error) *RequestFailedError {
	return &RequestFailedError{
		Provider:   provider,
		StatusCode: status,
		Detail:     truncate(detail, maxDetailLen),
		Err:        err,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// back off to a rune boundary
	cut := n
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + "..."
}
