package crawl

import (
	"errors"
	"fmt"

	"github.com/david/civic-crawler/internal/models"
)

// ErrConfig wraps startup configuration failures; the CLI maps it to exit
// code 1.
var ErrConfig = errors.New("config error")

// ErrTooLarge marks a download aborted by the size gate.
var ErrTooLarge = errors.New("content too large")

// FetchError carries the error taxonomy type alongside the failing URL so
// the monitor can upsert the right CrawlError.
type FetchError struct {
	Type    models.ErrorType
	URL     string
	Status  int
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Message, e.Status)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Message)
}

func (e *FetchError) Unwrap() error { return e.Err }

func newFetchError(t models.ErrorType, url string, status int, msg string, err error) *FetchError {
	return &FetchError{Type: t, URL: url, Status: status, Message: msg, Err: err}
}
