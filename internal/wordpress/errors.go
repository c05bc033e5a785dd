package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/go-resty/resty/v2"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrUnauthorized indicates the site rejected the supplied credentials
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = errors.New("not found")

	// ErrMaxAttemptsExceeded indicates a transient failure outlived the retry budget
	ErrMaxAttemptsExceeded = errors.New("maximum attempts exceeded")
)

// APIError is a non-success response from a WordPress REST endpoint. Code and
// Message come from the standard WP_Error body when one is present.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Code       string
	Message    string
	Params     map[string]string
	TermID     int
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: status %d: %s (%s)", e.Method, e.URL, e.StatusCode, e.Message, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status int                        `json:"status"`
		Params map[string]json.RawMessage `json:"params"`
		TermID int                        `json:"term_id"`
	} `json:"data"`
}

func newAPIError(resp *resty.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode()}
	if resp.Request != nil {
		apiErr.Method = resp.Request.Method
		apiErr.URL = resp.Request.URL
	}

	var body errorBody
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		apiErr.TermID = body.Data.TermID
		if len(body.Data.Params) > 0 {
			apiErr.Params = make(map[string]string, len(body.Data.Params))
			for key, raw := range body.Data.Params {
				var msg string
				if err := json.Unmarshal(raw, &msg); err != nil {
					msg = string(raw)
				}
				apiErr.Params[key] = msg
			}
		}
	}
	return apiErr
}

// RetryError is returned once every attempt of an operation hit a transient
// failure. Last holds the final failure so callers can still inspect it.
type RetryError struct {
	Op       string
	Attempts int
	Last     error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Last)
}

func (e *RetryError) Unwrap() []error {
	return []error{ErrMaxAttemptsExceeded, e.Last}
}

// AsAPIError extracts an APIError from err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// isTransient reports whether a transport-level failure is worth another attempt.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}

func checkStatus(resp *resty.Response, expected ...int) error {
	for _, status := range expected {
		if resp.StatusCode() == status {
			return nil
		}
	}
	return newAPIError(resp)
}
