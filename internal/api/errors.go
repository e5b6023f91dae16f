package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Category classifies the outcome of a gateway call.
type Category string

const (
	Success     Category = "success"
	NotFound    Category = "not-found"
	ClientError Category = "client-error"
	ServerError Category = "server-error"
	// Transport means the call never produced an HTTP response.
	Transport Category = "transport"
)

// Categorize maps an HTTP status code to a Category.
func Categorize(status int) Category {
	switch {
	case status >= 200 && status < 300:
		return Success
	case status == http.StatusNotFound:
		return NotFound
	case status >= 400 && status < 500:
		return ClientError
	default:
		return ServerError
	}
}

// Error is a tagged non-success outcome. Message is the server's
// human-readable text and is safe to show to the player.
type Error struct {
	Category  Category
	Status    int // 0 for transport failures
	Message   string
	Method    string
	Endpoint  string
	RequestID string

	// Internal holds the underlying transport or decode error, if any.
	Internal error
}

func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("api: %s %s: %s: %s (%v)", e.Method, e.Endpoint, e.Category, e.Message, e.Internal)
	}
	return fmt.Sprintf("api: %s %s: %s: %s", e.Method, e.Endpoint, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Internal
}

// CategoryOf returns the category of the first *Error in err's chain.
func CategoryOf(err error) (Category, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Category, true
	}
	return "", false
}

// Message returns the player-facing text for err: the server message for an
// *Error, or err.Error() for anything else.
func Message(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// IsNotFound reports whether err carries the not-found category.
func IsNotFound(err error) bool {
	c, ok := CategoryOf(err)
	return ok && c == NotFound
}
