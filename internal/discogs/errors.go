package discogs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/domain"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/pipeline"
)

var (
	// ErrUserNotFound is returned when a user-scoped listing names an unknown user.
	ErrUserNotFound = errors.New("discogs user does not exist")
	// ErrMalformedResponse marks a 2xx body that could not be decoded. It is
	// never retried.
	ErrMalformedResponse = errors.New("malformed response from discogs")
)

const maxErrorMessage = 300

// StatusError is a non-2xx API result.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("discogs %s: HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("discogs %s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// checkResponse converts a non-2xx response to an error. username is set for
// user-scoped listings, where a 404 can mean the user does not exist.
func checkResponse(op, username string, resp *pipeline.Response) error {
	if resp.OK() {
		return nil
	}

	msg := errorMessage(resp.Body)
	if resp.StatusCode == http.StatusNotFound && username != "" &&
		strings.Contains(strings.ToLower(msg), "user does not exist") {
		return fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}

	return &StatusError{Op: op, StatusCode: resp.StatusCode, Message: msg}
}

func errorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Message != "" {
		return eb.Message
	}
	return domain.Truncate(strings.TrimSpace(string(body)), maxErrorMessage)
}

func decode(op string, body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, op, err)
	}
	return nil
}
