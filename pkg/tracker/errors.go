package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrNotFound is matched by APIError values with a 404 status.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx Jira reply. Messages combines errorMessages with
// the per-field errors rendered as "field: message".
type APIError struct {
	StatusCode int
	Status     string
	Messages   []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("jira returned %s", e.Status)
	}
	return strings.Join(e.Messages, "\n")
}

// Is lets errors.Is(err, ErrNotFound) match 404 replies.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Unauthorized reports whether Jira rejected the credentials.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

type errorBody struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

// newAPIError reads Jira's {errorMessages, errors} body. Unparseable bodies
// leave Messages empty.
func newAPIError(statusCode int, status string, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Status: status}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return apiErr
	}
	apiErr.Messages = append(apiErr.Messages, parsed.ErrorMessages...)

	fields := make([]string, 0, len(parsed.Errors))
	for field := range parsed.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		apiErr.Messages = append(apiErr.Messages, field+": "+parsed.Errors[field])
	}
	return apiErr
}
