// Package platformerrors contains generic errors returned by code talking to the
// machine learning platform's management API. Callers look for these types with
// errors.As rather than inspecting HTTP responses themselves.
//
// If multiple errors occur in some function (e.g., cleaning up several scopes), that
// function should return an error of type multierror.Error from package
// github.com/hashicorp/go-multierror that encapsulates those individual errors.
package platformerrors

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// ErrNotFound is returned whenever some platform resource doesn't exist.
// Type and Message are optional and are omitted from the error message if not provided.
type ErrNotFound struct {
	Type    string // Resource type, e.g., "endpoint" or "model"
	Value   string // Resource name, e.g., "taxi-fare-ws"
	Message string // An optional message to include in the error message
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	}
	return s
}

// ErrInvalidArgument is returned on invalid user input.
// Message is optional and is omitted from the error message if not provided.
type ErrInvalidArgument struct {
	Name    string      // Name of the flag or field referred to, e.g., "retain-versions"
	Value   interface{} // The invalid value that was provided
	Message string      // Why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %v is invalid for field %q", err.Value, err.Name)
	}
	return fmt.Sprintf("value %v is invalid for field %q; %s", err.Value, err.Name, err.Message)
}

// ErrHttp is returned when the management API answers with an unexpected status.
type ErrHttp struct {
	StatusCode int
	Code       string
	Message    string
	Url        string
}

func (err *ErrHttp) Error() string {
	if err.Code != "" {
		return fmt.Sprintf("%s returned status %d (%s): %s", err.Url, err.StatusCode, err.Code, err.Message)
	}
	return fmt.Sprintf("%s returned status %d: %s", err.Url, err.StatusCode, err.Message)
}

// ErrOperationFailed is returned when a long-running operation ends in a terminal,
// unsuccessful state.
type ErrOperationFailed struct {
	Operation string
	Status    string
	Message   string
}

func (err *ErrOperationFailed) Error() string {
	if err.Message != "" {
		return fmt.Sprintf("operation %s finished with status %s: %s", err.Operation, err.Status, err.Message)
	}
	return fmt.Sprintf("operation %s finished with status %s", err.Operation, err.Status)
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// FromResponse converts a non-successful HTTP response into an error. A 404 becomes
// an *ErrNotFound describing resourceType/resourceName; anything else becomes an *ErrHttp.
// The response body is consumed but not closed.
func FromResponse(resp *http.Response, resourceType, resourceName string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var parsed errorResponse
	message := string(body)
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	}

	if resp.StatusCode == http.StatusNotFound {
		return errors.WithStack(&ErrNotFound{
			Type:    resourceType,
			Value:   resourceName,
			Message: message,
		})
	}
	url := ""
	if resp.Request != nil && resp.Request.URL != nil {
		url = resp.Request.Method + " " + resp.Request.URL.Path
	}
	return errors.WithStack(&ErrHttp{
		StatusCode: resp.StatusCode,
		Code:       parsed.Error.Code,
		Message:    message,
		Url:        url,
	})
}

// IsNotFound reports whether any error in err's chain is an *ErrNotFound.
func IsNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}

// StatusFromError maps error types to the HTTP status a caller should report.
// Uses errors.As to look through the chain of errors, as opposed to just considering the topmost error in the chain.
func StatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	{
		var e *ErrHttp
		if errors.As(err, &e) {
			return e.StatusCode
		}
	}
	{
		var e *ErrNotFound
		if errors.As(err, &e) {
			return http.StatusNotFound
		}
	}
	{
		var e *ErrInvalidArgument
		if errors.As(err, &e) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}
