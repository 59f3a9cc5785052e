package warehouse

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// RemoteAPIError is returned when BigQuery rejects a request
type RemoteAPIError struct {
	Op      string
	Code    int
	Message string
	Err     error
}

func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("bigquery %s failed (%d): %s", e.Op, e.Code, e.Message)
}

func (e *RemoteAPIError) Unwrap() error {
	return e.Err
}

// Conflict reports whether the resource already exists
func (e *RemoteAPIError) Conflict() bool {
	return e.Code == http.StatusConflict
}

// NotFound reports whether the resource does not exist
func (e *RemoteAPIError) NotFound() bool {
	return e.Code == http.StatusNotFound
}

// IsConflict reports whether err is a RemoteAPIError for an existing resource
func IsConflict(err error) bool {
	var apiErr *RemoteAPIError
	return errors.As(err, &apiErr) && apiErr.Conflict()
}

// IsNotFound reports whether err is a RemoteAPIError for a missing resource
func IsNotFound(err error) bool {
	var apiErr *RemoteAPIError
	return errors.As(err, &apiErr) && apiErr.NotFound()
}

func remoteError(op string, err error) error {
	if err == nil {
		return nil
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return &RemoteAPIError{Op: op, Code: gErr.Code, Message: gErr.Message, Err: err}
	}
	return fmt.Errorf("bigquery %s failed: %w", op, err)
}
