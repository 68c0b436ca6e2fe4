package client

import "fmt"

// ConfigurationError reports an invalid or conflicting builder call, detected
// before any network activity.
type ConfigurationError struct {
	Op     string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid request configuration: %s: %s", e.Op, e.Reason)
}

// FileNotFoundError reports a multipart attachment whose path does not
// resolve to a readable file at finalize time.
type FileNotFoundError struct {
	Field string
	Path  string
	Err   error
}

func (e *FileNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("attachment %q: file not found: %s: %v", e.Field, e.Path, e.Err)
	}
	return fmt.Sprintf("attachment %q: file not found: %s", e.Field, e.Path)
}

func (e *FileNotFoundError) Unwrap() error { return e.Err }

// NetworkError reports a transport failure while executing the request.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError reports that the request did not complete within the
// configured timeout.
type TimeoutError struct {
	URL string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request to %s timed out: %v", e.URL, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }
