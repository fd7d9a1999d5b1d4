package models

import "fmt"

// ConfigurationError means required setup is missing, for example the agent
// domain or API credentials. It is raised before any network call.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s (%s)", e.Setting, e.Reason)
}

// FileNotFoundError means a catalog source file is unreadable.
type FileNotFoundError struct {
	Path string
	Err  error
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file not found or unreadable: %s", e.Path)
}

func (e *FileNotFoundError) Unwrap() error { return e.Err }

// AuthenticationError maps upstream 401/403 responses.
type AuthenticationError struct {
	StatusCode int
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("upstream rejected credentials (status %d)", e.StatusCode)
}

// RateLimitError maps upstream 429 responses.
type RateLimitError struct {
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("upstream rate limit exceeded (status %d)", e.StatusCode)
}

// UpstreamRequestError is any other non-2xx upstream response. It carries the
// response body for diagnostics.
type UpstreamRequestError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamRequestError) Error() string {
	return fmt.Sprintf("upstream request failed (status %d): %s", e.StatusCode, e.Body)
}

// TaskTimeoutError means polling for a catalog task exhausted its attempts
// without the task reaching a terminal state.
type TaskTimeoutError struct {
	TaskID   string
	Attempts int
}

func (e *TaskTimeoutError) Error() string {
	return fmt.Sprintf("task %s did not complete after %d attempts", e.TaskID, e.Attempts)
}
