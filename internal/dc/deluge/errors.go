package deluge

import "fmt"

// RPCError is an error object returned by the daemon for a call.
type RPCError struct {
	Method  string // RPC method that failed (e.g. "core.add_torrent_file")
	Code    int    // Deluge error code
	Message string // Error message from the daemon
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("deluge %s failed (code %d): %s", e.Method, e.Code, e.Message)
}

// NetworkError represents transport failures and non-200 responses from the
// JSON-RPC endpoint.
type NetworkError struct {
	Operation  string // RPC method being called
	StatusCode int    // HTTP status code, 0 for non-HTTP errors
	Message    string // Response body or transport message
	Err        error  // Underlying error, if any
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("network error during %s (HTTP %d): %s", e.Operation, e.StatusCode, e.Message)
	}

	return fmt.Sprintf("network error during %s: %s", e.Operation, e.Message)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// AuthenticationError represents a rejected login or an expired session.
type AuthenticationError struct {
	Operation string // The operation that required authentication
	Err       error  // Underlying error, if any
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed during %s", e.Operation)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}
