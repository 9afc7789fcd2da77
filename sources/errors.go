package sources

import "fmt"

// AuthError reports a token exchange that did not yield an access token.
// StatusCode is 0 when no HTTP response was received.
type AuthError struct {
	StatusCode int
	Code       string
	Err        error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("reddit auth failed with status %d", e.StatusCode)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// FetchError reports a listing request that did not return 200.
type FetchError struct {
	StatusCode int
	URL        string
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	msg := fmt.Sprintf("reddit returned status %d for %s", e.StatusCode, e.URL)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }
