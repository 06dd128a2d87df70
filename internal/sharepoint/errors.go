package sharepoint

import (
	"errors"
	"fmt"
	"net/http"

	jujuerrors "github.com/juju/errors"
	"golang.org/x/oauth2"
)

// StatusError is a non-2xx response from SharePoint or the token endpoint.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: %s: %s", e.Method, e.URL, e.Status, e.Body)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
}

// IsTransient reports whether err is a server condition expected to clear
// on its own: 503 Service Unavailable or 429 Too Many Requests.
func IsTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return transientStatus(se.StatusCode)
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return transientStatus(re.Response.StatusCode)
	}
	return false
}

func transientStatus(code int) bool {
	return code == http.StatusServiceUnavailable || code == http.StatusTooManyRequests
}

// AuthError is returned when a session cannot be established. It matches
// errors.Unauthorized from github.com/juju/errors.
type AuthError struct {
	SiteURL string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.SiteURL, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Is(target error) bool {
	return target == jujuerrors.Unauthorized
}

// IsAuthError reports whether err came from a failed authentication.
func IsAuthError(err error) bool {
	return errors.Is(err, jujuerrors.Unauthorized)
}
