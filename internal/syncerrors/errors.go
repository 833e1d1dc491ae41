package syncerrors

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// Sentinel errors for remote reconciliation failures. Callers branch with
// errors.Is; every path that swallows one of these must record it in the
// sync log first.
var (
	// ErrCredentialExpired means the refresh token was rejected by the
	// provider. The stored credential is kept so the user can re-connect;
	// dependent watches should be treated as stale.
	ErrCredentialExpired = errors.New("credential expired")

	// ErrCursorInvalid means the provider rejected the incremental cursor.
	// The caller falls back to a full-range fetch.
	ErrCursorInvalid = errors.New("sync cursor invalid")

	// ErrRemoteNotFound is a deletion signal, not a failure.
	ErrRemoteNotFound = errors.New("remote resource not found")

	// ErrRemoteRateLimited tells the scheduler to back off.
	ErrRemoteRateLimited = errors.New("remote rate limited")

	// ErrRemoteUnavailable is transient; the next tick retries.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrMappingUnknown flags an unrecognized provider value that was mapped
	// to the most conservative local state.
	ErrMappingUnknown = errors.New("unknown provider value")
)

// FromGoogle maps a Google API error onto the taxonomy. Returns the original
// error when it carries no special meaning.
func FromGoogle(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	switch gerr.Code {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrRemoteNotFound, err)
	case http.StatusGone:
		// Calendar/Gmail signal an expired sync token with 410.
		return fmt.Errorf("%w: %v", ErrCursorInvalid, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrRemoteRateLimited, err)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", ErrCredentialExpired, err)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return err
}

// FromTokenRefresh classifies a failed oauth2 token exchange. A 4xx from the
// token endpoint means the grant is revoked; anything else is transient.
func FromTokenRefresh(err error) error {
	if err == nil {
		return nil
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.Response != nil && rerr.Response.StatusCode >= 400 && rerr.Response.StatusCode < 500 {
			return fmt.Errorf("%w: %v", ErrCredentialExpired, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
}
