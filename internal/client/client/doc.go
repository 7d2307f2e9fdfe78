// Package client talks to the foliokeeper REST API on behalf of the CLI.
//
// HTTPClient implements Client over net/http. Error envelopes returned by
// the server are decoded into *APIError, which unwraps to one of the
// sentinel errors (ErrUnauthorized, ErrTokenExpired, ErrConflict,
// ErrNotFound, ErrValidation) so callers can match them with errors.Is.
// Transport failures are reported as ErrUnavailable.
//
// Authenticated calls read the token pair from a TokenStore. When the
// server answers TOKEN_EXPIRED the client refreshes the pair once, saves
// it back to the store and retries the call.
//
// InitDatabase and RunMigrations bootstrap the local SQLite database that
// holds the session.
package client
