// Package common contains shared constants and sentinel errors used across
// foliokeeper components.
package common

const (
	// AuthorizationHeaderName carries "Bearer <token>" on HTTP requests and
	// in gRPC metadata.
	AuthorizationHeaderName = "authorization"

	// AccessTokenHeaderName is the legacy gRPC metadata key that carries a
	// bare access token.
	AccessTokenHeaderName = "access_token"

	// RequestIDHeaderName correlates a request across log lines.
	RequestIDHeaderName = "X-Request-ID"
)
