package domain

import "errors"

// Sentinel errors for cross-provider error classification.
// Providers should wrap these so the engine can classify failures
// uniformly without importing provider-specific SDKs.
//
//	return fmt.Errorf("failed to delete image: %w", domain.ErrNotFound)
var (
	// ErrNotFound indicates the requested resource does not exist.
	// For deletions the engine treats this as idempotent success.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized indicates the request was rejected due to
	// invalid, expired, or missing credentials. Fatal for the run,
	// never retried.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrProviderUnavailable indicates a transient network or
	// provider-side failure, including rate limiting. Retryable at
	// the caller's discretion; the engine itself never retries beyond
	// the readiness poll loop.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrQuotaExceeded indicates the provider refused to create a new
	// image because an account limit was reached. The engine treats
	// this as a create failure and falls back to pruning only.
	ErrQuotaExceeded = errors.New("quota exceeded")
)
