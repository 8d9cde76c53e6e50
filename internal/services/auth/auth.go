// Package auth resolves provider API tokens.
//
// Tokens come from a credentials file passed on the command line
// (the cron-friendly path) or from the OS keychain when no file is
// given. The rest of the program only sees the Store interface.
package auth

import (
	"errors"

	"imageroller/internal/util"
)

const ServiceName = "imageroller"

var ErrTokenNotFound = errors.New("auth token not found")

type Store interface {
	SetToken(provider string, token string) error
	GetToken(provider string) (string, error)
	DeleteToken(provider string) error
}

// DefaultStore returns the standard auth store backed by the OS keychain.
func DefaultStore() Store {
	return NewKeyringStore(ServiceName)
}

// StoreFor returns a Store for the given credentials file path. An
// empty path selects the OS keychain.
func StoreFor(credentialsPath string) (Store, error) {
	if credentialsPath == "" {
		return DefaultStore(), nil
	}
	return NewFileStore(credentialsPath)
}

// NormalizeProvider normalizes a provider name for consistent key lookup.
func NormalizeProvider(provider string) string {
	return util.NormalizeKey(provider)
}
