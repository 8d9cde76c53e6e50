package domain

import "context"

// Provider is the authenticated image API of one cloud provider.
//
// All calls are network calls and honor the passed context for
// request-level timeouts and cancellation. Implementations wrap
// failures with the sentinel errors in this package.
type Provider interface {
	GetDisplayName() string

	// ListImages returns every image managed by this tool for the
	// given server, in no particular order.
	ListImages(ctx context.Context, serverID string) ([]Image, error)

	// CreateImage requests a new image of the server. The returned
	// Image is typically still pending; nameHint is a presentation
	// detail and is not otherwise interpreted.
	CreateImage(ctx context.Context, serverID string, nameHint string) (Image, error)

	// GetImage fetches the current state of a single image.
	GetImage(ctx context.Context, imageID string) (Image, error)

	// DeleteImage removes an image. Deleting an image that no longer
	// exists returns an error wrapping ErrNotFound.
	DeleteImage(ctx context.Context, imageID string) error
}
