package domain

import "time"

// ImageStatus is the lifecycle state of a server image as reported by
// the provider. The engine only ever observes transitions; it never
// sets a status itself.
type ImageStatus string

const (
	// ImagePending means the provider is still building the image.
	ImagePending ImageStatus = "pending"
	// ImageAvailable means the image is complete and restorable.
	ImageAvailable ImageStatus = "available"
	// ImageError means the provider failed to build the image. Terminal.
	ImageError ImageStatus = "error"
	// ImageDeleting means a delete has been accepted but not finished.
	ImageDeleting ImageStatus = "deleting"
	// ImageDeleted means the image is gone.
	ImageDeleted ImageStatus = "deleted"
)

// Image represents one remote server image across providers.
//
// Instances are advisory copies of provider state fetched at pass
// boundaries. A cached Image must never be trusted for a destructive
// decision without re-fetching first.
type Image struct {
	ID       string      `json:"id"`
	ServerID string      `json:"server_id"`
	Name     string      `json:"name"`
	Status   ImageStatus `json:"status"`
	Created  time.Time   `json:"created"`
	SizeGB   float64     `json:"size_gb,omitempty"`

	// Labels holds provider-specific metadata, passed through unmodified.
	Labels map[string]string `json:"labels,omitempty"`
}

// IsAvailable reports whether the image is complete and restorable.
func (i Image) IsAvailable() bool {
	return i.Status == ImageAvailable
}

// IsTerminal reports whether the image has reached a state the
// readiness wait can stop polling on.
func (i Image) IsTerminal() bool {
	return i.Status == ImageAvailable || i.Status == ImageError
}
