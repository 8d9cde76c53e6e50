package providers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"imageroller/internal/domain"
	"imageroller/internal/retry"
	"imageroller/internal/services/auth"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// Labels stamped onto every snapshot this tool creates. ListImages
// only ever sees images carrying them, so manually created snapshots
// and distribution images are never candidates for deletion.
const (
	labelManagedBy = "managed-by"
	labelServer    = "imageroller-server"
	managedByValue = "imageroller"
)

// HetznerProvider implements domain.Provider using the Hetzner Cloud API.
// Server images are taken as snapshots and tracked via labels.
type HetznerProvider struct {
	client  *hcloud.Client
	timeout time.Duration
}

// NewHetznerProvider creates a HetznerProvider with the given hcloud
// client options. Default options (application name) are applied
// first; callers can override them.
func NewHetznerProvider(timeout time.Duration, opts ...hcloud.ClientOption) *HetznerProvider {
	defaults := []hcloud.ClientOption{
		hcloud.WithApplication("imageroller", "0.1.0"),
	}
	allOpts := append(defaults, opts...)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HetznerProvider{
		client:  hcloud.NewClient(allOpts...),
		timeout: timeout,
	}
}

// RegisterHetzner registers the Hetzner provider factory with the
// global registry.
func RegisterHetzner(requestTimeout time.Duration) {
	Register("hetzner", func(store auth.Store) (domain.Provider, error) {
		token, err := store.GetToken("hetzner")
		if err != nil {
			return nil, fmt.Errorf("hetzner auth: %w", domain.ErrUnauthorized)
		}

		return NewHetznerProvider(requestTimeout, hcloud.WithToken(token)), nil
	})
}

func (h *HetznerProvider) GetDisplayName() string {
	return "Hetzner"
}

// ListImages returns every snapshot this tool has taken of the given
// server. Read-only, so transient failures are retried here.
func (h *HetznerProvider) ListImages(ctx context.Context, serverID string) ([]domain.Image, error) {
	selector := fmt.Sprintf("%s=%s,%s=%s", labelManagedBy, managedByValue, labelServer, serverID)
	opts := hcloud.ImageListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: selector},
		Type:     []hcloud.ImageType{hcloud.ImageTypeSnapshot},
	}

	var hzImages []*hcloud.Image
	err := retry.Do(ctx, retry.DefaultConfig(), retry.IsTransient, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()

		var listErr error
		hzImages, listErr = h.client.Image.AllWithOpts(reqCtx, opts)
		return mapHetznerError("failed to list images", listErr)
	})
	if err != nil {
		return nil, err
	}

	images := make([]domain.Image, 0, len(hzImages))
	for _, img := range hzImages {
		images = append(images, toDomainImage(img, serverID))
	}
	return images, nil
}

// CreateImage requests a new snapshot of the server. Issued exactly
// once: a retried create could produce duplicate snapshots the engine
// has no record of.
func (h *HetznerProvider) CreateImage(ctx context.Context, serverID string, nameHint string) (domain.Image, error) {
	numericID, err := strconv.ParseInt(serverID, 10, 64)
	if err != nil {
		return domain.Image{}, fmt.Errorf("invalid server ID %q: %w", serverID, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	opts := &hcloud.ServerCreateImageOpts{
		Type:        hcloud.ImageTypeSnapshot,
		Description: hcloud.Ptr(nameHint),
		Labels: map[string]string{
			labelManagedBy: managedByValue,
			labelServer:    serverID,
		},
	}

	result, _, err := h.client.Server.CreateImage(reqCtx, &hcloud.Server{ID: numericID}, opts)
	if err != nil {
		return domain.Image{}, mapHetznerError("failed to create image", err)
	}
	if result.Image == nil {
		return domain.Image{}, fmt.Errorf("failed to create image: empty result from API")
	}

	return toDomainImage(result.Image, serverID), nil
}

// GetImage fetches the current state of a single snapshot.
func (h *HetznerProvider) GetImage(ctx context.Context, imageID string) (domain.Image, error) {
	numericID, err := strconv.ParseInt(imageID, 10, 64)
	if err != nil {
		return domain.Image{}, fmt.Errorf("invalid image ID %q: %w", imageID, err)
	}

	var img *hcloud.Image
	err = retry.Do(ctx, retry.DefaultConfig(), retry.IsTransient, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()

		var getErr error
		img, _, getErr = h.client.Image.GetByID(reqCtx, numericID)
		return mapHetznerError("failed to get image", getErr)
	})
	if err != nil {
		return domain.Image{}, err
	}
	if img == nil {
		return domain.Image{}, fmt.Errorf("failed to get image %s: %w", imageID, domain.ErrNotFound)
	}

	serverID := ""
	if img.CreatedFrom != nil {
		serverID = strconv.FormatInt(img.CreatedFrom.ID, 10)
	}
	return toDomainImage(img, serverID), nil
}

// DeleteImage removes a snapshot. Not retried: the engine treats an
// already-gone image as success and self-corrects on the next pass.
func (h *HetznerProvider) DeleteImage(ctx context.Context, imageID string) error {
	numericID, err := strconv.ParseInt(imageID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid image ID %q: %w", imageID, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	_, err = h.client.Image.Delete(reqCtx, &hcloud.Image{ID: numericID})
	return mapHetznerError("failed to delete image", err)
}

// toDomainImage converts an hcloud.Image to a domain.Image. Snapshots
// carry their human-readable name in Description; Name is only set on
// system images.
func toDomainImage(img *hcloud.Image, serverID string) domain.Image {
	name := img.Description
	if name == "" {
		name = img.Name
	}
	if serverID == "" && img.CreatedFrom != nil {
		serverID = strconv.FormatInt(img.CreatedFrom.ID, 10)
	}

	return domain.Image{
		ID:       strconv.FormatInt(img.ID, 10),
		ServerID: serverID,
		Name:     name,
		Status:   toDomainStatus(img.Status),
		Created:  img.Created,
		SizeGB:   float64(img.ImageSize),
		Labels:   img.Labels,
	}
}

func toDomainStatus(status hcloud.ImageStatus) domain.ImageStatus {
	switch status {
	case hcloud.ImageStatusCreating:
		return domain.ImagePending
	case hcloud.ImageStatusAvailable:
		return domain.ImageAvailable
	default:
		// Hetzner reports "unavailable" for failed snapshots.
		return domain.ImageError
	}
}

// mapHetznerError wraps SDK errors with the domain sentinels so the
// engine can classify failures without knowing about hcloud.
func mapHetznerError(op string, err error) error {
	if err == nil {
		return nil
	}

	var herr hcloud.Error
	if errors.As(err, &herr) {
		switch herr.Code {
		case hcloud.ErrorCodeNotFound:
			return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		case hcloud.ErrorCodeUnauthorized:
			return fmt.Errorf("%s: %w", op, domain.ErrUnauthorized)
		case hcloud.ErrorCodeRateLimitExceeded:
			return fmt.Errorf("%s: rate limited: %w", op, domain.ErrProviderUnavailable)
		case hcloud.ErrorCodeResourceLimitExceeded:
			return fmt.Errorf("%s: %w", op, domain.ErrQuotaExceeded)
		case hcloud.ErrorCodeServiceError, hcloud.ErrorCodeResourceUnavailable:
			return fmt.Errorf("%s: %s: %w", op, herr.Message, domain.ErrProviderUnavailable)
		default:
			return fmt.Errorf("%s: %s (%s)", op, herr.Message, herr.Code)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: request timed out: %w", op, domain.ErrProviderUnavailable)
	}
	return fmt.Errorf("%s: %w", op, err)
}
