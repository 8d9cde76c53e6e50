// Package retention decides which images of a server survive a pass.
//
// Evaluation is a pure function of the image set, the policy, and the
// clock: no I/O, no hidden state, identical inputs yield identical
// plans. The rolling engine is responsible for everything temporal
// (fetching fresh state, creation fallbacks, the never-zero guard).
package retention

import (
	"fmt"
	"sort"
	"time"

	"imageroller/internal/domain"
)

// Policy is a tagged choice of retention rule. Exactly one of
// KeepCount or MaxAge must be set.
type Policy struct {
	// KeepCount keeps the n most recently created images. n >= 1.
	KeepCount int
	// MaxAge keeps every image whose creation timestamp is within
	// this duration of now. Images exactly at the boundary are kept.
	MaxAge time.Duration
}

// Validate rejects policies that could not guarantee a surviving image.
func (p Policy) Validate() error {
	switch {
	case p.KeepCount != 0 && p.MaxAge != 0:
		return fmt.Errorf("retention: keep_count and max_age are mutually exclusive")
	case p.KeepCount < 0:
		return fmt.Errorf("retention: keep_count must be at least 1, got %d", p.KeepCount)
	case p.MaxAge < 0:
		return fmt.Errorf("retention: max_age must be positive, got %s", p.MaxAge)
	case p.KeepCount == 0 && p.MaxAge == 0:
		return fmt.Errorf("retention: either keep_count or max_age is required")
	}
	return nil
}

// String renders the policy for logs and run output.
func (p Policy) String() string {
	if p.KeepCount > 0 {
		return fmt.Sprintf("keep-count(%d)", p.KeepCount)
	}
	return fmt.Sprintf("max-age(%s)", p.MaxAge)
}

// Evaluation is the plan produced for one server's image set.
type Evaluation struct {
	// ToDelete lists the surplus images, oldest first. Only images
	// that were available at evaluation time are ever included.
	ToDelete []domain.Image
	// Kept lists the available images that survive, newest first.
	Kept []domain.Image
	// ShouldCreate reports whether a fresh image should be requested
	// this pass. The engine always adds one image per run, so this is
	// true on every invocation.
	ShouldCreate bool
}

// Evaluate applies the policy to a server's current image set.
//
// Images that are not available (pending, error, deleting) are
// excluded from keep/delete accounting entirely: they are neither
// trusted as recoverable nor targeted for deletion. When no available
// image exists the plan deletes nothing, regardless of policy.
func Evaluate(images []domain.Image, p Policy, now time.Time) Evaluation {
	available := make([]domain.Image, 0, len(images))
	for _, img := range images {
		if img.IsAvailable() {
			available = append(available, img)
		}
	}
	sortNewestFirst(available)

	ev := Evaluation{ShouldCreate: true}
	if len(available) == 0 {
		return ev
	}

	if p.KeepCount > 0 {
		keep := p.KeepCount
		if keep > len(available) {
			keep = len(available)
		}
		ev.Kept = available[:keep]
		ev.ToDelete = reversed(available[keep:])
		return ev
	}

	for _, img := range available {
		if now.Sub(img.Created) > p.MaxAge {
			ev.ToDelete = append(ev.ToDelete, img)
		} else {
			ev.Kept = append(ev.Kept, img)
		}
	}
	// available is newest first, so flip to delete oldest first.
	reverse(ev.ToDelete)
	return ev
}

// sortNewestFirst orders images by creation timestamp descending,
// breaking timestamp ties by image ID ascending so evaluation is
// deterministic.
func sortNewestFirst(images []domain.Image) {
	sort.SliceStable(images, func(i, j int) bool {
		if !images[i].Created.Equal(images[j].Created) {
			return images[i].Created.After(images[j].Created)
		}
		return images[i].ID < images[j].ID
	})
}

func reversed(images []domain.Image) []domain.Image {
	out := make([]domain.Image, len(images))
	for i, img := range images {
		out[len(images)-1-i] = img
	}
	return out
}

func reverse(images []domain.Image) {
	for i, j := 0, len(images)-1; i < j; i, j = i+1, j-1 {
		images[i], images[j] = images[j], images[i]
	}
}
