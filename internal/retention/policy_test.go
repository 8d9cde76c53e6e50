package retention

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"imageroller/internal/domain"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// img builds an available image created the given duration before testNow.
func img(id string, age time.Duration) domain.Image {
	return domain.Image{
		ID:       id,
		ServerID: "srv-1",
		Status:   domain.ImageAvailable,
		Created:  testNow.Add(-age),
	}
}

func ids(images []domain.Image) []string {
	out := make([]string, 0, len(images))
	for _, i := range images {
		out = append(out, i.ID)
	}
	return out
}

func TestEvaluate_KeepCount_DeletesOldestSurplus(t *testing.T) {
	images := []domain.Image{
		img("c", 3*time.Hour),
		img("a", 5*time.Hour),
		img("e", 1*time.Hour),
		img("b", 4*time.Hour),
		img("d", 2*time.Hour),
	}

	ev := Evaluate(images, Policy{KeepCount: 3}, testNow)

	if !ev.ShouldCreate {
		t.Error("expected ShouldCreate to be true")
	}
	// The two oldest go, oldest first.
	if diff := cmp.Diff([]string{"a", "b"}, ids(ev.ToDelete)); diff != "" {
		t.Errorf("ToDelete mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"e", "d", "c"}, ids(ev.Kept)); diff != "" {
		t.Errorf("Kept mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluate_KeepCount_UnderCount_DeletesNothing(t *testing.T) {
	images := []domain.Image{
		img("a", 2*time.Hour),
		img("b", 1*time.Hour),
	}

	ev := Evaluate(images, Policy{KeepCount: 3}, testNow)

	if len(ev.ToDelete) != 0 {
		t.Errorf("expected empty ToDelete, got %v", ids(ev.ToDelete))
	}
	if len(ev.Kept) != 2 {
		t.Errorf("expected 2 kept, got %d", len(ev.Kept))
	}
}

func TestEvaluate_KeepCount_TieBrokenByIDAscending(t *testing.T) {
	// Three images share one timestamp; the lowest IDs are "newest".
	images := []domain.Image{
		img("b", time.Hour),
		img("c", time.Hour),
		img("a", time.Hour),
	}

	ev := Evaluate(images, Policy{KeepCount: 2}, testNow)

	if diff := cmp.Diff([]string{"c"}, ids(ev.ToDelete)); diff != "" {
		t.Errorf("ToDelete mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b"}, ids(ev.Kept)); diff != "" {
		t.Errorf("Kept mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluate_MaxAge_BoundaryEqualityIsKept(t *testing.T) {
	images := []domain.Image{
		img("exact", 24*time.Hour),
		img("young", time.Hour),
		img("stale", 24*time.Hour+time.Second),
		img("older", 48*time.Hour),
	}

	ev := Evaluate(images, Policy{MaxAge: 24 * time.Hour}, testNow)

	// Deleted oldest first; the image exactly at the boundary survives.
	if diff := cmp.Diff([]string{"older", "stale"}, ids(ev.ToDelete)); diff != "" {
		t.Errorf("ToDelete mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"young", "exact"}, ids(ev.Kept)); diff != "" {
		t.Errorf("Kept mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluate_IgnoresNonAvailableImages(t *testing.T) {
	pending := domain.Image{ID: "p", Status: domain.ImagePending, Created: testNow.Add(-72 * time.Hour)}
	erred := domain.Image{ID: "x", Status: domain.ImageError, Created: testNow.Add(-72 * time.Hour)}
	deleting := domain.Image{ID: "g", Status: domain.ImageDeleting, Created: testNow.Add(-72 * time.Hour)}
	images := []domain.Image{pending, erred, deleting, img("a", 48 * time.Hour)}

	for _, tc := range []struct {
		name   string
		policy Policy
	}{
		{"keep_count", Policy{KeepCount: 1}},
		{"max_age", Policy{MaxAge: 24 * time.Hour}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ev := Evaluate(images, tc.policy, testNow)
			for _, del := range ev.ToDelete {
				if !del.IsAvailable() {
					t.Errorf("non-available image %q marked for deletion", del.ID)
				}
			}
		})
	}
}

func TestEvaluate_NoAvailableImages_DeletesNothing(t *testing.T) {
	images := []domain.Image{
		{ID: "p", Status: domain.ImagePending, Created: testNow.Add(-100 * time.Hour)},
	}

	ev := Evaluate(images, Policy{MaxAge: time.Hour}, testNow)

	if len(ev.ToDelete) != 0 {
		t.Errorf("expected empty ToDelete with no available images, got %v", ids(ev.ToDelete))
	}
	if !ev.ShouldCreate {
		t.Error("expected ShouldCreate to be true")
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	images := []domain.Image{
		img("a", 5*time.Hour),
		img("b", 4*time.Hour),
		img("c", 3*time.Hour),
	}

	first := Evaluate(images, Policy{KeepCount: 1}, testNow)
	second := Evaluate(images, Policy{KeepCount: 1}, testNow)

	if diff := cmp.Diff(ids(first.ToDelete), ids(second.ToDelete)); diff != "" {
		t.Errorf("evaluations differ (-first +second):\n%s", diff)
	}
}

func TestEvaluate_DoesNotMutateInput(t *testing.T) {
	images := []domain.Image{
		img("b", 2*time.Hour),
		img("a", 1*time.Hour),
	}
	Evaluate(images, Policy{KeepCount: 1}, testNow)

	if images[0].ID != "b" || images[1].ID != "a" {
		t.Errorf("input slice reordered: %v", ids(images))
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{"keep count", Policy{KeepCount: 3}, false},
		{"max age", Policy{MaxAge: 24 * time.Hour}, false},
		{"neither", Policy{}, true},
		{"both", Policy{KeepCount: 3, MaxAge: time.Hour}, true},
		{"negative count", Policy{KeepCount: -1}, true},
		{"negative age", Policy{MaxAge: -time.Hour}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.policy.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
