package roller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"imageroller/internal/config"
)

// fakeRoller returns canned results per server and can be told to
// panic or stall for specific servers.
type fakeRoller struct {
	classify  func(spec config.ServerSpec) Classification
	panicOn   string
	delay     time.Duration
	inFlight  atomic.Int32
	maxSeen   atomic.Int32
	rollCount atomic.Int32
}

func (f *fakeRoller) Roll(_ context.Context, spec config.ServerSpec) RunResult {
	f.rollCount.Add(1)
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if cur <= seen || f.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}

	if spec.ID == f.panicOn {
		panic("engine blew up for " + spec.ID)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	classification := Success
	if f.classify != nil {
		classification = f.classify(spec)
	}
	return RunResult{
		ServerID:       spec.ID,
		ServerName:     spec.DisplayName(),
		Classification: classification,
	}
}

func specs(ids ...string) []config.ServerSpec {
	out := make([]config.ServerSpec, 0, len(ids))
	for _, id := range ids {
		out = append(out, config.ServerSpec{ID: id, Name: "srv-" + id, KeepCount: 3})
	}
	return out
}

func TestRun_ResultsPreserveInputOrder(t *testing.T) {
	// Stagger completion by making earlier servers slower.
	roller := &fakeRoller{delay: 5 * time.Millisecond}
	c := NewCoordinator(roller, 4, zap.NewNop())

	report := c.Run(t.Context(), specs("a", "b", "c", "d"))

	if report.RunID == "" {
		t.Error("expected a run ID")
	}
	if len(report.Results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(report.Results))
	}
	for i, want := range []string{"a", "b", "c", "d"} {
		if report.Results[i].ServerID != want {
			t.Errorf("results[%d].ServerID = %q, want %q", i, report.Results[i].ServerID, want)
		}
	}
	if report.Failed() {
		t.Error("expected report not to be failed")
	}
}

func TestRun_BoundsConcurrency(t *testing.T) {
	roller := &fakeRoller{delay: 10 * time.Millisecond}
	c := NewCoordinator(roller, 2, zap.NewNop())

	c.Run(t.Context(), specs("a", "b", "c", "d", "e", "f"))

	if got := roller.maxSeen.Load(); got > 2 {
		t.Errorf("observed %d passes in flight, limit is 2", got)
	}
	if got := roller.rollCount.Load(); got != 6 {
		t.Errorf("expected 6 passes, got %d", got)
	}
}

func TestRun_PanickingEngineIsIsolated(t *testing.T) {
	roller := &fakeRoller{panicOn: "b"}
	c := NewCoordinator(roller, 3, zap.NewNop())

	report := c.Run(t.Context(), specs("a", "b", "c"))

	if len(report.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(report.Results))
	}
	if report.Results[1].Classification != Failure {
		t.Errorf("panicking server classification = %q, want failure", report.Results[1].Classification)
	}
	if report.Results[1].FetchErr == nil {
		t.Error("expected an error describing the panic")
	}
	for _, i := range []int{0, 2} {
		if report.Results[i].Classification != Success {
			t.Errorf("results[%d].Classification = %q, want success", i, report.Results[i].Classification)
		}
	}
	if !report.Failed() {
		t.Error("expected report to be failed")
	}
}

func TestRun_PartialFailureDoesNotFailRun(t *testing.T) {
	roller := &fakeRoller{classify: func(spec config.ServerSpec) Classification {
		if spec.ID == "b" {
			return PartialFailure
		}
		return Success
	}}
	c := NewCoordinator(roller, 2, zap.NewNop())

	report := c.Run(t.Context(), specs("a", "b"))

	if report.Failed() {
		t.Error("partial failures must not fail the run")
	}
}

func TestRun_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	roller := &fakeRoller{}
	c := NewCoordinator(roller, 1, zap.NewNop())

	report := c.Run(ctx, specs("a", "b"))

	for i, res := range report.Results {
		if res.Classification != Failure {
			t.Errorf("results[%d].Classification = %q, want failure", i, res.Classification)
		}
		if res.ServerID == "" {
			t.Errorf("results[%d] missing server attribution", i)
		}
	}
}
