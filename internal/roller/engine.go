// Package roller implements the image-rolling engine: one pass per
// server (fetch, create, await readiness, re-evaluate, prune) and the
// coordinator that fans passes out across servers.
package roller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"imageroller/internal/config"
	"imageroller/internal/domain"
	"imageroller/internal/retention"
)

// maxTransientPollErrors is the number of consecutive transient
// errors the readiness wait tolerates before giving up. This rides
// out brief network blips without abandoning a snapshot that is
// still being built server-side.
const maxTransientPollErrors = 3

// EngineConfig carries the per-pass tunables. All fields have
// sensible zero-value defaults applied by NewEngine.
type EngineConfig struct {
	// PollInterval is the delay between readiness poll requests.
	PollInterval time.Duration
	// PollDeadline bounds the whole readiness wait. It also serves as
	// the grace window after which stuck non-available images are
	// reported as anomalies.
	PollDeadline time.Duration
	// DryRun evaluates and reports without creating or deleting.
	DryRun bool
	// NameHint renders the name for a new image. Presentation only;
	// the engine never parses it back.
	NameHint func(spec config.ServerSpec, now time.Time) string
}

// Engine runs one pass per server. It is stateless across passes:
// every decision is made on state freshly fetched from the provider,
// so repeated invocations naturally self-correct.
type Engine struct {
	provider domain.Provider
	cfg      EngineConfig
	log      *zap.Logger
	now      func() time.Time
}

// NewEngine creates an Engine for the given provider.
func NewEngine(provider domain.Provider, cfg EngineConfig, log *zap.Logger) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = config.DefaultPollInterval
	}
	if cfg.PollDeadline <= 0 {
		cfg.PollDeadline = config.DefaultPollDeadline
	}
	if cfg.NameHint == nil {
		cfg.NameHint = DefaultNameHint
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		provider: provider,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// DefaultNameHint names images "<server>-<UTC timestamp>".
func DefaultNameHint(spec config.ServerSpec, now time.Time) string {
	return fmt.Sprintf("%s-%s", spec.DisplayName(), now.UTC().Format("20060102T150405"))
}

// Roll executes one full pass for a single server. It never panics
// outward and never returns an error: every failure mode is folded
// into the RunResult classification.
func (e *Engine) Roll(ctx context.Context, spec config.ServerSpec) RunResult {
	start := e.now()
	log := e.log.With(zap.String("server_id", spec.ID), zap.String("server", spec.DisplayName()))
	policy := spec.Retention()

	result := RunResult{
		ServerID:   spec.ID,
		ServerName: spec.DisplayName(),
		Policy:     policy,
		DryRun:     e.cfg.DryRun,
	}
	defer func() { result.Duration = e.now().Sub(start) }()

	// Fetch. Nothing destructive may happen without a current view.
	images, err := e.provider.ListImages(ctx, spec.ID)
	if err != nil {
		log.Error("failed to fetch image list", zap.Error(err))
		result.FetchErr = err
		result.Classification = Failure
		return result
	}
	result.Anomalies = e.findAnomalies(images, start)
	for _, img := range result.Anomalies {
		log.Warn("image stuck outside available state",
			zap.String("image_id", img.ID),
			zap.String("status", string(img.Status)),
			zap.Time("created", img.Created))
	}

	// Pre-evaluate. This surplus is only ever used as a fallback when
	// creation fails; a successful create invalidates it.
	pre := retention.Evaluate(images, policy, start)
	availableBefore := len(pre.Kept) + len(pre.ToDelete)
	log.Info("evaluated retention",
		zap.String("policy", policy.String()),
		zap.Int("available", availableBefore),
		zap.Int("surplus", len(pre.ToDelete)))

	if e.cfg.DryRun {
		for _, img := range pre.ToDelete {
			result.Deletions = append(result.Deletions, DeleteOutcome{Image: img})
		}
		result.Classification = Success
		return result
	}

	// Create.
	nameHint := e.cfg.NameHint(spec, start)
	created, createErr := e.provider.CreateImage(ctx, spec.ID, nameHint)
	if createErr != nil {
		log.Error("failed to create image", zap.String("name", nameHint), zap.Error(createErr))
		result.CreateErr = createErr
		return e.pruneAfterCreateFailure(ctx, log, result, pre, availableBefore)
	}
	log.Info("requested image", zap.String("image_id", created.ID), zap.String("name", nameHint))

	// Await readiness.
	final, waitErr := e.awaitReady(ctx, log, created)
	result.Created = &final
	switch {
	case waitErr == nil && final.IsAvailable():
		// fall through to post-evaluate
	case errors.Is(waitErr, errReadinessTimeout):
		// An in-flight, unconfirmed image must never be the reason
		// old images are removed.
		log.Warn("image still pending at deadline, skipping deletions",
			zap.String("image_id", created.ID),
			zap.Duration("deadline", e.cfg.PollDeadline))
		result.TimedOut = true
		result.Classification = PartialFailure
		return result
	case errors.Is(waitErr, context.Canceled):
		// External cancellation: stop without pruning on a stale view.
		result.CreateErr = waitErr
		result.Classification = Failure
		return result
	default:
		// Image reached error state, vanished, or polling gave up.
		log.Error("image did not become available", zap.String("image_id", created.ID), zap.Error(waitErr))
		result.CreateErr = waitErr
		return e.pruneAfterCreateFailure(ctx, log, result, pre, availableBefore)
	}

	// Post-evaluate on a fresh read. The pre-create snapshot predates
	// the creation outcome and must not drive deletions now.
	fresh, err := e.provider.ListImages(ctx, spec.ID)
	if err != nil {
		log.Error("failed to re-fetch image list, skipping deletions", zap.Error(err))
		result.PruneSkipped = err
		result.Classification = PartialFailure
		return result
	}
	post := retention.Evaluate(fresh, policy, e.now())

	result.Deletions = e.deleteAll(ctx, log, post.ToDelete)
	if len(result.FailedDeletions()) > 0 {
		result.Classification = PartialFailure
	} else {
		result.Classification = Success
	}
	return result
}

// pruneAfterCreateFailure enforces retention with the pre-create
// surplus so old images do not accumulate indefinitely, while
// guaranteeing at least one available image survives.
func (e *Engine) pruneAfterCreateFailure(ctx context.Context, log *zap.Logger, result RunResult, pre retention.Evaluation, availableBefore int) RunResult {
	if availableBefore == 0 {
		// No recoverable image exists and we could not make one.
		log.Error("server has no available image and creation failed")
		result.Classification = Failure
		return result
	}

	toDelete := keepSurvivor(pre.ToDelete, availableBefore)
	result.Deletions = e.deleteAll(ctx, log, toDelete)
	if len(result.FailedDeletions()) > 0 {
		result.Classification = Failure
	} else {
		result.Classification = PartialFailure
	}
	return result
}

// keepSurvivor drops the newest image from a deletion set that would
// otherwise remove every available image. toDelete is ordered oldest
// first, so the newest is the final element.
func keepSurvivor(toDelete []domain.Image, availableBefore int) []domain.Image {
	if len(toDelete) == 0 || len(toDelete) < availableBefore {
		return toDelete
	}
	return toDelete[:len(toDelete)-1]
}

// errReadinessTimeout marks a readiness wait that ran out of budget
// while the image was still pending.
var errReadinessTimeout = errors.New("image not available before deadline")

// awaitReady polls the new image until it reaches a terminal state or
// the readiness deadline elapses. The deadline is enforced with a
// dedicated context so each poll request still gets the provider's
// own request-level timeout underneath.
func (e *Engine) awaitReady(ctx context.Context, log *zap.Logger, created domain.Image) (domain.Image, error) {
	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.PollDeadline)
	defer cancel()

	last := created
	consecutiveErrors := 0
	for {
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			return last, errReadinessTimeout
		case <-time.After(e.cfg.PollInterval):
		}

		img, err := e.provider.GetImage(waitCtx, created.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return last, fmt.Errorf("image %s disappeared while waiting: %w", created.ID, err)
			}
			if waitCtx.Err() != nil {
				continue // deadline raced the request; resolved next iteration
			}
			consecutiveErrors++
			if consecutiveErrors >= maxTransientPollErrors {
				return last, fmt.Errorf("polling image %s (after %d consecutive failures): %w",
					created.ID, consecutiveErrors, err)
			}
			log.Warn("transient error polling image, retrying",
				zap.String("image_id", created.ID),
				zap.Int("consecutive", consecutiveErrors),
				zap.Error(err))
			continue
		}
		consecutiveErrors = 0
		last = img

		if img.IsTerminal() {
			if img.Status == domain.ImageError {
				return img, fmt.Errorf("image %s entered error state", img.ID)
			}
			log.Info("image became available", zap.String("image_id", img.ID))
			return img, nil
		}
	}
}

// deleteAll issues each deletion independently; one failure does not
// block the others. A provider NotFound counts as success.
func (e *Engine) deleteAll(ctx context.Context, log *zap.Logger, images []domain.Image) []DeleteOutcome {
	outcomes := make([]DeleteOutcome, 0, len(images))
	for _, img := range images {
		err := e.provider.DeleteImage(ctx, img.ID)
		if errors.Is(err, domain.ErrNotFound) {
			log.Info("image already gone", zap.String("image_id", img.ID))
			err = nil
		}
		if err != nil {
			log.Error("failed to delete image", zap.String("image_id", img.ID), zap.Error(err))
		} else {
			log.Info("deleted image", zap.String("image_id", img.ID), zap.String("name", img.Name))
		}
		outcomes = append(outcomes, DeleteOutcome{Image: img, Err: err})
	}
	return outcomes
}

// findAnomalies returns images stuck outside the available state for
// longer than the readiness deadline. They are excluded from retention
// accounting and never deleted, only surfaced for the operator.
func (e *Engine) findAnomalies(images []domain.Image, now time.Time) []domain.Image {
	var anomalies []domain.Image
	for _, img := range images {
		if img.IsAvailable() {
			continue
		}
		if now.Sub(img.Created) > e.cfg.PollDeadline {
			anomalies = append(anomalies, img)
		}
	}
	return anomalies
}
