package worker

// manifest_worker.go
// Renders loading manifests for committed dispatch plans from QueueManifest.
// Rendering runs off the request path so a commit never waits on PDF output.

import (
	"context"
	"encoding/json"
	"time"

	"fleetdispatch/internal/infra"
	"fleetdispatch/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ManifestJob is the job envelope sent to QueueManifest.
type ManifestJob struct {
	PlanID string `json:"plan_id"`
}

// ManifestWorker renders a loading manifest PDF for a committed plan.
// Failures are retried with backoff and dead-lettered after the last attempt.
type ManifestWorker struct {
	plans          repository.PlanRepository
	rdb            *redis.Client
	pdfStoragePath string
}

func NewManifestWorker(plans repository.PlanRepository, rdb *redis.Client, pdfStoragePath string) *ManifestWorker {
	return &ManifestWorker{plans: plans, rdb: rdb, pdfStoragePath: pdfStoragePath}
}

// Process handles a single manifest job:
//  1. Parse ManifestJob from the job envelope
//  2. Fetch the plan with its units, assignments and items
//  3. Render the manifest PDF with retries
//  4. Dead-letter the job if rendering keeps failing
func (w *ManifestWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload ManifestJob
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("manifest_worker: invalid payload")
		return
	}

	planID, err := uuid.Parse(payload.PlanID)
	if err != nil {
		log.Error().Str("plan_id", payload.PlanID).Msg("manifest_worker: invalid plan_id")
		return
	}

	plan, err := w.plans.FindByID(ctx, planID)
	if err != nil {
		log.Error().Err(err).Str("plan_id", payload.PlanID).Msg("manifest_worker: plan not found")
		return
	}

	var pdfPath string
	renderErr := withRetry(ctx, 3, func(attempt int) error {
		path, err := infra.GenerateManifestPDF(plan, w.pdfStoragePath)
		if err != nil {
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("plan_id", payload.PlanID).
				Msg("manifest_worker: render attempt failed, retrying")
			return err
		}
		pdfPath = path
		return nil
	})

	if renderErr != nil {
		log.Error().Err(renderErr).Str("plan_id", payload.PlanID).Msg("manifest_worker: render failed after all retries")
		SendToDLQ(ctx, w.rdb, QueueManifest, jobTypeManifest, raw, renderErr.Error(), 3)
		return
	}

	log.Info().Str("pdf", pdfPath).Str("plan_id", payload.PlanID).Msg("manifest_worker: manifest rendered")
}

// withRetry calls fn up to maxAttempts times with exponential backoff.
// Backoff schedule: attempt 1 = immediate, 2 = 1s, 3 = 2s.
// Returns nil if any attempt succeeds; last error otherwise.
func withRetry(ctx context.Context, maxAttempts int, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := time.Duration(1<<uint(i-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
