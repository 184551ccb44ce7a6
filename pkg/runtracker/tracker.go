package runtracker

import (
	"context"
	"fmt"
	"time"

	"ai-contentgen-be/internal/pkg/logger"
	"ai-contentgen-be/pkg/pipeline"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const cancelTTL = 24 * time.Hour

// Tracker records cancellation requests for in-flight runs. Redis-backed when
// configured so a cancel issued on one instance stops a run executing on
// another; without Redis it falls back to process-local state.
type Tracker struct {
	redisClient *redis.Client
	local       *gocache.Cache
	logger      logger.ILogger
}

var _ pipeline.CancelChecker = &Tracker{}

func NewTracker(redisClient *redis.Client, log logger.ILogger) *Tracker {
	return &Tracker{
		redisClient: redisClient,
		local:       gocache.New(cancelTTL, 30*time.Minute),
		logger:      log,
	}
}

func cancelKey(runId uuid.UUID) string {
	return fmt.Sprintf("pipeline:cancel:%s", runId)
}

// Cancel marks the run cancelled. The engine observes the mark between
// stages; the stage in flight finishes but its result is discarded.
func (t *Tracker) Cancel(ctx context.Context, runId uuid.UUID) error {
	t.local.Set(cancelKey(runId), true, cancelTTL)
	if t.redisClient == nil {
		return nil
	}
	if err := t.redisClient.Set(ctx, cancelKey(runId), "1", cancelTTL).Err(); err != nil {
		t.logger.Warn("RunTracker", "Failed to persist cancel mark in redis", map[string]interface{}{"run_id": runId, "error": err.Error()})
		return err
	}
	return nil
}

// IsCancelled reports whether the run has a cancel mark. Redis errors degrade
// to the local view so a flaky cache never stalls a run.
func (t *Tracker) IsCancelled(ctx context.Context, runId uuid.UUID) bool {
	if _, found := t.local.Get(cancelKey(runId)); found {
		return true
	}
	if t.redisClient == nil {
		return false
	}
	val, err := t.redisClient.Exists(ctx, cancelKey(runId)).Result()
	if err != nil {
		if err != redis.Nil {
			t.logger.Warn("RunTracker", "Redis cancel check failed", map[string]interface{}{"run_id": runId, "error": err.Error()})
		}
		return false
	}
	return val > 0
}

// Clear removes the mark once a run has fully stopped, so the run id can be
// resumed later without tripping the stale cancel.
func (t *Tracker) Clear(ctx context.Context, runId uuid.UUID) {
	t.local.Delete(cancelKey(runId))
	if t.redisClient != nil {
		if err := t.redisClient.Del(ctx, cancelKey(runId)).Err(); err != nil {
			t.logger.Warn("RunTracker", "Failed to clear cancel mark", map[string]interface{}{"run_id": runId, "error": err.Error()})
		}
	}
}
