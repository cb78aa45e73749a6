package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/lboeman/solarforecastarbiter-api/internal/jobs"
	"github.com/lboeman/solarforecastarbiter-api/internal/org"
)

// LegacyRoleCleanupJob deletes default roles created before role names carried
// the owning organization's suffix. Those rows shadow the bootstrapped roles
// and can never be granted through the current code paths.
type LegacyRoleCleanupJob struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewLegacyRoleCleanupJob constructs the job. metrics may be nil.
func NewLegacyRoleCleanupJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *LegacyRoleCleanupJob {
	return &LegacyRoleCleanupJob{pool: pool, logger: logger, metrics: metrics}
}

// Handle processes TaskLegacyRoleCleanup tasks. Mapping rows cascade with the
// role rows.
func (j *LegacyRoleCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("legacy_role_cleanup")
	var payload LegacyRoleCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	limit := payload.Limit
	if limit <= 0 {
		limit = 500
	}
	tag, err := j.pool.Exec(ctx, `
		DELETE FROM roles WHERE id IN (
			SELECT id FROM roles WHERE name = ANY($1) LIMIT $2
		)`, org.LegacyDefaultRoleNames(), limit)
	if err != nil {
		return tracker.End(err)
	}
	j.metrics.AddDeleted("legacy_role_cleanup", tag.RowsAffected())
	if j.logger != nil {
		j.logger.Info("legacy role cleanup",
			slog.Int64("deleted", tag.RowsAffected()))
	}
	return tracker.End(nil)
}
