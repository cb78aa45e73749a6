package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/lboeman/solarforecastarbiter-api/internal/jobs"
)

// StaleInviteSweepJob deletes pending invites whose invitee already belongs to
// the inviting organization. Duplicate invites are legal, so this is the only
// automated pruning invites get.
type StaleInviteSweepJob struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewStaleInviteSweepJob constructs the job. metrics may be nil.
func NewStaleInviteSweepJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *StaleInviteSweepJob {
	return &StaleInviteSweepJob{pool: pool, logger: logger, metrics: metrics}
}

// Handle processes TaskStaleInviteSweep tasks.
func (j *StaleInviteSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("stale_invite_sweep")
	tag, err := j.pool.Exec(ctx, `
		DELETE FROM organization_invites i
		USING users u
		WHERE u.auth0_id = i.invitee_auth0_id
		  AND u.organization_id = i.organization_id`)
	if err != nil {
		return tracker.End(err)
	}
	j.metrics.AddDeleted("stale_invite_sweep", tag.RowsAffected())
	if j.logger != nil {
		j.logger.Info("stale invite sweep",
			slog.Int64("deleted", tag.RowsAffected()))
	}
	return tracker.End(nil)
}
