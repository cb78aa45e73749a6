package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLegacyRoleCleanup removes unsuffixed default roles left over from
	// before per-organization role bootstrap.
	TaskLegacyRoleCleanup = "rbac:legacy_role_cleanup"
	// TaskStaleInviteSweep removes pending invites whose invitee already
	// belongs to the target organization.
	TaskStaleInviteSweep = "invites:stale_sweep"
)

// LegacyRoleCleanupPayload bounds one cleanup run.
type LegacyRoleCleanupPayload struct {
	Limit int `json:"limit"`
}

// NewLegacyRoleCleanupTask constructs an Asynq task.
func NewLegacyRoleCleanupTask(payload LegacyRoleCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLegacyRoleCleanup, data), nil
}

// NewStaleInviteSweepTask constructs an Asynq task with no payload.
func NewStaleInviteSweepTask() *asynq.Task {
	return asynq.NewTask(TaskStaleInviteSweep, nil)
}
