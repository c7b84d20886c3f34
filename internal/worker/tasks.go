package worker

import (
	"context"
	"time"

	"github.com/mlecomte/homeworkai/internal/service"
)

// SessionCleanupTask deletes expired sessions once a day.
type SessionCleanupTask struct {
	userService service.UserService
}

// NewSessionCleanupTask creates the session cleanup task.
func NewSessionCleanupTask(userService service.UserService) *SessionCleanupTask {
	return &SessionCleanupTask{userService: userService}
}

func (t *SessionCleanupTask) Name() string { return "session_cleanup" }

func (t *SessionCleanupTask) Interval() time.Duration { return 24 * time.Hour }

func (t *SessionCleanupTask) Run(ctx context.Context) error {
	return t.userService.DeleteExpiredSessions(ctx)
}
