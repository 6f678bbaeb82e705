// Package simulate provides the simulated jobs the service tracks.
//
// A job sleeps for its configured delay, honoring cancellation, and then
// succeeds or fails as requested. It stands in for real asynchronous work.
package simulate

import (
	"context"
	"fmt"
	"time"

	"github.com/iliamunaev/taskload/internal/apperr"
	"github.com/iliamunaev/taskload/internal/model"
	"github.com/iliamunaev/taskload/internal/service/shared"
)

// Run executes job. It returns ctx.Err() if ctx ends during the delay and an
// error wrapping apperr.ErrJobFailed when the job is set to fail.
func Run(ctx context.Context, job model.JobRequest, defaultDelay time.Duration) error {
	delay := shared.DelayFor(job.DelayMS, defaultDelay)

	if err := shared.SleepOrDone(ctx, delay); err != nil {
		return err
	}

	if job.Fail {
		return fmt.Errorf("job %s: %w", nameOf(job), apperr.ErrJobFailed)
	}
	return nil
}

func nameOf(job model.JobRequest) string {
	if job.Name == "" {
		return "unnamed"
	}
	return job.Name
}
