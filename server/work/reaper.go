package work

import (
	"time"

	"github.com/everkeep/everkeep/colors"
	"github.com/everkeep/everkeep/server/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const stuckJobThresholdMinutes = 30

// stuckJobsReaper requeues jobs that sat in 'in-progress' for too long,
// e.g. after a crashed worker.
type stuckJobsReaper struct {
	stopChan chan struct{}
}

func newStuckJobsReaper() *stuckJobsReaper {
	return &stuckJobsReaper{stopChan: make(chan struct{})}
}

func (r *stuckJobsReaper) start() {
	go r.loop()
}

func (r *stuckJobsReaper) stop() {
	r.stopChan <- struct{}{}
}

func (r *stuckJobsReaper) loop() {
	sleepBackOff := 30
	rateLimiter := time.NewTicker(DefaultTickerDuration)
	defer rateLimiter.Stop()

	logg.Info("Starting job reaper")
	for {
		select {
		case <-r.stopChan:
			logg.Info("Stopping job reaper")
			return
		case <-rateLimiter.C:
			stuckJob, err := models.StuckJob(stuckJobThresholdMinutes)

			if errors.Is(err, gorm.ErrRecordNotFound) {
				rateLimiter.Reset(time.Duration(sleepBackOff) * time.Minute)
				continue
			}

			if err != nil {
				r.logError(err)
				rateLimiter.Reset(TickerDurationOnError)
				continue
			}

			r.requeue(stuckJob)
			rateLimiter.Reset(DefaultTickerDuration)
		}
	}
}

func (r *stuckJobsReaper) requeue(job *models.Job) {
	jobStatus, err := models.FindJobStatus(models.ENQUEUED_JOB)
	if err != nil {
		r.logError(err)
		return
	}

	err = job.Update(map[string]interface{}{
		"claimed":       false,
		"job_status_id": jobStatus.ID,
	})
	if err != nil {
		r.logError(err)
		return
	}

	r.logInfof("job with id=%v requeued", job.ID)
}

func (r *stuckJobsReaper) logInfof(template string, args ...interface{}) {
	logg.Infof(colors.Yellow("[job reaper] ")+template, args...)
}

func (r *stuckJobsReaper) logError(args ...interface{}) {
	logg.Error(append([]interface{}{colors.Red("[job reaper] ")}, args...)...)
}
