package work

import (
	"fmt"

	"github.com/everkeep/everkeep/server/cron"
	"github.com/everkeep/everkeep/server/models"
	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"
)

const MAX_CONCURRENCY = 1

// WorkerPoolAdapter glues the cron scheduler to the db-backed worker pool:
// periodic schedules fire an enqueue, workers drain the queue.
type WorkerPoolAdapter struct {
	cronScheduler *gocron.Scheduler
	pool          *workerPool
	reaper        *stuckJobsReaper
}

func NewWorkerAdapter(timeZoneArg string) *WorkerPoolAdapter {
	return &WorkerPoolAdapter{
		cronScheduler: cron.NewCronScheduler(timeZoneArg),
		pool:          newWorkerPool(MAX_CONCURRENCY),
		reaper:        newStuckJobsReaper(),
	}
}

// Start starts the cron scheduler, worker pool & reaper
func (adapter *WorkerPoolAdapter) Start() {
	logg.Info("Starting cron scheduler & worker pool")
	adapter.cronScheduler.StartAsync()
	adapter.pool.start()
	adapter.reaper.start()
}

// Stop stops the cron scheduler, worker pool & reaper
func (adapter *WorkerPoolAdapter) Stop() {
	logg.Info("Stopping cron scheduler & worker pool")
	adapter.cronScheduler.Stop()
	adapter.pool.stop()
	adapter.reaper.stop()
}

// Register binds a name to a handler.
func (adapter *WorkerPoolAdapter) Register(name string, handler Handler) error {
	return adapter.pool.registerHandler(name, handler)
}

// Perform sends a new job to the queue, to be executed as soon as a worker
// is available
func (adapter *WorkerPoolAdapter) Perform(job JobParams) error {
	logg.Infof("Enqueuing job: %v", job.Name)

	err := adapter.pool.enqueue(job)
	if errors.Is(err, models.ErrDuplicateJob) {
		logg.Warnf("Duplicate job already in queue for: %v", job.Name)
		return nil
	}

	if err != nil {
		return fmt.Errorf("error enqueuing job: %v, %v", job.Name, err)
	}

	return nil
}

// PeriodicallyPerform enqueues the job on every tick of 'cronExpression'
func (adapter *WorkerPoolAdapter) PeriodicallyPerform(cronExpression string, job JobParams) error {
	_, err := adapter.cronScheduler.Cron(cronExpression).Tag(job.Name).
		Do(func(job JobParams) {
			if err := adapter.Perform(job); err != nil {
				logg.Error(err)
			}
		}, job)

	return err
}

func (adapter *WorkerPoolAdapter) RemovePeriodicJob(jobName string) {
	adapter.cronScheduler.RemoveByTag(jobName)
}
