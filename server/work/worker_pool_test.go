package work

import (
	"testing"

	"github.com/everkeep/everkeep/server/models"
	"github.com/stretchr/testify/assert"
)

func TestEnqueue(t *testing.T) {
	models.InitializeTestDb()

	workerPool := newWorkerPool(MAX_CONCURRENCY)

	err := workerPool.enqueue(JobParams{
		Name:    "suits",
		Handler: "donna",
		Args: map[string]interface{}{
			"first_name": "mike",
			"last_name":  "ross",
		},
	})
	assert.Nil(t, err)

	// Make sure the correct job is created & queued for a worker
	job, err := models.NextJobToProcess()
	assert.Nil(t, err)
	assert.Equal(t, "suits", job.Name, "The job name should match the expected job name")
	assert.Contains(t, job.Args, "mike", "Should contain the correct arg values")

	enqueuedStatus, err := models.FindJobStatus(models.ENQUEUED_JOB)
	assert.Nil(t, err)
	assert.Equal(t, enqueuedStatus.ID, job.JobStatusID, "The job should be in the enqueued queue")
	assert.Nil(t, job.JobStatus, "Queue fetches should not load the status association")
}

func TestEnqueueRequiresNameAndHandler(t *testing.T) {
	models.InitializeTestDb()

	workerPool := newWorkerPool(MAX_CONCURRENCY)

	err := workerPool.enqueue(JobParams{Name: " ", Handler: "donna"})
	assert.NotNil(t, err)

	err = workerPool.enqueue(JobParams{Name: "suits", Handler: ""})
	assert.NotNil(t, err)
}

func TestEnqueueUniqueJob(t *testing.T) {
	models.InitializeTestDb()

	workerPool := newWorkerPool(MAX_CONCURRENCY)

	err := workerPool.enqueue(JobParams{Name: "suits", Handler: "donna", Unique: true})
	assert.Nil(t, err)

	err = workerPool.enqueue(JobParams{Name: "suits", Handler: "donna", Unique: true})
	assert.ErrorIs(t, err, models.ErrDuplicateJob)
}

func TestRegisterHandler(t *testing.T) {
	workerPool := newWorkerPool(MAX_CONCURRENCY)

	noop := func(m map[string]interface{}) error { return nil }

	err := workerPool.registerHandler("noop", noop)
	assert.Nil(t, err)

	err = workerPool.registerHandler("noop", noop)
	assert.ErrorIs(t, err, ErrDuplicateHandler)
}
