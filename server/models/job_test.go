package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestCompletedJobLeavesQueue(t *testing.T) {
	InitializeTestDb()

	err := CreateJob("backup", "backup", "{}", false)
	assert.Nil(t, err)

	job, err := NextJobToProcess()
	assert.Nil(t, err)
	assert.Nil(t, job.JobStatus, "Queue fetches should not load the status association")

	claimed, err := ClaimJob(job.ID)
	assert.Nil(t, err)
	assert.True(t, claimed)

	// The same update a worker issues when a job finishes
	successfulStatus, err := FindJobStatus(SUCCESSFUL_JOB)
	assert.Nil(t, err)
	err = job.Update(map[string]interface{}{
		"claimed":       false,
		"job_status_id": successfulStatus.ID,
	})
	assert.Nil(t, err)

	updated := Job{}
	assert.Nil(t, db.First(&updated, job.ID).Error)
	assert.Equal(t, successfulStatus.ID, updated.JobStatusID, "Status update must stick")
	assert.False(t, updated.Claimed)

	_, err = NextJobToProcess()
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "A completed job must never re-enter the queue")
}

func TestClaimJobOnlyOnce(t *testing.T) {
	InitializeTestDb()

	err := CreateJob("backup", "backup", "{}", false)
	assert.Nil(t, err)

	job, err := NextJobToProcess()
	assert.Nil(t, err)

	claimed, err := ClaimJob(job.ID)
	assert.Nil(t, err)
	assert.True(t, claimed)

	claimed, err = ClaimJob(job.ID)
	assert.Nil(t, err)
	assert.False(t, claimed, "A claimed job can't be claimed again")
}
