package models

import "time"

type Job struct {
	BaseModel
	Fails       int        `json:"fails"`
	Name        string     `json:"name"`
	Handler     string     `json:"handler"`
	Args        string     `json:"args"`
	LastError   string     `json:"last_error"`
	Claimed     bool       `json:"claimed" gorm:"default:false"`
	JobStatusID uint       `json:"job_status_id"`
	JobStatus   *JobStatus `json:"status"`
}

func (job *Job) Update(data map[string]interface{}) error {
	return db.Model(job).Updates(data).Error
}

// CreateJob enqueues a job. With unique=true, a job with the same name
// already enqueued or in-progress blocks the new one.
func CreateJob(name, handler, args string, unique bool) error {
	if unique {
		var count int64
		err := db.Model(&Job{}).
			Joins("INNER JOIN job_statuses ON job_statuses.id = jobs.job_status_id AND job_statuses.name IN ?",
				[]string{ENQUEUED_JOB, IN_PROGRESS_JOB}).
			Where("jobs.name = ?", name).
			Count(&count).Error
		if err != nil {
			return err
		}

		if count > 0 {
			return ErrDuplicateJob
		}
	}

	enqueuedStatus, err := FindJobStatus(ENQUEUED_JOB)
	if err != nil {
		return err
	}

	return db.Create(&Job{
		Name:        name,
		Handler:     handler,
		Args:        args,
		JobStatusID: enqueuedStatus.ID,
	}).Error
}

// NextJobToProcess returns the oldest unclaimed job in the enqueued queue.
// The JobStatus association stays unloaded: workers feed the returned struct
// back into Update, & a loaded belongs-to pointer would drag the stale
// status id along with it.
func NextJobToProcess() (*Job, error) {
	job := Job{}
	err := db.Joins("INNER JOIN job_statuses ON job_statuses.id = jobs.job_status_id AND job_statuses.name = ?", ENQUEUED_JOB).
		Where("jobs.claimed = ?", false).
		Order("jobs.id asc").
		First(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// ClaimJob marks a job as in-progress for exactly one worker. The
// conditional update decides the race between competing workers.
func ClaimJob(jobID uint) (bool, error) {
	inProgressStatus, err := FindJobStatus(IN_PROGRESS_JOB)
	if err != nil {
		return false, err
	}

	res := db.Model(&Job{}).Where("id = ? AND claimed = ?", jobID, false).Updates(map[string]interface{}{
		"claimed":       true,
		"job_status_id": inProgressStatus.ID,
	})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

// StuckJob returns an in-progress job that hasn't been touched in
// 'olderThanMinutes', for the reaper to requeue.
func StuckJob(olderThanMinutes int) (*Job, error) {
	job := Job{}
	cutoff := time.Now().Add(-time.Duration(olderThanMinutes) * time.Minute)

	err := db.Joins("INNER JOIN job_statuses ON job_statuses.id = jobs.job_status_id AND job_statuses.name = ?", IN_PROGRESS_JOB).
		Where("jobs.updated_at <= ?", cutoff).
		First(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}
