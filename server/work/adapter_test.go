package work

import (
	"bytes"
	"testing"
	"time"

	"github.com/everkeep/everkeep/server/models"
	"github.com/stretchr/testify/assert"
)

func TestPerform(t *testing.T) {
	models.InitializeTestDb()

	workerPool := NewWorkerAdapter("UTC")
	outputBuffer := new(bytes.Buffer)

	// Register job function
	writeToBuffer := func(m map[string]interface{}) error {
		_, err := outputBuffer.WriteString("Hello")
		return err
	}
	workerPool.Register("write_to_buffer", writeToBuffer)

	err := workerPool.Perform(JobParams{
		Name:    "write_to_buffer",
		Handler: "write_to_buffer",
		Args:    map[string]interface{}{},
	})
	assert.Nil(t, err)
	assert.Empty(t, outputBuffer.String(), "Expected outputBuffer to be empty")

	workerPool.Start()

	// Wait for job to be processed
	time.Sleep(2 * time.Second)

	workerPool.Stop()

	assert.Equal(t, "Hello", outputBuffer.String(), "Expected job to write to outputBuffer")
}

func TestPerformSwallowsDuplicateUniqueJob(t *testing.T) {
	models.InitializeTestDb()

	workerPool := NewWorkerAdapter("UTC")

	job := JobParams{Name: "backup", Handler: "backup", Unique: true}
	assert.Nil(t, workerPool.Perform(job))

	// A duplicate unique job is already in the queue, so this is a no-op
	assert.Nil(t, workerPool.Perform(job))
}
