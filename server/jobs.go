package server

import (
	"github.com/everkeep/everkeep/server/gstorage"
	"github.com/everkeep/everkeep/server/models"
	"github.com/everkeep/everkeep/server/work"
)

const dbBackupJobName = "backupSqliteDb"

// backupSqliteDb uploads the encrypted sqlite file to the configured
// GCS bucket. The file is encrypted at rest with the sqlite passphrase,
// so the object is safe to store as-is.
func backupSqliteDb(map[string]interface{}) error {
	gs, err := gstorage.NewGStorage(serverConfig.Google.ApplicationCredentials)
	if err != nil {
		return err
	}

	dbFilePath, err := models.DbFilePath(appConfigDir)
	if err != nil {
		return err
	}

	return gs.UploadFile(
		serverConfig.Google.Storage.Bucket,
		serverConfig.Google.Storage.Prefix,
		dbFilePath,
	)
}

func registerJobHandlers(workerPool *work.WorkerPoolAdapter) {
	workerPool.Register(dbBackupJobName, backupSqliteDb)
}

func enqueueJobs(workerPool *work.WorkerPoolAdapter) {
	if !sqliteBackupEnabled() {
		return
	}

	workerPool.PeriodicallyPerform(serverConfig.Google.Storage.SqliteBackupSchedule, work.JobParams{
		Name:    dbBackupJobName,
		Handler: dbBackupJobName,
		Unique:  true,
		Args:    map[string]interface{}{},
	})
}

func sqliteBackupEnabled() bool {
	enabled, ok := serverConfig.Google.Storage.EnableSqliteBackupAndSync.(bool)
	return ok && enabled
}
