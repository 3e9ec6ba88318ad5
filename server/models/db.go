package models

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	sqliteEncrypt "github.com/Daskott/gorm-sqlite-cipher"
	"github.com/everkeep/everkeep/server/logger"
	"github.com/everkeep/everkeep/utils"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const DB_NAME = "everkeep.db"

var (
	logg = logger.NewLogger()
	db   *gorm.DB
)

// AutoMigrate opens the encrypted sqlite database, migrates the schema
// & inserts seed data.
func AutoMigrate(passPhrase string, dbRootDir string) error {
	err := openDB(passPhrase, dbRootDir)
	if err != nil {
		return err
	}

	err = db.AutoMigrate(
		&JobStatus{}, &Job{},
		&User{}, &HeartbeatSetting{},
		&Guardian{}, &EscalationLink{},
	)
	if err != nil {
		return err
	}

	populateDBWithSeedData()

	return nil
}

// DbFilePath returns the path of the sqlite file, for the backup job.
func DbFilePath(dbRootDir string) (string, error) {
	dbDir, err := dbDirectory(dbRootDir)
	if err != nil {
		return "", err
	}

	return filepath.Join(dbDir, DB_NAME), nil
}

// InitializeTestDb(re)creates a throw-away encrypted db for tests.
func InitializeTestDb() {
	dbRootDir, err := os.MkdirTemp("", "everkeep-test")
	if err != nil {
		logg.Panic(err)
	}

	if err := AutoMigrate("test-passphrase", dbRootDir); err != nil {
		logg.Panic(err)
	}
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func openDB(passPhrase string, dbRootDir string) error {
	dsn, err := dbDSN(passPhrase, dbRootDir)
	if err != nil {
		return fmt.Errorf("failed to set sqlite DSN: %v", err)
	}

	db, err = gorm.Open(sqliteEncrypt.Open(dsn), &gorm.Config{
		Logger: gormLogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormLogger.Config{
				LogLevel:                  gormLogger.Silent,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	})
	if err != nil {
		return fmt.Errorf("failed to connect database: %v", err)
	}

	return nil
}

func populateDBWithSeedData() {
	if err := db.First(&JobStatus{}).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		logg.Info("Inserting seed data into 'JobStatus'")
		db.Create(&[]JobStatus{
			{Name: ENQUEUED_JOB}, {Name: IN_PROGRESS_JOB}, {Name: SUCCESSFUL_JOB}, {Name: DEAD_JOB},
		})
	}
}

func dbDSN(passPhrase string, dbRootDir string) (string, error) {
	dbDir, err := dbDirectory(dbRootDir)
	if err != nil {
		return "", err
	}

	dbFilePath := filepath.Join(dbDir, DB_NAME)

	return fmt.Sprintf(
		"file:%v?_pragma_key=%s&_pragma_cipher_page_size=4096&_journal_mode=WAL&_busy_timeout=5000",
		dbFilePath,
		passPhrase,
	), nil
}

func dbDirectory(dbRootDir string) (string, error) {
	dbDir := filepath.Join(dbRootDir, "db")

	err := utils.CreateDirIfNotExist(dbDir)
	if err != nil {
		return "", err
	}

	return dbDir, nil
}
