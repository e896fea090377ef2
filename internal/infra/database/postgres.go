package database

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/totegamma/lostfound/internal/infra/database/models"
)

func newLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             300 * time.Millisecond, // Slow SQL threshold
			LogLevel:                  logger.Warn,            // Log level
			IgnoreRecordNotFoundError: true,                   // Ignore ErrRecordNotFound error for logger
			Colorful:                  false,
		},
	)
}

func NewPostgres(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         newLogger(),
	})
}

// NewSQLite opens a file (or ":memory:") database for single-host deployments.
func NewSQLite(dsn string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         newLogger(),
	})
}

// OpenMirror picks the driver from the dsn: "sqlite:<path>" or a postgres connection string.
func OpenMirror(dsn string) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	if rest, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		db, err = NewSQLite(rest)
	} else {
		db, err = NewPostgres(dsn)
	}
	if err != nil {
		return nil, errors.Wrap(err, "open mirror database")
	}
	if err := Migrate(db); err != nil {
		return nil, errors.Wrap(err, "migrate mirror database")
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ItemRecord{},
	)
}
