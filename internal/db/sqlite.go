package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lessonforge/backend/internal/logger"
	"github.com/lessonforge/backend/internal/types"
	"github.com/lessonforge/backend/internal/utils"
)

type SQLiteService interface {
	DB() *gorm.DB
	AutoMigrateAll() error
}

type sqliteService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSQLiteService(baseLog *logger.Logger) (SQLiteService, error) {
	log := baseLog.With("service", "SQLiteService")
	path := utils.GetEnv("DB_PATH", "lessonforge.db", log)

	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	log.Info("SQLite opened", "path", path)
	return &sqliteService{db: gdb, log: log}, nil
}

func (s *sqliteService) DB() *gorm.DB {
	return s.db
}

func (s *sqliteService) AutoMigrateAll() error {
	return s.db.AutoMigrate(
		&types.ReferenceDocument{},
	)
}
