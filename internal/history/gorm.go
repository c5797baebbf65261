package history

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormLog stores records in Postgres.
type GormLog struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn and migrates the message_logs table.
func OpenPostgres(dsn string) (*GormLog, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "connecting to postgres")
	}
	return NewGormLog(db)
}

// NewGormLog wraps an open database and migrates the schema.
func NewGormLog(db *gorm.DB) (*GormLog, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, errors.Wrap(err, "migrating message_logs")
	}
	logrus.WithField("component", "history").Info("message history connected")
	return &GormLog{db: db}, nil
}

func (g *GormLog) Append(ctx context.Context, r Record) error {
	if err := validate(&r); err != nil {
		return err
	}
	err := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "provider_message_id"}}, DoNothing: true}).
		Create(&r).Error
	return errors.Wrap(err, "inserting message log")
}

func (g *GormLog) Recent(ctx context.Context, userID string, limit int) ([]Record, error) {
	var out []Record
	err := g.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying message logs")
	}
	return out, nil
}

func (g *GormLog) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
