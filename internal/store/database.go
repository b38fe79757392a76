package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ubuygold/keygate/internal/config"
	"github.com/ubuygold/keygate/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// keyRow is the table layout for key records. ID only tracks insertion order.
type keyRow struct {
	ID          uint       `gorm:"primaryKey"`
	Key         string     `gorm:"type:varchar(255);uniqueIndex;not null"`
	Description string     `gorm:"type:text"`
	Active      bool       `gorm:"not null"`
	CreatedAt   time.Time  `gorm:"not null"`
	LastUsed    *time.Time `gorm:"default:null"`
	UsageCount  int64      `gorm:"not null;default:0"`
}

func (keyRow) TableName() string {
	return "key_records"
}

func rowFromModel(rec model.KeyRecord) keyRow {
	return keyRow{
		Key:         rec.Key,
		Description: rec.Description,
		Active:      rec.Active,
		CreatedAt:   rec.CreatedAt,
		LastUsed:    rec.LastUsed,
		UsageCount:  rec.UsageCount,
	}
}

func (r keyRow) toModel() model.KeyRecord {
	rec := model.KeyRecord{
		Key:         r.Key,
		Description: r.Description,
		Active:      r.Active,
		CreatedAt:   r.CreatedAt.UTC(),
		UsageCount:  r.UsageCount,
	}
	if r.LastUsed != nil {
		t := r.LastUsed.UTC()
		rec.LastUsed = &t
	}
	return rec
}

// byKey quotes the column explicitly; "key" is reserved in MySQL.
func byKey(key string) clause.Expression {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}

// DatabaseStore keeps records in a SQL table through gorm.
type DatabaseStore struct {
	db *gorm.DB
}

// OpenDatabase connects using the configured dialect and migrates the schema.
func OpenDatabase(cfg config.DatabaseConfig) (*DatabaseStore, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Type == "sqlite" {
		// SQLite allows a single writer.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access database handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&keyRow{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return &DatabaseStore{db: db}, nil
}

func (s *DatabaseStore) LoadAll(ctx context.Context) ([]model.KeyRecord, error) {
	var rows []keyRow
	if err := s.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load key records: %w", err)
	}
	keys := make([]model.KeyRecord, len(rows))
	for i, r := range rows {
		keys[i] = r.toModel()
	}
	return keys, nil
}

func (s *DatabaseStore) FindByKey(ctx context.Context, key string) (*model.KeyRecord, error) {
	var row keyRow
	err := s.db.WithContext(ctx).Where(byKey(key)).Order("id asc").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find key record: %w", err)
	}
	rec := row.toModel()
	return &rec, nil
}

func (s *DatabaseStore) Insert(ctx context.Context, rec model.KeyRecord) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&keyRow{}).Where(byKey(rec.Key)).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateKey
		}
		row := rowFromModel(rec)
		return tx.Create(&row).Error
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDuplicateKey), errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateKey
	default:
		return fmt.Errorf("failed to insert key record: %w", err)
	}
}

func (s *DatabaseStore) Remove(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where(byKey(key)).Delete(&keyRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete key record: %w", err)
	}
	return nil
}

func (s *DatabaseStore) Mutate(ctx context.Context, key string, fn Updater) (model.KeyRecord, error) {
	var updated model.KeyRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row keyRow
		if err := tx.Where(byKey(key)).Order("id asc").First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to find key record: %w", err)
		}
		rec, err := apply(row.toModel(), fn)
		if err != nil {
			return err
		}
		next := rowFromModel(rec)
		next.ID = row.ID
		if err := tx.Save(&next).Error; err != nil {
			return fmt.Errorf("failed to save key record: %w", err)
		}
		updated = next.toModel()
		return nil
	})
	if err != nil {
		return model.KeyRecord{}, err
	}
	return updated, nil
}

func (s *DatabaseStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
