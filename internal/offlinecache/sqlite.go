package offlinecache

import (
	"errors"
	"fmt"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type cacheRow struct {
	Key             string `gorm:"column:key;primaryKey;size:190;not null"`
	Payload         []byte `gorm:"column:payload;type:blob;not null"`
	StoredAtSeconds int64  `gorm:"column:stored_at_s;not null"`
}

func (cacheRow) TableName() string {
	return "offline_cache"
}

// SQLiteStore is the durable backing for the offline cache. Every method
// absorbs database errors and reports a miss instead.
type SQLiteStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// OpenSQLiteStore opens (or creates) the cache database and migrates its
// schema.
func OpenSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("offline cache path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&cacheRow{}); err != nil {
		return nil, err
	}

	logger.Info("offline cache store opened", zap.String("path", path))
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Read returns the payload stored under the key.
func (s *SQLiteStore) Read(key string) ([]byte, bool) {
	var row cacheRow
	err := s.db.Where("key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false
	}
	if err != nil {
		s.logger.Warn("offline store read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return row.Payload, true
}

// Write stores the payload under the key, replacing any previous value.
func (s *SQLiteStore) Write(key string, payload []byte) bool {
	row := cacheRow{Key: key, Payload: payload, StoredAtSeconds: nowSeconds()}
	if err := s.db.Save(&row).Error; err != nil {
		s.logger.Warn("offline store write failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Delete removes the key.
func (s *SQLiteStore) Delete(key string) bool {
	if err := s.db.Where("key = ?", key).Delete(&cacheRow{}).Error; err != nil {
		s.logger.Warn("offline store delete failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func nowSeconds() int64 {
	return time.Now().UTC().Unix()
}

// Keys lists every stored key.
func (s *SQLiteStore) Keys() []string {
	var keys []string
	if err := s.db.Model(&cacheRow{}).Order("key ASC").Pluck("key", &keys).Error; err != nil {
		s.logger.Warn("offline store key listing failed", zap.Error(err))
		return nil
	}
	return keys
}
