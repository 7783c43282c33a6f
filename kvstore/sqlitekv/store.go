// Package sqlitekv persists cache entries in a SQLite table through gorm,
// using the pure-Go glebarez driver so the store works without cgo.
package sqlitekv

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/c360/schoolcache/errors"
	"github.com/c360/schoolcache/kvstore"
)

// SQLite limits bound parameters per statement; stay well below it.
const chunkSize = 500

// Entry is one row of the cache table.
type Entry struct {
	Key       string `gorm:"column:key;type:text;primaryKey"`
	Value     string `gorm:"column:value;type:text;not null"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
}

// TableName implements gorm's tabler.
func (Entry) TableName() string {
	return "cache_entries"
}

// Store is a kvstore.Store over a gorm database.
type Store struct {
	db *gorm.DB
}

var _ kvstore.Store = (*Store)(nil)

// New migrates the cache table on db and returns a store.
func New(ctx context.Context, db *gorm.DB) (*Store, error) {
	if err := db.WithContext(ctx).AutoMigrate(&Entry{}); err != nil {
		return nil, errors.WrapFatal(err, "sqlitekv", "New", "migrate cache table")
	}
	return &Store{db: db}, nil
}

// Open opens (creating if needed) the SQLite database at dsn and returns a
// migrated store. File DSNs get their parent directory created.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sqlitekv")

	if err := ensureDirectory(dsn); err != nil {
		return nil, errors.WrapFatal(err, "sqlitekv", "Open", "create database directory")
	}

	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.WrapFatal(err, "sqlitekv", "Open", "open sqlite db")
	}
	logger.Info("database opened", "dsn", dsn)
	return New(ctx, db)
}

func ensureDirectory(dsn string) error {
	candidate := strings.TrimSpace(dsn)
	if candidate == "" || candidate == ":memory:" || strings.Contains(candidate, "mode=memory") {
		return nil
	}
	candidate = strings.TrimPrefix(candidate, "file:")
	if idx := strings.Index(candidate, "?"); idx >= 0 {
		candidate = candidate[:idx]
	}
	dir := filepath.Dir(candidate)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func upsert() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}
}

func chunks(keys []string) [][]string {
	var out [][]string
	for len(keys) > chunkSize {
		out = append(out, keys[:chunkSize])
		keys = keys[chunkSize:]
	}
	if len(keys) > 0 {
		out = append(out, keys)
	}
	return out
}

// GetItem implements kvstore.Store.
func (s *Store) GetItem(ctx context.Context, key string) (string, bool, error) {
	var row Entry
	if err := s.db.WithContext(ctx).Where("key = ?", key).Take(&row).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, errors.WrapTransient(err, "sqlitekv", "GetItem", "query key")
	}
	return row.Value, true, nil
}

// SetItem implements kvstore.Store.
func (s *Store) SetItem(ctx context.Context, key, value string) error {
	row := Entry{Key: key, Value: value, UpdatedAt: now()}
	if err := s.db.WithContext(ctx).Clauses(upsert()).Create(&row).Error; err != nil {
		return errors.WrapTransient(err, "sqlitekv", "SetItem", "upsert key")
	}
	return nil
}

// RemoveItem implements kvstore.Store.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&Entry{}).Error; err != nil {
		return errors.WrapTransient(err, "sqlitekv", "RemoveItem", "delete key")
	}
	return nil
}

// GetAllKeys implements kvstore.Store.
func (s *Store) GetAllKeys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := s.db.WithContext(ctx).Model(&Entry{}).Pluck("key", &keys).Error; err != nil {
		return nil, errors.WrapTransient(err, "sqlitekv", "GetAllKeys", "list keys")
	}
	return keys, nil
}

// MultiGet implements kvstore.Store.
func (s *Store) MultiGet(ctx context.Context, keys []string) ([]kvstore.KeyValue, error) {
	out := make([]kvstore.KeyValue, 0, len(keys))
	for _, chunk := range chunks(keys) {
		var rows []Entry
		if err := s.db.WithContext(ctx).Where("key IN ?", chunk).Find(&rows).Error; err != nil {
			return nil, errors.WrapTransient(err, "sqlitekv", "MultiGet", "query keys")
		}
		for _, r := range rows {
			out = append(out, kvstore.KeyValue{Key: r.Key, Value: r.Value})
		}
	}
	return out, nil
}

// MultiSet implements kvstore.Store in one transaction.
func (s *Store) MultiSet(ctx context.Context, items []kvstore.KeyValue) error {
	if len(items) == 0 {
		return nil
	}

	// later duplicates win, as with sequential SetItem calls
	byKey := make(map[string]int, len(items))
	rows := make([]Entry, 0, len(items))
	ts := now()
	for _, it := range items {
		if i, ok := byKey[it.Key]; ok {
			rows[i].Value = it.Value
			continue
		}
		byKey[it.Key] = len(rows)
		rows = append(rows, Entry{Key: it.Key, Value: it.Value, UpdatedAt: ts})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(upsert()).CreateInBatches(rows, chunkSize/3).Error
	})
	if err != nil {
		return errors.WrapTransient(err, "sqlitekv", "MultiSet", fmt.Sprintf("upsert %d keys", len(rows)))
	}
	return nil
}

// MultiRemove implements kvstore.Store in one transaction.
func (s *Store) MultiRemove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, chunk := range chunks(keys) {
			if err := tx.Where("key IN ?", chunk).Delete(&Entry{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.WrapTransient(err, "sqlitekv", "MultiRemove", fmt.Sprintf("delete %d keys", len(keys)))
	}
	return nil
}
