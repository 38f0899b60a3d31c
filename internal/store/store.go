package store

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"pageguard/internal/logger"
	"pageguard/pkg/model"
)

// Store owns the durable records shared by the coordinator: the aggregate
// short-form session and the last search context. Session mutations run
// inside a transaction so the read-modify-write is atomic even if a second
// writer ever appears.
type Store struct {
	db        *gorm.DB
	searchTTL time.Duration
	log       logger.Logger
}

type shortsSessionRec struct {
	ID        uint `gorm:"primaryKey"`
	Count     int
	StartedAt int64
}

type searchContextRec struct {
	ID        uint `gorm:"primaryKey"`
	Query     string
	Timestamp int64
}

// Open 打开sqlite存储并迁移表结构
func Open(dsn, prefix string, searchTTL time.Duration, l logger.Logger) (*Store, error) {
	if l == nil {
		l = logger.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix},
		Logger:         NewGormLogger(l),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&shortsSessionRec{}, &searchContextRec{}); err != nil {
		return nil, err
	}
	return &Store{db: db, searchTTL: searchTTL, log: l}, nil
}

// ShortsSession returns the active session record, or nil when none exists.
func (s *Store) ShortsSession(ctx context.Context) (*model.ShortsSession, error) {
	var rec shortsSessionRec
	err := s.db.WithContext(ctx).First(&rec, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &model.ShortsSession{Count: rec.Count, StartedAt: rec.StartedAt}, nil
}

// EnterShorts registers one short-form entry. It reports whether a new
// session was started by this entry.
func (s *Store) EnterShorts(ctx context.Context, now int64) (bool, error) {
	started := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec shortsSessionRec
		err := tx.First(&rec, 1).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			started = true
			return tx.Create(&shortsSessionRec{ID: 1, Count: 1, StartedAt: now}).Error
		}
		if err != nil {
			return err
		}
		rec.Count++
		return tx.Save(&rec).Error
	})
	return started, err
}

// EndShorts removes the active session and returns its final count. ended
// is false when no session was active.
func (s *Store) EndShorts(ctx context.Context) (int, bool, error) {
	count := 0
	ended := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec shortsSessionRec
		err := tx.First(&rec, 1).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		count = rec.Count
		ended = true
		return tx.Delete(&rec).Error
	})
	return count, ended, err
}

// SaveSearch overwrites the search context with a new query.
func (s *Store) SaveSearch(ctx context.Context, query string, now int64) error {
	rec := searchContextRec{ID: 1, Query: query, Timestamp: now}
	return s.db.WithContext(ctx).Save(&rec).Error
}

// RecallSearch returns the stored query while it is still within its TTL.
// A stale record is removed on read; a valid one is left in place.
// Timestamps are unix milliseconds throughout.
func (s *Store) RecallSearch(ctx context.Context, now int64) (string, bool) {
	var rec searchContextRec
	err := s.db.WithContext(ctx).First(&rec, 1).Error
	if err != nil {
		return "", false
	}
	if now-rec.Timestamp > s.searchTTL.Milliseconds() {
		if err := s.db.WithContext(ctx).Delete(&rec).Error; err != nil {
			s.log.Warn("删除过期搜索上下文失败", "error", err)
		}
		return "", false
	}
	return rec.Query, true
}
