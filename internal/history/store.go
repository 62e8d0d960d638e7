// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具
//
// Package history keeps a ledger of conversion runs in SQLite.

package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// State of a recorded run
type State string

const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

const defaultListLimit = 50

// Record is one conversion run
type Record struct {
	ID          string     `gorm:"primaryKey;size:32" json:"id"`
	Input       string     `gorm:"size:4096;not null" json:"input"`
	Output      string     `gorm:"size:4096;not null" json:"output"`
	InputBytes  int64      `json:"input_bytes"`
	State       State      `gorm:"size:16;index" json:"state"`
	Reason      string     `gorm:"size:1024" json:"reason,omitempty"`
	LastPercent int        `json:"last_percent"`
	StartedAt   time.Time  `gorm:"index" json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Store 转换记录存储
type Store interface {
	Create(r *Record) error
	Progress(id string, percent int) error
	Finish(id string, err error) error
	Get(id string) (*Record, error)
	List(limit int) ([]Record, error)
	Close() error
}

type store struct {
	db *gorm.DB
}

// Open opens or creates the SQLite database at path. ":memory:" keeps the
// ledger in memory.
func Open(path string) (Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// a second connection to ":memory:" would see an empty database
	sqlDB.SetMaxOpenConns(1)
	return New(db)
}

// New uses db for the ledger and migrates its schema.
func New(db *gorm.DB) (Store, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return &store{db: db}, nil
}

// Create inserts r as a running record. An empty ID is generated.
func (s *store) Create(r *Record) error {
	if r.Input == "" || r.Output == "" {
		return ErrInvalidInput
	}
	if len(r.ID) == 0 {
		r.ID = shortuuid.New()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	r.State = StateRunning

	var n int64
	if err := s.db.Model(&Record{}).Where("id = ?", r.ID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrRecordExists
	}
	return s.db.Create(r).Error
}

func (s *store) Progress(id string, percent int) error {
	res := s.db.Model(&Record{}).
		Where("id = ? AND state = ?", id, StateRunning).
		Update("last_percent", percent)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Finish marks the run as ended. A nil err means it succeeded.
func (s *store) Finish(id string, err error) error {
	now := time.Now()
	updates := map[string]interface{}{
		"finished_at": now,
		"state":       StateSucceeded,
		"reason":      "",
	}
	if err != nil {
		updates["state"] = StateFailed
		updates["reason"] = err.Error()
	} else {
		updates["last_percent"] = 100
	}

	res := s.db.Model(&Record{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *store) Get(id string) (*Record, error) {
	var r Record
	if err := s.db.First(&r, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// List returns the most recent runs first.
func (s *store) List(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var out []Record
	err := s.db.Order("started_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

func (s *store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
