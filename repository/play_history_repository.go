package repository

import (
	"context"
	"fmt"

	"LiveRadio/model"

	"gorm.io/gorm"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// PlayHistoryRepository 播放历史数据访问接口
type PlayHistoryRepository interface {
	RecordPlay(ctx context.Context, snap model.Snapshot) error
	Recent(ctx context.Context, limit int) ([]*model.PlayHistory, error)
}

// gormPlayHistoryRepository GORM 实现
type gormPlayHistoryRepository struct {
	db *gorm.DB
}

// NewGormPlayHistoryRepository 创建 GORM 播放历史仓库
func NewGormPlayHistoryRepository(db *gorm.DB) PlayHistoryRepository {
	return &gormPlayHistoryRepository{db: db}
}

// RecordPlay 每次广播会话记录一行
func (r *gormPlayHistoryRepository) RecordPlay(ctx context.Context, snap model.Snapshot) error {
	row := &model.PlayHistory{
		Generation:   snap.Generation,
		TrackName:    snap.Name,
		Title:        snap.Title,
		Duration:     snap.Duration,
		SessionID:    snap.SessionID,
		BackgroundID: snap.BackgroundID,
		PlayedAt:     snap.StartedAt,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to record play of %s: %w", snap.Name, err)
	}
	return nil
}

// Recent 按时间倒序返回最近的播放记录，limit 限制在 [1, 100]
func (r *gormPlayHistoryRepository) Recent(ctx context.Context, limit int) ([]*model.PlayHistory, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var rows []*model.PlayHistory
	err := r.db.WithContext(ctx).
		Order("played_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load play history: %w", err)
	}
	return rows, nil
}
