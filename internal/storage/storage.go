// Package storage 负责唯一结果向 MySQL 的可选持久化。
//
// DSN 为空时整个模块不启用，遍历流程不受影响。
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"newswalker/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

// Store 包装 gorm 连接。
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open 打开 MySQL 连接并完成建表迁移。DSN 为空返回 (nil, nil)，
// 调用方按未启用处理。
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	if dsn == "" {
		logger.Info("mysql dsn not configured, persistence disabled")
		return nil, nil
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.AutoMigrate(&model.Post{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	logger.Info("mysql storage ready")
	return &Store{db: db, logger: logger}, nil
}

// SaveResults 将一次遍历的唯一结果批量写入。
//
// (date, title) 冲突时跳过，重复遍历同一条件是幂等的。
// nil Store 上调用是空操作。
func (s *Store) SaveResults(ctx context.Context, query string, results []model.UniqueResult) error {
	if s == nil || s.db == nil || len(results) == 0 {
		return nil
	}

	posts := make([]model.Post, 0, len(results))
	for _, r := range results {
		posts = append(posts, model.Post{
			Date:           r.Date,
			Title:          r.Title,
			Description:    r.Description,
			Query:          query,
			MatchCount:     r.MatchCount,
			PriceMentioned: r.PriceMentioned,
		})
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}, {Name: "title"}},
		DoNothing: true,
	}).CreateInBatches(posts, 100).Error; err != nil {
		return fmt.Errorf("save results: %w", err)
	}

	s.logger.Info("results persisted",
		slog.String("query", query),
		slog.Int("count", len(posts)))
	return nil
}

// Close 关闭底层连接。nil Store 上调用是空操作。
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
