package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"healthcare-rag/internal/model"
)

type QueryAuditRepository struct {
	db *gorm.DB
}

func NewQueryAuditRepository(db *gorm.DB) *QueryAuditRepository {
	return &QueryAuditRepository{db: db}
}

func (r *QueryAuditRepository) Create(ctx context.Context, audit *model.QueryAudit) error {
	if err := r.db.WithContext(ctx).Create(audit).Error; err != nil {
		return fmt.Errorf("create query audit failed: %w", err)
	}
	return nil
}

func (r *QueryAuditRepository) ListRecent(ctx context.Context, collection string, limit int) ([]model.QueryAudit, error) {
	if limit <= 0 {
		limit = 50
	}
	var audits []model.QueryAudit
	err := r.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("created_at DESC").
		Limit(limit).
		Find(&audits).Error
	if err != nil {
		return nil, fmt.Errorf("list query audits failed: %w", err)
	}
	return audits, nil
}
