package repository

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"healthcare-rag/internal/model"
)

const createBatchSize = 200

type CorpusEntryRepository struct {
	db *gorm.DB
}

func NewCorpusEntryRepository(db *gorm.DB) *CorpusEntryRepository {
	return &CorpusEntryRepository{db: db}
}

func (r *CorpusEntryRepository) CreateBatch(ctx context.Context, entries []model.CorpusEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(&entries, createBatchSize).Error; err != nil {
		return fmt.Errorf("create corpus entries batch failed: %w", err)
	}
	return nil
}

// ListByGeneration returns entries in insertion order.
func (r *CorpusEntryRepository) ListByGeneration(ctx context.Context, collection, generation string) ([]model.CorpusEntry, error) {
	var entries []model.CorpusEntry
	err := r.db.WithContext(ctx).
		Where("collection = ? AND generation = ?", collection, generation).
		Order("position ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list corpus entries by generation failed: %w", err)
	}
	return entries, nil
}

func (r *CorpusEntryRepository) CountByGeneration(ctx context.Context, collection, generation string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.CorpusEntry{}).
		Where("collection = ? AND generation = ?", collection, generation).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count corpus entries failed: %w", err)
	}
	return count, nil
}

// MaxPosition returns -1 when the generation has no entries.
func (r *CorpusEntryRepository) MaxPosition(ctx context.Context, collection, generation string) (int, error) {
	var pos sql.NullInt64
	err := r.db.WithContext(ctx).Model(&model.CorpusEntry{}).
		Where("collection = ? AND generation = ?", collection, generation).
		Select("MAX(position)").
		Row().Scan(&pos)
	if err != nil {
		return 0, fmt.Errorf("max corpus entry position failed: %w", err)
	}
	if !pos.Valid {
		return -1, nil
	}
	return int(pos.Int64), nil
}

func (r *CorpusEntryRepository) DeleteByGeneration(ctx context.Context, collection, generation string) error {
	err := r.db.WithContext(ctx).
		Where("collection = ? AND generation = ?", collection, generation).
		Delete(&model.CorpusEntry{}).Error
	if err != nil {
		return fmt.Errorf("delete corpus entries by generation failed: %w", err)
	}
	return nil
}
