package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"healthcare-rag/internal/model"
)

type CorpusCollectionRepository struct {
	db *gorm.DB
}

func NewCorpusCollectionRepository(db *gorm.DB) *CorpusCollectionRepository {
	return &CorpusCollectionRepository{db: db}
}

// Get returns nil when the collection was never created.
func (r *CorpusCollectionRepository) Get(ctx context.Context, name string) (*model.CorpusCollection, error) {
	var collection model.CorpusCollection
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&collection).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get corpus collection failed: %w", err)
	}
	return &collection, nil
}

// SwapGeneration makes generation live and drops every other generation of the
// collection in one transaction.
func (r *CorpusCollectionRepository) SwapGeneration(ctx context.Context, name, generation, embeddingModel string) (*model.CorpusCollection, error) {
	var live model.CorpusCollection
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.CorpusEntry{}).
			Where("collection = ? AND generation = ?", name, generation).
			Count(&count).Error; err != nil {
			return fmt.Errorf("count staged entries failed: %w", err)
		}

		live = model.CorpusCollection{
			Name:           name,
			LiveGeneration: generation,
			EmbeddingModel: embeddingModel,
			EntryCount:     count,
		}
		if err := upsertCollection(tx, &live); err != nil {
			return err
		}

		if err := tx.Where("collection = ? AND generation <> ?", name, generation).
			Delete(&model.CorpusEntry{}).Error; err != nil {
			return fmt.Errorf("drop previous generations failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &live, nil
}

// Reset drops every entry of the collection and clears its live generation.
func (r *CorpusCollectionRepository) Reset(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection = ?", name).Delete(&model.CorpusEntry{}).Error; err != nil {
			return fmt.Errorf("delete corpus entries failed: %w", err)
		}
		return upsertCollection(tx, &model.CorpusCollection{Name: name})
	})
}

// SetEntryCount refreshes the cached count after in-place inserts.
func (r *CorpusCollectionRepository) SetEntryCount(ctx context.Context, name string, count int64) error {
	err := r.db.WithContext(ctx).Model(&model.CorpusCollection{}).
		Where("name = ?", name).
		Update("entry_count", count).Error
	if err != nil {
		return fmt.Errorf("update corpus entry count failed: %w", err)
	}
	return nil
}

func upsertCollection(tx *gorm.DB, collection *model.CorpusCollection) error {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"live_generation", "embedding_model", "entry_count", "updated_at"}),
	}).Create(collection).Error
	if err != nil {
		return fmt.Errorf("upsert corpus collection failed: %w", err)
	}
	return nil
}
