package model

import "time"

// CorpusCollection points at the live generation of a named corpus.
// An empty LiveGeneration means the collection holds no queryable entries.
type CorpusCollection struct {
	Name           string    `gorm:"primaryKey;size:128" json:"name"`
	LiveGeneration string    `gorm:"size:36" json:"live_generation"`
	EmbeddingModel string    `gorm:"size:128" json:"embedding_model"`
	EntryCount     int64     `json:"entry_count"`
	UpdatedAt      time.Time `json:"updated_at"`
}
