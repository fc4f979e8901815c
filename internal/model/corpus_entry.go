package model

import (
	"encoding/json"
	"time"
)

// CorpusEntry stores one indexed chunk of a corpus generation.
// Embedding is stored as JSON array of float32 for portability.
type CorpusEntry struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Collection string    `gorm:"size:128;not null;index:idx_corpus_entries_generation,priority:1" json:"collection"`
	Generation string    `gorm:"size:36;not null;index:idx_corpus_entries_generation,priority:2" json:"generation"`
	Position   int       `gorm:"not null" json:"position"`
	Source     string    `gorm:"size:2048;not null" json:"source"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Embedding  string    `gorm:"type:mediumtext" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// EmbeddingVector returns the parsed embedding slice.
func (e *CorpusEntry) EmbeddingVector() ([]float32, error) {
	if e.Embedding == "" {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(e.Embedding), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// SetEmbedding stores the embedding as JSON.
func (e *CorpusEntry) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		e.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	e.Embedding = string(b)
}
