package model

import "time"

type QueryAudit struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	Collection    string    `gorm:"size:128;not null;index" json:"collection"`
	Generation    string    `gorm:"size:36" json:"generation"`
	Question      string    `gorm:"type:text;not null" json:"question"`
	Category      string    `gorm:"size:32;not null;index" json:"category"`
	PromptVersion string    `gorm:"size:64;not null" json:"prompt_version"`
	Sources       string    `gorm:"type:text" json:"sources"`
	LatencyMS     int64     `json:"latency_ms"`
	CreatedAt     time.Time `json:"created_at"`
}
