package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// =============================================================================
// 🗃️ persistence models (spec §6 Persistence)
// =============================================================================

// EnhancementHistory records one completed enhancement, written
// asynchronously by the orchestrator so request latency never waits on
// the write.
type EnhancementHistory struct {
	ID                uint      `gorm:"primaryKey"`
	RequestID         string    `gorm:"size:64;uniqueIndex"`
	UserID            string    `gorm:"size:128;index"`
	OriginalText      string    `gorm:"type:text"`
	EnhancedText      string    `gorm:"type:text"`
	Intent            string    `gorm:"size:64;index"`
	Complexity        string    `gorm:"size:32"`
	TechniquesApplied string    `gorm:"type:text"` // JSON-encoded []string
	Confidence        float64
	GenerationTimeMs  int64
	TokenEstimate     int
	Cached            bool
	CreatedAt         time.Time
}

// Feedback links a user rating/comment back to an EnhancementHistory row
// by RequestID.
type Feedback struct {
	ID        uint   `gorm:"primaryKey"`
	RequestID string `gorm:"size:64;index"`
	Rating    int
	Comment   string `gorm:"type:text"`
	CreatedAt time.Time
}

// IntentPattern is a fingerprint -> intent memo the classifier writes
// after ML classifications (it does not read it back), and a frequency
// table for offline analysis of which prompts recur.
type IntentPattern struct {
	ID              uint      `gorm:"primaryKey"`
	TextFingerprint string    `gorm:"size:64;uniqueIndex"`
	Intent          string    `gorm:"size:64;index"`
	Confidence      float64
	Source          string `gorm:"size:16"` // "rules" | "ml"
	HitCount        int64
	LastSeenAt      time.Time
}

// UserActivity is a generic audit trail row for per-user actions
// (enhance, batch_enhance, feedback_submitted, ...).
type UserActivity struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"size:128;index"`
	Action    string `gorm:"size:64"`
	Metadata  string `gorm:"type:text"` // JSON-encoded map[string]any
	CreatedAt time.Time
}

// AutoMigrate creates/updates the four persistence tables. Schema
// migration tooling proper is out of scope; this mirrors the
// bootstrap-only usage GORM's AutoMigrate gets elsewhere in this module.
func (pm *PoolManager) AutoMigrate(ctx context.Context) error {
	return pm.DB().WithContext(ctx).AutoMigrate(
		&EnhancementHistory{},
		&Feedback{},
		&IntentPattern{},
		&UserActivity{},
	)
}

// SaveHistory inserts one completed enhancement record.
func (pm *PoolManager) SaveHistory(ctx context.Context, h *EnhancementHistory) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
	if err := pm.DB().WithContext(ctx).Create(h).Error; err != nil {
		return fmt.Errorf("save history failed: %w", err)
	}
	return nil
}

// UpdateFeedback attaches a rating/comment to a previously-saved request.
// It does not require the history row to exist first, since feedback may
// arrive after the history write queue has drained independently.
func (pm *PoolManager) UpdateFeedback(ctx context.Context, requestID string, rating int, comment string) error {
	fb := &Feedback{
		RequestID: requestID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: time.Now(),
	}
	if err := pm.DB().WithContext(ctx).Create(fb).Error; err != nil {
		return fmt.Errorf("update feedback failed: %w", err)
	}
	return nil
}

// SaveIntentPattern upserts the fingerprint->intent memo, incrementing
// HitCount when the fingerprint recurs instead of duplicating rows.
func (pm *PoolManager) SaveIntentPattern(ctx context.Context, fingerprint, intent string, confidence float64, source string) error {
	row := &IntentPattern{
		TextFingerprint: fingerprint,
		Intent:          intent,
		Confidence:      confidence,
		Source:          source,
		HitCount:        1,
		LastSeenAt:      time.Now(),
	}

	err := pm.DB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "text_fingerprint"}},
			DoUpdates: clause.Assignments(map[string]any{
				"intent":       intent,
				"confidence":   confidence,
				"source":       source,
				"hit_count":    gorm.Expr("hit_count + 1"),
				"last_seen_at": row.LastSeenAt,
			}),
		}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("save intent pattern failed: %w", err)
	}
	return nil
}

// RecordUserActivity appends an audit-trail row for one user action.
// Metadata marshal failures degrade to an empty payload rather than
// dropping the activity record outright.
func (pm *PoolManager) RecordUserActivity(ctx context.Context, userID, action string, metadata map[string]any) error {
	var payload string
	if len(metadata) > 0 {
		data, err := json.Marshal(metadata)
		if err == nil {
			payload = string(data)
		}
	}

	row := &UserActivity{
		UserID:    userID,
		Action:    action,
		Metadata:  payload,
		CreatedAt: time.Now(),
	}
	if err := pm.DB().WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("record user activity failed: %w", err)
	}
	return nil
}
