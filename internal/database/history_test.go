package database

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupHistoryTestPool(t *testing.T) *PoolManager {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	pm, err := NewPoolManager(db, DefaultPoolConfig(), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, pm.AutoMigrate(context.Background()))

	return pm
}

func TestSaveHistory(t *testing.T) {
	pm := setupHistoryTestPool(t)
	defer pm.Close()

	h := &EnhancementHistory{
		RequestID:         "req-1",
		UserID:            "user-1",
		OriginalText:      "write a function",
		EnhancedText:      "Let's think through this step-by-step...",
		Intent:            "code_generation",
		Complexity:        "moderate",
		TechniquesApplied: `["chain_of_thought"]`,
		Confidence:        0.9,
		GenerationTimeMs:  12,
		TokenEstimate:     42,
	}

	require.NoError(t, pm.SaveHistory(context.Background(), h))
	assert.NotZero(t, h.ID)

	var got EnhancementHistory
	require.NoError(t, pm.DB().First(&got, "request_id = ?", "req-1").Error)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "code_generation", got.Intent)
}

func TestUpdateFeedback(t *testing.T) {
	pm := setupHistoryTestPool(t)
	defer pm.Close()

	require.NoError(t, pm.UpdateFeedback(context.Background(), "req-1", 5, "great result"))

	var got Feedback
	require.NoError(t, pm.DB().First(&got, "request_id = ?", "req-1").Error)
	assert.Equal(t, 5, got.Rating)
	assert.Equal(t, "great result", got.Comment)
}

func TestSaveIntentPattern_InsertThenUpsert(t *testing.T) {
	pm := setupHistoryTestPool(t)
	defer pm.Close()
	ctx := context.Background()

	require.NoError(t, pm.SaveIntentPattern(ctx, "fp-1", "code_generation", 0.8, "rules"))

	var first IntentPattern
	require.NoError(t, pm.DB().First(&first, "text_fingerprint = ?", "fp-1").Error)
	assert.Equal(t, int64(1), first.HitCount)

	require.NoError(t, pm.SaveIntentPattern(ctx, "fp-1", "code_generation", 0.95, "ml"))

	var second IntentPattern
	require.NoError(t, pm.DB().First(&second, "text_fingerprint = ?", "fp-1").Error)
	assert.Equal(t, int64(2), second.HitCount)
	assert.Equal(t, "ml", second.Source)
	assert.InDelta(t, 0.95, second.Confidence, 0.001)

	var count int64
	pm.DB().Model(&IntentPattern{}).Where("text_fingerprint = ?", "fp-1").Count(&count)
	assert.Equal(t, int64(1), count, "upsert must not create a duplicate row")
}

func TestRecordUserActivity(t *testing.T) {
	pm := setupHistoryTestPool(t)
	defer pm.Close()

	err := pm.RecordUserActivity(context.Background(), "user-1", "enhance", map[string]any{
		"intent": "code_generation",
	})
	require.NoError(t, err)

	var got UserActivity
	require.NoError(t, pm.DB().First(&got, "user_id = ? AND action = ?", "user-1", "enhance").Error)
	assert.Contains(t, got.Metadata, "code_generation")
}

func TestRecordUserActivity_NilMetadata(t *testing.T) {
	pm := setupHistoryTestPool(t)
	defer pm.Close()

	err := pm.RecordUserActivity(context.Background(), "user-1", "health_check", nil)
	require.NoError(t, err)

	var got UserActivity
	require.NoError(t, pm.DB().First(&got, "user_id = ? AND action = ?", "user-1", "health_check").Error)
	assert.Empty(t, got.Metadata)
}

func TestSaveHistory_DefaultsCreatedAt(t *testing.T) {
	pm := setupHistoryTestPool(t)
	defer pm.Close()

	h := &EnhancementHistory{RequestID: "req-2"}
	before := time.Now()
	require.NoError(t, pm.SaveHistory(context.Background(), h))
	assert.False(t, h.CreatedAt.Before(before.Add(-time.Second)))
}
