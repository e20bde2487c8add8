//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/gepetto/pkg/models"
	"github.com/ekaya-inc/gepetto/pkg/testhelpers"
)

func setupUsageTest(t *testing.T) UsageRepository {
	t.Helper()
	usageDB := testhelpers.GetUsageDB(t)
	testhelpers.TruncateUsage(t, usageDB.DB)
	return NewUsageRepository(usageDB.DB)
}

func newChatRecord(model string, prompt, completion int, cost string) *models.UsageRecord {
	temp := 1.0
	return &models.UsageRecord{
		RequestID:        uuid.New(),
		Kind:             models.UsageKindChat,
		Endpoint:         "https://api.openai.com/v1",
		Model:            model,
		Temperature:      &temp,
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
		Cost:             decimal.RequireFromString(cost),
		DurationMs:       120,
		Status:           models.UsageStatusSuccess,
	}
}

func TestUsageRepository_SaveAndListRecent(t *testing.T) {
	repo := setupUsageTest(t)
	ctx := context.Background()

	rec := newChatRecord("gpt-4o-2024-08-06", 100, 50, "0.0008")
	rec.Context = map[string]any{"task": "summarize"}
	require.NoError(t, repo.Save(ctx, rec))
	assert.NotEqual(t, uuid.Nil, rec.ID)

	fn := &models.UsageRecord{
		RequestID:    uuid.New(),
		Kind:         models.UsageKindFunctionCall,
		Model:        "gpt-4o",
		FunctionName: "get_weather",
		TotalTokens:  150,
		Cost:         decimal.RequireFromString("0.0023"),
		Status:       models.UsageStatusSuccess,
		CreatedAt:    time.Now().Add(time.Second),
	}
	require.NoError(t, repo.Save(ctx, fn))

	records, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first
	assert.Equal(t, fn.ID, records[0].ID)
	assert.Equal(t, models.UsageKindFunctionCall, records[0].Kind)
	assert.Equal(t, "get_weather", records[0].FunctionName)
	assert.Nil(t, records[0].Temperature)
	assert.True(t, decimal.RequireFromString("0.0023").Equal(records[0].Cost))

	assert.Equal(t, rec.ID, records[1].ID)
	assert.Equal(t, rec.RequestID, records[1].RequestID)
	assert.Equal(t, 150, records[1].TotalTokens)
	assert.Equal(t, "summarize", records[1].Context["task"])
	require.NotNil(t, records[1].Temperature)
	assert.InDelta(t, 1.0, *records[1].Temperature, 1e-9)
	assert.True(t, decimal.RequireFromString("0.0008").Equal(records[1].Cost))
}

func TestUsageRepository_SaveError(t *testing.T) {
	repo := setupUsageTest(t)
	ctx := context.Background()

	rec := &models.UsageRecord{
		RequestID:    uuid.New(),
		Kind:         models.UsageKindChat,
		Model:        "gpt-4",
		Status:       models.UsageStatusError,
		ErrorMessage: "authentication failed",
	}
	require.NoError(t, repo.Save(ctx, rec))

	records, err := repo.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "authentication failed", records[0].ErrorMessage)
	assert.True(t, records[0].Cost.IsZero())
}

func TestUsageRepository_SummarizeByModel(t *testing.T) {
	repo := setupUsageTest(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, newChatRecord("gpt-4", 1000, 1000, "0.1800")))
	require.NoError(t, repo.Save(ctx, newChatRecord("gpt-4", 500, 0, "0.0300")))
	require.NoError(t, repo.Save(ctx, newChatRecord("gpt-4o-mini", 100, 100, "0.0000")))

	failed := newChatRecord("gpt-4", 0, 0, "0")
	failed.Status = models.UsageStatusError
	require.NoError(t, repo.Save(ctx, failed))

	old := newChatRecord("gpt-4", 10, 10, "1.0000")
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, repo.Save(ctx, old))

	summaries, err := repo.SummarizeByModel(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "gpt-4", summaries[0].Model)
	assert.Equal(t, 2, summaries[0].Calls)
	assert.Equal(t, 1500, summaries[0].PromptTokens)
	assert.Equal(t, 1000, summaries[0].CompletionTokens)
	assert.Equal(t, 2500, summaries[0].TotalTokens)
	assert.True(t, decimal.RequireFromString("0.21").Equal(summaries[0].Cost), "got %s", summaries[0].Cost)

	assert.Equal(t, "gpt-4o-mini", summaries[1].Model)
	assert.Equal(t, 1, summaries[1].Calls)
}
