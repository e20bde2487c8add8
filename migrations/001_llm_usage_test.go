//go:build integration

package migrations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/gepetto/pkg/testhelpers"
)

// Test_001_LLMUsage verifies migration 001 creates the usage ledger table.
func Test_001_LLMUsage(t *testing.T) {
	usageDB := testhelpers.GetUsageDB(t)
	ctx := context.Background()

	var columnCount int
	err := usageDB.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = 'llm_usage'`).Scan(&columnCount)
	require.NoError(t, err)
	assert.Equal(t, 16, columnCount)

	var dataType string
	err = usageDB.DB.QueryRow(ctx, `
		SELECT data_type FROM information_schema.columns
		WHERE table_name = 'llm_usage' AND column_name = 'cost'`).Scan(&dataType)
	require.NoError(t, err)
	assert.Equal(t, "numeric", dataType)

	_, err = usageDB.DB.Exec(ctx, `
		INSERT INTO llm_usage (id, request_id, kind, model, status)
		VALUES (gen_random_uuid(), gen_random_uuid(), 'embedding', 'gpt-4o', 'success')`)
	assert.Error(t, err, "kind check constraint should reject unknown kinds")
}
