package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/gepetto/pkg/models"
)

// Querier is the subset of pgxpool.Pool used by repositories.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UsageRepository provides data access for LLM usage records.
type UsageRepository interface {
	Save(ctx context.Context, rec *models.UsageRecord) error
	ListRecent(ctx context.Context, limit int) ([]*models.UsageRecord, error)
	SummarizeByModel(ctx context.Context, since time.Time) ([]*models.UsageSummary, error)
}

type usageRepository struct {
	db Querier
}

// NewUsageRepository creates a new UsageRepository.
func NewUsageRepository(db Querier) UsageRepository {
	return &usageRepository{db: db}
}

var _ UsageRepository = (*usageRepository)(nil)

func (r *usageRepository) Save(ctx context.Context, rec *models.UsageRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	var contextJSON []byte
	if len(rec.Context) > 0 {
		var err error
		contextJSON, err = json.Marshal(rec.Context)
		if err != nil {
			return fmt.Errorf("failed to marshal context: %w", err)
		}
	}

	query := `
		INSERT INTO llm_usage (
			id, request_id, kind, context, endpoint, model, function_name, temperature,
			prompt_tokens, completion_tokens, total_tokens, cost, duration_ms,
			status, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::text::numeric, $13, $14, $15, $16)`

	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.RequestID, string(rec.Kind), contextJSON, rec.Endpoint, rec.Model,
		nullString(rec.FunctionName), rec.Temperature,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.Cost.String(), rec.DurationMs,
		rec.Status, nullString(rec.ErrorMessage), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save llm usage: %w", err)
	}

	return nil
}

func (r *usageRepository) ListRecent(ctx context.Context, limit int) ([]*models.UsageRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, request_id, kind, context, endpoint, model, function_name, temperature,
		       prompt_tokens, completion_tokens, total_tokens, cost::text, duration_ms,
		       status, error_message, created_at
		FROM llm_usage
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query llm usage: %w", err)
	}
	defer rows.Close()

	var records []*models.UsageRecord
	for rows.Next() {
		rec, err := scanUsageRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate llm usage: %w", err)
	}

	return records, nil
}

func (r *usageRepository) SummarizeByModel(ctx context.Context, since time.Time) ([]*models.UsageSummary, error) {
	query := `
		SELECT model,
		       COUNT(*),
		       COALESCE(SUM(prompt_tokens), 0),
		       COALESCE(SUM(completion_tokens), 0),
		       COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(cost), 0)::text
		FROM llm_usage
		WHERE status = 'success' AND created_at >= $1
		GROUP BY model
		ORDER BY SUM(cost) DESC, model`

	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize llm usage: %w", err)
	}
	defer rows.Close()

	var summaries []*models.UsageSummary
	for rows.Next() {
		var s models.UsageSummary
		var cost string
		if err := rows.Scan(&s.Model, &s.Calls, &s.PromptTokens, &s.CompletionTokens, &s.TotalTokens, &cost); err != nil {
			return nil, fmt.Errorf("failed to scan usage summary: %w", err)
		}
		if s.Cost, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("failed to parse cost %q: %w", cost, err)
		}
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage summary: %w", err)
	}

	return summaries, nil
}

func scanUsageRecord(row pgx.Row) (*models.UsageRecord, error) {
	var rec models.UsageRecord
	var kind, cost string
	var contextJSON []byte
	var functionName, errorMessage *string

	err := row.Scan(
		&rec.ID, &rec.RequestID, &kind, &contextJSON, &rec.Endpoint, &rec.Model, &functionName, &rec.Temperature,
		&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens, &cost, &rec.DurationMs,
		&rec.Status, &errorMessage, &rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan llm usage: %w", err)
	}

	rec.Kind = models.UsageKind(kind)
	if functionName != nil {
		rec.FunctionName = *functionName
	}
	if errorMessage != nil {
		rec.ErrorMessage = *errorMessage
	}
	if rec.Cost, err = decimal.NewFromString(cost); err != nil {
		return nil, fmt.Errorf("failed to parse cost %q: %w", cost, err)
	}
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &rec.Context); err != nil {
			return nil, fmt.Errorf("failed to unmarshal context: %w", err)
		}
	}

	return &rec, nil
}

// nullString maps an empty string to SQL NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
