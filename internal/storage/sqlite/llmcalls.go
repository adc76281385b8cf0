package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/typenhq/typen/internal/llmcall"
)

const llmCallColumns = `id, timestamp, latency_ms, user_id, prompt_key, attempt, provider, model,
       input_tokens, output_tokens, response, success, error`

// InsertLLMCall records a language model call.
func (s *Store) InsertLLMCall(ctx context.Context, call *llmcall.Call) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if call == nil || call.ID == "" {
		return fmt.Errorf("llm call id is required")
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO llm_calls (`+llmCallColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		call.ID,
		toMillis(call.Timestamp),
		call.LatencyMs,
		call.UserID,
		call.PromptKey,
		call.Attempt,
		call.Provider,
		call.Model,
		call.InputTokens,
		call.OutputTokens,
		call.Response,
		call.Success,
		call.Error,
	); err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}

// ListLLMCalls returns recorded calls, newest first.
func (s *Store) ListLLMCalls(ctx context.Context, f llmcall.QueryFilter) ([]llmcall.Call, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.PromptKey != "" {
		where = append(where, "prompt_key = ?")
		args = append(args, f.PromptKey)
	}
	if f.Provider != "" {
		where = append(where, "provider = ?")
		args = append(args, f.Provider)
	}
	if f.After != nil {
		where = append(where, "timestamp > ?")
		args = append(args, toMillis(*f.After))
	}
	if f.Success != nil {
		where = append(where, "success = ?")
		args = append(args, *f.Success)
	}

	query := `SELECT ` + llmCallColumns + ` FROM llm_calls`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = llmcall.DefaultLimit
	}
	query += ` ORDER BY timestamp DESC, id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, max(f.Offset, 0))

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list llm calls: %w", err)
	}
	defer rows.Close()

	calls := make([]llmcall.Call, 0)
	for rows.Next() {
		var (
			c  llmcall.Call
			ts int64
		)
		if err := rows.Scan(
			&c.ID,
			&ts,
			&c.LatencyMs,
			&c.UserID,
			&c.PromptKey,
			&c.Attempt,
			&c.Provider,
			&c.Model,
			&c.InputTokens,
			&c.OutputTokens,
			&c.Response,
			&c.Success,
			&c.Error,
		); err != nil {
			return nil, fmt.Errorf("scan llm call: %w", err)
		}
		c.Timestamp = fromMillis(ts)
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list llm calls: %w", err)
	}
	return calls, nil
}

var _ llmcall.Store = (*Store)(nil)
