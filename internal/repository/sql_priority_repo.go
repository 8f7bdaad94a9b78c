package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/donetracker/internal/model"
	"github.com/hitoshi/donetracker/internal/query"
)

// SQLPriorityRepo はquery.Runnerを使用した優先度リポジトリ。
type SQLPriorityRepo struct {
	runner query.Runner
}

// NewSQLPriorityRepo はSQLPriorityRepoを生成する。
func NewSQLPriorityRepo(runner query.Runner) *SQLPriorityRepo {
	return &SQLPriorityRepo{runner: runner}
}

// List は全優先度をID順に返す。
func (r *SQLPriorityRepo) List(ctx context.Context) ([]model.Priority, error) {
	priorities := []model.Priority{}
	if err := r.runner.Select(ctx, &priorities,
		`SELECT pr_id, pr_name FROM pr_priority ORDER BY pr_id`,
	); err != nil {
		return nil, fmt.Errorf("failed to list priorities: %w", err)
	}
	return priorities, nil
}

// compile-time interface check
var _ PriorityRepository = (*SQLPriorityRepo)(nil)
