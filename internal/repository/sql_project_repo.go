package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/donetracker/internal/model"
	"github.com/hitoshi/donetracker/internal/query"
)

const projectColumns = `p_id, p_title, p_color, p_u_user_id`

// SQLProjectRepo はquery.Runnerを使用したプロジェクトリポジトリ。
// 所有者スコープの操作は全てステートメントの条件に所有者IDを含める。
type SQLProjectRepo struct {
	runner query.Runner
}

// NewSQLProjectRepo はSQLProjectRepoを生成する。
func NewSQLProjectRepo(runner query.Runner) *SQLProjectRepo {
	return &SQLProjectRepo{runner: runner}
}

// Create はプロジェクトを作成する。
func (r *SQLProjectRepo) Create(ctx context.Context, ownerID int64, title, color string) (*model.Project, error) {
	var projects []model.Project
	err := r.runner.Select(ctx, &projects,
		`INSERT INTO p_project (p_title, p_color, p_u_user_id)
		 VALUES (:title, :color, :ownerId)
		 RETURNING `+projectColumns,
		query.Text("title", title),
		query.Text("color", color),
		query.Int("ownerId", ownerID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("failed to insert project: no row returned")
	}
	return &projects[0], nil
}

// FindByID は所有者を問わずプロジェクトを取得する。見つからない場合はnilを返す。
func (r *SQLProjectRepo) FindByID(ctx context.Context, id int64) (*model.Project, error) {
	return r.findOne(ctx,
		`SELECT `+projectColumns+` FROM p_project WHERE p_id = :id`,
		query.Int("id", id),
	)
}

// FindOwned は所有者のプロジェクトを取得する。見つからない場合はnilを返す。
func (r *SQLProjectRepo) FindOwned(ctx context.Context, id, ownerID int64) (*model.Project, error) {
	return r.findOne(ctx,
		`SELECT `+projectColumns+` FROM p_project WHERE p_id = :id AND p_u_user_id = :ownerId`,
		query.Int("id", id),
		query.Int("ownerId", ownerID),
	)
}

// ListAll は全プロジェクトを返す。
func (r *SQLProjectRepo) ListAll(ctx context.Context) ([]model.Project, error) {
	return r.list(ctx, `SELECT `+projectColumns+` FROM p_project ORDER BY p_id`)
}

// ListByOwner は所有者のプロジェクト一覧を返す。
func (r *SQLProjectRepo) ListByOwner(ctx context.Context, ownerID int64) ([]model.Project, error) {
	return r.list(ctx,
		`SELECT `+projectColumns+` FROM p_project WHERE p_u_user_id = :ownerId ORDER BY p_id`,
		query.Int("ownerId", ownerID),
	)
}

// Update は所有者のプロジェクトを部分更新する。対象が存在しない場合はnilを返す。
func (r *SQLProjectRepo) Update(ctx context.Context, id, ownerID int64, patch model.ProjectPatch) (*model.Project, error) {
	var set query.Assignments
	if patch.Title != nil {
		set.Set("p_title", query.Text("title", *patch.Title))
	}
	if patch.Color != nil {
		set.Set("p_color", query.Text("color", *patch.Color))
	}
	if set.Empty() {
		return nil, fmt.Errorf("failed to update project: no fields to update")
	}

	params := append(set.Params(), query.Int("id", id), query.Int("ownerId", ownerID))
	return r.findOne(ctx,
		`UPDATE p_project SET `+set.SQL()+`
		 WHERE p_id = :id AND p_u_user_id = :ownerId
		 RETURNING `+projectColumns,
		params...,
	)
}

// Delete は所有者のプロジェクトを削除し、削除できたかを返す。
func (r *SQLProjectRepo) Delete(ctx context.Context, id, ownerID int64) (bool, error) {
	rows, err := r.runner.Run(ctx,
		`DELETE FROM p_project WHERE p_id = :id AND p_u_user_id = :ownerId RETURNING p_id`,
		query.Int("id", id),
		query.Int("ownerId", ownerID),
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete project: %w", err)
	}
	return len(rows) > 0, nil
}

// DeleteTodos は所有者のプロジェクトに属するTodoを全て削除し、削除件数を返す。
func (r *SQLProjectRepo) DeleteTodos(ctx context.Context, id, ownerID int64) (int, error) {
	rows, err := r.runner.Run(ctx,
		`DELETE FROM t_todo
		 WHERE p_project_p_id IN (SELECT p_id FROM p_project WHERE p_id = :id AND p_u_user_id = :ownerId)
		 RETURNING t_id`,
		query.Int("id", id),
		query.Int("ownerId", ownerID),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete project todos: %w", err)
	}
	return len(rows), nil
}

func (r *SQLProjectRepo) findOne(ctx context.Context, stmt string, params ...query.Param) (*model.Project, error) {
	var projects []model.Project
	if err := r.runner.Select(ctx, &projects, stmt, params...); err != nil {
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	if len(projects) == 0 {
		return nil, nil
	}
	return &projects[0], nil
}

func (r *SQLProjectRepo) list(ctx context.Context, stmt string, params ...query.Param) ([]model.Project, error) {
	projects := []model.Project{}
	if err := r.runner.Select(ctx, &projects, stmt, params...); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// compile-time interface check
var _ ProjectRepository = (*SQLProjectRepo)(nil)
