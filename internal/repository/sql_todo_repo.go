package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/donetracker/internal/model"
	"github.com/hitoshi/donetracker/internal/query"
)

const todoColumns = `t_id, t_title, t_description, t_reminder, t_beginning, t_ending, t_done, t_pr_priority, p_project_p_id, t_u_user_id`

// ownedProject は所有者のプロジェクトIDを返すスカラーサブクエリ。
// 所有者のものでなければNULLとなり、p_project_p_idのNOT NULL制約で拒否される。
const ownedProject = `(SELECT p_id FROM p_project WHERE p_id = :projectId AND p_u_user_id = :ownerId)`

// SQLTodoRepo はquery.Runnerを使用したTodoリポジトリ。
// 所有者スコープの操作は全てステートメントの条件に所有者IDを含める。
type SQLTodoRepo struct {
	runner query.Runner
}

// NewSQLTodoRepo はSQLTodoRepoを生成する。
func NewSQLTodoRepo(runner query.Runner) *SQLTodoRepo {
	return &SQLTodoRepo{runner: runner}
}

// Create はTodoを作成する。
// 作成後の行は時刻列の型変換を揃えるため、通常のSELECTで読み直す。
func (r *SQLTodoRepo) Create(ctx context.Context, ownerID int64, todo model.NewTodo, beginning time.Time) (*model.Todo, error) {
	rows, err := r.runner.Run(ctx,
		`INSERT INTO t_todo (t_title, t_description, t_reminder, t_beginning, t_ending, t_done, t_pr_priority, p_project_p_id, t_u_user_id)
		 VALUES (:title, :description, :reminder, :beginning, :ending, :done, :priority, `+ownedProject+`, :ownerId)
		 RETURNING t_id`,
		query.Text("title", todo.Title),
		query.Text("description", todo.Description),
		query.NullTimestamp("reminder", todo.Reminder),
		query.Timestamp("beginning", beginning),
		query.NullTimestamp("ending", todo.Ending),
		query.Bool("done", false),
		query.Int("priority", todo.PriorityID),
		query.Int("projectId", todo.ProjectID),
		query.Int("ownerId", ownerID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert todo: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to insert todo: no id returned")
	}
	id, ok := rows[0].Int64("t_id")
	if !ok {
		return nil, fmt.Errorf("failed to insert todo: unexpected id %v", rows[0]["t_id"])
	}

	created, err := r.FindOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("failed to insert todo: row %d vanished", id)
	}
	return created, nil
}

// FindByID は所有者を問わずTodoを取得する。見つからない場合はnilを返す。
func (r *SQLTodoRepo) FindByID(ctx context.Context, id int64) (*model.Todo, error) {
	return r.findOne(ctx,
		`SELECT `+todoColumns+` FROM t_todo WHERE t_id = :id`,
		query.Int("id", id),
	)
}

// FindOwned は所有者のTodoを取得する。見つからない場合はnilを返す。
func (r *SQLTodoRepo) FindOwned(ctx context.Context, id, ownerID int64) (*model.Todo, error) {
	return r.findOne(ctx,
		`SELECT `+todoColumns+` FROM t_todo WHERE t_id = :id AND t_u_user_id = :ownerId`,
		query.Int("id", id),
		query.Int("ownerId", ownerID),
	)
}

// ListAll は全Todoを返す。
func (r *SQLTodoRepo) ListAll(ctx context.Context) ([]model.Todo, error) {
	return r.list(ctx, `SELECT `+todoColumns+` FROM t_todo ORDER BY t_id`)
}

// ListByOwner は所有者のTodo一覧を返す。
func (r *SQLTodoRepo) ListByOwner(ctx context.Context, ownerID int64) ([]model.Todo, error) {
	return r.list(ctx,
		`SELECT `+todoColumns+` FROM t_todo WHERE t_u_user_id = :ownerId ORDER BY t_id`,
		query.Int("ownerId", ownerID),
	)
}

// ListByProject は所有者のプロジェクトに属するTodo一覧を返す。
func (r *SQLTodoRepo) ListByProject(ctx context.Context, projectID, ownerID int64) ([]model.Todo, error) {
	return r.list(ctx,
		`SELECT `+todoColumns+` FROM t_todo
		 WHERE p_project_p_id = :projectId AND t_u_user_id = :ownerId
		 ORDER BY t_id`,
		query.Int("projectId", projectID),
		query.Int("ownerId", ownerID),
	)
}

// Update は所有者のTodoを部分更新する。対象が存在しない場合はnilを返す。
// プロジェクトの付け替えは所有者のプロジェクトに限られる。
func (r *SQLTodoRepo) Update(ctx context.Context, id, ownerID int64, patch model.TodoPatch) (*model.Todo, error) {
	var set query.Assignments
	if patch.Title != nil {
		set.Set("t_title", query.Text("title", *patch.Title))
	}
	if patch.Description != nil {
		set.Set("t_description", query.Text("description", *patch.Description))
	}
	if patch.PriorityID != nil {
		set.Set("t_pr_priority", query.Int("priority", *patch.PriorityID))
	}
	if patch.Done != nil {
		set.Set("t_done", query.Bool("done", *patch.Done))
	}
	if patch.Reminder != nil {
		set.Set("t_reminder", query.Timestamp("reminder", *patch.Reminder))
	}
	if patch.Ending != nil {
		set.Set("t_ending", query.Timestamp("ending", *patch.Ending))
	}
	if patch.ProjectID != nil {
		set.SetExpr("p_project_p_id", ownedProject, query.Int("projectId", *patch.ProjectID))
	}
	if set.Empty() {
		return nil, fmt.Errorf("failed to update todo: no fields to update")
	}

	params := append(set.Params(), query.Int("id", id), query.Int("ownerId", ownerID))
	rows, err := r.runner.Run(ctx,
		`UPDATE t_todo SET `+set.SQL()+`
		 WHERE t_id = :id AND t_u_user_id = :ownerId
		 RETURNING t_id`,
		params...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return r.FindOwned(ctx, id, ownerID)
}

// Delete は所有者のTodoを削除し、削除できたかを返す。
func (r *SQLTodoRepo) Delete(ctx context.Context, id, ownerID int64) (bool, error) {
	rows, err := r.runner.Run(ctx,
		`DELETE FROM t_todo WHERE t_id = :id AND t_u_user_id = :ownerId RETURNING t_id`,
		query.Int("id", id),
		query.Int("ownerId", ownerID),
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete todo: %w", err)
	}
	return len(rows) > 0, nil
}

// Filter は任意の組み合わせの条件で所有者のTodoを絞り込む。
// 期間は期限（t_ending）に対して [Start, End) で判定する。
func (r *SQLTodoRepo) Filter(ctx context.Context, ownerID int64, filter model.TodoFilter) ([]model.Todo, error) {
	var where query.Conditions
	where.Add("t_u_user_id = :ownerId", query.Int("ownerId", ownerID))
	if filter.Start != nil {
		where.Add("t_ending >= :start", query.Timestamp("start", *filter.Start))
	}
	if filter.End != nil {
		where.Add("t_ending < :end", query.Timestamp("end", *filter.End))
	}
	if filter.PriorityID != nil {
		where.Add("t_pr_priority = :priority", query.Int("priority", *filter.PriorityID))
	}
	if filter.Done != nil {
		where.Add("t_done = :done", query.Bool("done", *filter.Done))
	}

	return r.list(ctx,
		`SELECT `+todoColumns+` FROM t_todo`+where.SQL()+` ORDER BY t_id`,
		where.Params()...,
	)
}

// Search はタイトル（と説明）の大文字小文字を区別しない部分一致で所有者のTodoを検索する。
// 検索語に含まれるLIKEのメタ文字はリテラルとして扱う。
func (r *SQLTodoRepo) Search(ctx context.Context, ownerID int64, search model.TodoSearch) ([]model.Todo, error) {
	pattern := "%" + query.EscapeLike(search.Term) + "%"

	// 両辺を同じLOWER()で揃える
	match := `LOWER(t_title) LIKE LOWER(:pattern) ESCAPE '\'`
	if search.IncludeDescription {
		match = `(` + match + ` OR LOWER(t_description) LIKE LOWER(:pattern) ESCAPE '\')`
	}

	var where query.Conditions
	where.Add("t_u_user_id = :ownerId", query.Int("ownerId", ownerID))
	where.Add(match, query.Text("pattern", pattern))

	return r.list(ctx,
		`SELECT `+todoColumns+` FROM t_todo`+where.SQL()+` ORDER BY t_id`,
		where.Params()...,
	)
}

func (r *SQLTodoRepo) findOne(ctx context.Context, stmt string, params ...query.Param) (*model.Todo, error) {
	var todos []model.Todo
	if err := r.runner.Select(ctx, &todos, stmt, params...); err != nil {
		return nil, fmt.Errorf("failed to find todo: %w", err)
	}
	if len(todos) == 0 {
		return nil, nil
	}
	return &todos[0], nil
}

func (r *SQLTodoRepo) list(ctx context.Context, stmt string, params ...query.Param) ([]model.Todo, error) {
	todos := []model.Todo{}
	if err := r.runner.Select(ctx, &todos, stmt, params...); err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	return todos, nil
}

// compile-time interface check
var _ TodoRepository = (*SQLTodoRepo)(nil)
