package model

import "time"

// Todo はプロジェクトに属するタスクを表す。
type Todo struct {
	ID          int64      `db:"t_id" json:"t_id"`
	Title       string     `db:"t_title" json:"t_title"`
	Description string     `db:"t_description" json:"t_description"`
	Reminder    *time.Time `db:"t_reminder" json:"t_reminder"`
	Beginning   time.Time  `db:"t_beginning" json:"t_beginning"`
	Ending      *time.Time `db:"t_ending" json:"t_ending"`
	Done        bool       `db:"t_done" json:"t_done"`
	PriorityID  int64      `db:"t_pr_priority" json:"t_pr_priority"`
	ProjectID   int64      `db:"p_project_p_id" json:"p_project_p_id"`
	OwnerID     int64      `db:"t_u_user_id" json:"t_u_user_id"`
}

// NewTodo はTodo作成時の入力を表す。
type NewTodo struct {
	Title       string
	Description string
	ProjectID   int64
	PriorityID  int64
	Reminder    *time.Time
	Ending      *time.Time
}

// TodoPatch はTodoの部分更新内容を表す。
type TodoPatch struct {
	Title       *string
	Description *string
	PriorityID  *int64
	Done        *bool
	Reminder    *time.Time
	Ending      *time.Time
	ProjectID   *int64
}

// Empty は更新対象のフィールドが1つも無い場合にtrueを返す。
func (p TodoPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.PriorityID == nil &&
		p.Done == nil && p.Reminder == nil && p.Ending == nil && p.ProjectID == nil
}

// TodoFilter はTodo一覧の絞り込み条件を表す。nilの条件は適用しない。
// Start/Endは期限（t_ending）に対する範囲で、Endは含まない。
type TodoFilter struct {
	Start      *time.Time
	End        *time.Time
	PriorityID *int64
	Done       *bool
}

// TodoSearch はTodoの部分一致検索条件を表す。
type TodoSearch struct {
	Term               string
	IncludeDescription bool
}

// Priority は優先度の参照データを表す。
type Priority struct {
	ID   int64  `db:"pr_id" json:"pr_id"`
	Name string `db:"pr_name" json:"pr_name"`
}
