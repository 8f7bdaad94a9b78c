// Package repository はデータ永続化のインターフェースを定義する。
// 実装は全てquery.Runnerを経由し、ステートメント1件ごとに接続を開閉する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/donetracker/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。ユーザー名の重複は一意制約違反として返る。
	Create(ctx context.Context, username, passwordHash string) (*model.User, error)

	// ResolveUserID はユーザー名から内部IDを解決する。
	// 該当ユーザーが存在しない場合はエラーではなくfound=falseを返す。
	ResolveUserID(ctx context.Context, username string) (id int64, found bool, err error)

	// FindCredentials はログイン検証用の認証情報を取得する。見つからない場合はnilを返す。
	FindCredentials(ctx context.Context, username string) (*model.Credentials, error)

	// List は全ユーザーをID順に返す。
	List(ctx context.Context) ([]model.User, error)

	// Update は指定フィールドのみを更新する。対象が存在しない場合はnilを返す。
	Update(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error)
}

// ProjectRepository はプロジェクトデータの永続化インターフェース。
type ProjectRepository interface {
	// Create はプロジェクトを作成する。
	Create(ctx context.Context, ownerID int64, title, color string) (*model.Project, error)

	// FindByID は所有者を問わずプロジェクトを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Project, error)

	// FindOwned は所有者のプロジェクトを取得する。見つからない場合はnilを返す。
	FindOwned(ctx context.Context, id, ownerID int64) (*model.Project, error)

	// ListAll は全プロジェクトを返す。
	ListAll(ctx context.Context) ([]model.Project, error)

	// ListByOwner は所有者のプロジェクト一覧を返す。
	ListByOwner(ctx context.Context, ownerID int64) ([]model.Project, error)

	// Update は所有者のプロジェクトを部分更新する。対象が存在しない場合はnilを返す。
	Update(ctx context.Context, id, ownerID int64, patch model.ProjectPatch) (*model.Project, error)

	// Delete は所有者のプロジェクトを削除し、削除できたかを返す。
	// Todoが残っている場合は外部キー制約違反として返る。
	Delete(ctx context.Context, id, ownerID int64) (bool, error)

	// DeleteTodos は所有者のプロジェクトに属するTodoを全て削除し、削除件数を返す。
	DeleteTodos(ctx context.Context, id, ownerID int64) (int, error)
}

// TodoRepository はTodoデータの永続化インターフェース。
type TodoRepository interface {
	// Create はTodoを作成する。
	// プロジェクトが所有者のものでない場合はNOT NULL制約違反、
	// 優先度が存在しない場合は外部キー制約違反として返る。
	Create(ctx context.Context, ownerID int64, todo model.NewTodo, beginning time.Time) (*model.Todo, error)

	// FindByID は所有者を問わずTodoを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Todo, error)

	// FindOwned は所有者のTodoを取得する。見つからない場合はnilを返す。
	FindOwned(ctx context.Context, id, ownerID int64) (*model.Todo, error)

	// ListAll は全Todoを返す。
	ListAll(ctx context.Context) ([]model.Todo, error)

	// ListByOwner は所有者のTodo一覧を返す。
	ListByOwner(ctx context.Context, ownerID int64) ([]model.Todo, error)

	// ListByProject は所有者のプロジェクトに属するTodo一覧を返す。
	ListByProject(ctx context.Context, projectID, ownerID int64) ([]model.Todo, error)

	// Update は所有者のTodoを部分更新する。対象が存在しない場合はnilを返す。
	Update(ctx context.Context, id, ownerID int64, patch model.TodoPatch) (*model.Todo, error)

	// Delete は所有者のTodoを削除し、削除できたかを返す。
	Delete(ctx context.Context, id, ownerID int64) (bool, error)

	// Filter は任意の組み合わせの条件で所有者のTodoを絞り込む。
	Filter(ctx context.Context, ownerID int64, filter model.TodoFilter) ([]model.Todo, error)

	// Search はタイトル（と説明）の大文字小文字を区別しない部分一致で所有者のTodoを検索する。
	Search(ctx context.Context, ownerID int64, search model.TodoSearch) ([]model.Todo, error)
}

// PriorityRepository は優先度参照データの読み取りインターフェース。
type PriorityRepository interface {
	// List は全優先度をID順に返す。
	List(ctx context.Context) ([]model.Priority, error)
}
