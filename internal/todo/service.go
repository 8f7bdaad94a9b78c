// Package todo はTodo管理のドメインロジックを提供する。
// 作成・更新・削除・検索は全て所有者スコープで行い、
// 他ユーザーのTodoは存在しないものとして扱う。
package todo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/donetracker/internal/logger"
	"github.com/hitoshi/donetracker/internal/model"
	"github.com/hitoshi/donetracker/internal/query"
	"github.com/hitoshi/donetracker/internal/repository"
	"github.com/hitoshi/donetracker/internal/security"
)

// 入力文字列の最大長（文字数）
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 4000
	MaxSearchTermLength  = 200
)

// OwnerResolver はユーザー名を所有者IDへ解決するインターフェース。
type OwnerResolver interface {
	ResolveOwner(ctx context.Context, username string) (int64, error)
}

// CreateInput はTodo作成リクエストの入力を表す。
// ProjectIDとPriorityIDは必須のため、未指定を区別できるようポインタで受け取る。
type CreateInput struct {
	Title       string
	Description string
	ProjectID   *int64
	PriorityID  *int64
	Reminder    *time.Time
	Ending      *time.Time
}

// UpdateInput はTodo更新リクエストの入力を表す。nilのフィールドは変更しない。
type UpdateInput struct {
	Title       *string
	Description *string
	PriorityID  *int64
	Done        *bool
	Reminder    *time.Time
	Ending      *time.Time
	ProjectID   *int64
}

// FilterInput は期間・優先度による絞り込み条件を表す。
type FilterInput struct {
	Start      *time.Time
	End        *time.Time
	PriorityID *int64
}

// Service はTodo管理のサービス層。
type Service struct {
	todos     repository.TodoRepository
	projects  repository.ProjectRepository
	owners    OwnerResolver
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	todos repository.TodoRepository,
	projects repository.ProjectRepository,
	owners OwnerResolver,
	sanitizer security.TextSanitizer,
) *Service {
	return &Service{
		todos:     todos,
		projects:  projects,
		owners:    owners,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// ListAll は所有者を問わず全Todoを返す。
func (s *Service) ListAll(ctx context.Context) ([]model.Todo, error) {
	todos, err := s.todos.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	return todos, nil
}

// Get は所有者を問わずTodoを取得する。
func (s *Service) Get(ctx context.Context, id int64) (*model.Todo, error) {
	t, err := s.todos.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}
	if t == nil {
		return nil, model.NewTodoNotFoundError()
	}
	return t, nil
}

// GetOwned は所有者のTodoを取得する。
func (s *Service) GetOwned(ctx context.Context, id int64, username string) (*model.Todo, error) {
	ownerID, err := s.owners.ResolveOwner(ctx, username)
	if err != nil {
		return nil, err
	}
	t, err := s.todos.FindOwned(ctx, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}
	if t == nil {
		return nil, model.NewTodoNotFoundError()
	}
	return t, nil
}

// ListOwned は所有者のTodo一覧を返す。
func (s *Service) ListOwned(ctx context.Context, username string) ([]model.Todo, error) {
	ownerID, err := s.owners.ResolveOwner(ctx, username)
	if err != nil {
		return nil, err
	}
	todos, err := s.todos.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	return todos, nil
}

// ListByProject は所有者のプロジェクトに属するTodo一覧を返す。
// プロジェクトが所有者のものでない場合はPROJECT_NOT_FOUNDを返す。
func (s *Service) ListByProject(ctx context.Context, projectID int64, username string) ([]model.Todo, error) {
	ownerID, err := s.owners.ResolveOwner(ctx, username)
	if err != nil {
		return nil, err
	}
	p, err := s.projects.FindOwned(ctx, projectID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if p == nil {
		return nil, model.NewProjectNotFoundError()
	}
	todos, err := s.todos.ListByProject(ctx, projectID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project todos: %w", err)
	}
	return todos, nil
}

// GetInProject は所有者のプロジェクトに属する1件のTodoを取得する。
// プロジェクトが所有者のものでなければPROJECT_NOT_FOUND、
// Todoがそのプロジェクトに属さなければTODO_NOT_FOUNDを返す。
func (s *Service) GetInProject(ctx context.Context, projectID, id int64, username string) (*model.Todo, error) {
	ownerID, err := s.owners.ResolveOwner(ctx, username)
	if err != nil {
		return nil, err
	}
	p, err := s.projects.FindOwned(ctx, projectID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if p == nil {
		return nil, model.NewProjectNotFoundError()
	}
	t, err := s.todos.FindOwned(ctx, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}
	if t == nil || t.ProjectID != projectID {
		return nil, model.NewTodoNotFoundError()
	}
	return t, nil
}

// Create は所有者のTodoを作成する。開始日時は作成時刻（UTC）とする。
// プロジェクトの所有確認と優先度の存在確認はデータベースの制約に委ねる。
func (s *Service) Create(ctx context.Context, username string, in CreateInput) (*model.Todo, error) {
	title, err := s.cleanTitle(in.Title)
	if err != nil {
		return nil, err
	}
	description, err := s.cleanDescription(in.Description)
	if err != nil {
		return nil, err
	}
	if in.ProjectID == nil {
		return nil, model.NewValidationError("projectId is required")
	}
	if in.PriorityID == nil {
		return nil, model.NewValidationError("priority is required")
	}

	ownerID, err := s.owners.ResolveOwner(ctx, username)
	if err != nil {
		return nil, err
	}

	t, err := s.todos.Create(ctx, ownerID, model.NewTodo{
		Title:       title,
		Description: description,
		ProjectID:   *in.ProjectID,
		PriorityID:  *in.PriorityID,
		Reminder:    utc(in.Reminder),
		Ending:      utc(in.Ending),
	}, s.now().UTC())
	if err != nil {
		if apiErr := referenceError(err); apiErr != nil {
			return nil, apiErr
		}
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}

	logger.FromContext(ctx).Info("todo created",
		slog.Int64("todo_id", t.ID),
		slog.Int64("project_id", t.ProjectID),
		slog.Int64("owner_id", ownerID),
	)
	return t, nil
}

// Update は所有者のTodoを部分更新する。
// 更新対象が無い場合はデータベースへ問い合わせる前に検証エラーを返す。
func (s *Service) Update(ctx context.Context, id int64, username string, in UpdateInput) (*model.Todo, error) {
	patch := model.TodoPatch{
		PriorityID: in.PriorityID,
		Done:       in.Done,
		Reminder:   utc(in.Reminder),
		Ending:     utc(in.Ending),
		ProjectID:  in.ProjectID,
	}
	if in.Title != nil {
		title, err := s.cleanTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if in.Description != nil {
		description, err := s.cleanDescription(*in.Description)
		if err != nil {
			return nil, err
		}
		patch.Description = &description
	}
	if patch.Empty() {
		return nil, model.NewValidationError("no updatable field was provided")
	}

	ownerID, err := s.owners.ResolveOwner(ctx, username)
	if err != nil {
		return nil, err
	}

	t, err := s.todos.Update(ctx, id, ownerID, patch)
	if err != nil {
		if apiErr := referenceError(err); apiErr != nil {
			return nil, apiErr
		}
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	if t == nil {
		return nil, model.NewTodoNotFoundError()
	}
	return t, nil
}

// Delete は所有者のTodoを削除する。
func (s *Service) Delete(ctx context.Context, id int64, username string) error {
	ownerID, err := s.owners.ResolveOwner(ctx, username)
	if err != nil {
		return err
	}
	deleted, err := s.todos.Delete(ctx, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	if !deleted {
		return model.NewTodoNotFoundError()
	}

	logger.FromContext(ctx).Info("todo deleted",
		slog.Int64("todo_id", id),
		slog.Int64("owner_id", ownerID),
	)
	return nil
}

// Filter は期限の期間 [Start, End) と優先度で所有者のTodoを絞り込む。
func (s *Service) Filter(ctx context.Context, username string, in FilterInput) ([]model.Todo, error) {
	start, end := utc(in.Start), utc(in.End)
	if start != nil && end != nil && !start.Before(*end) {
		return nil, model.NewValidationError("start must be before end")
	}
	return s.filter(ctx, username, model.TodoFilter{
		Start:      start,
		End:        end,
		PriorityID: in.PriorityID,
	})
}

// DueOn は期限がdayの暦日（UTC）に含まれる所有者のTodoを返す。
func (s *Service) DueOn(ctx context.Context, username string, day time.Time) ([]model.Todo, error) {
	d := day.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	return s.filter(ctx, username, model.TodoFilter{Start: &start, End: &end})
}

// ByDone は完了状態で所有者のTodoを絞り込む。
func (s *Service) ByDone(ctx context.Context, username string, done bool) ([]model.Todo, error) {
	return s.filter(ctx, username, model.TodoFilter{Done: &done})
}

// Search はタイトル（includeDescriptionがtrueの場合は説明も）に検索語を含む所有者のTodoを返す。
// 大文字小文字は区別しない。一致が無い場合は空のスライスを返す。
func (s *Service) Search(ctx context.Context, username, term string, includeDescription bool) ([]model.Todo, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, model.NewValidationError("term is required")
	}
	if utf8.RuneCountInString(term) > MaxSearchTermLength {
		return nil, model.NewValidationError(fmt.Sprintf("term must be at most %d characters", MaxSearchTermLength))
	}

	ownerID, err := s.owners.ResolveOwner(ctx, username)
	if err != nil {
		return nil, err
	}
	todos, err := s.todos.Search(ctx, ownerID, model.TodoSearch{Term: term, IncludeDescription: includeDescription})
	if err != nil {
		return nil, fmt.Errorf("failed to search todos: %w", err)
	}
	return todos, nil
}

func (s *Service) filter(ctx context.Context, username string, f model.TodoFilter) ([]model.Todo, error) {
	ownerID, err := s.owners.ResolveOwner(ctx, username)
	if err != nil {
		return nil, err
	}
	todos, err := s.todos.Filter(ctx, ownerID, f)
	if err != nil {
		return nil, fmt.Errorf("failed to filter todos: %w", err)
	}
	return todos, nil
}

func (s *Service) cleanTitle(raw string) (string, error) {
	title := s.sanitizer.Sanitize(raw)
	if title == "" {
		return "", model.NewValidationError("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", model.NewValidationError(fmt.Sprintf("title must be at most %d characters", MaxTitleLength))
	}
	return title, nil
}

func (s *Service) cleanDescription(raw string) (string, error) {
	description := s.sanitizer.Sanitize(raw)
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return "", model.NewValidationError(fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength))
	}
	return description, nil
}

// referenceError は参照整合性の制約違反を呼び出し側の入力エラーへ変換する。
// プロジェクトは所有者のものでなければNULLとなりNOT NULL制約違反になる。
func referenceError(err error) *model.APIError {
	switch query.Classify(err) {
	case query.ConstraintNotNull:
		return model.NewProjectNotFoundError()
	case query.ConstraintForeignKey:
		return model.NewInvalidReferenceError("priority")
	}
	return nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
