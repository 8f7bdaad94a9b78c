// Package project はプロジェクト管理のドメインロジックを提供する。
// 所有者スコープの操作は全てユーザー名を所有者IDへ解決してから実行する。
package project

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/hitoshi/donetracker/internal/logger"
	"github.com/hitoshi/donetracker/internal/model"
	"github.com/hitoshi/donetracker/internal/query"
	"github.com/hitoshi/donetracker/internal/repository"
	"github.com/hitoshi/donetracker/internal/security"
)

// 入力文字列の最大長（文字数）
const (
	MaxTitleLength = 200
	MaxColorLength = 32
)

// OwnerResolver はユーザー名を所有者IDへ解決するインターフェース。
// 不在ユーザーはUSER_NOT_FOUNDのAPIErrorとして返す。
type OwnerResolver interface {
	ResolveOwner(ctx context.Context, username string) (int64, error)
}

// CreateInput はプロジェクト作成リクエストの入力を表す。
type CreateInput struct {
	Title string
	Color string
}

// UpdateInput はプロジェクト更新リクエストの入力を表す。nilのフィールドは変更しない。
type UpdateInput struct {
	Title *string
	Color *string
}

// Service はプロジェクト管理のサービス層。
type Service struct {
	projects  repository.ProjectRepository
	owners    OwnerResolver
	sanitizer security.TextSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(projects repository.ProjectRepository, owners OwnerResolver, sanitizer security.TextSanitizer) *Service {
	return &Service{
		projects:  projects,
		owners:    owners,
		sanitizer: sanitizer,
	}
}

// ListAll は所有者を問わず全プロジェクトを返す。
func (s *Service) ListAll(ctx context.Context) ([]model.Project, error) {
	projects, err := s.projects.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// Get は所有者を問わずプロジェクトを取得する。
func (s *Service) Get(ctx context.Context, id int64) (*model.Project, error) {
	p, err := s.projects.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if p == nil {
		return nil, model.NewProjectNotFoundError()
	}
	return p, nil
}

// GetOwned は所有者のプロジェクトを取得する。
// 他ユーザーのプロジェクトは存在しないものとして扱う。
func (s *Service) GetOwned(ctx context.Context, id int64, username string) (*model.Project, error) {
	ownerID, err := s.owners.ResolveOwner(ctx, username)
	if err != nil {
		return nil, err
	}
	p, err := s.projects.FindOwned(ctx, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if p == nil {
		return nil, model.NewProjectNotFoundError()
	}
	return p, nil
}

// ListOwned は所有者のプロジェクト一覧を返す。
func (s *Service) ListOwned(ctx context.Context, username string) ([]model.Project, error) {
	ownerID, err := s.owners.ResolveOwner(ctx, username)
	if err != nil {
		return nil, err
	}
	projects, err := s.projects.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// Create は所有者のプロジェクトを作成する。
func (s *Service) Create(ctx context.Context, username string, in CreateInput) (*model.Project, error) {
	title, err := s.cleanTitle(in.Title)
	if err != nil {
		return nil, err
	}
	color, err := s.cleanColor(in.Color)
	if err != nil {
		return nil, err
	}

	ownerID, err := s.owners.ResolveOwner(ctx, username)
	if err != nil {
		return nil, err
	}

	p, err := s.projects.Create(ctx, ownerID, title, color)
	if err != nil {
		// 解決後にユーザーが削除された場合
		if query.Classify(err) == query.ConstraintForeignKey {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	logger.FromContext(ctx).Info("project created",
		slog.Int64("project_id", p.ID),
		slog.Int64("owner_id", ownerID),
	)
	return p, nil
}

// Update は所有者のプロジェクトを部分更新する。
// 更新対象が無い場合はデータベースへ問い合わせる前に検証エラーを返す。
func (s *Service) Update(ctx context.Context, id int64, username string, in UpdateInput) (*model.Project, error) {
	var patch model.ProjectPatch
	if in.Title != nil {
		title, err := s.cleanTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if in.Color != nil {
		color, err := s.cleanColor(*in.Color)
		if err != nil {
			return nil, err
		}
		patch.Color = &color
	}
	if patch.Empty() {
		return nil, model.NewValidationError("no updatable field (title, color) was provided")
	}

	ownerID, err := s.owners.ResolveOwner(ctx, username)
	if err != nil {
		return nil, err
	}

	p, err := s.projects.Update(ctx, id, ownerID, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	if p == nil {
		return nil, model.NewProjectNotFoundError()
	}
	return p, nil
}

// Delete は所有者のプロジェクトを削除し、併せて削除したTodoの件数を返す。
// cascadeがfalseでTodoが残っている場合はPROJECT_HAS_TODOSを返す。
// cascadeがtrueの場合は先にプロジェクトのTodoを削除する。2つの削除はトランザクションではない。
func (s *Service) Delete(ctx context.Context, id int64, username string, cascade bool) (int, error) {
	ownerID, err := s.owners.ResolveOwner(ctx, username)
	if err != nil {
		return 0, err
	}

	removedTodos := 0
	if cascade {
		removedTodos, err = s.projects.DeleteTodos(ctx, id, ownerID)
		if err != nil {
			return 0, fmt.Errorf("failed to delete project todos: %w", err)
		}
	}

	deleted, err := s.projects.Delete(ctx, id, ownerID)
	if err != nil {
		if query.Classify(err) == query.ConstraintForeignKey {
			return removedTodos, model.NewProjectHasTodosError()
		}
		return removedTodos, fmt.Errorf("failed to delete project: %w", err)
	}
	if !deleted {
		return removedTodos, model.NewProjectNotFoundError()
	}

	logger.FromContext(ctx).Info("project deleted",
		slog.Int64("project_id", id),
		slog.Int64("owner_id", ownerID),
		slog.Int("removed_todos", removedTodos),
	)
	return removedTodos, nil
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

func (s *Service) cleanColor(raw string) (string, error) {
	color := s.sanitizer.Sanitize(raw)
	if utf8.RuneCountInString(color) > MaxColorLength {
		return "", model.NewValidationError(fmt.Sprintf("color must be at most %d characters", MaxColorLength))
	}
	return color, nil
}
