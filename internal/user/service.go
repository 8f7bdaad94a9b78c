// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/donetracker/internal/auth"
	"github.com/hitoshi/donetracker/internal/logger"
	"github.com/hitoshi/donetracker/internal/model"
	"github.com/hitoshi/donetracker/internal/query"
	"github.com/hitoshi/donetracker/internal/repository"
)

// UpdateInput はユーザー更新リクエストの入力を表す。nilのフィールドは変更しない。
type UpdateInput struct {
	Username *string
	Password *string
}

// Service はユーザー管理のサービス層。
// 一覧取得、ユーザー名・パスワードの変更、所有者の解決を提供する。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// List は全ユーザーを返す。パスワードハッシュは含まない。
func (s *Service) List(ctx context.Context) ([]model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// ResolveOwner はユーザー名を所有者IDへ解決する。
// 該当ユーザーが存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) ResolveOwner(ctx context.Context, username string) (int64, error) {
	if username == "" {
		return 0, model.NewValidationError("user is required")
	}
	id, found, err := s.userRepo.ResolveUserID(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve user %q: %w", username, err)
	}
	if !found {
		return 0, model.NewUserNotFoundError()
	}
	return id, nil
}

// Update はユーザー名とパスワードを部分更新する。
// 更新対象が無い場合はデータベースへ問い合わせる前に検証エラーを返す。
// 新しいユーザー名の重複は一意制約違反をDUPLICATE_USERNAMEとして返す。
func (s *Service) Update(ctx context.Context, username string, in UpdateInput) (*model.User, error) {
	var patch model.UserPatch

	if in.Username != nil {
		name, apiErr := auth.NormalizeUsername(*in.Username)
		if apiErr != nil {
			return nil, apiErr
		}
		patch.Username = &name
	}
	if in.Password != nil {
		if apiErr := auth.ValidatePassword(*in.Password); apiErr != nil {
			return nil, apiErr
		}
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = &hash
	}
	if patch.Empty() {
		return nil, model.NewValidationError("no updatable field (username, password) was provided")
	}

	id, err := s.ResolveOwner(ctx, username)
	if err != nil {
		return nil, err
	}

	updated, err := s.userRepo.Update(ctx, id, patch)
	if err != nil {
		if query.Classify(err) == query.ConstraintUnique {
			return nil, model.NewDuplicateUsernameError()
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if updated == nil {
		return nil, model.NewUserNotFoundError()
	}

	logger.FromContext(ctx).Info("user updated",
		slog.Int64("user_id", updated.ID),
		slog.String("username", updated.Username),
		slog.Bool("password_changed", patch.PasswordHash != nil),
	)
	return updated, nil
}
