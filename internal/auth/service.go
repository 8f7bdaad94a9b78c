// Package auth はパスワードのハッシュ化、ベアラートークンの発行・検証、
// ユーザー登録とログインを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/donetracker/internal/logger"
	"github.com/hitoshi/donetracker/internal/model"
	"github.com/hitoshi/donetracker/internal/query"
	"github.com/hitoshi/donetracker/internal/repository"
)

// dummyHash は存在しないユーザーのログイン時にも比較コストを揃えるためのハッシュ。
var dummyHash = sync.OnceValue(func() string {
	hash, err := HashPassword("done-backend-dummy-password")
	if err != nil {
		return ""
	}
	return hash
})

// LoginResult はログイン成功時に返すトークン情報。
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Username  string    `json:"username"`
}

// Service はユーザー登録とログインのビジネスロジックを提供する。
type Service struct {
	users  repository.UserRepository
	tokens *TokenManager
}

// NewService はServiceを生成する。
func NewService(users repository.UserRepository, tokens *TokenManager) *Service {
	return &Service{users: users, tokens: tokens}
}

// Register はユーザーを登録する。
// ユーザー名の重複は事前確認せず、一意制約違反をDUPLICATE_USERNAMEとして返す。
func (s *Service) Register(ctx context.Context, username, password string) (*model.User, error) {
	username, apiErr := NormalizeUsername(username)
	if apiErr != nil {
		return nil, apiErr
	}
	if apiErr := ValidatePassword(password); apiErr != nil {
		return nil, apiErr
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, username, hash)
	if err != nil {
		if query.Classify(err) == query.ConstraintUnique {
			return nil, model.NewDuplicateUsernameError()
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	logger.FromContext(ctx).Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Login は認証情報を検証し、ベアラートークンを発行する。
// ユーザーの不在とパスワード不一致は区別せずINVALID_CREDENTIALSを返す。
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username, apiErr := NormalizeUsername(username)
	if apiErr != nil {
		return nil, apiErr
	}
	if password == "" {
		return nil, model.NewValidationError("password is required")
	}

	creds, err := s.users.FindCredentials(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	hash := dummyHash()
	if creds != nil {
		hash = creds.PasswordHash
	}
	ok, err := ComparePassword(hash, password)
	if err != nil && creds != nil {
		return nil, err
	}
	if creds == nil || !ok {
		logger.FromContext(ctx).Warn("login failed", slog.String("username", username))
		return nil, model.NewInvalidCredentialsError()
	}

	token, expiresAt, err := s.tokens.Issue(creds.Username)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("user logged in", slog.String("username", creds.Username))
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Username: creds.Username}, nil
}
