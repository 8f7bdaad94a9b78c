package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/donetracker/internal/model"
	"github.com/hitoshi/donetracker/internal/query"
)

// SQLUserRepo はquery.Runnerを使用したユーザーリポジトリ。
type SQLUserRepo struct {
	runner query.Runner
}

// NewSQLUserRepo はSQLUserRepoを生成する。
func NewSQLUserRepo(runner query.Runner) *SQLUserRepo {
	return &SQLUserRepo{runner: runner}
}

// Create はユーザーを作成する。ユーザー名の重複は一意制約違反として返る。
func (r *SQLUserRepo) Create(ctx context.Context, username, passwordHash string) (*model.User, error) {
	rows, err := r.runner.Run(ctx,
		`INSERT INTO u_user (u_username, u_password_hash)
		 VALUES (:username, :passwordHash)
		 RETURNING u_id`,
		query.Text("username", username),
		query.Text("passwordHash", passwordHash),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to insert user: no id returned")
	}
	id, ok := rows[0].Int64("u_id")
	if !ok {
		return nil, fmt.Errorf("failed to insert user: unexpected id %v", rows[0]["u_id"])
	}
	return &model.User{ID: id, Username: username}, nil
}

// ResolveUserID はユーザー名から内部IDを解決する。
// 該当ユーザーが存在しない場合はfound=falseを返す。
func (r *SQLUserRepo) ResolveUserID(ctx context.Context, username string) (int64, bool, error) {
	rows, err := r.runner.Run(ctx,
		`SELECT u_id FROM u_user WHERE u_username = :username`,
		query.Text("username", username),
	)
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve user id: %w", err)
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	id, ok := rows[0].Int64("u_id")
	if !ok {
		return 0, false, fmt.Errorf("failed to resolve user id: unexpected id %v", rows[0]["u_id"])
	}
	return id, true, nil
}

// FindCredentials はログイン検証用の認証情報を取得する。見つからない場合はnilを返す。
func (r *SQLUserRepo) FindCredentials(ctx context.Context, username string) (*model.Credentials, error) {
	var creds []model.Credentials
	err := r.runner.Select(ctx, &creds,
		`SELECT u_id, u_username, u_password_hash FROM u_user WHERE u_username = :username`,
		query.Text("username", username),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find credentials: %w", err)
	}
	if len(creds) == 0 {
		return nil, nil
	}
	return &creds[0], nil
}

// List は全ユーザーをID順に返す。
func (r *SQLUserRepo) List(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	if err := r.runner.Select(ctx, &users,
		`SELECT u_id, u_username FROM u_user ORDER BY u_id`,
	); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Update は指定フィールドのみを更新する。対象が存在しない場合はnilを返す。
func (r *SQLUserRepo) Update(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error) {
	var set query.Assignments
	if patch.Username != nil {
		set.Set("u_username", query.Text("username", *patch.Username))
	}
	if patch.PasswordHash != nil {
		set.Set("u_password_hash", query.Text("passwordHash", *patch.PasswordHash))
	}
	if set.Empty() {
		return nil, fmt.Errorf("failed to update user: no fields to update")
	}

	params := append(set.Params(), query.Int("id", id))
	var users []model.User
	if err := r.runner.Select(ctx, &users,
		`UPDATE u_user SET `+set.SQL()+` WHERE u_id = :id RETURNING u_id, u_username`,
		params...,
	); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// compile-time interface check
var _ UserRepository = (*SQLUserRepo)(nil)
