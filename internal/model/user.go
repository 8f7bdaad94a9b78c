// Package model はドメインモデルを定義する。
// JSONのフィールド名はテーブルの列名と一致させている。
package model

// User はサービス利用ユーザーを表す。パスワードハッシュは含まない。
type User struct {
	ID       int64  `db:"u_id" json:"u_id"`
	Username string `db:"u_username" json:"u_username"`
}

// Credentials はログイン検証に使う認証情報を表す。
type Credentials struct {
	ID           int64  `db:"u_id"`
	Username     string `db:"u_username"`
	PasswordHash string `db:"u_password_hash"`
}

// UserPatch はユーザーの部分更新内容を表す。nilのフィールドは変更しない。
type UserPatch struct {
	Username     *string
	PasswordHash *string
}

// Empty は更新対象のフィールドが1つも無い場合にtrueを返す。
func (p UserPatch) Empty() bool {
	return p.Username == nil && p.PasswordHash == nil
}
