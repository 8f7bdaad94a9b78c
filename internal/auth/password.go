package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/donetracker/internal/model"
)

// パスワード長の制約。bcryptは72バイトを超える入力を扱えない。
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// NormalizeUsername は前後の空白を除去し、ユーザー名の書式を検証する。
func NormalizeUsername(username string) (string, *model.APIError) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", model.NewValidationError("username is required")
	}
	if !usernamePattern.MatchString(username) {
		return "", model.NewValidationError("username must be 1-64 characters of letters, digits, '.', '_' or '-'")
	}
	return username, nil
}

// ValidatePassword はパスワードの長さを検証する。
func ValidatePassword(password string) *model.APIError {
	if password == "" {
		return model.NewValidationError("password is required")
	}
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return model.NewValidationError(fmt.Sprintf("password must be %d-%d bytes", MinPasswordLength, MaxPasswordLength))
	}
	return nil
}

// HashPassword はパスワードをbcryptでハッシュ化する。
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// ComparePassword はハッシュとパスワードが一致するかを返す。
// 不一致はエラーではなくfalseとして返す。
func ComparePassword(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("failed to compare password: %w", err)
}
