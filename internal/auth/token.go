package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken はトークンの署名、期限、発行者のいずれかが不正な場合のエラー。
var ErrInvalidToken = errors.New("invalid token")

// TokenConfig はトークン発行の設定。
type TokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// TokenManager はHS256署名のベアラートークンを発行・検証する。
// 検証はデータベースを参照しない。
type TokenManager struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenManager はTokenManagerを生成する。
func NewTokenManager(config TokenConfig) *TokenManager {
	return &TokenManager{config: config, now: time.Now}
}

// Issue はユーザー名をsubjectとするトークンを発行し、トークン文字列と有効期限を返す。
func (m *TokenManager) Issue(username string) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.config.TTL)

	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   username,
		Issuer:    m.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify はトークンを検証し、subjectのユーザー名を返す。
func (m *TokenManager) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return m.config.Secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}
