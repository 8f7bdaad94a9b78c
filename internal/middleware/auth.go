// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/donetracker/internal/logger"
	"github.com/hitoshi/donetracker/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// usernameContextKey はリクエストコンテキストに認証済みユーザー名を格納するためのキー。
var usernameContextKey = contextKey("username")

// TokenVerifier はベアラートークンの検証に必要なインターフェース。
// 検証に成功した場合はトークンのsubject（ユーザー名）を返す。
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// AuthFailureRecorder は認証・認可失敗の計測インターフェース。
type AuthFailureRecorder interface {
	RecordAuthFailure(reason string)
}

// NewAuthMiddleware はAuthorizationヘッダーのベアラートークンを検証し、
// 認証済みユーザー名をリクエストコンテキストに注入するミドルウェアを返す。
// トークンが無い、または不正な場合は401 Unauthorizedを返す。
func NewAuthMiddleware(verifier TokenVerifier, recorder AuthFailureRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				recordAuthFailure(recorder, "missing_token")
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			username, err := verifier.Verify(token)
			if err != nil {
				recordAuthFailure(recorder, "invalid_token")
				logger.FromContext(r.Context()).Warn("bearer token rejected",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			setRequestUsername(r.Context(), username)
			ctx := ContextWithUsername(r.Context(), username)
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(slog.String("username", username)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewOwnerMiddleware はURLパラメータ {user} またはクエリパラメータ user が
// 認証済みユーザー名と一致することを検証するミドルウェアを返す。
// 一致しない場合は403 Forbiddenを返す。どちらも無い場合は検証せずに通過させる。
// NewAuthMiddlewareの後に配置する。
func NewOwnerMiddleware(recorder AuthFailureRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, err := UsernameFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			target := chi.URLParam(r, "user")
			if target == "" {
				target = r.URL.Query().Get("user")
			}
			if target != "" && target != username {
				recordAuthFailure(recorder, "forbidden")
				logger.FromContext(r.Context()).Warn("access to another user's data denied",
					slog.String("target_user", target),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UsernameFromContext はリクエストコンテキストから認証済みユーザー名を取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UsernameFromContext(ctx context.Context) (string, error) {
	username, ok := ctx.Value(usernameContextKey).(string)
	if !ok || username == "" {
		return "", fmt.Errorf("username not found in context")
	}
	return username, nil
}

// ContextWithUsername はコンテキストに認証済みユーザー名を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameContextKey, username)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func recordAuthFailure(recorder AuthFailureRecorder, reason string) {
	if recorder != nil {
		recorder.RecordAuthFailure(reason)
	}
}
