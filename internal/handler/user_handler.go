package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/donetracker/internal/model"
	"github.com/hitoshi/donetracker/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// List は全ユーザーを返す。
	List(ctx context.Context) ([]model.User, error)
	// Update はユーザー名とパスワードを部分更新する。
	Update(ctx context.Context, username string, in user.UpdateInput) (*model.User, error)
}

// updateUserRequest はユーザー更新のリクエストボディ。
type updateUserRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// List は全ユーザーを返す。
// GET /users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Update はユーザー名・パスワードを変更する。
// PUT /user/{user}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	username, apiErr := pathUser(r)
	if apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}

	var req updateUserRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	updated, err := h.service.Update(r.Context(), username, user.UpdateInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
