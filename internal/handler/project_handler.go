package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/donetracker/internal/model"
	"github.com/hitoshi/donetracker/internal/project"
)

// ProjectServiceInterface はプロジェクトハンドラーが必要とするサービスインターフェース。
type ProjectServiceInterface interface {
	ListAll(ctx context.Context) ([]model.Project, error)
	Get(ctx context.Context, id int64) (*model.Project, error)
	GetOwned(ctx context.Context, id int64, username string) (*model.Project, error)
	ListOwned(ctx context.Context, username string) ([]model.Project, error)
	Create(ctx context.Context, username string, in project.CreateInput) (*model.Project, error)
	Update(ctx context.Context, id int64, username string, in project.UpdateInput) (*model.Project, error)
	// Delete はプロジェクトを削除する。cascadeがtrueの場合は先に所属Todoを削除し、その件数を返す。
	Delete(ctx context.Context, id int64, username string, cascade bool) (int, error)
}

// createProjectRequest はプロジェクト作成のリクエストボディ。
type createProjectRequest struct {
	Title string `json:"title"`
	Color string `json:"color"`
}

// updateProjectRequest はプロジェクト更新のリクエストボディ。
type updateProjectRequest struct {
	Title *string `json:"title"`
	Color *string `json:"color"`
}

// deleteProjectResponse はプロジェクト削除のレスポンスボディ。
type deleteProjectResponse struct {
	Message      string `json:"message"`
	DeletedTodos int    `json:"deleted_todos"`
}

// ProjectHandler はプロジェクト管理のHTTPハンドラー。
type ProjectHandler struct {
	service ProjectServiceInterface
	todos   TodoServiceInterface
}

// NewProjectHandler はProjectHandlerを生成する。
// todosはプロジェクト配下のTodo一覧に使う。
func NewProjectHandler(service ProjectServiceInterface, todos TodoServiceInterface) *ProjectHandler {
	return &ProjectHandler{service: service, todos: todos}
}

// ListAll は所有者を問わず全プロジェクトを返す。
// GET /project
func (h *ProjectHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// Get は所有者を問わずプロジェクトを1件返す。
// GET /project/{id}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, apiErr := pathID(r, "id")
	if apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetOwned は所有者のプロジェクトを1件返す。
// GET /project/{id}/user/{user}
func (h *ProjectHandler) GetOwned(w http.ResponseWriter, r *http.Request) {
	id, username, ok := ownedTarget(w, r)
	if !ok {
		return
	}

	p, err := h.service.GetOwned(r.Context(), id, username)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListTodos は所有者のプロジェクトに属するTodo一覧を返す。
// GET /project/{id}/user/{user}/todos
func (h *ProjectHandler) ListTodos(w http.ResponseWriter, r *http.Request) {
	id, username, ok := ownedTarget(w, r)
	if !ok {
		return
	}

	todos, err := h.todos.ListByProject(r.Context(), id, username)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

// GetTodo は所有者のプロジェクトに属する1件のTodoを返す。
// GET /project/{id}/user/{user}/todos/{todoId}
func (h *ProjectHandler) GetTodo(w http.ResponseWriter, r *http.Request) {
	projectID, username, ok := ownedTarget(w, r)
	if !ok {
		return
	}
	todoID, apiErr := pathID(r, "todoId")
	if apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}

	t, err := h.todos.GetInProject(r.Context(), projectID, todoID, username)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ListOwned は所有者のプロジェクト一覧を返す。
// GET /projects/{user}
func (h *ProjectHandler) ListOwned(w http.ResponseWriter, r *http.Request) {
	username, apiErr := pathUser(r)
	if apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}

	projects, err := h.service.ListOwned(r.Context(), username)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// Create はプロジェクトを作成する。
// POST /project/{user}
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	username, apiErr := pathUser(r)
	if apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}

	var req createProjectRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	p, err := h.service.Create(r.Context(), username, project.CreateInput{
		Title: req.Title,
		Color: req.Color,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// Update はプロジェクトを部分更新する。
// PUT /project/{id}/user/{user}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, username, ok := ownedTarget(w, r)
	if !ok {
		return
	}

	var req updateProjectRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	p, err := h.service.Update(r.Context(), id, username, project.UpdateInput{
		Title: req.Title,
		Color: req.Color,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Delete はプロジェクトを削除する。?cascade=true の場合は所属Todoも削除する。
// DELETE /project/{id}/user/{user}
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, username, ok := ownedTarget(w, r)
	if !ok {
		return
	}
	cascade, apiErr := queryBool(r, "cascade", false)
	if apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}

	deletedTodos, err := h.service.Delete(r.Context(), id, username, cascade)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteProjectResponse{
		Message:      "Project deleted",
		DeletedTodos: deletedTodos,
	})
}

// ownedTarget は {id} と {user} のパスパラメータを解析する。
// 不正な場合はエラーレスポンスを書き込んでfalseを返す。
func ownedTarget(w http.ResponseWriter, r *http.Request) (int64, string, bool) {
	id, apiErr := pathID(r, "id")
	if apiErr != nil {
		handleServiceError(w, r, apiErr)
		return 0, "", false
	}
	username, apiErr := pathUser(r)
	if apiErr != nil {
		handleServiceError(w, r, apiErr)
		return 0, "", false
	}
	return id, username, true
}
