package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/donetracker/internal/model"
	"github.com/hitoshi/donetracker/internal/todo"
)

// TodoServiceInterface はTodoハンドラーが必要とするサービスインターフェース。
type TodoServiceInterface interface {
	ListAll(ctx context.Context) ([]model.Todo, error)
	Get(ctx context.Context, id int64) (*model.Todo, error)
	GetOwned(ctx context.Context, id int64, username string) (*model.Todo, error)
	ListOwned(ctx context.Context, username string) ([]model.Todo, error)
	ListByProject(ctx context.Context, projectID int64, username string) ([]model.Todo, error)
	GetInProject(ctx context.Context, projectID, id int64, username string) (*model.Todo, error)
	Create(ctx context.Context, username string, in todo.CreateInput) (*model.Todo, error)
	Update(ctx context.Context, id int64, username string, in todo.UpdateInput) (*model.Todo, error)
	Delete(ctx context.Context, id int64, username string) error
	Filter(ctx context.Context, username string, in todo.FilterInput) ([]model.Todo, error)
	DueOn(ctx context.Context, username string, day time.Time) ([]model.Todo, error)
	ByDone(ctx context.Context, username string, done bool) ([]model.Todo, error)
	Search(ctx context.Context, username, term string, includeDescription bool) ([]model.Todo, error)
}

// createTodoRequest はTodo作成のリクエストボディ。
type createTodoRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ProjectID   *int64    `json:"projectId"`
	Priority    *int64    `json:"priority"`
	Reminder    *flexTime `json:"reminder"`
	Ending      *flexTime `json:"ending"`
}

// updateTodoRequest はTodo更新のリクエストボディ。省略したフィールドは変更しない。
type updateTodoRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Priority    *int64    `json:"priority"`
	Done        *bool     `json:"done"`
	Reminder    *flexTime `json:"reminder"`
	Ending      *flexTime `json:"ending"`
	ProjectID   *int64    `json:"projectId"`
}

// TodoHandler はTodo管理のHTTPハンドラー。
type TodoHandler struct {
	service TodoServiceInterface
}

// NewTodoHandler はTodoHandlerを生成する。
func NewTodoHandler(service TodoServiceInterface) *TodoHandler {
	return &TodoHandler{service: service}
}

// ListAll は所有者を問わず全Todoを返す。
// GET /todo
func (h *TodoHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	todos, err := h.service.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

// Get は所有者を問わずTodoを1件返す。
// GET /todo/{id}
func (h *TodoHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, apiErr := pathID(r, "id")
	if apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}

	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// GetOwned は所有者のTodoを1件返す。
// GET /todo/{id}/user/{user}
func (h *TodoHandler) GetOwned(w http.ResponseWriter, r *http.Request) {
	id, username, ok := ownedTarget(w, r)
	if !ok {
		return
	}

	t, err := h.service.GetOwned(r.Context(), id, username)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ListOwned は所有者のTodo一覧を返す。
// GET /todos/{user}
func (h *TodoHandler) ListOwned(w http.ResponseWriter, r *http.Request) {
	username, apiErr := pathUser(r)
	if apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}

	todos, err := h.service.ListOwned(r.Context(), username)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

// Create はTodoを作成する。
// POST /todo/{user}
func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	username, apiErr := pathUser(r)
	if apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}

	var req createTodoRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	t, err := h.service.Create(r.Context(), username, todo.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		ProjectID:   req.ProjectID,
		PriorityID:  req.Priority,
		Reminder:    req.Reminder.ptr(),
		Ending:      req.Ending.ptr(),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// Update はTodoを部分更新する。
// PUT /todo/{id}/user/{user}
func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, username, ok := ownedTarget(w, r)
	if !ok {
		return
	}

	var req updateTodoRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	t, err := h.service.Update(r.Context(), id, username, todo.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		PriorityID:  req.Priority,
		Done:        req.Done,
		Reminder:    req.Reminder.ptr(),
		Ending:      req.Ending.ptr(),
		ProjectID:   req.ProjectID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Delete はTodoを削除する。
// DELETE /todo/{id}/user/{user}
func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, username, ok := ownedTarget(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id, username); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Todo deleted"})
}

// Filter は期限の期間と優先度で所有者のTodoを絞り込む。
// GET /todo/filter?user=&start=&end=&priority=
func (h *TodoHandler) Filter(w http.ResponseWriter, r *http.Request) {
	username, apiErr := queryUser(r)
	if apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}
	start, apiErr := queryTime(r, "start")
	if apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}
	end, apiErr := queryTime(r, "end")
	if apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}
	priority, apiErr := queryInt(r, "priority")
	if apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}

	todos, err := h.service.Filter(r.Context(), username, todo.FilterInput{
		Start:      start,
		End:        end,
		PriorityID: priority,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

// DueOn は期限が指定日のTodoを返す。
// GET /todo/date/{date}?user=
func (h *TodoHandler) DueOn(w http.ResponseWriter, r *http.Request) {
	username, apiErr := queryUser(r)
	if apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}
	day, err := time.Parse(dateLayout, chi.URLParam(r, "date"))
	if err != nil {
		handleServiceError(w, r, model.NewValidationError("date must be formatted as YYYY-MM-DD"))
		return
	}

	todos, err := h.service.DueOn(r.Context(), username, day)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

// ByDone は完了状態で所有者のTodoを絞り込む。doneの既定値はtrue。
// GET /todo/filter/done?user=&done=
func (h *TodoHandler) ByDone(w http.ResponseWriter, r *http.Request) {
	username, apiErr := queryUser(r)
	if apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}
	done, apiErr := queryBool(r, "done", true)
	if apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}

	todos, err := h.service.ByDone(r.Context(), username, done)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

// Search はタイトル（と説明）の部分一致でTodoを検索する。
// GET /todo/search?user=&term=&searchDescription=
func (h *TodoHandler) Search(w http.ResponseWriter, r *http.Request) {
	username, apiErr := queryUser(r)
	if apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}
	includeDescription, apiErr := queryBool(r, "searchDescription", false)
	if apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}

	todos, err := h.service.Search(r.Context(), username, r.URL.Query().Get("term"), includeDescription)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}
