package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/donetracker/internal/model"
)

// PriorityLister は優先度一覧を返すインターフェース。
type PriorityLister interface {
	List(ctx context.Context) ([]model.Priority, error)
}

// PriorityHandler は優先度参照データのHTTPハンドラー。
type PriorityHandler struct {
	priorities PriorityLister
}

// NewPriorityHandler はPriorityHandlerを生成する。
func NewPriorityHandler(priorities PriorityLister) *PriorityHandler {
	return &PriorityHandler{priorities: priorities}
}

// List は全優先度を返す。
// GET /priorities
func (h *PriorityHandler) List(w http.ResponseWriter, r *http.Request) {
	priorities, err := h.priorities.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, priorities)
}
