package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/wadake/internal/model"
	"github.com/dukerupert/wadake/internal/store"
)

type CategoryHandler struct {
	categories *store.CategoryStore
	logger     *slog.Logger
}

func NewCategoryHandler(cs *store.CategoryStore, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{categories: cs, logger: logger}
}

// List serves GET /api/categories with an optional ?type=income|expense.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	typ := r.URL.Query().Get("type")
	if typ != "" && !model.ValidCategoryType(typ) {
		writeError(w, http.StatusBadRequest, "type must be income or expense")
		return
	}
	h.list(w, r, typ)
}

func (h *CategoryHandler) ListIncome(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, model.CategoryIncome)
}

func (h *CategoryHandler) ListExpense(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, model.CategoryExpense)
}

func (h *CategoryHandler) list(w http.ResponseWriter, r *http.Request, typ string) {
	cats, err := h.categories.List(r.Context(), typ)
	if err != nil {
		h.logger.Error("list categories", "type", typ, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	writeJSON(w, http.StatusOK, cats)
}
