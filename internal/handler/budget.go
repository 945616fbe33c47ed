package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/wadake/internal/auth"
	"github.com/dukerupert/wadake/internal/events"
	"github.com/dukerupert/wadake/internal/model"
	"github.com/dukerupert/wadake/internal/store"
)

type BudgetHandler struct {
	budgets   *store.BudgetStore
	publisher events.Publisher
	loc       *time.Location
	logger    *slog.Logger
}

func NewBudgetHandler(bs *store.BudgetStore, pub events.Publisher, loc *time.Location, logger *slog.Logger) *BudgetHandler {
	return &BudgetHandler{budgets: bs, publisher: pub, loc: loc, logger: logger}
}

type budgetRequest struct {
	Amount  amount `json:"amount"`
	Purpose string `json:"purpose"`
	Date    string `json:"date"`
	Version *int64 `json:"version"`
}

func (h *BudgetHandler) input(req budgetRequest) (model.BudgetInput, string) {
	purpose := strings.TrimSpace(req.Purpose)
	if !req.Amount.set || purpose == "" || strings.TrimSpace(req.Date) == "" {
		return model.BudgetInput{}, "amount, purpose and date are required"
	}
	if req.Amount.value <= 0 {
		return model.BudgetInput{}, "amount must be greater than 0"
	}
	date, err := parseDate(req.Date, h.loc)
	if err != nil {
		return model.BudgetInput{}, "date must be YYYY-MM-DD or RFC 3339"
	}
	return model.BudgetInput{Amount: req.Amount.value, Purpose: purpose, Date: date}, ""
}

func (h *BudgetHandler) event(r *http.Request, action, id string) events.Event {
	return events.New(events.EntityBudget, action, id, r.PathValue("groupId"), auth.UserID(r.Context()))
}

// List serves both the group list and the personal list (budgets with no group).
func (h *BudgetHandler) List(w http.ResponseWriter, r *http.Request) {
	budgets, err := h.budgets.List(r.Context(), requestScope(r))
	if err != nil {
		h.logger.Error("list budgets", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list budgets")
		return
	}
	writeJSON(w, http.StatusOK, budgets)
}

func (h *BudgetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	in, msg := h.input(req)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	b, err := h.budgets.Create(r.Context(), requestScope(r), in)
	if err != nil || b == nil {
		h.logger.Error("create budget", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create budget")
		return
	}

	publish(r.Context(), h.publisher, h.logger, h.event(r, events.ActionCreated, b.ID))
	writeJSON(w, http.StatusCreated, b)
}

func (h *BudgetHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	in, msg := h.input(req)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	b, err := h.budgets.Update(r.Context(), requestScope(r), id, in, req.Version)
	if errors.Is(err, store.ErrVersionConflict) {
		writeError(w, http.StatusConflict, "budget was modified by another request")
		return
	}
	if err != nil {
		h.logger.Error("update budget", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update budget")
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "budget not found")
		return
	}

	publish(r.Context(), h.publisher, h.logger, h.event(r, events.ActionUpdated, id))
	writeJSON(w, http.StatusOK, b)
}

func (h *BudgetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deleted, err := h.budgets.Delete(r.Context(), requestScope(r), id)
	if err != nil {
		h.logger.Error("delete budget", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete budget")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "budget not found")
		return
	}

	publish(r.Context(), h.publisher, h.logger, h.event(r, events.ActionDeleted, id))
	writeMessage(w, "budget deleted")
}
