package handler

import (
	"context"
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

// ledgerStore is satisfied by store.IncomeStore and store.ExpenseStore.
type ledgerStore[T any] interface {
	List(ctx context.Context, scope store.Scope) ([]T, error)
	Create(ctx context.Context, scope store.Scope, userID string, in model.EntryInput) (*T, error)
	Update(ctx context.Context, scope store.Scope, id string, in model.EntryInput, expected *int64) (*T, error)
	Delete(ctx context.Context, scope store.Scope, id string) (bool, error)
}

type categoryLookup interface {
	GetByIDAndType(ctx context.Context, id, typ string) (*model.Category, error)
}

// LedgerHandler serves incomes or expenses, personal or group-scoped. Group
// routes must be wrapped in middleware.RequireMember.
type LedgerHandler[T any] struct {
	entries    ledgerStore[T]
	categories categoryLookup
	kind       string
	label      string
	publisher  events.Publisher
	loc        *time.Location
	logger     *slog.Logger
}

func NewIncomeHandler(is *store.IncomeStore, cs *store.CategoryStore, pub events.Publisher, loc *time.Location, logger *slog.Logger) *LedgerHandler[model.Income] {
	return &LedgerHandler[model.Income]{
		entries: is, categories: cs, kind: model.CategoryIncome, label: "income",
		publisher: pub, loc: loc, logger: logger,
	}
}

func NewExpenseHandler(es *store.ExpenseStore, cs *store.CategoryStore, pub events.Publisher, loc *time.Location, logger *slog.Logger) *LedgerHandler[model.Expense] {
	return &LedgerHandler[model.Expense]{
		entries: es, categories: cs, kind: model.CategoryExpense, label: "expense",
		publisher: pub, loc: loc, logger: logger,
	}
}

// entryRequest accepts memo for incomes and description for expenses.
type entryRequest struct {
	CategoryID  string  `json:"categoryId"`
	Amount      amount  `json:"amount"`
	Memo        *string `json:"memo"`
	Description *string `json:"description"`
	Date        string  `json:"date"`
	Version     *int64  `json:"version"`
}

// requestScope derives the ledger from the route: group routes carry
// {groupId}, everything else is the caller's personal ledger.
func requestScope(r *http.Request) store.Scope {
	if groupID := r.PathValue("groupId"); groupID != "" {
		return store.InGroup(groupID)
	}
	return store.Personal(auth.UserID(r.Context()))
}

func publish(ctx context.Context, pub events.Publisher, logger *slog.Logger, e events.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, e); err != nil {
		logger.Warn("publish event", "type", e.Type, "id", e.ID, "error", err)
	}
}

func (h *LedgerHandler[T]) event(r *http.Request, action, id string) events.Event {
	scope := requestScope(r)
	return events.New(h.label, action, id, scope.GroupID, auth.UserID(r.Context()))
}

// input validates req and resolves its category. It returns a client-facing
// message when the request is invalid.
func (h *LedgerHandler[T]) input(ctx context.Context, req entryRequest) (model.EntryInput, string, error) {
	var in model.EntryInput
	req.CategoryID = strings.TrimSpace(req.CategoryID)
	if req.CategoryID == "" || !req.Amount.set || strings.TrimSpace(req.Date) == "" {
		return in, "categoryId, amount and date are required", nil
	}
	if req.Amount.value <= 0 {
		return in, "amount must be greater than 0", nil
	}
	date, err := parseDate(req.Date, h.loc)
	if err != nil {
		return in, "date must be YYYY-MM-DD or RFC 3339", nil
	}

	cat, err := h.categories.GetByIDAndType(ctx, req.CategoryID, h.kind)
	if err != nil {
		return in, "", err
	}
	if cat == nil {
		return in, "invalid " + h.kind + " category", nil
	}

	note := req.Memo
	if h.kind == model.CategoryExpense {
		note = req.Description
	}
	return model.EntryInput{
		CategoryID: cat.ID,
		Amount:     req.Amount.value,
		Note:       trimmedPtr(note),
		Date:       date,
	}, "", nil
}

func (h *LedgerHandler[T]) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.entries.List(r.Context(), requestScope(r))
	if err != nil {
		h.logger.Error("list", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list "+h.label+"s")
		return
	}
	if list == nil {
		list = []T{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *LedgerHandler[T]) Create(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	in, msg, err := h.input(r.Context(), req)
	if err != nil {
		h.logger.Error("resolve category", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create "+h.label)
		return
	}
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	created, err := h.entries.Create(r.Context(), requestScope(r), auth.UserID(r.Context()), in)
	if err != nil || created == nil {
		h.logger.Error("create", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create "+h.label)
		return
	}

	publish(r.Context(), h.publisher, h.logger, h.event(r, events.ActionCreated, entryID(created)))
	writeJSON(w, http.StatusCreated, created)
}

func (h *LedgerHandler[T]) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req entryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	in, msg, err := h.input(r.Context(), req)
	if err != nil {
		h.logger.Error("resolve category", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update "+h.label)
		return
	}
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	updated, err := h.entries.Update(r.Context(), requestScope(r), id, in, req.Version)
	if errors.Is(err, store.ErrVersionConflict) {
		writeError(w, http.StatusConflict, h.label+" was modified by another request")
		return
	}
	if err != nil {
		h.logger.Error("update", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update "+h.label)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, h.label+" not found")
		return
	}

	publish(r.Context(), h.publisher, h.logger, h.event(r, events.ActionUpdated, id))
	writeJSON(w, http.StatusOK, updated)
}

func (h *LedgerHandler[T]) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deleted, err := h.entries.Delete(r.Context(), requestScope(r), id)
	if err != nil {
		h.logger.Error("delete", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete "+h.label)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, h.label+" not found")
		return
	}

	publish(r.Context(), h.publisher, h.logger, h.event(r, events.ActionDeleted, id))
	writeMessage(w, h.label+" deleted")
}

func entryID(v any) string {
	switch e := v.(type) {
	case *model.Income:
		return e.ID
	case *model.Expense:
		return e.ID
	}
	return ""
}
