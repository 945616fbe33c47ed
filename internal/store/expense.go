package store

import (
	"context"
	"database/sql"

	"github.com/dukerupert/wadake/internal/model"
)

type ExpenseStore struct {
	db *sql.DB
}

func NewExpenseStore(db *sql.DB) *ExpenseStore {
	return &ExpenseStore{db: db}
}

func (e entryRow) expense(withUser bool) model.Expense {
	ex := model.Expense{
		ID:          e.ID,
		UserID:      e.UserID,
		GroupID:     e.GroupID,
		CategoryID:  e.CategoryID,
		Amount:      e.Amount,
		Description: e.Note,
		Date:        e.Date,
		Version:     e.Version,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
		Category:    e.Category,
	}
	if withUser {
		ex.User = e.User
	}
	return ex
}

func (s *ExpenseStore) List(ctx context.Context, scope Scope) ([]model.Expense, error) {
	rows, err := expenseTable.list(ctx, s.db, scope)
	if err != nil {
		return nil, err
	}
	expenses := make([]model.Expense, 0, len(rows))
	for _, r := range rows {
		expenses = append(expenses, r.expense(scope.IsGroup()))
	}
	return expenses, nil
}

func (s *ExpenseStore) GetByID(ctx context.Context, scope Scope, id string) (*model.Expense, error) {
	r, err := expenseTable.get(ctx, s.db, scope, id)
	if err != nil || r == nil {
		return nil, err
	}
	ex := r.expense(scope.IsGroup())
	return &ex, nil
}

func (s *ExpenseStore) Create(ctx context.Context, scope Scope, userID string, input model.EntryInput) (*model.Expense, error) {
	r, err := expenseTable.create(ctx, s.db, scope, userID, input)
	if err != nil || r == nil {
		return nil, err
	}
	ex := r.expense(scope.IsGroup())
	return &ex, nil
}

func (s *ExpenseStore) Update(ctx context.Context, scope Scope, id string, input model.EntryInput, expected *int64) (*model.Expense, error) {
	r, err := expenseTable.update(ctx, s.db, scope, id, input, expected)
	if err != nil || r == nil {
		return nil, err
	}
	ex := r.expense(scope.IsGroup())
	return &ex, nil
}

func (s *ExpenseStore) Delete(ctx context.Context, scope Scope, id string) (bool, error) {
	return expenseTable.remove(ctx, s.db, scope, id)
}
