package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/wadake/internal/model"
)

type BudgetStore struct {
	db *sql.DB
}

func NewBudgetStore(db *sql.DB) *BudgetStore {
	return &BudgetStore{db: db}
}

func scanBudget(scanner interface{ Scan(...any) error }) (*model.Budget, error) {
	var b model.Budget
	var groupID sql.NullString
	var date string
	err := scanner.Scan(&b.ID, &groupID, &b.Amount, &b.Purpose, &date, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if groupID.Valid {
		b.GroupID = &groupID.String
	}
	b.Date, err = parseDate(date)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", date, err)
	}
	return &b, nil
}

const budgetCols = `b.id, b.group_id, b.amount, b.purpose, b.date, b.version, b.created_at, b.updated_at`

// List returns the budgets in scope, most recently created first.
func (s *BudgetStore) List(ctx context.Context, scope Scope) ([]model.Budget, error) {
	where, args := scope.budgetWhere("b")
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+budgetCols+` FROM budgets b WHERE `+where+` ORDER BY b.created_at DESC, b.date DESC, b.id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	budgets := []model.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, *b)
	}
	return budgets, rows.Err()
}

func (s *BudgetStore) GetByID(ctx context.Context, scope Scope, id string) (*model.Budget, error) {
	where, args := scope.budgetWhere("b")
	row := s.db.QueryRowContext(ctx,
		`SELECT `+budgetCols+` FROM budgets b WHERE b.id = ? AND `+where,
		append([]any{id}, args...)...,
	)
	b, err := scanBudget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (s *BudgetStore) Create(ctx context.Context, scope Scope, in model.BudgetInput) (*model.Budget, error) {
	id := newID()
	var groupID any
	if scope.IsGroup() {
		groupID = scope.GroupID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO budgets (id, group_id, amount, purpose, date) VALUES (?, ?, ?, ?, ?)`,
		id, groupID, in.Amount, in.Purpose, formatDate(in.Date),
	)
	if err != nil {
		return nil, fmt.Errorf("insert budget: %w", err)
	}
	return s.GetByID(ctx, scope, id)
}

// Update behaves like the ledger entry updates: nil, nil when id is not in
// scope and ErrVersionConflict on a stale expected version.
func (s *BudgetStore) Update(ctx context.Context, scope Scope, id string, in model.BudgetInput, expected *int64) (*model.Budget, error) {
	where, args := scope.budgetWhere("budgets")
	query := `UPDATE budgets
		 SET amount = ?, purpose = ?, date = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND ` + where
	params := []any{in.Amount, in.Purpose, formatDate(in.Date), id}
	params = append(params, args...)
	if expected != nil {
		query += ` AND version = ?`
		params = append(params, *expected)
	}

	res, err := s.db.ExecContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("update budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		existing, err := s.GetByID(ctx, scope, id)
		if err != nil || existing == nil {
			return nil, err
		}
		return nil, ErrVersionConflict
	}
	return s.GetByID(ctx, scope, id)
}

func (s *BudgetStore) Delete(ctx context.Context, scope Scope, id string) (bool, error) {
	where, args := scope.budgetWhere("budgets")
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM budgets WHERE id = ? AND `+where,
		append([]any{id}, args...)...,
	)
	if err != nil {
		return false, fmt.Errorf("delete budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
