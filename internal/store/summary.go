package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/wadake/internal/model"
	"github.com/dukerupert/wadake/internal/summary"
)

// SummaryStore aggregates ledger rows over a closed date window.
type SummaryStore struct {
	db *sql.DB
}

func NewSummaryStore(db *sql.DB) *SummaryStore {
	return &SummaryStore{db: db}
}

// Totals fills the raw sums and counts of scope between start and end
// inclusive. Derived fields are left zero.
func (s *SummaryStore) Totals(ctx context.Context, scope Scope, start, end time.Time) (model.Summary, error) {
	var sum model.Summary
	from, to := formatDate(start), formatDate(end)

	where, args := scope.entryWhere("e")
	args = append(args, from, to)
	for _, t := range []struct {
		table        string
		total, count *int64
	}{
		{incomeTable.name, &sum.TotalIncome, &sum.IncomeCount},
		{expenseTable.name, &sum.TotalExpense, &sum.ExpenseCount},
	} {
		err := s.db.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(e.amount), 0), COUNT(*) FROM `+t.table+` e
			 WHERE `+where+` AND e.date >= ? AND e.date <= ?`,
			args...,
		).Scan(t.total, t.count)
		if err != nil {
			return sum, fmt.Errorf("sum %s: %w", t.table, err)
		}
	}

	bwhere, bargs := scope.budgetWhere("b")
	bargs = append(bargs, from, to)
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(b.amount), 0), COUNT(*) FROM budgets b
		 WHERE `+bwhere+` AND b.date >= ? AND b.date <= ?`,
		bargs...,
	).Scan(&sum.TotalBudget, &sum.BudgetCount)
	if err != nil {
		return sum, fmt.Errorf("sum budgets: %w", err)
	}
	return sum, nil
}

// ByCategory groups incomes or expenses (typ is a category type) by category,
// largest total first.
func (s *SummaryStore) ByCategory(ctx context.Context, typ string, scope Scope, start, end time.Time) ([]summary.CategoryRow, error) {
	table := incomeTable.name
	if typ == model.CategoryExpense {
		table = expenseTable.name
	}
	where, args := scope.entryWhere("e")
	args = append(args, formatDate(start), formatDate(end))

	rows, err := s.db.QueryContext(ctx,
		`SELECT e.category_id, SUM(e.amount), COUNT(*) FROM `+table+` e
		 WHERE `+where+` AND e.date >= ? AND e.date <= ?
		 GROUP BY e.category_id
		 ORDER BY SUM(e.amount) DESC, e.category_id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("group %s by category: %w", table, err)
	}
	defer rows.Close()

	sums := []summary.CategoryRow{}
	for rows.Next() {
		var cs summary.CategoryRow
		if err := rows.Scan(&cs.CategoryID, &cs.Amount, &cs.Count); err != nil {
			return nil, fmt.Errorf("scan category sum: %w", err)
		}
		sums = append(sums, cs)
	}
	return sums, rows.Err()
}
