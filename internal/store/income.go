package store

import (
	"context"
	"database/sql"

	"github.com/dukerupert/wadake/internal/model"
)

type IncomeStore struct {
	db *sql.DB
}

func NewIncomeStore(db *sql.DB) *IncomeStore {
	return &IncomeStore{db: db}
}

func (e entryRow) income(withUser bool) model.Income {
	in := model.Income{
		ID:         e.ID,
		UserID:     e.UserID,
		GroupID:    e.GroupID,
		CategoryID: e.CategoryID,
		Amount:     e.Amount,
		Memo:       e.Note,
		Date:       e.Date,
		Version:    e.Version,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
		Category:   e.Category,
	}
	if withUser {
		in.User = e.User
	}
	return in
}

// List returns the incomes in scope, newest first. Group listings carry the
// creating user.
func (s *IncomeStore) List(ctx context.Context, scope Scope) ([]model.Income, error) {
	rows, err := incomeTable.list(ctx, s.db, scope)
	if err != nil {
		return nil, err
	}
	incomes := make([]model.Income, 0, len(rows))
	for _, r := range rows {
		incomes = append(incomes, r.income(scope.IsGroup()))
	}
	return incomes, nil
}

func (s *IncomeStore) GetByID(ctx context.Context, scope Scope, id string) (*model.Income, error) {
	r, err := incomeTable.get(ctx, s.db, scope, id)
	if err != nil || r == nil {
		return nil, err
	}
	in := r.income(scope.IsGroup())
	return &in, nil
}

func (s *IncomeStore) Create(ctx context.Context, scope Scope, userID string, input model.EntryInput) (*model.Income, error) {
	r, err := incomeTable.create(ctx, s.db, scope, userID, input)
	if err != nil || r == nil {
		return nil, err
	}
	in := r.income(scope.IsGroup())
	return &in, nil
}

// Update returns nil, nil when id is not in scope and ErrVersionConflict
// when expected does not match the stored version.
func (s *IncomeStore) Update(ctx context.Context, scope Scope, id string, input model.EntryInput, expected *int64) (*model.Income, error) {
	r, err := incomeTable.update(ctx, s.db, scope, id, input, expected)
	if err != nil || r == nil {
		return nil, err
	}
	in := r.income(scope.IsGroup())
	return &in, nil
}

func (s *IncomeStore) Delete(ctx context.Context, scope Scope, id string) (bool, error) {
	return incomeTable.remove(ctx, s.db, scope, id)
}
