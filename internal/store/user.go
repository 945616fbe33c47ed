package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/wadake/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, email, name, created_at, updated_at`

// Create inserts a user under the subject id issued by the identity provider.
func (s *UserStore) Create(ctx context.Context, id, email, name string) (*model.User, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name) VALUES (?, ?, ?)`,
		id, email, name,
	)
	if err != nil {
		if isPrimaryKeyViolation(err) || isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// FindOrCreate returns the user with id, creating it on first sight. The
// boolean reports whether a row was created.
func (s *UserStore) FindOrCreate(ctx context.Context, id, email, name string) (*model.User, bool, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if u != nil {
		return u, false, nil
	}
	u, err = s.Create(ctx, id, email, name)
	if err == ErrDuplicate {
		// Lost a race with a concurrent first login.
		u, err = s.GetByID(ctx, id)
		return u, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// UpdateName changes the display name; it is the only mutable user field.
func (s *UserStore) UpdateName(ctx context.Context, id, name string) (*model.User, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user name: %w", err)
	}
	return s.GetByID(ctx, id)
}
