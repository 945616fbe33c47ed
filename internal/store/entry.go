package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/wadake/internal/model"
)

// entryTable holds the SQL shared by incomes and expenses, which differ only
// in table name and free-text column.
type entryTable struct {
	name string
	note string
}

var (
	incomeTable  = entryTable{name: "incomes", note: "memo"}
	expenseTable = entryTable{name: "expenses", note: "description"}
)

type entryRow struct {
	ID         string
	UserID     string
	GroupID    *string
	CategoryID string
	Amount     int64
	Note       *string
	Date       time.Time
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Category   *model.Category
	User       *model.User
}

func scanEntry(scanner interface{ Scan(...any) error }) (*entryRow, error) {
	var e entryRow
	var groupID, note sql.NullString
	var date string
	var c model.Category
	var u model.User
	err := scanner.Scan(
		&e.ID, &e.UserID, &groupID, &e.CategoryID, &e.Amount, &note, &date,
		&e.Version, &e.CreatedAt, &e.UpdatedAt,
		&c.ID, &c.Name, &c.Type, &c.CreatedAt, &c.UpdatedAt,
		&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if groupID.Valid {
		e.GroupID = &groupID.String
	}
	if note.Valid {
		e.Note = &note.String
	}
	e.Date, err = parseDate(date)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", date, err)
	}
	e.Category = &c
	e.User = &u
	return &e, nil
}

func (t entryTable) selectFrom() string {
	return `SELECT e.id, e.user_id, e.group_id, e.category_id, e.amount, e.` + t.note + `, e.date,
		e.version, e.created_at, e.updated_at,
		c.id, c.name, c.type, c.created_at, c.updated_at,
		u.id, u.email, u.name, u.created_at, u.updated_at
	 FROM ` + t.name + ` e
	 JOIN categories c ON c.id = e.category_id
	 JOIN users u ON u.id = e.user_id`
}

func (t entryTable) list(ctx context.Context, db *sql.DB, scope Scope) ([]entryRow, error) {
	where, args := scope.entryWhere("e")
	rows, err := db.QueryContext(ctx,
		t.selectFrom()+` WHERE `+where+` ORDER BY e.date DESC, e.created_at DESC, e.id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.name, err)
	}
	defer rows.Close()

	var entries []entryRow
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (t entryTable) get(ctx context.Context, db *sql.DB, scope Scope, id string) (*entryRow, error) {
	where, args := scope.entryWhere("e")
	row := db.QueryRowContext(ctx,
		t.selectFrom()+` WHERE e.id = ? AND `+where,
		append([]any{id}, args...)...,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", t.name, err)
	}
	return e, nil
}

func (t entryTable) create(ctx context.Context, db *sql.DB, scope Scope, userID string, in model.EntryInput) (*entryRow, error) {
	id := newID()
	var groupID any
	if scope.IsGroup() {
		groupID = scope.GroupID
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO `+t.name+` (id, user_id, group_id, category_id, amount, `+t.note+`, date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, userID, groupID, in.CategoryID, in.Amount, in.Note, formatDate(in.Date),
	)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", t.name, err)
	}
	return t.get(ctx, db, scope, id)
}

// update replaces the mutable fields of id within scope and bumps its
// version. A nil expected skips the version check. It returns nil, nil when
// no row matches and ErrVersionConflict when the row exists at another version.
func (t entryTable) update(ctx context.Context, db *sql.DB, scope Scope, id string, in model.EntryInput, expected *int64) (*entryRow, error) {
	where, args := scope.entryWhere(t.name)
	query := `UPDATE ` + t.name + `
		 SET category_id = ?, amount = ?, ` + t.note + ` = ?, date = ?,
		     version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND ` + where
	params := []any{in.CategoryID, in.Amount, in.Note, formatDate(in.Date), id}
	params = append(params, args...)
	if expected != nil {
		query += ` AND version = ?`
		params = append(params, *expected)
	}

	res, err := db.ExecContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", t.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		existing, err := t.get(ctx, db, scope, id)
		if err != nil || existing == nil {
			return nil, err
		}
		return nil, ErrVersionConflict
	}
	return t.get(ctx, db, scope, id)
}

// remove deletes id within scope and reports whether a row was removed.
func (t entryTable) remove(ctx context.Context, db *sql.DB, scope Scope, id string) (bool, error) {
	where, args := scope.entryWhere(t.name)
	res, err := db.ExecContext(ctx,
		`DELETE FROM `+t.name+` WHERE id = ? AND `+where,
		append([]any{id}, args...)...,
	)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", t.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
