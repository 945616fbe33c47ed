package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/wadake/internal/model"
)

type GroupStore struct {
	db *sql.DB
}

func NewGroupStore(db *sql.DB) *GroupStore {
	return &GroupStore{db: db}
}

func scanGroup(scanner interface{ Scan(...any) error }) (*model.Group, error) {
	var g model.Group
	err := scanner.Scan(&g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// scanMembership reads membership columns followed by the member's user columns.
func scanMembership(scanner interface{ Scan(...any) error }) (*model.Membership, error) {
	var m model.Membership
	var u model.User
	err := scanner.Scan(
		&m.UserID, &m.GroupID, &m.Role, &m.CreatedAt,
		&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.User = &u
	return &m, nil
}

const groupCols = `g.id, g.name, g.created_at, g.updated_at`
const membershipCols = `ug.user_id, ug.group_id, ug.role, ug.created_at,
	u.id, u.email, u.name, u.created_at, u.updated_at`

// Create inserts a group and makes creatorID its admin in one transaction.
func (s *GroupStore) Create(ctx context.Context, name, creatorID string) (*model.Group, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id := newID()
	if _, err := tx.ExecContext(ctx, `INSERT INTO ledger_groups (id, name) VALUES (?, ?)`, id, name); err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_groups (user_id, group_id, role) VALUES (?, ?, ?)`,
		creatorID, id, model.RoleAdmin,
	); err != nil {
		return nil, fmt.Errorf("insert creator membership: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit group: %w", err)
	}

	g, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.ListMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	g.Users = members
	return g, nil
}

func (s *GroupStore) GetByID(ctx context.Context, id string) (*model.Group, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupCols+` FROM ledger_groups g WHERE g.id = ?`, id)
	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

// ListForUser returns the groups userID belongs to, each with its full member list.
func (s *GroupStore) ListForUser(ctx context.Context, userID string) ([]model.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+groupCols+`
		 FROM ledger_groups g
		 JOIN user_groups ug ON ug.group_id = g.id
		 WHERE ug.user_id = ?
		 ORDER BY g.created_at ASC, g.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list groups for user: %w", err)
	}
	defer rows.Close()

	groups := []model.Group{}
	index := map[string]int{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		index[g.ID] = len(groups)
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return groups, nil
	}

	ids := make([]any, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	mrows, err := s.db.QueryContext(ctx,
		`SELECT `+membershipCols+`
		 FROM user_groups ug
		 JOIN users u ON u.id = ug.user_id
		 WHERE ug.group_id IN (`+placeholders+`)
		 ORDER BY ug.created_at ASC, ug.user_id ASC`,
		ids...,
	)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer mrows.Close()

	for mrows.Next() {
		m, err := scanMembership(mrows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		i := index[m.GroupID]
		groups[i].Users = append(groups[i].Users, *m)
	}
	return groups, mrows.Err()
}

// AddMember inserts a membership. It returns ErrDuplicate when userID is
// already in the group.
func (s *GroupStore) AddMember(ctx context.Context, groupID, userID, role string) (*model.Membership, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_groups (user_id, group_id, role) VALUES (?, ?, ?)`,
		userID, groupID, role,
	)
	if err != nil {
		if isPrimaryKeyViolation(err) || isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("add member: %w", err)
	}
	return s.GetMember(ctx, groupID, userID)
}

func (s *GroupStore) GetMember(ctx context.Context, groupID, userID string) (*model.Membership, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+membershipCols+`
		 FROM user_groups ug
		 JOIN users u ON u.id = ug.user_id
		 WHERE ug.group_id = ? AND ug.user_id = ?`,
		groupID, userID,
	)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *GroupStore) ListMembers(ctx context.Context, groupID string) ([]model.Membership, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+membershipCols+`
		 FROM user_groups ug
		 JOIN users u ON u.id = ug.user_id
		 WHERE ug.group_id = ?
		 ORDER BY ug.created_at ASC, ug.user_id ASC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := []model.Membership{}
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}
