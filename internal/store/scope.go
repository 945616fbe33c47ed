package store

// Scope selects a ledger: a user's personal rows (no group) or every row of
// a group regardless of which member created it.
type Scope struct {
	UserID  string
	GroupID string
}

func Personal(userID string) Scope {
	return Scope{UserID: userID}
}

func InGroup(groupID string) Scope {
	return Scope{GroupID: groupID}
}

func (s Scope) IsGroup() bool {
	return s.GroupID != ""
}

// entryWhere returns the predicate for incomes/expenses under alias.
func (s Scope) entryWhere(alias string) (string, []any) {
	if s.IsGroup() {
		return alias + `.group_id = ?`, []any{s.GroupID}
	}
	return alias + `.user_id = ? AND ` + alias + `.group_id IS NULL`, []any{s.UserID}
}

// budgetWhere returns the predicate for budgets. Personal budgets are scoped
// by the absence of a group only; budgets carry no owner.
func (s Scope) budgetWhere(alias string) (string, []any) {
	if s.IsGroup() {
		return alias + `.group_id = ?`, []any{s.GroupID}
	}
	return alias + `.group_id IS NULL`, nil
}
