package model

import "time"

// Income is a ledger entry owned by UserID. GroupID is nil for the personal ledger.
type Income struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	GroupID    *string   `json:"groupId"`
	CategoryID string    `json:"categoryId"`
	Amount     int64     `json:"amount"`
	Memo       *string   `json:"memo"`
	Date       time.Time `json:"date"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Category   *Category `json:"category,omitempty"`
	User       *User     `json:"user,omitempty"`
}

// Expense mirrors Income; the free-text field is Description.
type Expense struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	GroupID     *string   `json:"groupId"`
	CategoryID  string    `json:"categoryId"`
	Amount      int64     `json:"amount"`
	Description *string   `json:"description"`
	Date        time.Time `json:"date"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Category    *Category `json:"category,omitempty"`
	User        *User     `json:"user,omitempty"`
}

type Budget struct {
	ID        string    `json:"id"`
	GroupID   *string   `json:"groupId"`
	Amount    int64     `json:"amount"`
	Purpose   string    `json:"purpose"`
	Date      time.Time `json:"date"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EntryInput carries the mutable fields of an income or expense. Note is the
// memo for incomes and the description for expenses.
type EntryInput struct {
	CategoryID string
	Amount     int64
	Note       *string
	Date       time.Time
}

type BudgetInput struct {
	Amount  int64
	Purpose string
	Date    time.Time
}
