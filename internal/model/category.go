package model

import "time"

const (
	CategoryIncome  = "income"
	CategoryExpense = "expense"
)

func ValidCategoryType(t string) bool {
	return t == CategoryIncome || t == CategoryExpense
}

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
