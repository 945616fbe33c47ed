package model

type Summary struct {
	TotalIncome  int64 `json:"totalIncome"`
	TotalExpense int64 `json:"totalExpense"`
	TotalBudget  int64 `json:"totalBudget"`
	NetIncome    int64 `json:"netIncome"`
	ExpenseRatio int64 `json:"expenseRatio"`
	IncomeCount  int64 `json:"incomeCount"`
	ExpenseCount int64 `json:"expenseCount"`
	BudgetCount  int64 `json:"budgetCount"`
}

type CategoryTotal struct {
	CategoryID   string `json:"categoryId"`
	CategoryName string `json:"categoryName"`
	Amount       int64  `json:"amount"`
	Count        int64  `json:"count"`
}

type Report struct {
	Summary           Summary         `json:"summary"`
	IncomeByCategory  []CategoryTotal `json:"incomeByCategory"`
	ExpenseByCategory []CategoryTotal `json:"expenseByCategory"`
}

// TrendPoint is one month of the rolling trend; the summary fields are
// flattened into the point.
type TrendPoint struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Label string `json:"label"`
	Summary
}
