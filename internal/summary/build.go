package summary

import (
	"math"

	"github.com/dukerupert/wadake/internal/model"
)

// UnknownCategory names aggregate rows whose category no longer resolves.
const UnknownCategory = "Unknown"

// CategoryRow is a per-category aggregate as read from the store.
type CategoryRow struct {
	CategoryID string
	Amount     int64
	Count      int64
}

// Finish fills the derived fields of totals: net income and the expense
// ratio as a whole percentage, rounded half away from zero. The ratio is 0
// when there is no positive income.
func Finish(totals model.Summary) model.Summary {
	totals.NetIncome = totals.TotalIncome - totals.TotalExpense
	totals.ExpenseRatio = 0
	if totals.TotalIncome > 0 {
		ratio := float64(totals.TotalExpense) / float64(totals.TotalIncome) * 100
		totals.ExpenseRatio = int64(math.Round(ratio))
	}
	return totals
}

// Categories attaches display names to rows; names missing from the map
// become UnknownCategory.
func Categories(rows []CategoryRow, names map[string]string) []model.CategoryTotal {
	out := make([]model.CategoryTotal, 0, len(rows))
	for _, r := range rows {
		name, ok := names[r.CategoryID]
		if !ok {
			name = UnknownCategory
		}
		out = append(out, model.CategoryTotal{
			CategoryID:   r.CategoryID,
			CategoryName: name,
			Amount:       r.Amount,
			Count:        r.Count,
		})
	}
	return out
}

// Build assembles a full report from raw totals and per-category rows.
func Build(totals model.Summary, income, expense []CategoryRow, incomeNames, expenseNames map[string]string) model.Report {
	return model.Report{
		Summary:           Finish(totals),
		IncomeByCategory:  Categories(income, incomeNames),
		ExpenseByCategory: Categories(expense, expenseNames),
	}
}

// Point turns one month's raw totals into a trend point.
func Point(m TrendMonth, totals model.Summary) model.TrendPoint {
	return model.TrendPoint{
		Year:    m.Year,
		Month:   int(m.Month),
		Label:   m.Label(),
		Summary: Finish(totals),
	}
}
