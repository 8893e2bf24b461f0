package analytics

import (
	"FinFactor/internal/domain/models"
)

// ForwardReturns computes the simple return realized over the next periods
// rows: P[t+periods]/P[t] - 1. The last periods rows are missing, as is any
// cell whose start or end price is missing or whose start price is not positive.
func ForwardReturns(prices *models.Table, periods int) (*models.Table, error) {
	if prices == nil {
		return nil, models.NewInvalidParameter("prices", nil, "table is required")
	}
	if periods < 1 {
		return nil, models.NewInvalidParameter("periods", periods, "must be >= 1")
	}
	rows, cols := prices.NumRows(), prices.NumCols()
	g := models.NewGrid(rows, cols)
	for i := 0; i+periods < rows; i++ {
		for j := 0; j < cols; j++ {
			p0, p1 := prices.At(i, j), prices.At(i+periods, j)
			if models.IsMissing(p0) || models.IsMissing(p1) || p0 <= 0 {
				continue
			}
			g[i][j] = p1/p0 - 1
		}
	}
	return models.NewTable(prices.Dates(), prices.Instruments(), g)
}
