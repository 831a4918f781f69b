package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"
)

var csvHeader = []string{
	"rank", "strategy_id", "trader", "name", "num_signals",
	"sharpe_annual", "vol_annual", "total_return", "max_drawdown",
	"value_index", "last_updated_ts",
}

// RenderCSV renders one window board as CSV string. Missing statistics are empty cells.
func RenderCSV(board *WindowBoard) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	_ = w.Write(csvHeader)
	for _, row := range board.Rows {
		_ = w.Write([]string{
			strconv.Itoa(row.Rank),
			row.StrategyID,
			row.Trader,
			row.Name,
			strconv.Itoa(row.NumSignals),
			optionalFloat(row.SharpeAnnual),
			optionalFloat(row.VolAnnual),
			formatFloat(row.TotalReturn),
			formatFloat(row.MaxDrawdown),
			formatFloat(row.ValueIndex),
			strconv.FormatInt(row.LastUpdatedTs, 10),
		})
	}
	w.Flush()

	return sb.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
