package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Strategy Leaderboard\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Strategies: %d | Sorted by: %s\n\n", r.StrategyCount, r.SortKey))

	for _, board := range r.Windows {
		sb.WriteString(fmt.Sprintf("## %s\n\n", board.Window))
		if len(board.Rows) == 0 {
			sb.WriteString("No statistics yet.\n\n")
			continue
		}

		sb.WriteString("| # | Strategy | Trader | Signals | Sharpe | Vol (ann.) | Return | Max DD |\n")
		sb.WriteString("|---|----------|--------|---------|--------|------------|--------|--------|\n")
		for _, row := range board.Rows {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %d | %s | %s | %s | %s |\n",
				row.Rank,
				escapeCell(row.Name),
				shortAddress(row.Trader),
				row.NumSignals,
				formatOptional(row.SharpeAnnual),
				formatOptionalPct(row.VolAnnual),
				formatPct(row.TotalReturn),
				formatPct(row.MaxDrawdown),
			))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func formatPct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func formatOptional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

func formatOptionalPct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return formatPct(*v)
}

// shortAddress keeps the first and last four hex digits.
func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

// escapeCell keeps free-form names from breaking the table.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
