package domain

import (
	"fmt"
	"strings"
)

// Window is a fixed statistics lookback horizon.
type Window string

const (
	Window1W  Window = "1W"
	Window1M  Window = "1M"
	Window3M  Window = "3M"
	Window6M  Window = "6M"
	Window1Y  Window = "1Y"
	WindowAll Window = "ALL"
)

// AllWindows lists windows in display order.
var AllWindows = []Window{Window1W, Window1M, Window3M, Window6M, Window1Y, WindowAll}

const secondsPerDay = 24 * SecondsPerHour

// Seconds returns the lookback length; 0 means unbounded.
func (w Window) Seconds() int64 {
	switch w {
	case Window1W:
		return 7 * secondsPerDay
	case Window1M:
		return 30 * secondsPerDay
	case Window3M:
		return 90 * secondsPerDay
	case Window6M:
		return 180 * secondsPerDay
	case Window1Y:
		return 365 * secondsPerDay
	default:
		return 0
	}
}

// IsValid checks if the window is a known value.
func (w Window) IsValid() bool {
	for _, v := range AllWindows {
		if v == w {
			return true
		}
	}
	return false
}

// ParseWindow validates a window name.
func ParseWindow(s string) (Window, error) {
	w := Window(strings.ToUpper(strings.TrimSpace(s)))
	if !w.IsValid() {
		return "", fmt.Errorf("unknown window %q", s)
	}
	return w, nil
}

// StrategyStats is the derived per-window statistics row.
// Corresponds to strategy_stats table. Nil pointers mean "not computable".
type StrategyStats struct {
	StrategyID    string
	Window        Window
	LastUpdatedTs int64
	SharpeAnnual  *float64
	VolAnnual     *float64
	VolHourly     *float64
	TotalReturn   float64
	MaxDrawdown   float64
}
