package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"signal-leaderboard/internal/pricefeed"
)

func TestToReport(t *testing.T) {
	rep := toReport(&pricefeed.Result{
		Assets: []pricefeed.AssetResult{
			{Asset: "BTC", Points: 24},
			{Asset: "ETH", Err: errors.New("status 500")},
		},
		PointsStored: 24,
		Failed:       1,
		Duration:     1500 * time.Millisecond,
	})

	assert.Equal(t, int64(1500), rep.DurationMs)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, []AssetReport{
		{Asset: "BTC", Points: 24},
		{Asset: "ETH", Error: "status 500"},
	}, rep.Assets)
}
