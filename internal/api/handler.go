// Package api serves the read-only query layer over the stores.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"signal-leaderboard/internal/allocation"
	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/metrics"
	"signal-leaderboard/internal/storage"
)

// Query limits.
const (
	DefaultLeaderboardLimit = 50
	MaxLeaderboardLimit     = 500
	DefaultMaxPoints        = 500
	MaxMaxPoints            = 5000
)

// Handler serves strategy queries.
type Handler struct {
	stores *storage.Stores
	logger *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(stores *storage.Stores, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{stores: stores, logger: logger}
}

// Leaderboard ranks strategies for one window.
func (h *Handler) Leaderboard(c *gin.Context) {
	window, err := domain.ParseWindow(c.DefaultQuery("window", string(domain.Window1M)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sortKey, err := metrics.ParseSortKey(c.DefaultQuery("sort", string(metrics.SortSharpe)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit, err := intQuery(c, "limit", DefaultLeaderboardLimit, 1, MaxLeaderboardLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	rows, err := h.stores.Stats.GetByWindow(ctx, window)
	if err != nil {
		h.internalError(c, "failed to load stats", err)
		return
	}
	strategies, err := h.stores.Strategies.GetAll(ctx)
	if err != nil {
		h.internalError(c, "failed to load strategies", err)
		return
	}
	byID := make(map[string]*domain.Strategy, len(strategies))
	for _, s := range strategies {
		byID[s.ID] = s
	}

	ranked := make([]*domain.StrategyStats, 0, len(rows))
	for _, row := range rows {
		if _, ok := byID[row.StrategyID]; ok {
			ranked = append(ranked, row)
		}
	}
	metrics.Rank(ranked, sortKey)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]LeaderboardEntry, 0, len(ranked))
	for i, row := range ranked {
		out = append(out, LeaderboardEntry{
			Rank:     i + 1,
			Strategy: toStrategyResponse(byID[row.StrategyID]),
			Stats:    toStatsResponse(row),
		})
	}
	c.JSON(http.StatusOK, gin.H{"window": window, "sort": sortKey, "entries": out})
}

// Strategy returns a strategy with its stats and current position.
func (h *Handler) Strategy(c *gin.Context) {
	s, ok := h.loadStrategy(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	stats, err := h.stores.Stats.GetByStrategy(ctx, s.ID)
	if err != nil {
		h.internalError(c, "failed to load stats", err)
		return
	}
	position, err := h.currentPosition(c, s)
	if err != nil {
		h.internalError(c, "failed to load position", err)
		return
	}

	c.JSON(http.StatusOK, StrategyDetailResponse{
		Strategy: toStrategyResponse(s),
		Stats:    statsInWindowOrder(stats),
		Position: position,
	})
}

// Stats returns every window row of a strategy.
func (h *Handler) Stats(c *gin.Context) {
	s, ok := h.loadStrategy(c)
	if !ok {
		return
	}
	stats, err := h.stores.Stats.GetByStrategy(c.Request.Context(), s.ID)
	if err != nil {
		h.internalError(c, "failed to load stats", err)
		return
	}
	c.JSON(http.StatusOK, statsInWindowOrder(stats))
}

// Segments returns the thinned equity curve of a strategy.
func (h *Handler) Segments(c *gin.Context) {
	s, ok := h.loadStrategy(c)
	if !ok {
		return
	}
	maxPoints, err := intQuery(c, "max_points", DefaultMaxPoints, 2, MaxMaxPoints)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	segments, err := h.stores.Segments.GetByStrategy(c.Request.Context(), s.ID)
	if err != nil {
		h.internalError(c, "failed to load segments", err)
		return
	}

	points := thin(segments, maxPoints)
	out := make([]SegmentResponse, 0, len(points))
	for _, seg := range points {
		out = append(out, toSegmentResponse(seg))
	}
	c.JSON(http.StatusOK, gin.H{"total": len(segments), "points": out})
}

// Snapshots returns every post-signal allocation of a strategy.
func (h *Handler) Snapshots(c *gin.Context) {
	s, ok := h.loadStrategy(c)
	if !ok {
		return
	}
	snapshots, err := h.stores.Snapshots.GetByStrategy(c.Request.Context(), s.ID)
	if err != nil {
		h.internalError(c, "failed to load snapshots", err)
		return
	}

	out := make([]SnapshotResponse, 0, len(snapshots))
	for _, snap := range snapshots {
		out = append(out, SnapshotResponse{
			SignalTs:  snap.SignalTs,
			Exact:     snap.Exact,
			Message:   snap.Message,
			Positions: toPositions(snap.Positions),
		})
	}
	c.JSON(http.StatusOK, out)
}

// Position returns the freshest known allocation of a strategy.
func (h *Handler) Position(c *gin.Context) {
	s, ok := h.loadStrategy(c)
	if !ok {
		return
	}
	position, err := h.currentPosition(c, s)
	if err != nil {
		h.internalError(c, "failed to load position", err)
		return
	}
	c.JSON(http.StatusOK, position)
}

func (h *Handler) currentPosition(c *gin.Context, s *domain.Strategy) (CurrentPositionResponse, error) {
	ctx := c.Request.Context()

	holdings, err := h.stores.Holdings.GetByStrategy(ctx, s.ID)
	if err != nil {
		return CurrentPositionResponse{}, err
	}
	latest, err := h.stores.Snapshots.GetLatest(ctx, s.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return CurrentPositionResponse{}, err
	}

	cur := allocation.CurrentPosition(s, holdings, latest)
	return CurrentPositionResponse{
		Source:    cur.Origin,
		Timestamp: cur.Timestamp,
		Positions: toPositions(cur.Book.Positions()),
	}, nil
}

func (h *Handler) loadStrategy(c *gin.Context) (*domain.Strategy, bool) {
	id := c.Param("id")
	s, err := h.stores.Strategies.GetByID(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "strategy not found"})
		return nil, false
	}
	if err != nil {
		h.internalError(c, "failed to load strategy", err)
		return nil, false
	}
	return s, true
}

func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func statsInWindowOrder(rows []*domain.StrategyStats) []StatsResponse {
	byWindow := make(map[domain.Window]*domain.StrategyStats, len(rows))
	for _, row := range rows {
		byWindow[row.Window] = row
	}
	out := make([]StatsResponse, 0, len(rows))
	for _, w := range domain.AllWindows {
		if row, ok := byWindow[w]; ok {
			out = append(out, toStatsResponse(row))
		}
	}
	return out
}

func intQuery(c *gin.Context, key string, fallback, lo, hi int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v, nil
}
