package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"optitrack/database"
	"optitrack/market"
	"optitrack/pnl"
	"optitrack/services"
)

// PositionController handles option position and ledger endpoints
type PositionController struct {
	positionManager *services.PositionManager
}

// NewPositionController creates a new position controller
func NewPositionController(positionManager *services.PositionManager) *PositionController {
	return &PositionController{
		positionManager: positionManager,
	}
}

// HandleCreatePosition opens a position with its first trade
// POST /api/v1/positions
func (pc *PositionController) HandleCreatePosition(c *gin.Context) {
	var req services.OpenPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	position, err := pc.positionManager.CreatePosition(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Failed to create position", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Position created successfully",
		"position": position,
	})
}

// HandleListPositions lists positions
// GET /api/v1/positions?status=OPEN
func (pc *PositionController) HandleListPositions(c *gin.Context) {
	positions, err := pc.positionManager.ListPositions(c.Query("status"))
	if err != nil {
		respondError(c, "Failed to list positions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":     len(positions),
		"positions": positions,
	})
}

// HandleGetPosition retrieves a position
// GET /api/v1/positions/:id
func (pc *PositionController) HandleGetPosition(c *gin.Context) {
	position, err := pc.positionManager.GetPosition(c.Param("id"))
	if err != nil {
		respondError(c, "Position not found", err)
		return
	}

	c.JSON(http.StatusOK, position)
}

// HandleGetSummary returns the position, its trades and PNL summary
// GET /api/v1/positions/:id/summary?live=false
func (pc *PositionController) HandleGetSummary(c *gin.Context) {
	live := c.DefaultQuery("live", "true") != "false"

	view, err := pc.positionManager.GetSummary(c.Request.Context(), c.Param("id"), live)
	if err != nil {
		respondError(c, "Failed to get summary", err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// HandleDeletePosition deletes a position and its trades
// DELETE /api/v1/positions/:id
func (pc *PositionController) HandleDeletePosition(c *gin.Context) {
	if err := pc.positionManager.DeletePosition(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "Failed to delete position", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Position deleted"})
}

// HandleAddTrade records a trade against a position
// POST /api/v1/positions/:id/trades
func (pc *PositionController) HandleAddTrade(c *gin.Context) {
	var req services.TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	position, trade, err := pc.positionManager.AddTrade(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, "Failed to add trade", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"position": position,
		"trade":    trade,
	})
}

// HandleDeleteTrade removes a trade from a position
// DELETE /api/v1/positions/:id/trades/:tradeId
func (pc *PositionController) HandleDeleteTrade(c *gin.Context) {
	tradeID, err := strconv.ParseUint(c.Param("tradeId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid trade ID",
			"details": err.Error(),
		})
		return
	}

	position, err := pc.positionManager.DeleteTrade(c.Request.Context(), c.Param("id"), uint(tradeID))
	if err != nil {
		respondError(c, "Failed to delete trade", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Trade deleted",
		"position": position,
	})
}

// HandleRefresh refreshes PNL of all open positions from live quotes
// POST /api/v1/positions/refresh
func (pc *PositionController) HandleRefresh(c *gin.Context) {
	records, err := pc.positionManager.RefreshOpenPositions(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to refresh positions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(records),
		"records": records,
	})
}

// HandleSweep applies expiry transitions
// POST /api/v1/positions/sweep
func (pc *PositionController) HandleSweep(c *gin.Context) {
	transitions, err := pc.positionManager.SweepExpirations(c.Request.Context(), time.Now())
	if err != nil {
		respondError(c, "Failed to sweep expirations", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":       len(transitions),
		"transitions": transitions,
	})
}

// HandleNormalizeSymbol returns the canonical form of a symbol
// GET /api/v1/symbols/normalize?q=9988
func (pc *PositionController) HandleNormalizeSymbol(c *gin.Context) {
	input := c.Query("q")

	canonical, err := market.Normalize(input)
	if err != nil {
		respondError(c, "Invalid symbol", err)
		return
	}

	m, code, _ := market.Split(canonical)
	c.JSON(http.StatusOK, gin.H{
		"input":     input,
		"canonical": canonical,
		"market":    m,
		"code":      code,
	})
}

// respondError maps domain errors to status codes
func respondError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, database.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, pnl.ErrInvalidTrade),
		errors.Is(err, pnl.ErrUnknownTradeType),
		errors.Is(err, services.ErrInvalidRequest),
		errors.Is(err, market.ErrInvalidSymbol):
		status = http.StatusBadRequest
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}
