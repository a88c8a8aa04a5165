package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"optitrack/services"
)

// ActivityController handles activity journal endpoints
type ActivityController struct {
	activityLogger *services.ActivityLogger
}

// NewActivityController creates a new activity controller
func NewActivityController(activityLogger *services.ActivityLogger) *ActivityController {
	return &ActivityController{
		activityLogger: activityLogger,
	}
}

// HandleGetCurrentActivity returns the current day's journal, optionally
// narrowed by ?position_id= and ?type=
// GET /api/v1/activity
func (ac *ActivityController) HandleGetCurrentActivity(c *gin.Context) {
	filter, err := activityFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter", "details": err.Error()})
		return
	}

	log, err := ac.activityLogger.GetCurrentLog()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, log.Filter(filter))
}

// HandleGetActivityByDate returns the journal of one day, with the same
// filters as the current day
// GET /api/v1/activity/:date
func (ac *ActivityController) HandleGetActivityByDate(c *gin.Context) {
	filter, err := activityFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter", "details": err.Error()})
		return
	}

	log, err := ac.activityLogger.GetLogForDate(c.Param("date"))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, services.ErrNoActivity) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, log.Filter(filter))
}

// HandleListActivityLogs returns list of available activity log dates
// GET /api/v1/activity/dates
func (ac *ActivityController) HandleListActivityLogs(c *gin.Context) {
	dates, err := ac.activityLogger.ListAvailableLogs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"dates": dates,
		"count": len(dates),
	})
}

// HandleGetPositionActivity returns a position's journal across all days
// GET /api/v1/positions/:id/activity
func (ac *ActivityController) HandleGetPositionActivity(c *gin.Context) {
	positionID := c.Param("id")

	history, err := ac.activityLogger.PositionHistory(positionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read activity", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"position_id": positionID,
		"activities":  history,
		"count":       len(history),
	})
}

func activityFilter(c *gin.Context) (services.ActivityFilter, error) {
	filter := services.ActivityFilter{
		PositionID: strings.TrimSpace(c.Query("position_id")),
		Type:       strings.ToUpper(strings.TrimSpace(c.Query("type"))),
	}
	if filter.Type != "" && !services.IsKnownActivityType(filter.Type) {
		return filter, fmt.Errorf("unknown activity type %q", c.Query("type"))
	}
	return filter, nil
}
