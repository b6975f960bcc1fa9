package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const tripDayLayout = "20060102"

// GetLatestLocation 获取车辆最新位置
func (h *Handler) GetLatestLocation(c *gin.Context) {
	id, ok := carIDParam(c)
	if !ok {
		return
	}

	loc, err := h.locRepo.GetLatestByCarID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No location recorded"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": loc})
}

// GetLatestStatus 获取车辆最新状态快照
func (h *Handler) GetLatestStatus(c *gin.Context) {
	id, ok := carIDParam(c)
	if !ok {
		return
	}

	status, err := h.statusRepo.GetLatestByCarID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No status recorded"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": status})
}

// ListBattery 获取电池记录，since 参数为 RFC3339，默认最近 7 天
func (h *Handler) ListBattery(c *gin.Context) {
	id, ok := carIDParam(c)
	if !ok {
		return
	}
	since, ok := sinceParam(c)
	if !ok {
		return
	}

	records, err := h.batRepo.ListByCarSince(c.Request.Context(), id, since)
	if err != nil {
		h.logger.Error("Failed to list battery records", zap.Error(err), zap.Int64("car_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list battery records"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}

// ListRange 获取续航记录，since 参数为 RFC3339，默认最近 7 天
func (h *Handler) ListRange(c *gin.Context) {
	id, ok := carIDParam(c)
	if !ok {
		return
	}
	since, ok := sinceParam(c)
	if !ok {
		return
	}

	records, err := h.rangeRepo.ListByCarSince(c.Request.Context(), id, since)
	if err != nil {
		h.logger.Error("Failed to list range records", zap.Error(err), zap.Int64("car_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list range records"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}

// ListDailyStats 获取日能耗统计
func (h *Handler) ListDailyStats(c *gin.Context) {
	id, ok := carIDParam(c)
	if !ok {
		return
	}

	stats, err := h.dailyRepo.ListByCar(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to list daily stats", zap.Error(err), zap.Int64("car_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list daily stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// ListTrips 获取某日的行程段，day 参数为 "YYYYMMDD"
func (h *Handler) ListTrips(c *gin.Context) {
	id, ok := carIDParam(c)
	if !ok {
		return
	}

	day, err := time.Parse(tripDayLayout, c.Query("day"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or missing day (YYYYMMDD)"})
		return
	}

	trips, err := h.tripRepo.ListByCarDay(c.Request.Context(), id, day.UTC())
	if err != nil {
		h.logger.Error("Failed to list trips", zap.Error(err), zap.Int64("car_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list trips"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": trips})
}

// sinceParam 解析 since 查询参数，缺省取最近 7 天
func sinceParam(c *gin.Context) (time.Time, bool) {
	raw := c.Query("since")
	if raw == "" {
		return time.Now().AddDate(0, 0, -7), true
	}
	since, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid since (RFC3339)"})
		return time.Time{}, false
	}
	return since, true
}
