package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ListCars 获取车辆列表
func (h *Handler) ListCars(c *gin.Context) {
	cars, err := h.carRepo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list cars", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list cars"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": cars})
}

// GetCar 获取车辆详情
func (h *Handler) GetCar(c *gin.Context) {
	id, ok := carIDParam(c)
	if !ok {
		return
	}

	car, err := h.carRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Car not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": car})
}

// GetCarState 获取车辆实时派生状态
func (h *Handler) GetCarState(c *gin.Context) {
	id, ok := carIDParam(c)
	if !ok {
		return
	}

	state, found := h.collector.GetState(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Car state not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": state})
}

// carIDParam 解析路径里的车辆 ID，非法时直接写 400 响应
func carIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid car ID"})
		return 0, false
	}
	return id, true
}
