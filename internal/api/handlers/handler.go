package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/bluegazer/internal/repository"
	"github.com/langchou/bluegazer/internal/service"
	"github.com/langchou/bluegazer/pkg/ws"
)

// Handler HTTP 处理器。只读接口 + 手动触发回填，
// 采集本身不依赖这里的任何路由
type Handler struct {
	logger     *zap.Logger
	carRepo    *repository.CarRepository
	locRepo    *repository.LocationRepository
	batRepo    *repository.EVBatteryRepository
	rangeRepo  *repository.EVRangeRepository
	statusRepo *repository.StatusRepository
	dailyRepo  *repository.DailyStatRepository
	tripRepo   *repository.TripRepository
	collector  *service.Collector
	wsHub      *ws.Hub
	upgrader   websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	carRepo *repository.CarRepository,
	locRepo *repository.LocationRepository,
	batRepo *repository.EVBatteryRepository,
	rangeRepo *repository.EVRangeRepository,
	statusRepo *repository.StatusRepository,
	dailyRepo *repository.DailyStatRepository,
	tripRepo *repository.TripRepository,
	collector *service.Collector,
	wsHub *ws.Hub,
) *Handler {
	return &Handler{
		logger:     logger,
		carRepo:    carRepo,
		locRepo:    locRepo,
		batRepo:    batRepo,
		rangeRepo:  rangeRepo,
		statusRepo: statusRepo,
		dailyRepo:  dailyRepo,
		tripRepo:   tripRepo,
		collector:  collector,
		wsHub:      wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 只读数据，允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Health)

	api := r.Group("/api")
	{
		// 车辆
		api.GET("/cars", h.ListCars)
		api.GET("/cars/:id", h.GetCar)
		api.GET("/cars/:id/state", h.GetCarState)

		// 观测数据
		api.GET("/cars/:id/location/latest", h.GetLatestLocation)
		api.GET("/cars/:id/status/latest", h.GetLatestStatus)
		api.GET("/cars/:id/battery", h.ListBattery)
		api.GET("/cars/:id/range", h.ListRange)
		api.GET("/cars/:id/daily-stats", h.ListDailyStats)
		api.GET("/cars/:id/trips", h.ListTrips)

		// 手动触发一次行程回填
		api.POST("/backfill/run", h.RunBackfill)
	}

	r.GET("/ws", h.HandleWebSocket)
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleWebSocket 升级 WebSocket 连接并接入 Hub
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	client.Register()

	go client.WritePump()
	go client.ReadPump()
}

// RunBackfill 手动触发一次行程回填。
// 异步执行，不跟随请求的生命周期
func (h *Handler) RunBackfill(c *gin.Context) {
	go h.collector.RunBackfill(context.Background())
	h.logger.Info("Trip backfill triggered via API")
	c.JSON(http.StatusAccepted, gin.H{"message": "Backfill started"})
}
