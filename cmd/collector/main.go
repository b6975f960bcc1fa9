package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/bluegazer/internal/api/bluelink"
	"github.com/langchou/bluegazer/internal/api/handlers"
	"github.com/langchou/bluegazer/internal/config"
	"github.com/langchou/bluegazer/internal/repository"
	"github.com/langchou/bluegazer/internal/service"
	"github.com/langchou/bluegazer/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting Bluegazer",
		zap.String("port", cfg.ServerPort),
		zap.Duration("poll_interval", cfg.PollInterval))

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接数据库
	db, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	defer db.Close()

	// 执行数据库迁移
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database migrated successfully")

	// 创建 Repository
	carRepo := repository.NewCarRepository(db)
	locRepo := repository.NewLocationRepository(db)
	batRepo := repository.NewEVBatteryRepository(db)
	rangeRepo := repository.NewEVRangeRepository(db)
	statusRepo := repository.NewStatusRepository(db)
	dailyRepo := repository.NewDailyStatRepository(db)
	tripRepo := repository.NewTripRepository(db)

	// 创建 Bluelink API 客户端并登录
	client := bluelink.NewClient(
		cfg.BluelinkAPIHost,
		cfg.BluelinkUsername,
		cfg.BluelinkPassword,
		cfg.BluelinkPIN,
		cfg.BluelinkRegion,
		cfg.BluelinkBrand,
	)
	if err := client.Login(ctx); err != nil {
		logger.Fatal("Failed to login to Bluelink", zap.Error(err))
	}
	logger.Info("Logged in to Bluelink",
		zap.String("region", cfg.BluelinkRegion),
		zap.String("brand", cfg.BluelinkBrand))

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run()

	// 创建采集服务
	collector := service.NewCollector(
		cfg,
		logger,
		client,
		carRepo,
		locRepo,
		batRepo,
		rangeRepo,
		statusRepo,
		dailyRepo,
		tripRepo,
	)

	wsHub.SetInitDataProvider(func() *ws.InitData {
		cars, err := carRepo.List(ctx)
		if err != nil {
			logger.Error("Failed to load cars for init data", zap.Error(err))
			return nil
		}
		return &ws.InitData{
			Cars:   cars,
			States: collector.GetAllStates(),
		}
	})

	if err := collector.Start(ctx); err != nil {
		logger.Fatal("Failed to start collector", zap.Error(err))
	}

	// 订阅状态更新并广播到 WebSocket
	go func() {
		stateCh := collector.Subscribe()
		for st := range stateCh {
			wsHub.BroadcastStateUpdate(st)
		}
	}()

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())

	handler := handlers.NewHandler(
		logger,
		carRepo,
		locRepo,
		batRepo,
		rangeRepo,
		statusRepo,
		dailyRepo,
		tripRepo,
		collector,
		wsHub,
	)
	handler.RegisterRoutes(router)

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// 停止采集
	collector.Stop()

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}
