package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/bluegazer/internal/api/bluelink"
	"github.com/langchou/bluegazer/internal/config"
	"github.com/langchou/bluegazer/internal/extract"
	"github.com/langchou/bluegazer/internal/models"
	"github.com/langchou/bluegazer/internal/state"
)

// TelematicsClient 采集循环依赖的远端能力
type TelematicsClient interface {
	Vehicles() map[string]*bluelink.VehicleSnapshot
	RefreshCached(ctx context.Context) error
	RefreshForced(ctx context.Context, staleness time.Duration) error
	DayTrips(ctx context.Context, vehicleID, day string) ([]bluelink.TripEntry, error)
}

// 存储接口。各写入内部自带事务边界，重复键是正常路径不是错误
type CarStore interface {
	Resolve(ctx context.Context, apiID, name, model string) (int64, error)
}

type LocationStore interface {
	InsertIfAbsent(ctx context.Context, loc *models.Location) (bool, error)
}

type EVBatteryStore interface {
	InsertIfAbsent(ctx context.Context, b *models.EVBattery) (bool, error)
}

type EVRangeStore interface {
	InsertIfAbsent(ctx context.Context, rec *models.EVRange) (bool, error)
}

type StatusStore interface {
	InsertIfAbsent(ctx context.Context, s *models.Status) (bool, error)
}

type DailyStatStore interface {
	Upsert(ctx context.Context, stat *models.DailyStat) error
}

type TripStore interface {
	InsertIfAbsent(ctx context.Context, t *models.TripSegment) (bool, error)
	HasSegmentsForDay(ctx context.Context, carID int64, day time.Time) (bool, error)
}

// categoryResult 单个观测类别在一个周期内的处理结果。
// 失败只影响该类别，不向外传播
type categoryResult struct {
	Category string
	Inserted bool
	Skipped  bool
	Err      error
}

// 观测类别名，用于日志
const (
	categoryLocation   = "location"
	categoryEVBattery  = "ev_battery"
	categoryEVRange    = "ev_range"
	categoryStatus     = "status"
	categoryDailyStats = "daily_stats"
)

// Collector 采集服务：驱动轮询节拍，把每辆车的快照
// 对账进存储，并在每日固定时刻补齐历史行程
type Collector struct {
	cfg          *config.Config
	logger       *zap.Logger
	client       TelematicsClient
	cars         CarStore
	locations    LocationStore
	batteries    EVBatteryStore
	ranges       EVRangeStore
	statuses     StatusStore
	dailyStats   DailyStatStore
	trips        TripStore
	stateManager *state.Manager

	mu          sync.RWMutex
	stopCh      chan struct{}
	wg          sync.WaitGroup
	subscribers []chan *state.VehicleState
	running     bool

	// 回填串行锁：调度循环与手动触发共用同一套
	// (car_id, time) 键，不允许并发写
	backfillMu sync.Mutex

	// 下一次行程回填的到期时刻
	nextBackfillAt time.Time
}

// NewCollector 创建采集服务
func NewCollector(
	cfg *config.Config,
	logger *zap.Logger,
	client TelematicsClient,
	cars CarStore,
	locations LocationStore,
	batteries EVBatteryStore,
	ranges EVRangeStore,
	statuses StatusStore,
	dailyStats DailyStatStore,
	trips TripStore,
) *Collector {
	c := &Collector{
		cfg:        cfg,
		logger:     logger,
		client:     client,
		cars:       cars,
		locations:  locations,
		batteries:  batteries,
		ranges:     ranges,
		statuses:   statuses,
		dailyStats: dailyStats,
		trips:      trips,
		stopCh:     make(chan struct{}),
	}
	c.stateManager = state.NewManager(func(carID int64, from, to string) {
		logger.Info("Vehicle state changed",
			zap.Int64("car_id", carID),
			zap.String("from", from),
			zap.String("to", to))
	})
	return c
}

// Start 启动采集循环
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.nextBackfillAt = nextDueTime(c.cfg.BackfillTimes, time.Now())
	c.mu.Unlock()

	// 启动时先拉一次缓存状态，失败不阻止循环启动
	if err := c.client.RefreshCached(ctx); err != nil {
		c.logger.Warn("Initial cached refresh failed", zap.Error(err))
	}

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Collector started",
		zap.Duration("poll_interval", c.cfg.PollInterval),
		zap.Bool("cached_only", c.cfg.CachedOnly))
	return nil
}

// Stop 停止采集循环
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	close(c.stopCh)
	c.wg.Wait()
	c.logger.Info("Collector stopped")
}

// Subscribe 订阅车辆状态更新
func (c *Collector) Subscribe() <-chan *state.VehicleState {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan *state.VehicleState, 10)
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// GetState 获取单辆车的实时状态
func (c *Collector) GetState(carID int64) (*state.VehicleState, bool) {
	machine, ok := c.stateManager.Get(carID)
	if !ok {
		return nil, false
	}
	return machine.GetState(), true
}

// GetAllStates 获取所有车辆的实时状态
func (c *Collector) GetAllStates() map[int64]*state.VehicleState {
	return c.stateManager.GetAllStates()
}

// runLoop 轮询主循环。单协程驱动两套节拍：
// 固定周期的轮询，和每日固定时刻的行程回填。
// 周期按 start+period 对齐，处理耗时不累积漂移
func (c *Collector) runLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		start := time.Now()

		c.refresh(ctx)
		c.ReconcileAll(ctx)
		c.runDueBackfill(ctx)

		sleep := time.Until(start.Add(c.cfg.PollInterval))
		if sleep < 0 {
			sleep = 0
		}

		timer := time.NewTimer(sleep)
		select {
		case <-c.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// refresh 按配置的刷新策略更新快照缓存。
// 远端失败只记日志，本轮继续用上次缓存的状态对账
func (c *Collector) refresh(ctx context.Context) {
	var err error
	if c.cfg.CachedOnly {
		err = c.client.RefreshCached(ctx)
	} else {
		err = c.client.RefreshForced(ctx, c.cfg.ForceRefreshStaleness)
	}
	if err != nil {
		c.logger.Error("Failed to refresh vehicle snapshots", zap.Error(err))
	}
}

// ReconcileAll 对所有已知车辆执行一次对账
func (c *Collector) ReconcileAll(ctx context.Context) {
	vehicles := c.client.Vehicles()

	ids := make([]string, 0, len(vehicles))
	for id := range vehicles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		c.reconcileVehicle(ctx, vehicles[id])
	}
}

// reconcileVehicle 对单辆车执行一次对账。
// 车辆建档失败跳过整辆车（没有 car_id 无从归属任何事实）；
// 各观测类别相互独立，一类失败不影响其余类别
func (c *Collector) reconcileVehicle(ctx context.Context, snap *bluelink.VehicleSnapshot) []categoryResult {
	carID, err := c.cars.Resolve(ctx, snap.VehicleID, snap.Name, snap.Model)
	if err != nil {
		c.logger.Error("Failed to resolve car, skipping vehicle for this tick",
			zap.Error(err),
			zap.String("vehicle_id", snap.VehicleID))
		return nil
	}

	results := []categoryResult{
		c.writeLocation(ctx, carID, snap),
		c.writeEVBattery(ctx, carID, snap),
		c.writeEVRange(ctx, carID, snap),
		c.writeStatus(ctx, carID, snap),
		c.writeDailyStats(ctx, carID, snap),
	}

	for _, res := range results {
		if res.Err != nil {
			c.logger.Error("Failed to store observation",
				zap.Error(res.Err),
				zap.Int64("car_id", carID),
				zap.String("category", res.Category))
		}
	}

	c.updateState(carID, snap)
	return results
}

func (c *Collector) writeLocation(ctx context.Context, carID int64, snap *bluelink.VehicleSnapshot) categoryResult {
	res := categoryResult{Category: categoryLocation}
	fact, ok := extract.Location(carID, snap)
	if !ok {
		res.Skipped = true
		return res
	}
	res.Inserted, res.Err = c.locations.InsertIfAbsent(ctx, fact)
	return res
}

func (c *Collector) writeEVBattery(ctx context.Context, carID int64, snap *bluelink.VehicleSnapshot) categoryResult {
	res := categoryResult{Category: categoryEVBattery}
	fact, ok := extract.EVBattery(carID, snap)
	if !ok {
		res.Skipped = true
		return res
	}
	res.Inserted, res.Err = c.batteries.InsertIfAbsent(ctx, fact)
	return res
}

func (c *Collector) writeEVRange(ctx context.Context, carID int64, snap *bluelink.VehicleSnapshot) categoryResult {
	res := categoryResult{Category: categoryEVRange}
	fact, ok := extract.EVRange(carID, snap)
	if !ok {
		res.Skipped = true
		return res
	}
	res.Inserted, res.Err = c.ranges.InsertIfAbsent(ctx, fact)
	return res
}

func (c *Collector) writeStatus(ctx context.Context, carID int64, snap *bluelink.VehicleSnapshot) categoryResult {
	res := categoryResult{Category: categoryStatus}
	fact, err := extract.Status(carID, snap)
	if err != nil {
		res.Err = err
		return res
	}
	if fact == nil {
		res.Skipped = true
		return res
	}
	res.Inserted, res.Err = c.statuses.InsertIfAbsent(ctx, fact)
	return res
}

func (c *Collector) writeDailyStats(ctx context.Context, carID int64, snap *bluelink.VehicleSnapshot) categoryResult {
	res := categoryResult{Category: categoryDailyStats}
	stats := extract.DailyStats(carID, snap)
	if len(stats) == 0 {
		res.Skipped = true
		return res
	}
	for _, stat := range stats {
		if err := c.dailyStats.Upsert(ctx, stat); err != nil {
			res.Err = err
			return res
		}
	}
	res.Inserted = true
	return res
}

// updateState 更新派生状态机并向订阅者推送
func (c *Collector) updateState(carID int64, snap *bluelink.VehicleSnapshot) {
	machine := c.stateManager.GetOrCreate(carID)
	if err := machine.ApplySnapshot(snap); err != nil {
		c.logger.Warn("Failed to apply snapshot to state machine",
			zap.Error(err),
			zap.Int64("car_id", carID))
	}
	c.publishState(machine.GetState())
}

func (c *Collector) publishState(st *state.VehicleState) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, ch := range c.subscribers {
		select {
		case ch <- st:
		default:
			// 慢消费者直接丢弃本次更新
		}
	}
}

// runDueBackfill 到期则执行行程回填，并推进到下一个未来时刻。
// 进程停过导致错过的时刻不补跑
func (c *Collector) runDueBackfill(ctx context.Context) {
	now := time.Now()

	c.mu.Lock()
	due := !now.Before(c.nextBackfillAt)
	if due {
		c.nextBackfillAt = nextDueTime(c.cfg.BackfillTimes, now)
	}
	c.mu.Unlock()

	if !due {
		return
	}
	c.RunBackfill(ctx)
}

// nextDueTime 返回所有每日时刻中最近的下一次到期时间
func nextDueTime(times []config.TimeOfDay, now time.Time) time.Time {
	var next time.Time
	for _, t := range times {
		candidate := t.Next(now)
		if next.IsZero() || candidate.Before(next) {
			next = candidate
		}
	}
	return next
}
