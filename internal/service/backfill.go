package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/bluegazer/internal/api/bluelink"
	"github.com/langchou/bluegazer/internal/extract"
)

const dayKeyLayout = "20060102"

// RunBackfill 对所有已知车辆补齐历史行程明细。
// 只处理严格早于本地今天的日子：当天会持续产生新行程，
// 历史日一旦记录则视为补齐完毕，不再重复拉取。
// 某辆车的某一天失败会放弃该车剩余的日子（避免半天数据），
// 但不影响其他车辆
func (c *Collector) RunBackfill(ctx context.Context) {
	// 同一时刻只允许一轮回填：并发的两轮会同时通过
	// 已补齐检查，然后在同一 (car_id, time) 上竞争插入
	c.backfillMu.Lock()
	defer c.backfillMu.Unlock()

	c.logger.Info("Running trip backfill")

	vehicles := c.client.Vehicles()

	ids := make([]string, 0, len(vehicles))
	for id := range vehicles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := c.backfillVehicle(ctx, vehicles[id]); err != nil {
			c.logger.Error("Trip backfill aborted for vehicle",
				zap.Error(err),
				zap.String("vehicle_id", id))
		}
	}
}

// backfillVehicle 补齐一辆车的历史行程，返回的错误表示
// 该车剩余日子已被放弃
func (c *Collector) backfillVehicle(ctx context.Context, snap *bluelink.VehicleSnapshot) error {
	carID, err := c.cars.Resolve(ctx, snap.VehicleID, snap.Name, snap.Model)
	if err != nil {
		return err
	}

	days := backfillDays(snap, time.Now())
	for _, day := range days {
		done, err := c.trips.HasSegmentsForDay(ctx, carID, day)
		if err != nil {
			return err
		}
		if done {
			continue
		}

		if err := c.backfillDay(ctx, carID, snap.VehicleID, day); err != nil {
			return err
		}
	}

	return nil
}

func (c *Collector) backfillDay(ctx context.Context, carID int64, vehicleID string, day time.Time) error {
	dayKey := day.Format(dayKeyLayout)

	trips, err := c.client.DayTrips(ctx, vehicleID, dayKey)
	if err != nil {
		return err
	}

	inserted := 0
	for _, trip := range trips {
		fact, err := extract.TripSegment(carID, day, trip)
		if err != nil {
			return err
		}
		ok, err := c.trips.InsertIfAbsent(ctx, fact)
		if err != nil {
			return err
		}
		if ok {
			inserted++
		}
	}

	c.logger.Info("Backfilled day trips",
		zap.Int64("car_id", carID),
		zap.String("day", dayKey),
		zap.Int("segments", inserted))
	return nil
}

// backfillDays 取快照统计窗口里严格早于 now 所在本地日
// 的日子，升序返回
func backfillDays(snap *bluelink.VehicleSnapshot, now time.Time) []time.Time {
	todayKey := now.Format(dayKeyLayout)

	var days []time.Time
	seen := make(map[string]bool)
	for _, stat := range snap.DailyStats {
		key := stat.Date.Format(dayKeyLayout)
		if key >= todayKey || seen[key] {
			continue
		}
		seen[key] = true
		days = append(days, stat.Date)
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}
