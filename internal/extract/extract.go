// Package extract 把车辆快照映射为可入库的时序事实。
// 所有函数都是纯函数，不做任何 I/O；时间戳一律取快照的
// LastUpdatedAt（各分区块自带的时间戳存在时钟偏差，不可靠）
package extract

import (
	"fmt"
	"time"

	"github.com/langchou/bluegazer/internal/api/bluelink"
	"github.com/langchou/bluegazer/internal/models"
)

// Location 提取位置事实，快照缺少定位区块时返回 false
func Location(carID int64, snap *bluelink.VehicleSnapshot) (*models.Location, bool) {
	if snap.Location == nil {
		return nil, false
	}
	return &models.Location{
		CarID:     carID,
		Latitude:  snap.Location.Latitude,
		Longitude: snap.Location.Longitude,
		Speed:     snap.Location.Speed,
		Heading:   snap.Location.Heading,
		Odometer:  snap.Odometer,
		Time:      snap.LastUpdatedAt,
	}, true
}

// EVBattery 提取动力电池事实
func EVBattery(carID int64, snap *bluelink.VehicleSnapshot) (*models.EVBattery, bool) {
	if snap.EV == nil {
		return nil, false
	}
	return &models.EVBattery{
		CarID:           carID,
		BatteryCharging: snap.EV.BatteryCharging,
		BatteryPercent:  snap.EV.BatteryPercent,
		Time:            snap.LastUpdatedAt,
	}, true
}

// EVRange 提取续航事实。环境温度缺失时记 0，续航值本身缺失则不产出
func EVRange(carID int64, snap *bluelink.VehicleSnapshot) (*models.EVRange, bool) {
	if snap.EV == nil || snap.EV.DrivingRange == nil {
		return nil, false
	}
	fact := &models.EVRange{
		CarID: carID,
		Range: *snap.EV.DrivingRange,
		Time:  snap.LastUpdatedAt,
	}
	if snap.AirTemperature != nil {
		fact.AirTemperature = *snap.AirTemperature
	}
	return fact, true
}

// Status 提取状态事实，原始报文原样入库
func Status(carID int64, snap *bluelink.VehicleSnapshot) (*models.Status, error) {
	if snap.Status == nil {
		return nil, nil
	}
	if len(snap.Raw) == 0 {
		return nil, fmt.Errorf("snapshot has status block but no raw payload")
	}
	s := snap.Status
	return &models.Status{
		CarID: carID,

		EngineOn:  s.EngineOn,
		Locked:    s.Locked,
		SleepMode: s.SleepMode,

		DoorFrontLeftOpen:  s.DoorFrontLeftOpen,
		DoorFrontRightOpen: s.DoorFrontRightOpen,
		DoorBackLeftOpen:   s.DoorBackLeftOpen,
		DoorBackRightOpen:  s.DoorBackRightOpen,
		TrunkOpen:          s.TrunkOpen,
		HoodOpen:           s.HoodOpen,

		WindowFrontLeftOpen:  s.WindowFrontLeftOpen,
		WindowFrontRightOpen: s.WindowFrontRightOpen,
		WindowBackLeftOpen:   s.WindowBackLeftOpen,
		WindowBackRightOpen:  s.WindowBackRightOpen,

		TirePressureAllWarning:        s.TirePressureAllWarning,
		TirePressureFrontLeftWarning:  s.TirePressureFrontLeftWarning,
		TirePressureFrontRightWarning: s.TirePressureFrontRightWarning,
		TirePressureBackLeftWarning:   s.TirePressureBackLeftWarning,
		TirePressureBackRightWarning:  s.TirePressureBackRightWarning,

		AirControlOn:       s.AirControlOn,
		AirTempSetpoint:    s.AirTempSetpoint,
		DefrostOn:          s.DefrostOn,
		SteeringHeaterOn:   s.SteeringHeaterOn,
		BackWindowHeaterOn: s.BackWindowHeaterOn,
		SideMirrorHeaterOn: s.SideMirrorHeaterOn,

		SmartKeyBatteryWarning: s.SmartKeyBatteryWarning,
		WasherFluidWarning:     s.WasherFluidWarning,
		BrakeFluidWarning:      s.BrakeFluidWarning,
		FuelLevelLowWarning:    s.FuelLevelLowWarning,

		ChargePortDoorOpen: s.ChargePortDoorOpen,
		AuxBatteryPercent:  s.AuxBatteryPercent,

		Data: snap.Raw,
		Time: snap.LastUpdatedAt,
	}, nil
}

// DailyStats 提取能耗统计，快照的统计窗口里每个自然日产出一条
func DailyStats(carID int64, snap *bluelink.VehicleSnapshot) []*models.DailyStat {
	var stats []*models.DailyStat
	for _, d := range snap.DailyStats {
		stats = append(stats, &models.DailyStat{
			CarID:                         carID,
			TotalConsumed:                 d.TotalConsumed,
			EngineConsumption:             d.EngineConsumption,
			ClimateConsumption:            d.ClimateConsumption,
			OnboardElectronicsConsumption: d.OnboardElectronicsConsumption,
			BatteryCareConsumption:        d.BatteryCareConsumption,
			RegeneratedEnergy:             d.RegeneratedEnergy,
			Distance:                      d.Distance,
			Time:                          d.Date,
		})
	}
	return stats
}

// TripSegment 把一段日内行程锚定到具体日期后转为事实
func TripSegment(carID int64, day time.Time, trip bluelink.TripEntry) (*models.TripSegment, error) {
	at, err := trip.AnchorTo(day)
	if err != nil {
		return nil, err
	}
	return &models.TripSegment{
		CarID:     carID,
		DriveTime: trip.DriveTime,
		IdleTime:  trip.IdleTime,
		Distance:  trip.Distance,
		AvgSpeed:  trip.AvgSpeed,
		MaxSpeed:  trip.MaxSpeed,
		Time:      at,
		Day:       day,
	}, nil
}
