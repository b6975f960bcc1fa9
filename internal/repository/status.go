package repository

import (
	"context"
	"fmt"

	"github.com/langchou/bluegazer/internal/models"
)

// StatusRepository 状态快照数据仓库
type StatusRepository struct {
	db *DB
}

// NewStatusRepository 创建状态仓库
func NewStatusRepository(db *DB) *StatusRepository {
	return &StatusRepository{db: db}
}

// InsertIfAbsent 按 (car_id, time) 自然键写入状态快照，重复键不写入
func (r *StatusRepository) InsertIfAbsent(ctx context.Context, s *models.Status) (bool, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin insert status: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM status WHERE car_id = $1 AND time = $2)
	`, s.CarID, s.Time).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check status exists: %w", err)
	}
	if exists {
		return false, nil
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO status (
			car_id, engine_on, locked, sleep_mode,
			door_front_left_open, door_front_right_open, door_back_left_open, door_back_right_open,
			trunk_open, hood_open,
			window_front_left_open, window_front_right_open, window_back_left_open, window_back_right_open,
			tire_pressure_all_warning, tire_pressure_front_left_warning, tire_pressure_front_right_warning,
			tire_pressure_back_left_warning, tire_pressure_back_right_warning,
			air_control_on, air_temp_setpoint, defrost_on, steering_heater_on,
			back_window_heater_on, side_mirror_heater_on,
			smart_key_battery_warning, washer_fluid_warning, brake_fluid_warning, fuel_level_low_warning,
			charge_port_door_open, aux_battery_percent, data, time
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33)
		RETURNING id
	`,
		s.CarID, s.EngineOn, s.Locked, s.SleepMode,
		s.DoorFrontLeftOpen, s.DoorFrontRightOpen, s.DoorBackLeftOpen, s.DoorBackRightOpen,
		s.TrunkOpen, s.HoodOpen,
		s.WindowFrontLeftOpen, s.WindowFrontRightOpen, s.WindowBackLeftOpen, s.WindowBackRightOpen,
		s.TirePressureAllWarning, s.TirePressureFrontLeftWarning, s.TirePressureFrontRightWarning,
		s.TirePressureBackLeftWarning, s.TirePressureBackRightWarning,
		s.AirControlOn, s.AirTempSetpoint, s.DefrostOn, s.SteeringHeaterOn,
		s.BackWindowHeaterOn, s.SideMirrorHeaterOn,
		s.SmartKeyBatteryWarning, s.WasherFluidWarning, s.BrakeFluidWarning, s.FuelLevelLowWarning,
		s.ChargePortDoorOpen, s.AuxBatteryPercent, s.Data, s.Time,
	).Scan(&s.ID)
	if err != nil {
		return false, fmt.Errorf("insert status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit insert status: %w", err)
	}
	return true, nil
}

// GetLatestByCarID 获取车辆最新状态快照
func (r *StatusRepository) GetLatestByCarID(ctx context.Context, carID int64) (*models.Status, error) {
	s := &models.Status{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT car_id, engine_on, locked, sleep_mode,
			door_front_left_open, door_front_right_open, door_back_left_open, door_back_right_open,
			trunk_open, hood_open,
			window_front_left_open, window_front_right_open, window_back_left_open, window_back_right_open,
			tire_pressure_all_warning, tire_pressure_front_left_warning, tire_pressure_front_right_warning,
			tire_pressure_back_left_warning, tire_pressure_back_right_warning,
			air_control_on, air_temp_setpoint, defrost_on, steering_heater_on,
			back_window_heater_on, side_mirror_heater_on,
			smart_key_battery_warning, washer_fluid_warning, brake_fluid_warning, fuel_level_low_warning,
			charge_port_door_open, aux_battery_percent, data, time, id
		FROM status WHERE car_id = $1 ORDER BY time DESC LIMIT 1
	`, carID).Scan(
		&s.CarID, &s.EngineOn, &s.Locked, &s.SleepMode,
		&s.DoorFrontLeftOpen, &s.DoorFrontRightOpen, &s.DoorBackLeftOpen, &s.DoorBackRightOpen,
		&s.TrunkOpen, &s.HoodOpen,
		&s.WindowFrontLeftOpen, &s.WindowFrontRightOpen, &s.WindowBackLeftOpen, &s.WindowBackRightOpen,
		&s.TirePressureAllWarning, &s.TirePressureFrontLeftWarning, &s.TirePressureFrontRightWarning,
		&s.TirePressureBackLeftWarning, &s.TirePressureBackRightWarning,
		&s.AirControlOn, &s.AirTempSetpoint, &s.DefrostOn, &s.SteeringHeaterOn,
		&s.BackWindowHeaterOn, &s.SideMirrorHeaterOn,
		&s.SmartKeyBatteryWarning, &s.WasherFluidWarning, &s.BrakeFluidWarning, &s.FuelLevelLowWarning,
		&s.ChargePortDoorOpen, &s.AuxBatteryPercent, &s.Data, &s.Time, &s.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("get latest status: %w", err)
	}
	return s, nil
}
