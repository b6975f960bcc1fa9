package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB 数据库连接池封装
type DB struct {
	Pool *pgxpool.Pool
}

// New 创建数据库连接
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// 连接池配置
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// 测试连接
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close 关闭连接池
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate 执行数据库迁移
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationCreateCar,
		migrationCreateLocation,
		migrationCreateEVBattery,
		migrationCreateEVRange,
		migrationCreateStatus,
		migrationCreateDailyStats,
		migrationCreateTrip,
	}

	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// 数据库迁移 SQL。
// 所有时序表都带 (car_id, time) 唯一约束：去重以查询为准，
// 约束只是最后一道防线
const migrationCreateCar = `
CREATE TABLE IF NOT EXISTS car (
    id BIGSERIAL PRIMARY KEY,
    api_id TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    model TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`

const migrationCreateLocation = `
CREATE TABLE IF NOT EXISTS location (
    id BIGSERIAL PRIMARY KEY,
    car_id BIGINT NOT NULL REFERENCES car(id),
    lat DOUBLE PRECISION NOT NULL,
    lon DOUBLE PRECISION NOT NULL,
    speed INT NOT NULL,
    heading INT NOT NULL,
    odo DOUBLE PRECISION,
    time TIMESTAMP WITH TIME ZONE NOT NULL,
    UNIQUE (car_id, time)
);
CREATE INDEX IF NOT EXISTS idx_location_car_id ON location(car_id);
CREATE INDEX IF NOT EXISTS idx_location_time ON location(time);
`

const migrationCreateEVBattery = `
CREATE TABLE IF NOT EXISTS ev_battery (
    id BIGSERIAL PRIMARY KEY,
    car_id BIGINT NOT NULL REFERENCES car(id),
    battery_charging BOOLEAN NOT NULL,
    battery_percent INT NOT NULL,
    time TIMESTAMP WITH TIME ZONE NOT NULL,
    UNIQUE (car_id, time)
);
CREATE INDEX IF NOT EXISTS idx_ev_battery_car_id ON ev_battery(car_id);
`

const migrationCreateEVRange = `
CREATE TABLE IF NOT EXISTS ev_range (
    id BIGSERIAL PRIMARY KEY,
    car_id BIGINT NOT NULL REFERENCES car(id),
    range INT NOT NULL,
    air_temperature DOUBLE PRECISION NOT NULL,
    time TIMESTAMP WITH TIME ZONE NOT NULL,
    UNIQUE (car_id, time)
);
CREATE INDEX IF NOT EXISTS idx_ev_range_car_id ON ev_range(car_id);
`

const migrationCreateStatus = `
CREATE TABLE IF NOT EXISTS status (
    id BIGSERIAL PRIMARY KEY,
    car_id BIGINT NOT NULL REFERENCES car(id),
    engine_on BOOLEAN NOT NULL DEFAULT false,
    locked BOOLEAN NOT NULL DEFAULT false,
    sleep_mode BOOLEAN NOT NULL DEFAULT false,
    door_front_left_open BOOLEAN NOT NULL DEFAULT false,
    door_front_right_open BOOLEAN NOT NULL DEFAULT false,
    door_back_left_open BOOLEAN NOT NULL DEFAULT false,
    door_back_right_open BOOLEAN NOT NULL DEFAULT false,
    trunk_open BOOLEAN NOT NULL DEFAULT false,
    hood_open BOOLEAN NOT NULL DEFAULT false,
    window_front_left_open BOOLEAN NOT NULL DEFAULT false,
    window_front_right_open BOOLEAN NOT NULL DEFAULT false,
    window_back_left_open BOOLEAN NOT NULL DEFAULT false,
    window_back_right_open BOOLEAN NOT NULL DEFAULT false,
    tire_pressure_all_warning BOOLEAN NOT NULL DEFAULT false,
    tire_pressure_front_left_warning BOOLEAN NOT NULL DEFAULT false,
    tire_pressure_front_right_warning BOOLEAN NOT NULL DEFAULT false,
    tire_pressure_back_left_warning BOOLEAN NOT NULL DEFAULT false,
    tire_pressure_back_right_warning BOOLEAN NOT NULL DEFAULT false,
    air_control_on BOOLEAN NOT NULL DEFAULT false,
    air_temp_setpoint DOUBLE PRECISION,
    defrost_on BOOLEAN NOT NULL DEFAULT false,
    steering_heater_on BOOLEAN NOT NULL DEFAULT false,
    back_window_heater_on BOOLEAN NOT NULL DEFAULT false,
    side_mirror_heater_on BOOLEAN NOT NULL DEFAULT false,
    smart_key_battery_warning BOOLEAN NOT NULL DEFAULT false,
    washer_fluid_warning BOOLEAN NOT NULL DEFAULT false,
    brake_fluid_warning BOOLEAN NOT NULL DEFAULT false,
    fuel_level_low_warning BOOLEAN NOT NULL DEFAULT false,
    charge_port_door_open BOOLEAN NOT NULL DEFAULT false,
    aux_battery_percent INT,
    data JSONB,
    time TIMESTAMP WITH TIME ZONE NOT NULL,
    UNIQUE (car_id, time)
);
CREATE INDEX IF NOT EXISTS idx_status_car_id ON status(car_id);
`

const migrationCreateDailyStats = `
CREATE TABLE IF NOT EXISTS daily_stats (
    id BIGSERIAL PRIMARY KEY,
    car_id BIGINT NOT NULL REFERENCES car(id),
    total_consumed INT NOT NULL,
    engine_consumption INT NOT NULL,
    climate_consumption INT NOT NULL,
    onboard_electronics_consumption INT NOT NULL,
    battery_care_consumption INT NOT NULL,
    regenerated_energy INT NOT NULL,
    distance INT NOT NULL,
    time TIMESTAMP WITH TIME ZONE NOT NULL,
    UNIQUE (car_id, time)
);
CREATE INDEX IF NOT EXISTS idx_daily_stats_car_id ON daily_stats(car_id);
`

const migrationCreateTrip = `
CREATE TABLE IF NOT EXISTS trip (
    id BIGSERIAL PRIMARY KEY,
    car_id BIGINT NOT NULL REFERENCES car(id),
    drive_time INT NOT NULL,
    idle_time INT NOT NULL,
    distance INT NOT NULL,
    avg_speed INT NOT NULL,
    max_speed INT NOT NULL,
    time TIMESTAMP WITH TIME ZONE NOT NULL,
    day TIMESTAMP WITH TIME ZONE NOT NULL,
    UNIQUE (car_id, time)
);
CREATE INDEX IF NOT EXISTS idx_trip_car_id ON trip(car_id);
CREATE INDEX IF NOT EXISTS idx_trip_day ON trip(day);
`
