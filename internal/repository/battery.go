package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/bluegazer/internal/models"
)

// EVBatteryRepository 动力电池数据仓库
type EVBatteryRepository struct {
	db *DB
}

// NewEVBatteryRepository 创建动力电池仓库
func NewEVBatteryRepository(db *DB) *EVBatteryRepository {
	return &EVBatteryRepository{db: db}
}

// InsertIfAbsent 按 (car_id, time) 自然键写入电池记录，重复键不写入
func (r *EVBatteryRepository) InsertIfAbsent(ctx context.Context, b *models.EVBattery) (bool, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin insert ev_battery: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM ev_battery WHERE car_id = $1 AND time = $2)
	`, b.CarID, b.Time).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ev_battery exists: %w", err)
	}
	if exists {
		return false, nil
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO ev_battery (car_id, battery_charging, battery_percent, time)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, b.CarID, b.BatteryCharging, b.BatteryPercent, b.Time).Scan(&b.ID)
	if err != nil {
		return false, fmt.Errorf("insert ev_battery: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit insert ev_battery: %w", err)
	}
	return true, nil
}

// ListByCarSince 获取某时刻之后的电池记录
func (r *EVBatteryRepository) ListByCarSince(ctx context.Context, carID int64, since time.Time) ([]*models.EVBattery, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, car_id, battery_charging, battery_percent, time
		FROM ev_battery WHERE car_id = $1 AND time >= $2 ORDER BY time
	`, carID, since)
	if err != nil {
		return nil, fmt.Errorf("list ev_battery: %w", err)
	}
	defer rows.Close()

	var records []*models.EVBattery
	for rows.Next() {
		b := &models.EVBattery{}
		if err := rows.Scan(&b.ID, &b.CarID, &b.BatteryCharging, &b.BatteryPercent, &b.Time); err != nil {
			return nil, fmt.Errorf("scan ev_battery: %w", err)
		}
		records = append(records, b)
	}
	return records, nil
}
