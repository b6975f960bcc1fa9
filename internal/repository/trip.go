package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/bluegazer/internal/models"
)

// TripRepository 行程段数据仓库
type TripRepository struct {
	db *DB
}

// NewTripRepository 创建行程仓库
func NewTripRepository(db *DB) *TripRepository {
	return &TripRepository{db: db}
}

// InsertIfAbsent 按 (car_id, time) 自然键写入行程段，重复键不写入
func (r *TripRepository) InsertIfAbsent(ctx context.Context, t *models.TripSegment) (bool, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin insert trip: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM trip WHERE car_id = $1 AND time = $2)
	`, t.CarID, t.Time).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check trip exists: %w", err)
	}
	if exists {
		return false, nil
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO trip (car_id, drive_time, idle_time, distance, avg_speed, max_speed, time, day)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, t.CarID, t.DriveTime, t.IdleTime, t.Distance, t.AvgSpeed, t.MaxSpeed, t.Time, t.Day).Scan(&t.ID)
	if err != nil {
		return false, fmt.Errorf("insert trip: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit insert trip: %w", err)
	}
	return true, nil
}

// HasSegmentsForDay 检查某车某日是否已有行程段记录。
// 回填任务用它判断该日是否已经补齐
func (r *TripRepository) HasSegmentsForDay(ctx context.Context, carID int64, day time.Time) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM trip WHERE car_id = $1 AND day = $2)
	`, carID, day).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check trips for day: %w", err)
	}
	return exists, nil
}

// ListByCarDay 获取某车某日的全部行程段
func (r *TripRepository) ListByCarDay(ctx context.Context, carID int64, day time.Time) ([]*models.TripSegment, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, car_id, drive_time, idle_time, distance, avg_speed, max_speed, time, day
		FROM trip WHERE car_id = $1 AND day = $2 ORDER BY time
	`, carID, day)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	var trips []*models.TripSegment
	for rows.Next() {
		t := &models.TripSegment{}
		if err := rows.Scan(&t.ID, &t.CarID, &t.DriveTime, &t.IdleTime, &t.Distance,
			&t.AvgSpeed, &t.MaxSpeed, &t.Time, &t.Day); err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		trips = append(trips, t)
	}
	return trips, nil
}
