package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/bluegazer/internal/models"
)

// EVRangeRepository 续航数据仓库
type EVRangeRepository struct {
	db *DB
}

// NewEVRangeRepository 创建续航仓库
func NewEVRangeRepository(db *DB) *EVRangeRepository {
	return &EVRangeRepository{db: db}
}

// InsertIfAbsent 按 (car_id, time) 自然键写入续航记录，重复键不写入
func (r *EVRangeRepository) InsertIfAbsent(ctx context.Context, rec *models.EVRange) (bool, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin insert ev_range: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM ev_range WHERE car_id = $1 AND time = $2)
	`, rec.CarID, rec.Time).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ev_range exists: %w", err)
	}
	if exists {
		return false, nil
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO ev_range (car_id, range, air_temperature, time)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, rec.CarID, rec.Range, rec.AirTemperature, rec.Time).Scan(&rec.ID)
	if err != nil {
		return false, fmt.Errorf("insert ev_range: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit insert ev_range: %w", err)
	}
	return true, nil
}

// ListByCarSince 获取某时刻之后的续航记录
func (r *EVRangeRepository) ListByCarSince(ctx context.Context, carID int64, since time.Time) ([]*models.EVRange, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, car_id, range, air_temperature, time
		FROM ev_range WHERE car_id = $1 AND time >= $2 ORDER BY time
	`, carID, since)
	if err != nil {
		return nil, fmt.Errorf("list ev_range: %w", err)
	}
	defer rows.Close()

	var records []*models.EVRange
	for rows.Next() {
		rec := &models.EVRange{}
		if err := rows.Scan(&rec.ID, &rec.CarID, &rec.Range, &rec.AirTemperature, &rec.Time); err != nil {
			return nil, fmt.Errorf("scan ev_range: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
