package repository

import (
	"context"
	"fmt"

	"github.com/langchou/bluegazer/internal/models"
)

// LocationRepository 位置数据仓库
type LocationRepository struct {
	db *DB
}

// NewLocationRepository 创建位置仓库
func NewLocationRepository(db *DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// InsertIfAbsent 按 (car_id, time) 自然键写入位置记录。
// 已存在同键记录时不做任何事，返回 false；写入成功返回 true。
// 查重和写入在同一个事务里完成
func (r *LocationRepository) InsertIfAbsent(ctx context.Context, loc *models.Location) (bool, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin insert location: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM location WHERE car_id = $1 AND time = $2)
	`, loc.CarID, loc.Time).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check location exists: %w", err)
	}
	if exists {
		return false, nil
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO location (car_id, lat, lon, speed, heading, odo, time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, loc.CarID, loc.Latitude, loc.Longitude, loc.Speed, loc.Heading, loc.Odometer, loc.Time).Scan(&loc.ID)
	if err != nil {
		return false, fmt.Errorf("insert location: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit insert location: %w", err)
	}
	return true, nil
}

// GetLatestByCarID 获取车辆最新位置
func (r *LocationRepository) GetLatestByCarID(ctx context.Context, carID int64) (*models.Location, error) {
	loc := &models.Location{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, car_id, lat, lon, speed, heading, odo, time
		FROM location WHERE car_id = $1 ORDER BY time DESC LIMIT 1
	`, carID).Scan(&loc.ID, &loc.CarID, &loc.Latitude, &loc.Longitude, &loc.Speed, &loc.Heading, &loc.Odometer, &loc.Time)
	if err != nil {
		return nil, fmt.Errorf("get latest location: %w", err)
	}
	return loc, nil
}
