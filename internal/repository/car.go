package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/bluegazer/internal/models"
)

// CarRepository 车辆数据仓库
type CarRepository struct {
	db *DB
}

// NewCarRepository 创建车辆仓库
func NewCarRepository(db *DB) *CarRepository {
	return &CarRepository{db: db}
}

// Resolve 按远端 api_id 解析车辆档案，返回内部 id。
// 不存在时建档；存在但名称变化时就地更新名称，
// api_id 和车型一经建档不再改动。每个采集周期都会调用
func (r *CarRepository) Resolve(ctx context.Context, apiID, name, model string) (int64, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin resolve car: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	var storedName string
	err = tx.QueryRow(ctx, `SELECT id, name FROM car WHERE api_id = $1`, apiID).Scan(&id, &storedName)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		now := time.Now()
		err = tx.QueryRow(ctx, `
			INSERT INTO car (api_id, name, model, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			RETURNING id
		`, apiID, name, model, now).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("insert car: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("query car by api_id: %w", err)
	default:
		if storedName != name {
			if _, err := tx.Exec(ctx, `
				UPDATE car SET name = $1, updated_at = $2 WHERE id = $3
			`, name, time.Now(), id); err != nil {
				return 0, fmt.Errorf("update car name: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit resolve car: %w", err)
	}
	return id, nil
}

// GetByID 通过 ID 获取车辆
func (r *CarRepository) GetByID(ctx context.Context, id int64) (*models.Car, error) {
	car := &models.Car{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, api_id, name, model, created_at, updated_at
		FROM car WHERE id = $1
	`, id).Scan(&car.ID, &car.APIID, &car.Name, &car.Model, &car.CreatedAt, &car.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get car by id: %w", err)
	}
	return car, nil
}

// List 获取所有车辆
func (r *CarRepository) List(ctx context.Context) ([]*models.Car, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, api_id, name, model, created_at, updated_at
		FROM car ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list cars: %w", err)
	}
	defer rows.Close()

	var cars []*models.Car
	for rows.Next() {
		car := &models.Car{}
		if err := rows.Scan(&car.ID, &car.APIID, &car.Name, &car.Model, &car.CreatedAt, &car.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan car: %w", err)
		}
		cars = append(cars, car)
	}

	return cars, nil
}
