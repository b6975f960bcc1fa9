package repository

import (
	"context"
	"fmt"

	"github.com/langchou/bluegazer/internal/models"
)

// DailyStatRepository 日能耗统计仓库
type DailyStatRepository struct {
	db *DB
}

// NewDailyStatRepository 创建日能耗统计仓库
func NewDailyStatRepository(db *DB) *DailyStatRepository {
	return &DailyStatRepository{db: db}
}

// Upsert 按 (car_id, time) 写入或覆盖某日的能耗统计。
// 远端账户当天内会持续修正累计值，所以所有数值列无条件覆盖
func (r *DailyStatRepository) Upsert(ctx context.Context, stat *models.DailyStat) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO daily_stats (
			car_id, total_consumed, engine_consumption, climate_consumption,
			onboard_electronics_consumption, battery_care_consumption,
			regenerated_energy, distance, time
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (car_id, time) DO UPDATE SET
			total_consumed = EXCLUDED.total_consumed,
			engine_consumption = EXCLUDED.engine_consumption,
			climate_consumption = EXCLUDED.climate_consumption,
			onboard_electronics_consumption = EXCLUDED.onboard_electronics_consumption,
			battery_care_consumption = EXCLUDED.battery_care_consumption,
			regenerated_energy = EXCLUDED.regenerated_energy,
			distance = EXCLUDED.distance
		RETURNING id
	`,
		stat.CarID, stat.TotalConsumed, stat.EngineConsumption, stat.ClimateConsumption,
		stat.OnboardElectronicsConsumption, stat.BatteryCareConsumption,
		stat.RegeneratedEnergy, stat.Distance, stat.Time,
	).Scan(&stat.ID)
	if err != nil {
		return fmt.Errorf("upsert daily stat: %w", err)
	}
	return nil
}

// ListByCar 获取车辆的全部日能耗统计，按日期排序
func (r *DailyStatRepository) ListByCar(ctx context.Context, carID int64) ([]*models.DailyStat, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, car_id, total_consumed, engine_consumption, climate_consumption,
			onboard_electronics_consumption, battery_care_consumption,
			regenerated_energy, distance, time
		FROM daily_stats WHERE car_id = $1 ORDER BY time
	`, carID)
	if err != nil {
		return nil, fmt.Errorf("list daily stats: %w", err)
	}
	defer rows.Close()

	var stats []*models.DailyStat
	for rows.Next() {
		stat := &models.DailyStat{}
		if err := rows.Scan(
			&stat.ID, &stat.CarID, &stat.TotalConsumed, &stat.EngineConsumption,
			&stat.ClimateConsumption, &stat.OnboardElectronicsConsumption,
			&stat.BatteryCareConsumption, &stat.RegeneratedEnergy, &stat.Distance, &stat.Time,
		); err != nil {
			return nil, fmt.Errorf("scan daily stat: %w", err)
		}
		stats = append(stats, stat)
	}
	return stats, nil
}
