package models

import (
	"encoding/json"
	"time"
)

// Car 车辆信息。api_id 是远端账户分配的稳定标识，
// 首次发现时建档，之后只允许修正名称。
type Car struct {
	ID        int64     `json:"id" db:"id"`
	APIID     string    `json:"api_id" db:"api_id"`
	Name      string    `json:"name" db:"name"`
	Model     string    `json:"model" db:"model"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Location 位置记录
type Location struct {
	ID        int64     `json:"id" db:"id"`
	CarID     int64     `json:"car_id" db:"car_id"`
	Latitude  float64   `json:"lat" db:"lat"`
	Longitude float64   `json:"lon" db:"lon"`
	Speed     int       `json:"speed" db:"speed"`       // km/h
	Heading   int       `json:"heading" db:"heading"`   // 度
	Odometer  *float64  `json:"odo,omitempty" db:"odo"` // km
	Time      time.Time `json:"time" db:"time"`
}

// EVBattery 动力电池记录
type EVBattery struct {
	ID              int64     `json:"id" db:"id"`
	CarID           int64     `json:"car_id" db:"car_id"`
	BatteryCharging bool      `json:"battery_charging" db:"battery_charging"`
	BatteryPercent  int       `json:"battery_percent" db:"battery_percent"`
	Time            time.Time `json:"time" db:"time"`
}

// EVRange 续航记录
type EVRange struct {
	ID             int64     `json:"id" db:"id"`
	CarID          int64     `json:"car_id" db:"car_id"`
	Range          int       `json:"range" db:"range"` // km
	AirTemperature float64   `json:"air_temperature" db:"air_temperature"`
	Time           time.Time `json:"time" db:"time"`
}

// Status 车辆状态快照（门窗/锁/胎压告警/空调等约 30 个标志位），
// data 字段保留完整原始报文，便于后续补充解析
type Status struct {
	ID    int64 `json:"id" db:"id"`
	CarID int64 `json:"car_id" db:"car_id"`

	EngineOn  bool `json:"engine_on" db:"engine_on"`
	Locked    bool `json:"locked" db:"locked"`
	SleepMode bool `json:"sleep_mode" db:"sleep_mode"`

	// 车门
	DoorFrontLeftOpen  bool `json:"door_front_left_open" db:"door_front_left_open"`
	DoorFrontRightOpen bool `json:"door_front_right_open" db:"door_front_right_open"`
	DoorBackLeftOpen   bool `json:"door_back_left_open" db:"door_back_left_open"`
	DoorBackRightOpen  bool `json:"door_back_right_open" db:"door_back_right_open"`
	TrunkOpen          bool `json:"trunk_open" db:"trunk_open"`
	HoodOpen           bool `json:"hood_open" db:"hood_open"`

	// 车窗
	WindowFrontLeftOpen  bool `json:"window_front_left_open" db:"window_front_left_open"`
	WindowFrontRightOpen bool `json:"window_front_right_open" db:"window_front_right_open"`
	WindowBackLeftOpen   bool `json:"window_back_left_open" db:"window_back_left_open"`
	WindowBackRightOpen  bool `json:"window_back_right_open" db:"window_back_right_open"`

	// 胎压告警
	TirePressureAllWarning        bool `json:"tire_pressure_all_warning" db:"tire_pressure_all_warning"`
	TirePressureFrontLeftWarning  bool `json:"tire_pressure_front_left_warning" db:"tire_pressure_front_left_warning"`
	TirePressureFrontRightWarning bool `json:"tire_pressure_front_right_warning" db:"tire_pressure_front_right_warning"`
	TirePressureBackLeftWarning   bool `json:"tire_pressure_back_left_warning" db:"tire_pressure_back_left_warning"`
	TirePressureBackRightWarning  bool `json:"tire_pressure_back_right_warning" db:"tire_pressure_back_right_warning"`

	// 空调
	AirControlOn       bool     `json:"air_control_on" db:"air_control_on"`
	AirTempSetpoint    *float64 `json:"air_temp_setpoint,omitempty" db:"air_temp_setpoint"` // 摄氏度
	DefrostOn          bool     `json:"defrost_on" db:"defrost_on"`
	SteeringHeaterOn   bool     `json:"steering_heater_on" db:"steering_heater_on"`
	BackWindowHeaterOn bool     `json:"back_window_heater_on" db:"back_window_heater_on"`
	SideMirrorHeaterOn bool     `json:"side_mirror_heater_on" db:"side_mirror_heater_on"`

	// 其他告警
	SmartKeyBatteryWarning bool `json:"smart_key_battery_warning" db:"smart_key_battery_warning"`
	WasherFluidWarning     bool `json:"washer_fluid_warning" db:"washer_fluid_warning"`
	BrakeFluidWarning      bool `json:"brake_fluid_warning" db:"brake_fluid_warning"`
	FuelLevelLowWarning    bool `json:"fuel_level_low_warning" db:"fuel_level_low_warning"`

	// 充电口与小电瓶
	ChargePortDoorOpen bool `json:"charge_port_door_open" db:"charge_port_door_open"`
	AuxBatteryPercent  *int `json:"aux_battery_percent,omitempty" db:"aux_battery_percent"`

	// 完整原始报文
	Data json.RawMessage `json:"data,omitempty" db:"data"`

	Time time.Time `json:"time" db:"time"`
}

// DailyStat 按自然日的能耗统计。与其他时序记录不同，
// 远端账户会在当天内持续修正累计值，因此同一天的行允许被覆盖
type DailyStat struct {
	ID                            int64     `json:"id" db:"id"`
	CarID                         int64     `json:"car_id" db:"car_id"`
	TotalConsumed                 int       `json:"total_consumed" db:"total_consumed"` // Wh
	EngineConsumption             int       `json:"engine_consumption" db:"engine_consumption"`
	ClimateConsumption            int       `json:"climate_consumption" db:"climate_consumption"`
	OnboardElectronicsConsumption int       `json:"onboard_electronics_consumption" db:"onboard_electronics_consumption"`
	BatteryCareConsumption        int       `json:"battery_care_consumption" db:"battery_care_consumption"`
	RegeneratedEnergy             int       `json:"regenerated_energy" db:"regenerated_energy"`
	Distance                      int       `json:"distance" db:"distance"` // km
	Time                          time.Time `json:"time" db:"time"`         // 自然日
}

// TripSegment 某个历史日内的一段行程
type TripSegment struct {
	ID        int64     `json:"id" db:"id"`
	CarID     int64     `json:"car_id" db:"car_id"`
	DriveTime int       `json:"drive_time" db:"drive_time"` // 分钟
	IdleTime  int       `json:"idle_time" db:"idle_time"`   // 分钟
	Distance  int       `json:"distance" db:"distance"`     // km
	AvgSpeed  int       `json:"avg_speed" db:"avg_speed"`   // km/h
	MaxSpeed  int       `json:"max_speed" db:"max_speed"`   // km/h
	Time      time.Time `json:"time" db:"time"`             // 段起始时刻
	Day       time.Time `json:"day" db:"day"`               // 所属自然日
}
