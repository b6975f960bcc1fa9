package bluelink

import (
	"encoding/json"
	"fmt"
	"time"
)

// Vehicle 车辆基础信息（车辆列表接口返回）
type Vehicle struct {
	VehicleID string `json:"vehicleId"`
	Nickname  string `json:"nickname"`
	Model     string `json:"vehicleName"`
	Type      string `json:"type"` // EV, PHEV, HEV, GN
}

// VehicleSnapshot 一辆车的规范化快照。由原始报文在解析期一次性
// 展开为显式的可空字段，缺失字段在这里处理，下游不再做动态取值
type VehicleSnapshot struct {
	VehicleID     string
	Name          string
	Model         string
	LastUpdatedAt time.Time

	Odometer       *float64 // km
	AirTemperature *float64 // 摄氏度

	Location *LocationData
	EV       *EVData
	Status   *StatusData

	DailyStats []DailyStatEntry
	DayTrips   []TripEntry

	// 原始报文原样保留
	Raw json.RawMessage
}

// LocationData GPS 定位
type LocationData struct {
	Latitude  float64
	Longitude float64
	Speed     int // km/h
	Heading   int // 度
}

// EVData 动力电池与续航
type EVData struct {
	BatteryCharging bool
	BatteryPercent  int
	DrivingRange    *int // km，报文没带 drvDistance 时为 nil
}

// StatusData 状态标志位
type StatusData struct {
	EngineOn  bool
	Locked    bool
	SleepMode bool

	DoorFrontLeftOpen  bool
	DoorFrontRightOpen bool
	DoorBackLeftOpen   bool
	DoorBackRightOpen  bool
	TrunkOpen          bool
	HoodOpen           bool

	WindowFrontLeftOpen  bool
	WindowFrontRightOpen bool
	WindowBackLeftOpen   bool
	WindowBackRightOpen  bool

	TirePressureAllWarning        bool
	TirePressureFrontLeftWarning  bool
	TirePressureFrontRightWarning bool
	TirePressureBackLeftWarning   bool
	TirePressureBackRightWarning  bool

	AirControlOn       bool
	AirTempSetpoint    *float64
	DefrostOn          bool
	SteeringHeaterOn   bool
	BackWindowHeaterOn bool
	SideMirrorHeaterOn bool

	SmartKeyBatteryWarning bool
	WasherFluidWarning     bool
	BrakeFluidWarning      bool
	FuelLevelLowWarning    bool

	ChargePortDoorOpen bool
	AuxBatteryPercent  *int
}

// DailyStatEntry 某个自然日的能耗统计
type DailyStatEntry struct {
	Date                          time.Time
	TotalConsumed                 int
	EngineConsumption             int
	ClimateConsumption            int
	OnboardElectronicsConsumption int
	BatteryCareConsumption        int
	RegeneratedEnergy             int
	Distance                      int
}

// TripEntry 日内的一段行程，TripTime 为 "HHMMSS" 格式的日内时刻
type TripEntry struct {
	TripTime  string `json:"tripTime"`
	DriveTime int    `json:"drivingTime"` // 分钟
	IdleTime  int    `json:"idleTime"`    // 分钟
	Distance  int    `json:"distance"`    // km
	AvgSpeed  int    `json:"avgSpeed"`    // km/h
	MaxSpeed  int    `json:"maxSpeed"`    // km/h
}

// AnchorTo 把日内时刻锚定到具体日期，得到完整时间戳
func (t TripEntry) AnchorTo(day time.Time) (time.Time, error) {
	clock, err := time.Parse("150405", t.TripTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse trip time %q: %w", t.TripTime, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, day.Location()), nil
}

// ---- 原始报文结构 ----

// statusPayload 状态接口的原始报文
type statusPayload struct {
	Time          string `json:"time"` // yyyyMMddHHmmss，UTC
	VehicleStatus struct {
		Engine         *bool `json:"engine"`
		DoorLock       *bool `json:"doorLock"`
		SleepModeCheck *bool `json:"sleepModeCheck"`
		HoodOpen       *bool `json:"hoodOpen"`
		TrunkOpen      *bool `json:"trunkOpen"`

		DoorOpen *struct {
			FrontLeft  int `json:"frontLeft"`
			FrontRight int `json:"frontRight"`
			BackLeft   int `json:"backLeft"`
			BackRight  int `json:"backRight"`
		} `json:"doorOpen"`

		WindowOpen *struct {
			FrontLeft  int `json:"frontLeft"`
			FrontRight int `json:"frontRight"`
			BackLeft   int `json:"backLeft"`
			BackRight  int `json:"backRight"`
		} `json:"windowOpen"`

		TirePressureLamp *struct {
			All        int `json:"tirePressureLampAll"`
			FrontLeft  int `json:"tirePressureLampFL"`
			FrontRight int `json:"tirePressureLampFR"`
			BackLeft   int `json:"tirePressureLampRL"`
			BackRight  int `json:"tirePressureLampRR"`
		} `json:"tirePressureLamp"`

		AirCtrlOn *bool `json:"airCtrlOn"`
		AirTemp   *struct {
			Value string `json:"value"` // 十六进制半度编码或十进制，按十进制处理
		} `json:"airTemp"`
		OutsideTemp *struct {
			Value float64 `json:"value"`
		} `json:"outsideTemp"`
		Defrost            *bool `json:"defrost"`
		SteerWheelHeat     *int  `json:"steerWheelHeat"`
		SideBackWindowHeat *int  `json:"sideBackWindowHeat"`

		SmartKeyBatteryWarning *bool `json:"smartKeyBatteryWarning"`
		WasherFluidStatus      *bool `json:"washerFluidStatus"`
		BreakOilStatus         *bool `json:"breakOilStatus"`
		LowFuelLight           *bool `json:"lowFuelLight"`

		Battery *struct {
			BatSoc int `json:"batSoc"` // 12V 小电瓶百分比
		} `json:"battery"`

		EVStatus *struct {
			BatteryCharge            bool `json:"batteryCharge"`
			BatteryStatus            int  `json:"batteryStatus"` // SoC 百分比
			ChargePortDoorOpenStatus int  `json:"chargePortDoorOpenStatus"`
			DrvDistance              []struct {
				RangeByFuel struct {
					EVModeRange struct {
						Value int `json:"value"`
					} `json:"evModeRange"`
				} `json:"rangeByFuel"`
			} `json:"drvDistance"`
		} `json:"evStatus"`
	} `json:"vehicleStatus"`

	VehicleLocation *struct {
		Coord struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"coord"`
		Head  int `json:"head"`
		Speed struct {
			Value int `json:"value"`
		} `json:"speed"`
	} `json:"vehicleLocation"`

	Odometer *struct {
		Value float64 `json:"value"`
	} `json:"odometer"`

	DailyStats []struct {
		Date          string `json:"date"` // yyyyMMdd
		TotalConsumed int    `json:"totalPwrCsp"`
		MotorPwrCsp   int    `json:"motorPwrCsp"`
		ClimatePwrCsp int    `json:"climatePwrCsp"`
		EDPwrCsp      int    `json:"eDPwrCsp"`
		BatteryMgPwr  int    `json:"batteryMgPwrCsp"`
		RegenPwr      int    `json:"regenPwr"`
		Distance      int    `json:"calculativeOdo"`
	} `json:"dailyStats"`
}

const (
	apiTimeLayout = "20060102150405"
	apiDayLayout  = "20060102"
)

// ParseSnapshot 把原始报文解析为规范化快照。
// 缺失的可选区块解析为 nil，不视为错误；时间戳缺失才是硬错误，
// 因为所有时序记录都以它为自然键
func ParseSnapshot(vehicle Vehicle, raw json.RawMessage) (*VehicleSnapshot, error) {
	var p statusPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode status payload: %w", err)
	}

	if p.Time == "" {
		return nil, fmt.Errorf("status payload has no timestamp")
	}
	updatedAt, err := time.Parse(apiTimeLayout, p.Time)
	if err != nil {
		return nil, fmt.Errorf("parse status timestamp %q: %w", p.Time, err)
	}

	snap := &VehicleSnapshot{
		VehicleID:     vehicle.VehicleID,
		Name:          vehicle.Nickname,
		Model:         vehicle.Model,
		LastUpdatedAt: updatedAt.UTC(),
		Raw:           raw,
	}

	if p.Odometer != nil {
		odo := p.Odometer.Value
		snap.Odometer = &odo
	}
	if p.VehicleStatus.OutsideTemp != nil {
		temp := p.VehicleStatus.OutsideTemp.Value
		snap.AirTemperature = &temp
	}

	if p.VehicleLocation != nil {
		snap.Location = &LocationData{
			Latitude:  p.VehicleLocation.Coord.Lat,
			Longitude: p.VehicleLocation.Coord.Lon,
			Speed:     p.VehicleLocation.Speed.Value,
			Heading:   p.VehicleLocation.Head,
		}
	}

	if ev := p.VehicleStatus.EVStatus; ev != nil {
		data := &EVData{
			BatteryCharging: ev.BatteryCharge,
			BatteryPercent:  ev.BatteryStatus,
		}
		if len(ev.DrvDistance) > 0 {
			rangeKm := ev.DrvDistance[0].RangeByFuel.EVModeRange.Value
			data.DrivingRange = &rangeKm
		}
		snap.EV = data
	}

	snap.Status = parseStatusData(&p)

	for _, d := range p.DailyStats {
		day, err := time.Parse(apiDayLayout, d.Date)
		if err != nil {
			continue
		}
		snap.DailyStats = append(snap.DailyStats, DailyStatEntry{
			Date:                          day.UTC(),
			TotalConsumed:                 d.TotalConsumed,
			EngineConsumption:             d.MotorPwrCsp,
			ClimateConsumption:            d.ClimatePwrCsp,
			OnboardElectronicsConsumption: d.EDPwrCsp,
			BatteryCareConsumption:        d.BatteryMgPwr,
			RegeneratedEnergy:             d.RegenPwr,
			Distance:                      d.Distance,
		})
	}

	return snap, nil
}

func parseStatusData(p *statusPayload) *StatusData {
	vs := &p.VehicleStatus
	s := &StatusData{
		EngineOn:  boolVal(vs.Engine),
		Locked:    boolVal(vs.DoorLock),
		SleepMode: boolVal(vs.SleepModeCheck),
		TrunkOpen: boolVal(vs.TrunkOpen),
		HoodOpen:  boolVal(vs.HoodOpen),

		AirControlOn:       boolVal(vs.AirCtrlOn),
		DefrostOn:          boolVal(vs.Defrost),
		SteeringHeaterOn:   vs.SteerWheelHeat != nil && *vs.SteerWheelHeat != 0,
		BackWindowHeaterOn: vs.SideBackWindowHeat != nil && *vs.SideBackWindowHeat == 1,
		SideMirrorHeaterOn: vs.SideBackWindowHeat != nil && *vs.SideBackWindowHeat == 1,

		SmartKeyBatteryWarning: boolVal(vs.SmartKeyBatteryWarning),
		WasherFluidWarning:     boolVal(vs.WasherFluidStatus),
		BrakeFluidWarning:      boolVal(vs.BreakOilStatus),
		FuelLevelLowWarning:    boolVal(vs.LowFuelLight),
	}

	if vs.DoorOpen != nil {
		s.DoorFrontLeftOpen = vs.DoorOpen.FrontLeft != 0
		s.DoorFrontRightOpen = vs.DoorOpen.FrontRight != 0
		s.DoorBackLeftOpen = vs.DoorOpen.BackLeft != 0
		s.DoorBackRightOpen = vs.DoorOpen.BackRight != 0
	}
	if vs.WindowOpen != nil {
		s.WindowFrontLeftOpen = vs.WindowOpen.FrontLeft != 0
		s.WindowFrontRightOpen = vs.WindowOpen.FrontRight != 0
		s.WindowBackLeftOpen = vs.WindowOpen.BackLeft != 0
		s.WindowBackRightOpen = vs.WindowOpen.BackRight != 0
	}
	if vs.TirePressureLamp != nil {
		s.TirePressureAllWarning = vs.TirePressureLamp.All != 0
		s.TirePressureFrontLeftWarning = vs.TirePressureLamp.FrontLeft != 0
		s.TirePressureFrontRightWarning = vs.TirePressureLamp.FrontRight != 0
		s.TirePressureBackLeftWarning = vs.TirePressureLamp.BackLeft != 0
		s.TirePressureBackRightWarning = vs.TirePressureLamp.BackRight != 0
	}
	if vs.AirTemp != nil {
		if temp, ok := parseAirTemp(vs.AirTemp.Value); ok {
			s.AirTempSetpoint = &temp
		}
	}
	if vs.Battery != nil {
		soc := vs.Battery.BatSoc
		s.AuxBatteryPercent = &soc
	}
	if ev := vs.EVStatus; ev != nil {
		s.ChargePortDoorOpen = ev.ChargePortDoorOpenStatus == 1
	}

	return s
}

// parseAirTemp 解析空调设定温度，报文里是 "22.5" 这样的字符串
func parseAirTemp(value string) (float64, bool) {
	var temp float64
	if _, err := fmt.Sscanf(value, "%f", &temp); err != nil {
		return 0, false
	}
	return temp, true
}

func boolVal(b *bool) bool {
	return b != nil && *b
}
