package bluelink

import (
	"encoding/json"
	"testing"
	"time"
)

var sampleVehicle = Vehicle{VehicleID: "ext-123", Nickname: "My EV", Model: "Ioniq5", Type: "EV"}

const samplePayload = `{
	"time": "20240101083000",
	"vehicleStatus": {
		"engine": false,
		"doorLock": true,
		"sleepModeCheck": true,
		"doorOpen": {"frontLeft": 0, "frontRight": 0, "backLeft": 0, "backRight": 1},
		"windowOpen": {"frontLeft": 0, "frontRight": 0, "backLeft": 0, "backRight": 0},
		"tirePressureLamp": {"tirePressureLampAll": 0},
		"airCtrlOn": false,
		"airTemp": {"value": "22.5"},
		"outsideTemp": {"value": 4.5},
		"battery": {"batSoc": 87},
		"evStatus": {
			"batteryCharge": true,
			"batteryStatus": 80,
			"chargePortDoorOpenStatus": 1,
			"drvDistance": [
				{"rangeByFuel": {"evModeRange": {"value": 300}}}
			]
		}
	},
	"vehicleLocation": {
		"coord": {"lat": 37.0, "lon": -122.0},
		"head": 90,
		"speed": {"value": 0}
	},
	"odometer": {"value": 12345.6},
	"dailyStats": [
		{"date": "20231231", "totalPwrCsp": 1200, "motorPwrCsp": 900, "climatePwrCsp": 150,
		 "eDPwrCsp": 100, "batteryMgPwrCsp": 50, "regenPwr": 200, "calculativeOdo": 40}
	]
}`

func TestParseSnapshot(t *testing.T) {
	snap, err := ParseSnapshot(sampleVehicle, json.RawMessage(samplePayload))
	if err != nil {
		t.Fatal(err)
	}

	if snap.VehicleID != "ext-123" || snap.Name != "My EV" || snap.Model != "Ioniq5" {
		t.Errorf("vehicle identity not carried: %+v", snap)
	}
	want := time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC)
	if !snap.LastUpdatedAt.Equal(want) {
		t.Errorf("LastUpdatedAt = %v, want %v", snap.LastUpdatedAt, want)
	}

	if snap.Odometer == nil || *snap.Odometer != 12345.6 {
		t.Errorf("odometer = %v", snap.Odometer)
	}
	if snap.AirTemperature == nil || *snap.AirTemperature != 4.5 {
		t.Errorf("air temperature = %v", snap.AirTemperature)
	}

	if snap.Location == nil {
		t.Fatal("location block missing")
	}
	if snap.Location.Latitude != 37.0 || snap.Location.Longitude != -122.0 || snap.Location.Heading != 90 {
		t.Errorf("unexpected location: %+v", snap.Location)
	}

	if snap.EV == nil {
		t.Fatal("EV block missing")
	}
	if !snap.EV.BatteryCharging || snap.EV.BatteryPercent != 80 {
		t.Errorf("unexpected EV data: %+v", snap.EV)
	}
	if snap.EV.DrivingRange == nil || *snap.EV.DrivingRange != 300 {
		t.Errorf("driving range = %v, want 300", snap.EV.DrivingRange)
	}

	s := snap.Status
	if s == nil {
		t.Fatal("status block missing")
	}
	if s.EngineOn || !s.Locked || !s.SleepMode {
		t.Errorf("unexpected flags: %+v", s)
	}
	if !s.DoorBackRightOpen || s.DoorFrontLeftOpen {
		t.Errorf("door flags wrong: %+v", s)
	}
	if s.AirTempSetpoint == nil || *s.AirTempSetpoint != 22.5 {
		t.Errorf("air temp setpoint = %v", s.AirTempSetpoint)
	}
	if s.AuxBatteryPercent == nil || *s.AuxBatteryPercent != 87 {
		t.Errorf("aux battery = %v", s.AuxBatteryPercent)
	}
	if !s.ChargePortDoorOpen {
		t.Error("charge port door flag wrong")
	}

	if len(snap.DailyStats) != 1 {
		t.Fatalf("expected 1 daily stat, got %d", len(snap.DailyStats))
	}
	d := snap.DailyStats[0]
	if !d.Date.Equal(time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("stat date = %v", d.Date)
	}
	if d.TotalConsumed != 1200 || d.EngineConsumption != 900 || d.ClimateConsumption != 150 ||
		d.OnboardElectronicsConsumption != 100 || d.BatteryCareConsumption != 50 ||
		d.RegeneratedEnergy != 200 || d.Distance != 40 {
		t.Errorf("unexpected stat: %+v", d)
	}

	if string(snap.Raw) != samplePayload {
		t.Error("raw payload must be kept verbatim")
	}
}

func TestParseSnapshotMinimal(t *testing.T) {
	raw := json.RawMessage(`{"time": "20240101083000", "vehicleStatus": {}}`)
	snap, err := ParseSnapshot(sampleVehicle, raw)
	if err != nil {
		t.Fatal(err)
	}

	if snap.Location != nil || snap.EV != nil {
		t.Error("absent optional blocks must parse to nil")
	}
	if snap.Odometer != nil || snap.AirTemperature != nil {
		t.Error("absent scalar fields must parse to nil")
	}
	if len(snap.DailyStats) != 0 {
		t.Errorf("expected no daily stats, got %d", len(snap.DailyStats))
	}
	// 标志位全部缺省为 false
	if snap.Status == nil || snap.Status.Locked || snap.Status.EngineOn {
		t.Errorf("unexpected status: %+v", snap.Status)
	}
}

func TestParseSnapshotEVWithoutDrvDistance(t *testing.T) {
	raw := json.RawMessage(`{
		"time": "20240101083000",
		"vehicleStatus": {
			"evStatus": {"batteryCharge": false, "batteryStatus": 55}
		}
	}`)
	snap, err := ParseSnapshot(sampleVehicle, raw)
	if err != nil {
		t.Fatal(err)
	}
	if snap.EV == nil || snap.EV.BatteryPercent != 55 {
		t.Fatalf("unexpected EV data: %+v", snap.EV)
	}
	// 没带 drvDistance 时续航必须是缺失而不是 0
	if snap.EV.DrivingRange != nil {
		t.Errorf("driving range = %v, want nil", snap.EV.DrivingRange)
	}
}

func TestParseSnapshotMissingTimestamp(t *testing.T) {
	if _, err := ParseSnapshot(sampleVehicle, json.RawMessage(`{"vehicleStatus": {}}`)); err == nil {
		t.Error("missing timestamp must be a hard error")
	}
	if _, err := ParseSnapshot(sampleVehicle, json.RawMessage(`{"time": "notatime"}`)); err == nil {
		t.Error("unparsable timestamp must be a hard error")
	}
	if _, err := ParseSnapshot(sampleVehicle, json.RawMessage(`{`)); err == nil {
		t.Error("malformed JSON must be a hard error")
	}
}

func TestParseSnapshotSkipsBadDailyStatDates(t *testing.T) {
	raw := json.RawMessage(`{
		"time": "20240101083000",
		"vehicleStatus": {},
		"dailyStats": [
			{"date": "oops", "totalPwrCsp": 1},
			{"date": "20231230", "totalPwrCsp": 2}
		]
	}`)
	snap, err := ParseSnapshot(sampleVehicle, raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.DailyStats) != 1 || snap.DailyStats[0].TotalConsumed != 2 {
		t.Errorf("bad stat dates must be skipped: %+v", snap.DailyStats)
	}
}

func TestTripEntryAnchorTo(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	at, err := TripEntry{TripTime: "143005"}.AnchorTo(day)
	if err != nil {
		t.Fatal(err)
	}
	if !at.Equal(time.Date(2024, 1, 1, 14, 30, 5, 0, time.UTC)) {
		t.Errorf("anchored time = %v", at)
	}

	if _, err := (TripEntry{TripTime: "2430"}).AnchorTo(day); err == nil {
		t.Error("malformed trip time must error")
	}
}

func TestTokenIsExpired(t *testing.T) {
	tok := &Token{AccessToken: "x", ExpiresIn: 3600, CreatedAt: time.Now()}
	if tok.IsExpired() {
		t.Error("token valid for an hour must not be expired")
	}
	// 提前量内视为过期，避免用临期令牌发请求
	tok.CreatedAt = time.Now().Add(-58 * time.Minute)
	if !tok.IsExpired() {
		t.Error("token inside the early-renewal window must count as expired")
	}
}
