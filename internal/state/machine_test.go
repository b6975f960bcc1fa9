package state

import (
	"testing"
	"time"

	"github.com/langchou/bluegazer/internal/api/bluelink"
)

func snapWith(engineOn bool, speed int, charging bool) *bluelink.VehicleSnapshot {
	rangeKm := 300
	return &bluelink.VehicleSnapshot{
		VehicleID:     "ext-123",
		LastUpdatedAt: time.Now(),
		Location:      &bluelink.LocationData{Speed: speed},
		EV:            &bluelink.EVData{BatteryCharging: charging, BatteryPercent: 80, DrivingRange: &rangeKm},
		Status:        &bluelink.StatusData{EngineOn: engineOn, Locked: true},
	}
}

func TestMachineTransitions(t *testing.T) {
	var changes [][2]string
	m := NewMachine(7, func(carID int64, from, to string) {
		changes = append(changes, [2]string{from, to})
	})

	if m.CurrentState() != StateParked {
		t.Fatalf("initial state = %s", m.CurrentState())
	}

	if err := m.ApplySnapshot(snapWith(true, 40, false)); err != nil {
		t.Fatal(err)
	}
	if m.CurrentState() != StateDriving {
		t.Errorf("state = %s, want driving", m.CurrentState())
	}

	if err := m.ApplySnapshot(snapWith(false, 0, true)); err != nil {
		t.Fatal(err)
	}
	if m.CurrentState() != StateCharging {
		t.Errorf("state = %s, want charging", m.CurrentState())
	}

	if err := m.ApplySnapshot(snapWith(false, 0, false)); err != nil {
		t.Fatal(err)
	}
	if m.CurrentState() != StateParked {
		t.Errorf("state = %s, want parked", m.CurrentState())
	}

	// 行驶 -> 充电经过中间的停驶事件
	want := [][2]string{
		{StateParked, StateDriving},
		{StateDriving, StateParked},
		{StateParked, StateCharging},
		{StateCharging, StateParked},
	}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change[%d] = %v, want %v", i, changes[i], want[i])
		}
	}
}

func TestDrivingWinsOverCharging(t *testing.T) {
	m := NewMachine(7, nil)

	// 报文同时置位充电与行驶时以行驶为准
	snap := snapWith(true, 30, true)
	if err := m.ApplySnapshot(snap); err != nil {
		t.Fatal(err)
	}
	if m.CurrentState() != StateDriving {
		t.Errorf("state = %s, want driving", m.CurrentState())
	}
}

func TestApplySnapshotUpdatesSummary(t *testing.T) {
	m := NewMachine(7, nil)
	odo := 12345.6
	snap := snapWith(false, 0, false)
	snap.Location.Latitude = 37.0
	snap.Location.Longitude = -122.0
	snap.Odometer = &odo

	if err := m.ApplySnapshot(snap); err != nil {
		t.Fatal(err)
	}

	s := m.GetState()
	if s.CarID != 7 || s.CurrentState != StateParked {
		t.Errorf("unexpected summary: %+v", s)
	}
	if s.BatteryPercent != 80 || s.RangeKm != 300 || !s.Locked {
		t.Errorf("summary fields not applied: %+v", s)
	}
	if s.Latitude != 37.0 || s.Longitude != -122.0 {
		t.Errorf("location not applied: %+v", s)
	}
	if s.Odometer == nil || *s.Odometer != 12345.6 {
		t.Errorf("odometer not applied: %v", s.Odometer)
	}
}

func TestManager(t *testing.T) {
	mgr := NewManager(nil)

	if _, ok := mgr.Get(1); ok {
		t.Error("unknown car must not be found")
	}

	m1 := mgr.GetOrCreate(1)
	if m2 := mgr.GetOrCreate(1); m2 != m1 {
		t.Error("GetOrCreate must reuse existing machines")
	}
	mgr.GetOrCreate(2)

	states := mgr.GetAllStates()
	if len(states) != 2 {
		t.Fatalf("expected 2 states, got %d", len(states))
	}
	if states[1].CurrentState != StateParked {
		t.Errorf("state = %s, want parked", states[1].CurrentState)
	}
}
