package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/langchou/bluegazer/internal/api/bluelink"
)

// 车辆派生状态常量。从快照标志位推导，不落库，
// 只用于状态变迁日志和实时推送
const (
	StateParked   = "parked"
	StateDriving  = "driving"
	StateCharging = "charging"
)

// 事件常量
const (
	EventStartDriving  = "start_driving"
	EventStopDriving   = "stop_driving"
	EventStartCharging = "start_charging"
	EventStopCharging  = "stop_charging"
)

// VehicleState 车辆实时状态摘要
type VehicleState struct {
	CarID          int64     `json:"car_id"`
	CurrentState   string    `json:"state"`
	Since          time.Time `json:"since"`
	BatteryPercent int       `json:"battery_percent"`
	Charging       bool      `json:"charging"`
	RangeKm        int       `json:"range_km"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Speed          int       `json:"speed"`
	Odometer       *float64  `json:"odometer,omitempty"`
	Locked         bool      `json:"locked"`
	LastUpdatedAt  time.Time `json:"last_updated_at"`
}

// Machine 单辆车的状态机
type Machine struct {
	mu            sync.RWMutex
	carID         int64
	fsm           *fsm.FSM
	state         *VehicleState
	onStateChange func(carID int64, from, to string)
}

// NewMachine 创建状态机
func NewMachine(carID int64, onStateChange func(carID int64, from, to string)) *Machine {
	m := &Machine{
		carID:         carID,
		onStateChange: onStateChange,
		state: &VehicleState{
			CarID:        carID,
			CurrentState: StateParked,
			Since:        time.Now(),
		},
	}

	m.fsm = fsm.NewFSM(
		StateParked,
		fsm.Events{
			{Name: EventStartDriving, Src: []string{StateParked}, Dst: StateDriving},
			{Name: EventStopDriving, Src: []string{StateDriving}, Dst: StateParked},
			{Name: EventStartCharging, Src: []string{StateParked}, Dst: StateCharging},
			{Name: EventStopCharging, Src: []string{StateCharging}, Dst: StateParked},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onStateChange != nil && e.Src != e.Dst {
					m.onStateChange(m.carID, e.Src, e.Dst)
				}
			},
		},
	)

	return m
}

// CurrentState 获取当前状态
func (m *Machine) CurrentState() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Current()
}

// GetState 获取完整状态副本
func (m *Machine) GetState() *VehicleState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stateCopy := *m.state
	stateCopy.CurrentState = m.fsm.Current()
	return &stateCopy
}

// ApplySnapshot 用一份车辆快照更新状态机。
// 从标志位推导目标状态，需要变迁时触发相应事件；
// 充电和行驶互斥时行驶优先（报文偶尔会同时置位）
func (m *Machine) ApplySnapshot(snap *bluelink.VehicleSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.LastUpdatedAt = snap.LastUpdatedAt
	if snap.EV != nil {
		m.state.BatteryPercent = snap.EV.BatteryPercent
		m.state.Charging = snap.EV.BatteryCharging
		if snap.EV.DrivingRange != nil {
			m.state.RangeKm = *snap.EV.DrivingRange
		}
	}
	if snap.Location != nil {
		m.state.Latitude = snap.Location.Latitude
		m.state.Longitude = snap.Location.Longitude
		m.state.Speed = snap.Location.Speed
	}
	if snap.Odometer != nil {
		m.state.Odometer = snap.Odometer
	}
	if snap.Status != nil {
		m.state.Locked = snap.Status.Locked
	}

	target := StateParked
	switch {
	case snap.Status != nil && snap.Status.EngineOn,
		snap.Location != nil && snap.Location.Speed > 0:
		target = StateDriving
	case snap.EV != nil && snap.EV.BatteryCharging:
		target = StateCharging
	}

	return m.transitionTo(target)
}

// transitionTo 沿事件图走到目标状态，调用方持有锁
func (m *Machine) transitionTo(target string) error {
	current := m.fsm.Current()
	if current == target {
		return nil
	}

	var events []string
	switch {
	case target == StateDriving && current == StateParked:
		events = []string{EventStartDriving}
	case target == StateDriving && current == StateCharging:
		events = []string{EventStopCharging, EventStartDriving}
	case target == StateCharging && current == StateParked:
		events = []string{EventStartCharging}
	case target == StateCharging && current == StateDriving:
		events = []string{EventStopDriving, EventStartCharging}
	case target == StateParked && current == StateDriving:
		events = []string{EventStopDriving}
	case target == StateParked && current == StateCharging:
		events = []string{EventStopCharging}
	default:
		return fmt.Errorf("no transition from %s to %s", current, target)
	}

	for _, event := range events {
		if err := m.fsm.Event(context.Background(), event); err != nil {
			return fmt.Errorf("trigger event %s: %w", event, err)
		}
	}

	m.state.CurrentState = m.fsm.Current()
	m.state.Since = time.Now()
	return nil
}

// Manager 状态机管理器
type Manager struct {
	mu       sync.RWMutex
	machines map[int64]*Machine
	onChange func(carID int64, from, to string)
}

// NewManager 创建管理器
func NewManager(onChange func(carID int64, from, to string)) *Manager {
	return &Manager{
		machines: make(map[int64]*Machine),
		onChange: onChange,
	}
}

// GetOrCreate 获取或创建状态机
func (m *Manager) GetOrCreate(carID int64) *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()

	if machine, ok := m.machines[carID]; ok {
		return machine
	}

	machine := NewMachine(carID, m.onChange)
	m.machines[carID] = machine
	return machine
}

// Get 获取状态机
func (m *Manager) Get(carID int64) (*Machine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	machine, ok := m.machines[carID]
	return machine, ok
}

// GetAllStates 获取所有车辆状态
func (m *Manager) GetAllStates() map[int64]*VehicleState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[int64]*VehicleState)
	for carID, machine := range m.machines {
		states[carID] = machine.GetState()
	}
	return states
}
