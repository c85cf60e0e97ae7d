package sim

import (
	"math"
	"sync"
	"time"

	fx "github.com/robotalks/stepresp/pkg/framework"
)

// MaxDuty is the saturation of the duty cycle in percent.
const MaxDuty = 100.0

// MotorConfig describes a DC motor with first order velocity response.
type MotorConfig struct {
	// MaxSpeed is the steady state speed in encoder counts per second
	// at full duty.
	MaxSpeed float64 `yaml:"max-speed"`
	// TimeConstant is the mechanical time constant.
	TimeConstant time.Duration `yaml:"time-constant"`
	// Deadband is the duty magnitude below which the motor does not turn.
	Deadband float64 `yaml:"deadband"`
}

// DefaultMotorConfig resembles a small geared hobby motor with a
// quadrature encoder.
func DefaultMotorConfig() MotorConfig {
	return MotorConfig{
		MaxSpeed:     40000,
		TimeConstant: 50 * time.Millisecond,
	}
}

// Motor is a simulated DC motor. It is advanced explicitly with the
// time of each scheduler pass.
type Motor struct {
	Name   string
	Config MotorConfig

	lock     sync.Mutex
	duty     float64
	position float64
	velocity float64
	last     time.Time
}

// NewMotor creates a motor at rest.
func NewMotor(name string, cfg MotorConfig) *Motor {
	return &Motor{Name: name, Config: cfg}
}

// SetDutyCycle sets the duty in percent, saturated to ±MaxDuty.
func (m *Motor) SetDutyCycle(duty float64) {
	if math.IsNaN(duty) {
		duty = 0
	}
	duty = math.Max(-MaxDuty, math.Min(MaxDuty, duty))
	m.lock.Lock()
	m.duty = duty
	m.lock.Unlock()
}

// DutyCycle returns the duty currently applied.
func (m *Motor) DutyCycle() float64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.duty
}

// Position returns the shaft position in encoder counts.
func (m *Motor) Position() float64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.position
}

// Velocity returns the shaft speed in counts per second.
func (m *Motor) Velocity() float64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.velocity
}

// Advance integrates the motion up to now with the current duty.
func (m *Motor) Advance(now time.Time) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.last.IsZero() || !now.After(m.last) {
		if m.last.IsZero() {
			m.last = now
		}
		return
	}
	dt := now.Sub(m.last).Seconds()
	m.last = now

	target := 0.0
	if math.Abs(m.duty) > m.Config.Deadband {
		target = m.duty / MaxDuty * m.Config.MaxSpeed
	}
	tau := m.Config.TimeConstant.Seconds()
	if tau <= 0 {
		m.position += target * dt
		m.velocity = target
		return
	}
	// exact solution of dv/dt = (target - v) / tau over dt.
	decay := math.Exp(-dt / tau)
	m.position += target*dt + (m.velocity-target)*tau*(1-decay)
	m.velocity = target + (m.velocity-target)*decay
}

// AddToLoop implements LoopAdder.
func (m *Motor) AddToLoop(l *fx.Loop) {
	l.Register(m.Name+"-plant", fx.PrLvTop, 0, fx.ControlFunc(m.Execute))
}

// Execute is a controller advancing the plant.
func (m *Motor) Execute(cc fx.ControlContext) error {
	m.Advance(cc.Time())
	return nil
}

// Encoder reads a Motor like a quadrature encoder. An inverted encoder
// counts down when the motor turns forward.
type Encoder struct {
	Motor    *Motor
	Inverted bool

	lock   sync.Mutex
	offset int64
}

// NewEncoder creates an encoder mounted on m.
func NewEncoder(m *Motor, inverted bool) *Encoder {
	return &Encoder{Motor: m, Inverted: inverted}
}

func (e *Encoder) raw() int64 {
	v := int64(math.Round(e.Motor.Position()))
	if e.Inverted {
		v = -v
	}
	return v
}

// Read returns the count accumulated since the last Zero.
func (e *Encoder) Read() int64 {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.raw() - e.offset
}

// Zero resets the accumulated count.
func (e *Encoder) Zero() {
	e.lock.Lock()
	e.offset = e.raw()
	e.lock.Unlock()
}
