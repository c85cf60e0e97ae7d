package device

import (
	"time"

	fx "github.com/robotalks/stepresp/pkg/framework"
	"github.com/robotalks/stepresp/pkg/share"
)

// State is the state of a ControlTask.
type State int

// States of a ControlTask.
const (
	StateRunning State = iota
	StateHeld
)

func (s State) String() string {
	if s == StateHeld {
		return "held"
	}
	return "running"
}

// Sample is one telemetry entry.
type Sample struct {
	// ElapsedMs is the time since the run started.
	ElapsedMs int64
	Value     int64
}

// MotorShares are the parameter cells and telemetry queue of a motor.
type MotorShares struct {
	Gain     *share.Float
	Setpoint *share.Int
	Samples  *share.Queue[Sample]
}

// ControlTask runs closed loop control of one motor. While the reset
// flag is asserted it holds the actuator at zero.
type ControlTask struct {
	Name          string
	Actuator      Actuator
	Sensor        Sensor
	Shares        MotorShares
	PeriodMs      *share.Int
	Reset         *share.Flag
	NewController ControllerFactory

	state   State
	ctl     Controller
	epoch   time.Time
	started bool
}

// NewControlTask creates a running task with a controller built from
// the current shares.
func NewControlTask(name string, act Actuator, sensor Sensor, shares MotorShares, period *share.Int, reset *share.Flag, factory ControllerFactory) *ControlTask {
	if factory == nil {
		factory = NewProportional
	}
	t := &ControlTask{
		Name:          name,
		Actuator:      act,
		Sensor:        sensor,
		Shares:        shares,
		PeriodMs:      period,
		Reset:         reset,
		NewController: factory,
	}
	t.ctl = t.freshController()
	return t
}

func (t *ControlTask) freshController() Controller {
	return t.NewController(t.Shares.Gain.Get(), t.Shares.Setpoint.Get())
}

// State returns the current state.
func (t *ControlTask) State() State { return t.state }

// Period implements fx.Periodic.
func (t *ControlTask) Period() time.Duration {
	if ms := t.PeriodMs.Get(); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return 0
}

// StartRun restarts the elapsed time of samples.
func (t *ControlTask) StartRun(now time.Time) {
	t.epoch, t.started = now, true
}

// Control implements fx.Controller.
func (t *ControlTask) Control(cc fx.ControlContext) error {
	now := cc.Time()
	if !t.started {
		t.StartRun(now)
	}
	reset := t.Reset.Get()
	switch t.state {
	case StateRunning:
		if reset {
			t.state = StateHeld
			t.Actuator.SetDutyCycle(0)
			t.Sensor.Zero()
			return nil
		}
	case StateHeld:
		if reset {
			t.Actuator.SetDutyCycle(0)
			return nil
		}
		t.state = StateRunning
		t.Sensor.Zero()
		t.ctl = t.freshController()
		t.StartRun(now)
	}

	setpoint := t.Shares.Setpoint.Get()
	t.ctl.SetGain(t.Shares.Gain.Get())
	t.ctl.SetSetpoint(setpoint)
	// the encoder is mounted inverted.
	measured := -t.Sensor.Read()
	t.Actuator.SetDutyCycle(t.ctl.Compute(setpoint, measured))
	// a full non-overwriting queue drops the sample.
	t.Shares.Samples.Put(Sample{ElapsedMs: now.Sub(t.epoch).Milliseconds(), Value: measured})
	return nil
}
