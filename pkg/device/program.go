package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	fx "github.com/robotalks/stepresp/pkg/framework"
	"github.com/robotalks/stepresp/pkg/l0/comm"
	"github.com/robotalks/stepresp/pkg/share"
)

// Config configures the resident program.
type Config struct {
	MotorCount     int           `yaml:"motor-count"`
	ResetBarrier   bool          `yaml:"reset-barrier"`
	RunDuration    time.Duration `yaml:"run-duration"`
	SettleDuration time.Duration `yaml:"settle-duration"`
	Period         time.Duration `yaml:"period"`
	QueueCapacity  int           `yaml:"queue-capacity"`
	Overwrite      bool          `yaml:"overwrite"`
	LinesPerTick   int           `yaml:"lines-per-tick"`
	TimeColumn     bool          `yaml:"time-column"`
	Interval       time.Duration `yaml:"interval"`
	InputBacklog   int           `yaml:"input-backlog"`
}

// DefaultConfig returns the configuration of a two motor board.
func DefaultConfig() Config {
	return Config{
		MotorCount:     2,
		ResetBarrier:   true,
		RunDuration:    time.Second,
		SettleDuration: 500 * time.Millisecond,
		Period:         10 * time.Millisecond,
		QueueCapacity:  1000,
		LinesPerTick:   8,
		Interval:       fx.DefaultInterval,
		InputBacklog:   64,
	}
}

// Motor is the hardware of one motor.
type Motor struct {
	Actuator Actuator
	Sensor   Sensor
	// Plant is registered in every program loop when set, e.g. a
	// simulated motor.
	Plant fx.LoopAdder
}

// Program is one boot of the resident program.
type Program struct {
	Config    Config
	Loop      *fx.Loop
	Registry  share.Registry
	Responder *Responder
	Tasks     []*ControlTask
	Reset     *share.Flag
	PeriodMs  *share.Int

	input chan string
}

// ErrNoMotor is returned when a program is created without hardware.
var ErrNoMotor = errors.New("no motor")

// NewProgram creates the shares, control tasks and responder and
// registers them in a new loop. The motor count is limited by the
// hardware available.
func NewProgram(cfg Config, motors []Motor, out LineSink, factory ControllerFactory) (*Program, error) {
	if len(motors) == 0 {
		return nil, ErrNoMotor
	}
	count := comm.NewPlan(cfg.MotorCount, cfg.ResetBarrier).MotorCount
	if count > len(motors) {
		count = len(motors)
	}
	plan := comm.NewPlan(count, cfg.ResetBarrier)
	backlog := cfg.InputBacklog
	if backlog <= 0 {
		backlog = 1
	}
	p := &Program{
		Config:   cfg,
		Loop:     &fx.Loop{Interval: cfg.Interval},
		Reset:    share.NewFlag("reset", false),
		PeriodMs: share.NewInt("period", cfg.Period.Milliseconds()),
		input:    make(chan string, backlog),
	}
	p.Registry.Add(p.Reset, p.PeriodMs)
	var shares []MotorShares
	var handles []*fx.Task
	for m := 0; m < plan.MotorCount; m++ {
		hw := motors[m]
		s := MotorShares{
			Gain:     share.NewFloat(fmt.Sprintf("gain%d", m), 0),
			Setpoint: share.NewInt(fmt.Sprintf("setpoint%d", m), 0),
			Samples:  share.NewQueue[Sample](fmt.Sprintf("samples%d", m), cfg.QueueCapacity, cfg.Overwrite),
		}
		p.Registry.Add(s.Gain, s.Setpoint, s.Samples)
		shares = append(shares, s)
		if hw.Plant != nil {
			p.Loop.Add(hw.Plant)
		}
		task := NewControlTask(fmt.Sprintf("motor%d", m), hw.Actuator, hw.Sensor, s, p.PeriodMs, p.Reset, factory)
		p.Tasks = append(p.Tasks, task)
		handles = append(handles, p.Loop.Register(task.Name, fx.PrLvControl, 0, task))
	}
	p.Responder = &Responder{
		Config: ResponderConfig{
			Plan:           plan,
			RunDuration:    cfg.RunDuration,
			SettleDuration: cfg.SettleDuration,
			LinesPerTick:   cfg.LinesPerTick,
			TimeColumn:     cfg.TimeColumn,
		},
		In:       p,
		Out:      out,
		Motors:   shares,
		PeriodMs: p.PeriodMs,
		Reset:    p.Reset,
		Tasks:    handles,
	}
	p.Loop.Register("responder", fx.PrLvComm, 0, p.Responder)
	return p, nil
}

// TryReadLine implements LineSource.
func (p *Program) TryReadLine() (string, bool) {
	select {
	case line := <-p.input:
		return line, true
	default:
		return "", false
	}
}

// Deliver queues a received line. It reports false when the backlog
// is full and the line is dropped.
func (p *Program) Deliver(line string) bool {
	select {
	case p.input <- line:
		return true
	default:
		return false
	}
}

// Step runs one scheduler pass.
func (p *Program) Step(ctx context.Context, now time.Time) {
	p.Loop.RunOnce(ctx, now)
}

// Stop zeroes all actuators.
func (p *Program) Stop() {
	for _, t := range p.Tasks {
		t.Actuator.SetDutyCycle(0)
	}
}

// Diagnostics renders the task and share tables.
func (p *Program) Diagnostics() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Task", "Priority", "Period", "Runs", "Errors"})
	for _, info := range p.Loop.Tasks() {
		t.AppendRow(table.Row{info.Name, info.Priority, info.Period, info.Runs, info.Errors})
	}
	var sb strings.Builder
	sb.WriteString(t.Render())
	sb.WriteString("\n")
	sb.WriteString(p.Registry.Table())
	return sb.String()
}
