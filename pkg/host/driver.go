// Package host drives step response experiments on a board.
package host

import (
	"context"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/stepresp/pkg/l0/comm"
	"github.com/robotalks/stepresp/pkg/link"
)

// Defaults of a Driver.
const (
	DefaultTokenTimeout   = 5 * time.Second
	DefaultSettleInterval = 2 * time.Second
	DefaultInterrupts     = 6
)

// Config tunes a Driver.
type Config struct {
	MotorCount int `yaml:"motor-count"`
	// TokenTimeout bounds every wait for a token. The wait for the
	// first telemetry block is extended by the run duration.
	TokenTimeout time.Duration `yaml:"token-timeout"`
	// SettleInterval is the pause between interrupting the board and
	// discarding its output.
	SettleInterval time.Duration `yaml:"settle-interval"`
	// Interrupts is how many interrupt bytes are sent.
	Interrupts int `yaml:"interrupts"`
}

// DefaultConfig returns the configuration for a two motor board.
func DefaultConfig() Config {
	return Config{
		MotorCount:     2,
		TokenTimeout:   DefaultTokenTimeout,
		SettleInterval: DefaultSettleInterval,
		Interrupts:     DefaultInterrupts,
	}
}

// Driver runs the host side of the handshake over a link.
type Driver struct {
	Config Config
	Clock  clock.Clock

	link   io.ReadWriter
	reader *comm.LineReader
	writer *comm.LineWriter
	plan   comm.Plan
}

// EchoLine logs a line received from the board.
func EchoLine(line string) {
	glog.Infof("SER: %s", line)
}

// NewDriver creates a Driver over rw. Every received line is passed
// to echo, EchoLine when nil.
func NewDriver(rw io.ReadWriter, cfg Config, echo func(string)) *Driver {
	if cfg.TokenTimeout <= 0 {
		cfg.TokenTimeout = DefaultTokenTimeout
	}
	if cfg.Interrupts <= 0 {
		cfg.Interrupts = DefaultInterrupts
	}
	if echo == nil {
		echo = EchoLine
	}
	clk := clock.New()
	r := comm.NewLineReader(rw)
	r.Echo, r.Clock = echo, clk
	return &Driver{
		Config: cfg,
		Clock:  clk,
		link:   rw,
		reader: r,
		writer: comm.NewLineWriter(rw),
		plan:   comm.NewPlan(cfg.MotorCount, false),
	}
}

// Plan returns the exchange sequence the driver follows.
func (d *Driver) Plan() comm.Plan {
	return d.plan
}

func (d *Driver) sleep(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return ctx.Err()
	}
	t := d.Clock.Timer(dur)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InitBoard halts whatever the board is running, discards its output
// and restarts the resident program.
func (d *Driver) InitBoard(ctx context.Context) error {
	interrupts := make([]byte, d.Config.Interrupts)
	for n := range interrupts {
		interrupts[n] = comm.Interrupt
	}
	if err := d.writer.WriteBytes(interrupts...); err != nil {
		return errors.Wrap(err, "interrupt board")
	}
	if err := d.sleep(ctx, d.Config.SettleInterval); err != nil {
		return err
	}
	n := d.reader.Discard()
	if err := link.ResetInput(d.link); err != nil {
		return errors.Wrap(err, "reset input")
	}
	glog.V(2).Infof("discarded %d lines", n)
	if err := d.writer.WriteBytes(comm.Restart); err != nil {
		return errors.Wrap(err, "restart board")
	}
	return nil
}

// WriteToToken waits for tok and answers with value.
func (d *Driver) WriteToToken(ctx context.Context, tok, value string) error {
	if err := d.reader.WaitForToken(ctx, tok, d.Config.TokenTimeout); err != nil {
		return err
	}
	return d.writer.WriteLine(value)
}

// RunStepResponse pushes the parameters of exp, waits for the run and
// returns the raw telemetry lines of motor 0 and motor 1. The second
// slice is nil for a single motor board.
func (d *Driver) RunStepResponse(ctx context.Context, exp Experiment) (m0, m1 []string, err error) {
	if err = exp.Validate(d.plan.MotorCount); err != nil {
		return nil, nil, err
	}
	for _, p := range d.plan.Prompts {
		if err = d.WriteToToken(ctx, p.Token, exp.Value(p)); err != nil {
			return nil, nil, err
		}
	}
	if err = d.sleep(ctx, exp.Duration); err != nil {
		return nil, nil, err
	}
	blocks := make([][]string, len(d.plan.Blocks))
	for n, blk := range d.plan.Blocks {
		timeout := d.Config.TokenTimeout
		if n == 0 {
			timeout += exp.Duration
		}
		if err = d.reader.WaitForToken(ctx, blk.Begin, timeout); err != nil {
			return nil, nil, err
		}
		if blocks[n], err = d.reader.ReadBlock(ctx, blk.End, d.Config.TokenTimeout); err != nil {
			return nil, nil, err
		}
	}
	m0 = blocks[0]
	if len(blocks) > 1 {
		m1 = blocks[1]
	}
	return m0, m1, nil
}

// Run performs RunStepResponse and parses the telemetry.
func (d *Driver) Run(ctx context.Context, exp Experiment) (*TelemetryRecord, error) {
	m0, m1, err := d.RunStepResponse(ctx, exp)
	if err != nil {
		return nil, err
	}
	rec := &TelemetryRecord{Experiment: exp}
	for _, lines := range [][]string{m0, m1}[:d.plan.MotorCount] {
		rec.Motors = append(rec.Motors, ParseSamples(lines))
	}
	return rec, nil
}
