package device

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/stepresp/pkg/framework"
	"github.com/robotalks/stepresp/pkg/l0/comm"
	"github.com/robotalks/stepresp/pkg/share"
	"github.com/robotalks/stepresp/pkg/sim"
)

type fakeActuator struct {
	duties []float64
}

func (a *fakeActuator) SetDutyCycle(duty float64) { a.duties = append(a.duties, duty) }

func (a *fakeActuator) last() float64 { return a.duties[len(a.duties)-1] }

type fakeSensor struct {
	count  int64
	offset int64
	zeroes int
}

func (s *fakeSensor) Read() int64 { return s.count - s.offset }
func (s *fakeSensor) Zero()       { s.offset = s.count; s.zeroes++ }

type recordingSink struct {
	lock  sync.Mutex
	lines []string
}

func (s *recordingSink) WriteLine(line string) error {
	s.lock.Lock()
	s.lines = append(s.lines, line)
	s.lock.Unlock()
	return nil
}

func (s *recordingSink) Lines() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]string(nil), s.lines...)
}

func (s *recordingSink) has(line string) bool {
	for _, l := range s.Lines() {
		if l == line {
			return true
		}
	}
	return false
}

type fakeMotor struct {
	act    fakeActuator
	sensor fakeSensor
}

func fakeMotors(n int) ([]*fakeMotor, []Motor) {
	var fakes []*fakeMotor
	var motors []Motor
	for i := 0; i < n; i++ {
		f := &fakeMotor{}
		fakes = append(fakes, f)
		motors = append(motors, Motor{Actuator: &f.act, Sensor: &f.sensor})
	}
	return fakes, motors
}

type testControlContext struct {
	now time.Time
}

func (c *testControlContext) Time() time.Time          { return c.now }
func (c *testControlContext) Context() context.Context { return context.Background() }
func (c *testControlContext) PriorityLevel() int       { return fx.PrLvControl }
func (c *testControlContext) TriggerNext()             {}
func (c *testControlContext) Rephase(...*fx.Task)      {}
func (c *testControlContext) advance(d time.Duration)  { c.now = c.now.Add(d) }

type stepper struct {
	t    *testing.T
	prog *Program
	now  time.Time
}

func (s *stepper) step(d time.Duration) {
	for end := s.now.Add(d); s.now.Before(end); {
		s.now = s.now.Add(time.Millisecond)
		s.prog.Step(context.Background(), s.now)
	}
}

// until steps until cond holds, failing after limit of virtual time.
func (s *stepper) until(limit time.Duration, cond func() bool) {
	for end := s.now.Add(limit); !cond(); {
		require.True(s.t, s.now.Before(end), "condition not met in %v", limit)
		s.now = s.now.Add(time.Millisecond)
		s.prog.Step(context.Background(), s.now)
	}
}

func newTestProgram(t *testing.T, cfg Config, motors []Motor) (*Program, *recordingSink, *stepper) {
	sink := &recordingSink{}
	p, err := NewProgram(cfg, motors, sink, nil)
	require.NoError(t, err)
	return p, sink, &stepper{t: t, prog: p, now: time.Unix(1000, 0)}
}

func TestControlTaskResetBarrier(t *testing.T) {
	_, motors := fakeMotors(1)
	act := motors[0].Actuator.(*fakeActuator)
	sensor := motors[0].Sensor.(*fakeSensor)
	shares := MotorShares{
		Gain:     share.NewFloat("gain", 0.5),
		Setpoint: share.NewInt("setpoint", 100),
		Samples:  share.NewQueue[Sample]("samples", 16, false),
	}
	reset := share.NewFlag("reset", false)
	period := share.NewInt("period", 10)
	task := NewControlTask("m", act, sensor, shares, period, reset, nil)
	cc := &testControlContext{now: time.Unix(0, 0)}

	// the encoder is inverted: a count of -40 is a position of 40.
	sensor.count = -40
	require.NoError(t, task.Control(cc))
	require.Equal(t, StateRunning, task.State())
	require.Equal(t, 0.5*(100-40), act.last())

	reset.Put(true)
	for n := 0; n < 3; n++ {
		sensor.count -= 7
		cc.advance(10 * time.Millisecond)
		require.NoError(t, task.Control(cc))
		require.Equal(t, StateHeld, task.State())
		require.Zero(t, act.last())
	}
	require.Equal(t, 1, sensor.zeroes)
	held := shares.Samples.Count()

	// parameters changed while held apply at rearm.
	shares.Gain.Put(2)
	shares.Setpoint.Put(10)
	reset.Put(false)
	cc.advance(10 * time.Millisecond)
	require.NoError(t, task.Control(cc))
	require.Equal(t, StateRunning, task.State())
	require.Equal(t, 2, sensor.zeroes)
	require.Equal(t, held+1, shares.Samples.Count())
	var last Sample
	for !shares.Samples.Empty() {
		last, _ = shares.Samples.Get()
	}
	require.Equal(t, Sample{ElapsedMs: 0, Value: 0}, last)
	require.Equal(t, 2.0*10, act.last())
	require.Equal(t, 10*time.Millisecond, task.Period())
}

func TestControlTaskDropsWhenFull(t *testing.T) {
	_, motors := fakeMotors(1)
	shares := MotorShares{
		Gain:     share.NewFloat("gain", 1),
		Setpoint: share.NewInt("setpoint", 1),
		Samples:  share.NewQueue[Sample]("samples", 2, false),
	}
	task := NewControlTask("m", motors[0].Actuator, motors[0].Sensor, shares,
		share.NewInt("period", 1), share.NewFlag("reset", false), nil)
	cc := &testControlContext{now: time.Unix(0, 0)}
	for n := 0; n < 5; n++ {
		require.NoError(t, task.Control(cc))
		cc.advance(time.Millisecond)
	}
	require.Equal(t, 2, shares.Samples.Count())
	require.Len(t, motors[0].Actuator.(*fakeActuator).duties, 5)
}

func TestResponderReprompt(t *testing.T) {
	_, motors := fakeMotors(2)
	cfg := DefaultConfig()
	p, sink, s := newTestProgram(t, cfg, motors)
	inputs := []string{"abc", "0.3", "0.1", "x", "16000", "", "-5", "0", "7"}
	for _, in := range inputs {
		require.True(t, p.Deliver(in))
	}
	s.until(time.Second, func() bool { return p.Responder.Phase() == PhaseRun })
	require.Equal(t, []string{"$a", "$a", "$b", "$c", "$c", "$d", "$d", "$e", "$e"}, sink.Lines())
	resp := p.Responder
	require.Equal(t, 0.3, resp.Motors[0].Gain.Get())
	require.Equal(t, 0.1, resp.Motors[1].Gain.Get())
	require.EqualValues(t, 16000, resp.Motors[0].Setpoint.Get())
	require.EqualValues(t, -5, resp.Motors[1].Setpoint.Get())
	require.EqualValues(t, 7, p.PeriodMs.Get())
}

func TestResponderRoundTrip(t *testing.T) {
	for _, gain := range []float64{0.05, 1.0 / 3, 123456.789e-12} {
		t.Run(strconv.FormatFloat(gain, 'g', -1, 64), func(t *testing.T) {
			_, motors := fakeMotors(1)
			cfg := DefaultConfig()
			cfg.MotorCount = 1
			p, _, s := newTestProgram(t, cfg, motors)
			p.Deliver(comm.FormatGain(gain))
			p.Deliver(comm.FormatInt(-4294966))
			p.Deliver("10")
			s.until(time.Second, func() bool { return p.Responder.Phase() == PhaseRun })
			require.Equal(t, gain, p.Responder.Motors[0].Gain.Get())
			require.EqualValues(t, -4294966, p.Responder.Motors[0].Setpoint.Get())
		})
	}
}

func TestTelemetryCount(t *testing.T) {
	testCases := []struct {
		name       string
		period     int
		duration   time.Duration
		capacity   int
		overwrite  bool
		lines      int
		timeColumn bool
		expect     int
	}{
		{"period 10", 10, time.Second, 1000, false, 3, false, 100},
		{"period 30", 30, time.Second, 1000, false, 3, false, 33},
		{"period 7 short run", 7, 100 * time.Millisecond, 1000, false, 3, false, 14},
		{"capacity bound", 10, time.Second, 50, false, 3, false, 50},
		{"capacity bound overwrite", 10, time.Second, 50, true, 3, false, 50},
		{"overwrite slow drain", 10, time.Second, 50, true, 1, true, 50},
		{"reject slow drain", 10, time.Second, 50, false, 1, true, 50},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, motors := fakeMotors(2)
			cfg := DefaultConfig()
			cfg.RunDuration = tc.duration
			cfg.QueueCapacity = tc.capacity
			cfg.Overwrite = tc.overwrite
			cfg.LinesPerTick = tc.lines
			cfg.TimeColumn = tc.timeColumn
			p, sink, s := newTestProgram(t, cfg, motors)
			for _, in := range []string{"0.05", "0", "16000", "0", strconv.Itoa(tc.period)} {
				p.Deliver(in)
			}
			// let the tasks run for a while before the run starts.
			s.until(5*time.Second, func() bool { return sink.has(comm.TokenEnd1) })
			blocks := splitBlocks(t, sink.Lines())
			for _, begin := range []string{comm.TokenBegin0, comm.TokenBegin1} {
				block := blocks[begin]
				require.Lenf(t, block, tc.expect, "%s %s count mismatch", tc.name, begin)
				if !tc.timeColumn {
					continue
				}
				for _, line := range block {
					elapsed, _, ok := strings.Cut(line, ",")
					require.True(t, ok, "line %q has no time column", line)
					ms, err := strconv.ParseInt(elapsed, 10, 64)
					require.NoError(t, err)
					require.LessOrEqualf(t, ms, tc.duration.Milliseconds(),
						"%s %s sample taken after the run", tc.name, begin)
				}
			}
		})
	}
}

// splitBlocks returns the lines between each begin token and its end
// token and fails on stray tokens inside a block.
func splitBlocks(t *testing.T, lines []string) map[string][]string {
	ends := map[string]string{comm.TokenBegin0: comm.TokenEnd0, comm.TokenBegin1: comm.TokenEnd1}
	blocks := make(map[string][]string)
	var begin string
	for _, line := range lines {
		if begin == "" {
			if _, ok := ends[line]; ok {
				begin = line
				blocks[begin] = []string{}
			}
			continue
		}
		if line == ends[begin] {
			begin = ""
			continue
		}
		require.False(t, comm.IsToken(line), "stray token %q", line)
		blocks[begin] = append(blocks[begin], line)
	}
	return blocks
}

func TestResponderBarrierCycle(t *testing.T) {
	testCases := []struct {
		name    string
		barrier bool
	}{
		{"with barrier", true},
		{"without barrier", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fakes, motors := fakeMotors(2)
			cfg := DefaultConfig()
			cfg.ResetBarrier = tc.barrier
			cfg.RunDuration = 50 * time.Millisecond
			p, _, s := newTestProgram(t, cfg, motors)
			for _, in := range []string{"1", "1", "100", "100", "10"} {
				p.Deliver(in)
			}
			s.until(time.Second, func() bool { return p.Responder.Phase() == PhaseDrain })
			s.until(time.Second, func() bool { return p.Responder.Phase() != PhaseDrain })
			if !tc.barrier {
				require.Equal(t, PhasePrompt, p.Responder.Phase())
				require.False(t, p.Reset.Get())
				require.Equal(t, 1, p.Responder.Cycles())
				return
			}
			require.Equal(t, PhaseBarrier, p.Responder.Phase())
			require.True(t, p.Reset.Get())
			s.step(2 * time.Millisecond)
			for n, f := range fakes {
				require.Equalf(t, StateHeld, p.Tasks[n].State(), "motor%d state mismatch", n)
				require.Zerof(t, f.act.last(), "motor%d duty mismatch", n)
			}
			s.until(time.Second, func() bool { return p.Responder.Cycles() == 1 })
			require.False(t, p.Reset.Get())
			s.step(2 * time.Millisecond)
			for n := range fakes {
				require.Equal(t, StateRunning, p.Tasks[n].State())
			}
		})
	}
}

func TestTimeColumn(t *testing.T) {
	_, motors := fakeMotors(1)
	cfg := DefaultConfig()
	cfg.MotorCount = 1
	cfg.TimeColumn = true
	cfg.RunDuration = 30 * time.Millisecond
	p, sink, s := newTestProgram(t, cfg, motors)
	for _, in := range []string{"1", "5", "10"} {
		p.Deliver(in)
	}
	s.until(time.Second, func() bool { return sink.has(comm.TokenEnd0) })
	require.Equal(t, []string{"10,0", "20,0", "30,0"}, splitBlocks(t, sink.Lines())[comm.TokenBegin0])
}

func TestBoardInterruptRestart(t *testing.T) {
	var out bytes.Buffer
	var lock sync.Mutex
	w := writerFunc(func(p []byte) (int, error) {
		lock.Lock()
		defer lock.Unlock()
		return out.Write(p)
	})
	motor := sim.NewMotor("m0", sim.DefaultMotorConfig())
	b, err := NewBoard(DefaultConfig(), []Motor{
		{Actuator: motor, Sensor: sim.NewEncoder(motor, true), Plant: motor},
		{Actuator: &fakeActuator{}, Sensor: &fakeSensor{}},
	}, w)
	require.NoError(t, err)
	now := time.Unix(0, 0)
	b.Step(context.Background(), now)
	require.NoError(t, b.Feed([]byte("0.05\r\n")))
	first := b.Program()
	require.NotNil(t, first)

	require.NoError(t, b.Feed([]byte{comm.Interrupt, comm.Interrupt, comm.Interrupt}))
	require.Nil(t, b.Program())
	require.Zero(t, motor.DutyCycle())
	// input while halted is ignored.
	require.NoError(t, b.Feed([]byte("1\r\n")))
	b.Step(context.Background(), now.Add(time.Millisecond))

	require.NoError(t, b.Feed([]byte{comm.Restart}))
	second := b.Program()
	require.NotNil(t, second)
	require.NotSame(t, first, second)
	require.Equal(t, 2, b.Boots())
	_, pending := second.TryReadLine()
	require.False(t, pending)
	require.NoError(t, b.Feed([]byte{comm.Restart}))
	require.Same(t, second, b.Program())

	lock.Lock()
	text := out.String()
	lock.Unlock()
	require.Equal(t, 2, strings.Count(text, Banner))
	require.Equal(t, 1, strings.Count(text, "halted\r\n"))
	require.Contains(t, text, "m0-plant")
	require.Contains(t, text, "gain0")
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
