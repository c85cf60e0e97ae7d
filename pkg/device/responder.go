package device

import (
	"strconv"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/stepresp/pkg/framework"
	"github.com/robotalks/stepresp/pkg/l0/comm"
	"github.com/robotalks/stepresp/pkg/share"
)

// LineSource provides received lines without blocking.
type LineSource interface {
	TryReadLine() (string, bool)
}

// LineSink writes lines to the host.
type LineSink interface {
	WriteLine(string) error
}

// Phase is the position of a Responder in the experiment cycle.
type Phase int

// Phases of the experiment cycle.
const (
	PhasePrompt Phase = iota
	PhaseAwait
	PhaseRun
	PhaseDrain
	PhaseBarrier
)

var phaseNames = []string{"prompt", "await", "run", "drain", "barrier"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "phase(" + strconv.Itoa(int(p)) + ")"
}

// ResponderConfig configures the experiment cycle.
type ResponderConfig struct {
	Plan comm.Plan
	// RunDuration is how long control runs after the period is received.
	RunDuration time.Duration
	// SettleDuration is how long the reset flag is held at the barrier.
	SettleDuration time.Duration
	// LinesPerTick bounds telemetry lines written in one pass.
	LinesPerTick int
	// TimeColumn emits samples as "elapsed_ms,value".
	TimeColumn bool
}

// Responder serves the handshake one step per scheduler pass. It
// never waits inside a pass.
type Responder struct {
	Config   ResponderConfig
	In       LineSource
	Out      LineSink
	Motors   []MotorShares
	PeriodMs *share.Int
	Reset    *share.Flag
	// Tasks are the control tasks rephased and restarted when a run
	// begins.
	Tasks []*fx.Task

	phase Phase
	step  int
	block int
	sent  int
	// captured holds the samples of the last run per motor, taken out
	// of the queues when the run ends.
	captured [][]Sample
	since    time.Time
	cycles   int
}

// Phase returns the current phase.
func (r *Responder) Phase() Phase { return r.phase }

// Cycles returns the number of completed experiment cycles.
func (r *Responder) Cycles() int { return r.cycles }

// Control implements fx.Controller.
func (r *Responder) Control(cc fx.ControlContext) error {
	now := cc.Time()
	switch r.phase {
	case PhasePrompt:
		return r.prompt()
	case PhaseAwait:
		line, ok := r.In.TryReadLine()
		if !ok {
			return nil
		}
		p := r.Config.Plan.Prompts[r.step]
		if err := r.assign(p, line); err != nil {
			glog.V(2).Infof("reprompt %s: %v", p.Token, err)
			return r.prompt()
		}
		if r.step++; r.step < len(r.Config.Plan.Prompts) {
			return r.prompt()
		}
		r.startRun(cc)
	case PhaseRun:
		if now.Sub(r.since) < r.Config.RunDuration {
			return nil
		}
		r.captured = make([][]Sample, len(r.Motors))
		for m, s := range r.Motors {
			r.captured[m] = s.Samples.Drain()
		}
		r.block, r.sent = 0, 0
		r.phase = PhaseDrain
		return r.beginBlock()
	case PhaseDrain:
		return r.drain(cc)
	case PhaseBarrier:
		if now.Sub(r.since) < r.Config.SettleDuration {
			return nil
		}
		r.Reset.Put(false)
		r.finishCycle()
	}
	return nil
}

func (r *Responder) prompt() error {
	r.phase = PhaseAwait
	return r.Out.WriteLine(r.Config.Plan.Prompts[r.step].Token)
}

func (r *Responder) assign(p comm.Prompt, line string) error {
	switch p.Field {
	case comm.FieldGain:
		v, err := comm.ParseGain(line)
		if err != nil {
			return err
		}
		r.Motors[p.Motor].Gain.Put(v)
	case comm.FieldSetpoint:
		v, err := comm.ParseInt(line)
		if err != nil {
			return err
		}
		r.Motors[p.Motor].Setpoint.Put(v)
	case comm.FieldPeriod:
		v, err := comm.ParseInt(line)
		if err != nil {
			return err
		}
		if v <= 0 {
			return comm.ErrInvalidValue
		}
		r.PeriodMs.Put(v)
	}
	return nil
}

func (r *Responder) startRun(cc fx.ControlContext) {
	now := cc.Time()
	for _, s := range r.Motors {
		s.Samples.Clear()
	}
	for _, task := range r.Tasks {
		if ct, ok := task.Controller.(*ControlTask); ok {
			ct.StartRun(now)
		}
	}
	cc.Rephase(r.Tasks...)
	r.since = now
	r.phase = PhaseRun
	glog.V(2).Infof("run started for %v", r.Config.RunDuration)
}

func (r *Responder) beginBlock() error {
	return r.Out.WriteLine(r.Config.Plan.Blocks[r.block].Begin)
}

func (r *Responder) drain(cc fx.ControlContext) error {
	blk := r.Config.Plan.Blocks[r.block]
	samples := r.captured[blk.Motor]
	limit := r.Config.LinesPerTick
	if limit <= 0 {
		limit = 1
	}
	for n := 0; n < limit && r.sent < len(samples); n++ {
		if err := r.Out.WriteLine(r.formatSample(samples[r.sent])); err != nil {
			return err
		}
		r.sent++
	}
	if r.sent < len(samples) {
		return nil
	}
	if err := r.Out.WriteLine(blk.End); err != nil {
		return err
	}
	r.sent = 0
	if r.block++; r.block < len(r.Config.Plan.Blocks) {
		return r.beginBlock()
	}
	if r.Config.Plan.ResetBarrier {
		r.Reset.Put(true)
		r.since = cc.Time()
		r.phase = PhaseBarrier
		return nil
	}
	r.finishCycle()
	return nil
}

func (r *Responder) formatSample(s Sample) string {
	if r.Config.TimeColumn {
		return comm.FormatInt(s.ElapsedMs) + "," + comm.FormatInt(s.Value)
	}
	return comm.FormatInt(s.Value)
}

func (r *Responder) finishCycle() {
	r.cycles++
	r.step = 0
	r.phase = PhasePrompt
}
