package host

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/robotalks/stepresp/pkg/l0/comm"
)

// Experiment is the parameters of one run.
type Experiment struct {
	Gains     []float64
	Setpoints []int64
	PeriodMs  int64
	Duration  time.Duration
}

// ErrInvalidExperiment is returned for experiments the board can't run.
var ErrInvalidExperiment = errors.New("invalid experiment")

// Validate checks exp has parameters for motorCount motors.
func (e Experiment) Validate(motorCount int) error {
	if len(e.Gains) < motorCount || len(e.Setpoints) < motorCount {
		return errors.Wrapf(ErrInvalidExperiment, "%d motors need %d gains and setpoints", motorCount, motorCount)
	}
	if e.PeriodMs <= 0 {
		return errors.Wrapf(ErrInvalidExperiment, "period %d", e.PeriodMs)
	}
	return nil
}

// Value renders the answer to a prompt.
func (e Experiment) Value(p comm.Prompt) string {
	switch p.Field {
	case comm.FieldGain:
		return comm.FormatGain(e.Gains[p.Motor])
	case comm.FieldSetpoint:
		return comm.FormatInt(e.Setpoints[p.Motor])
	}
	return comm.FormatInt(e.PeriodMs)
}

// String implements fmt.Stringer.
func (e Experiment) String() string {
	return fmt.Sprintf("gains=%v setpoints=%v period=%dms duration=%v", e.Gains, e.Setpoints, e.PeriodMs, e.Duration)
}

// Count range of the encoder. Samples outside are corrupted.
const (
	MinCount = -4294967
	MaxCount = 4294967
)

// Clamp replaces a value outside the valid count range with zero.
func Clamp(v int64) int64 {
	if MinCount < v && v < MaxCount {
		return v
	}
	return 0
}

// Samples is the parsed telemetry of one motor.
type Samples struct {
	Values []int64
	// ElapsedMs is set when the board sends a time column.
	ElapsedMs []int64
}

// ParseSamples converts telemetry lines of "value" or
// "elapsed_ms,value". Unparsable or out of range values become zero.
func ParseSamples(lines []string) Samples {
	var s Samples
	hasTime := lo.SomeBy(lines, func(line string) bool {
		_, _, ok := cutComma(line)
		return ok
	})
	s.Values = lo.Map(lines, func(line string, _ int) int64 {
		_, value, _ := cutComma(line)
		return Clamp(parseOrZero(value))
	})
	if hasTime {
		s.ElapsedMs = lo.Map(lines, func(line string, _ int) int64 {
			elapsed, _, _ := cutComma(line)
			return parseOrZero(elapsed)
		})
	}
	return s
}

func cutComma(line string) (elapsed, value string, found bool) {
	if elapsed, value, found = strings.Cut(line, ","); !found {
		value = line
	}
	return
}

func parseOrZero(s string) int64 {
	v, err := comm.ParseInt(s)
	if err != nil {
		return 0
	}
	return v
}

// TelemetryRecord is the result of one experiment.
type TelemetryRecord struct {
	Experiment Experiment
	Motors     []Samples
}

// Series is a time series ready for plotting.
type Series struct {
	Label string
	// X is the time in milliseconds.
	X []float64
	Y []float64
}

// Series returns the time series of a motor. Without a time column
// sample n is placed at n * period.
func (r *TelemetryRecord) Series(motor int, label string) Series {
	s := Series{Label: label}
	if motor >= len(r.Motors) {
		return s
	}
	m := r.Motors[motor]
	s.Y = lo.Map(m.Values, func(v int64, _ int) float64 { return float64(v) })
	if len(m.ElapsedMs) == len(m.Values) {
		s.X = lo.Map(m.ElapsedMs, func(v int64, _ int) float64 { return float64(v) })
	} else {
		s.X = lo.Times(len(m.Values), func(n int) float64 {
			return float64(int64(n) * r.Experiment.PeriodMs)
		})
	}
	return s
}

// PeriodLabel labels a series by its period.
func PeriodLabel(periodMs int64) string {
	return strconv.FormatInt(periodMs, 10) + " ms"
}
