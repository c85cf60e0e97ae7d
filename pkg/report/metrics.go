package report

import (
	"fmt"
	"io"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"

	"github.com/robotalks/stepresp/pkg/host"
)

// Metrics summarizes a step response.
type Metrics struct {
	Label   string
	Samples int
	Final   float64
	Peak    float64
	// Overshoot is in percent of the final value.
	Overshoot float64
	// RiseMs is the time from 10% to 90% of the final value, NaN if
	// never reached.
	RiseMs float64
	// SettleMs is the time after which the response stays within 2% of
	// the final value.
	SettleMs float64
	// Ripple is the standard deviation of the last fifth of the run.
	Ripple float64
}

// tailFraction of a run is used to estimate the final value.
const tailFraction = 5

// StepMetrics computes the metrics of s.
func StepMetrics(s host.Series) (Metrics, error) {
	m := Metrics{Label: s.Label, Samples: len(s.Y), RiseMs: math.NaN(), SettleMs: math.NaN()}
	if len(s.Y) == 0 {
		return m, stats.ErrEmptyInput
	}
	tail := s.Y[len(s.Y)-(len(s.Y)+tailFraction-1)/tailFraction:]
	var err error
	if m.Final, err = stats.Mean(tail); err != nil {
		return m, err
	}
	if m.Ripple, err = stats.StandardDeviation(tail); err != nil {
		return m, err
	}
	if m.Final < 0 {
		m.Peak, err = stats.Min(s.Y)
	} else {
		m.Peak, err = stats.Max(s.Y)
	}
	if err != nil {
		return m, err
	}
	if m.Final != 0 {
		m.Overshoot = math.Max(0, (m.Peak-m.Final)/m.Final*100)
		m.RiseMs = riseTime(s, m.Final)
	}
	band := math.Abs(m.Final) * 0.02
	for i := len(s.Y) - 1; i >= 0; i-- {
		if math.Abs(s.Y[i]-m.Final) > band {
			if i+1 < len(s.Y) {
				m.SettleMs = s.X[i+1]
			}
			break
		}
		if i == 0 {
			m.SettleMs = s.X[0]
		}
	}
	return m, nil
}

func formatMs(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.0f", v)
}

// Table renders metrics of each series.
type Table struct {
	Out io.Writer
}

// ConsumeSeries implements host.SeriesConsumer.
func (t *Table) ConsumeSeries(title string, series []host.Series) error {
	tw := table.NewWriter()
	tw.SetTitle(title)
	tw.AppendHeader(table.Row{"Series", "Samples", "Final", "Peak", "Overshoot %", "Rise ms", "Settle ms", "Ripple"})
	for _, s := range series {
		m, err := StepMetrics(s)
		if err != nil {
			tw.AppendRow(table.Row{s.Label, 0, "-", "-", "-", "-", "-", "-"})
			continue
		}
		tw.AppendRow(table.Row{
			m.Label, m.Samples,
			fmt.Sprintf("%.0f", m.Final), fmt.Sprintf("%.0f", m.Peak),
			fmt.Sprintf("%.1f", m.Overshoot), formatMs(m.RiseMs), formatMs(m.SettleMs),
			fmt.Sprintf("%.1f", m.Ripple),
		})
	}
	_, err := fmt.Fprintln(t.Out, tw.Render())
	return err
}

// riseTime is the 10% to 90% rise of s toward a nonzero final value,
// or NaN when s never gets there.
func riseTime(s host.Series, final float64) float64 {
	t10, t90 := math.NaN(), math.NaN()
	for i, v := range s.Y {
		frac := v / final
		if math.IsNaN(t10) && frac >= 0.1 {
			t10 = s.X[i]
		}
		if math.IsNaN(t90) && frac >= 0.9 {
			t90 = s.X[i]
		}
	}
	return t90 - t10
}
