package host

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Sweep parameters of the period and position tests.
var (
	PeriodTestGains     = []float64{0.05, 0}
	PeriodTestSetpoints = []int64{16000, 0}
	PositionTestGains   = []float64{0.05, 0.05}
)

// SeriesConsumer receives the series of a sweep, e.g. a plotter.
type SeriesConsumer interface {
	ConsumeSeries(title string, series []Series) error
}

// PlotPeriodTests runs motor 0 to a fixed setpoint once per period and
// hands one series per period to consumer, which may be nil. The host
// waits duration on each experiment.
func (d *Driver) PlotPeriodTests(ctx context.Context, periods []int64, duration time.Duration, consumer SeriesConsumer) ([]*TelemetryRecord, error) {
	var records []*TelemetryRecord
	var series []Series
	for _, period := range periods {
		exp := Experiment{
			Gains:     PeriodTestGains[:d.plan.MotorCount],
			Setpoints: PeriodTestSetpoints[:d.plan.MotorCount],
			PeriodMs:  period,
			Duration:  duration,
		}
		glog.Infof("period test: %v", exp)
		rec, err := d.Run(ctx, exp)
		if err != nil {
			return records, errors.Wrapf(err, "period %d", period)
		}
		records = append(records, rec)
		series = append(series, rec.Series(0, PeriodLabel(period)))
	}
	if consumer != nil {
		if err := consumer.ConsumeSeries("Step response by period", series); err != nil {
			return records, err
		}
	}
	return records, nil
}

// PositionTests drives both motors to each setpoint pair in turn,
// waiting duration on each.
func (d *Driver) PositionTests(ctx context.Context, setpoints [][]int64, periodMs int64, duration time.Duration) ([]*TelemetryRecord, error) {
	var records []*TelemetryRecord
	for _, sp := range setpoints {
		exp := Experiment{
			Gains:     PositionTestGains[:d.plan.MotorCount],
			Setpoints: sp,
			PeriodMs:  periodMs,
			Duration:  duration,
		}
		glog.Infof("position test: %v", exp)
		rec, err := d.Run(ctx, exp)
		if err != nil {
			return records, errors.Wrapf(err, "setpoints %v", sp)
		}
		records = append(records, rec)
	}
	return records, nil
}
