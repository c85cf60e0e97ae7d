// Package experiment adds the step response commands to the shell.
package experiment

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/abiosoft/ishell"
	"github.com/pkg/errors"

	"github.com/robotalks/stepresp/pkg/cli/sh"
	"github.com/robotalks/stepresp/pkg/host"
	"github.com/robotalks/stepresp/pkg/report"
)

// printer writes through the shell output.
type printer struct {
	c *ishell.Context
}

func (p printer) Write(b []byte) (int, error) {
	p.c.Print(string(b))
	return len(b), nil
}

func summary(c *ishell.Context) report.Consumers {
	out := printer{c}
	return report.Consumers{
		&report.ASCII{Out: out, Height: 12, Width: 70},
		&report.Table{Out: out},
	}
}

func recordSeries(rec *host.TelemetryRecord) []host.Series {
	series := make([]host.Series, len(rec.Motors))
	for n := range rec.Motors {
		series[n] = rec.Series(n, "motor "+strconv.Itoa(n))
	}
	return series
}

// ParseExperiment parses "G0 S0 [G1 S1 ...] PERIOD" for motorCount
// motors.
func ParseExperiment(args []string, motorCount int) (host.Experiment, error) {
	var exp host.Experiment
	if len(args) != motorCount*2+1 {
		return exp, errors.Errorf("expect %d arguments: gain and setpoint of each motor, then period", motorCount*2+1)
	}
	for m := 0; m < motorCount; m++ {
		g, err := strconv.ParseFloat(args[m*2], 64)
		if err != nil {
			return exp, errors.Wrapf(err, "gain %d", m)
		}
		sp, err := strconv.ParseInt(args[m*2+1], 10, 64)
		if err != nil {
			return exp, errors.Wrapf(err, "setpoint %d", m)
		}
		exp.Gains = append(exp.Gains, g)
		exp.Setpoints = append(exp.Setpoints, sp)
	}
	period, err := strconv.ParseInt(args[len(args)-1], 10, 64)
	if err != nil {
		return exp, errors.Wrap(err, "period")
	}
	exp.PeriodMs = period
	return exp, nil
}

// AskExperiment asks the operator for every parameter.
func AskExperiment(in sh.LineInput, motorCount int) (host.Experiment, error) {
	var exp host.Experiment
	for m := 0; m < motorCount; m++ {
		g, err := sh.ReadFloat(in, fmt.Sprintf("gain %d", m))
		if err != nil {
			return exp, err
		}
		sp, err := sh.ReadInt(in, fmt.Sprintf("setpoint %d", m))
		if err != nil {
			return exp, err
		}
		exp.Gains = append(exp.Gains, g)
		exp.Setpoints = append(exp.Setpoints, sp)
	}
	for exp.PeriodMs <= 0 {
		p, err := sh.ReadInt(in, "period ms")
		if err != nil {
			return exp, err
		}
		exp.PeriodMs = p
	}
	return exp, nil
}

func parsePeriods(args []string, defaults []int64) ([]int64, error) {
	if len(args) == 0 {
		return defaults, nil
	}
	periods := make([]int64, len(args))
	for n, arg := range args {
		p, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || p <= 0 {
			return nil, errors.Errorf("invalid period %q", arg)
		}
		periods[n] = p
	}
	return periods, nil
}

func runCtx(s *sh.Shell) context.Context {
	if s.Context != nil {
		return s.Context
	}
	return context.Background()
}

var (
	// StepCmd runs one step response.
	StepCmd = ishell.Cmd{
		Name:    "step",
		Aliases: []string{"run"},
		Help:    "[G0 S0 [G1 S1] PERIOD] run one step response",
		Func: sh.MustBeInitialized(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			count := s.Session.Driver.Plan().MotorCount
			var exp host.Experiment
			var err error
			switch {
			case len(c.Args) > 0:
				exp, err = ParseExperiment(c.Args, count)
			case s.Interactive:
				exp, err = AskExperiment(c, count)
			default:
				exp = s.Config.Experiment()
			}
			if err != nil {
				sh.ReportErr(c, err)
				return
			}
			exp.Duration = s.Config.Duration()
			ctx := runCtx(s)
			rec, err := s.Session.Driver.Run(ctx, exp)
			if err != nil {
				c.Err(err)
				return
			}
			s.Session.Record(ctx, rec)
			if err := summary(c).ConsumeSeries(exp.String(), recordSeries(rec)); err != nil {
				c.Err(err)
			}
		}),
	}

	// PeriodsCmd runs the period sweep and plots it.
	PeriodsCmd = ishell.Cmd{
		Name:    "periods",
		Aliases: []string{"p"},
		Help:    "[PERIOD...] run motor 0 once per period and plot",
		Func: sh.MustBeInitialized(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			periods, err := parsePeriods(c.Args, s.Config.Periods)
			if err != nil {
				c.Err(err)
				return
			}
			dir := s.Config.OutputDir
			consumers := append(report.Consumers{
				report.NewPNG(filepath.Join(dir, "periods.png")),
				&report.CSV{Path: filepath.Join(dir, "periods.csv")},
			}, summary(c)...)
			ctx := runCtx(s)
			recs, err := s.Session.Driver.PlotPeriodTests(ctx, periods, s.Config.Duration(), consumers)
			s.Session.Record(ctx, recs...)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("plot written to %s\n", filepath.Join(dir, "periods.png"))
		}),
	}

	// PositionsCmd runs the position tests.
	PositionsCmd = ishell.Cmd{
		Name:    "positions",
		Aliases: []string{"pos"},
		Help:    "[PERIOD] drive the motors through the configured setpoint pairs",
		Func: sh.MustBeInitialized(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			period := s.Config.PeriodMs
			if len(c.Args) > 0 {
				periods, err := parsePeriods(c.Args[:1], nil)
				if err != nil {
					c.Err(err)
					return
				}
				period = periods[0]
			}
			count := s.Session.Driver.Plan().MotorCount
			setpoints := make([][]int64, 0, len(s.Config.Positions))
			for _, sp := range s.Config.Positions {
				if len(sp) < count {
					c.Err(errors.Errorf("position %v needs %d setpoints", sp, count))
					return
				}
				setpoints = append(setpoints, sp[:count])
			}
			ctx := runCtx(s)
			recs, err := s.Session.Driver.PositionTests(ctx, setpoints, period, s.Config.Duration())
			s.Session.Record(ctx, recs...)
			if err != nil {
				c.Err(err)
				return
			}
			for _, rec := range recs {
				if err := (&report.Table{Out: printer{c}}).ConsumeSeries(rec.Experiment.String(), recordSeries(rec)); err != nil {
					c.Err(err)
					return
				}
			}
		}),
	}

	// PlotCmd plots the last record.
	PlotCmd = ishell.Cmd{
		Name: "plot",
		Help: "[FILE.png] plot the last record, into FILE.png when given",
		Func: sh.MustBeInitialized(func(c *ishell.Context) {
			rec := sh.ShellFrom(c).Session.Last()
			if rec == nil {
				c.Err(errors.New("no record"))
				return
			}
			var consumer host.SeriesConsumer = summary(c)
			if len(c.Args) > 0 {
				consumer = report.NewPNG(c.Args[0])
			}
			if err := consumer.ConsumeSeries(rec.Experiment.String(), recordSeries(rec)); err != nil {
				c.Err(err)
			}
		}),
	}
)

func init() {
	sh.AddCmds(
		&StepCmd,
		&PeriodsCmd,
		&PositionsCmd,
		&PlotCmd,
	)
}
