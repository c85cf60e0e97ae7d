package experiment

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/stepresp/pkg/cli/sh"
	"github.com/robotalks/stepresp/pkg/host"
)

type scriptedInput struct {
	lines  []string
	output []string
}

func (s *scriptedInput) ReadLineErr() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedInput) Printf(format string, val ...interface{}) {
	s.output = append(s.output, fmt.Sprintf(format, val...))
}

func TestParseExperiment(t *testing.T) {
	exp, err := ParseExperiment([]string{"0.05", "16000", "0", "-5", "10"}, 2)
	require.NoError(t, err)
	require.Equal(t, host.Experiment{
		Gains:     []float64{0.05, 0},
		Setpoints: []int64{16000, -5},
		PeriodMs:  10,
	}, exp)

	exp, err = ParseExperiment([]string{"1e-3", "200", "30"}, 1)
	require.NoError(t, err)
	require.Equal(t, []float64{0.001}, exp.Gains)

	for _, args := range [][]string{
		{"0.05", "16000", "10"},
		{"x", "1", "0", "0", "10"},
		{"0.05", "1.5", "0", "0", "10"},
		{"0.05", "1", "0", "0", "ten"},
	} {
		_, err := ParseExperiment(args, 2)
		require.Errorf(t, err, "%v expected error", args)
	}
}

func TestAskExperiment(t *testing.T) {
	in := &scriptedInput{lines: []string{"0.05", "abc", "16000", "", "0", " 0 ", "0", "-1", "10"}}
	exp, err := AskExperiment(in, 2)
	require.NoError(t, err)
	require.Equal(t, []float64{0.05, 0}, exp.Gains)
	require.Equal(t, []int64{16000, 0}, exp.Setpoints)
	require.EqualValues(t, 10, exp.PeriodMs)
	require.Contains(t, in.output, "invalid number \"abc\", try again\n")
	require.Contains(t, in.output, "invalid number \"\", try again\n")

	_, err = AskExperiment(&scriptedInput{lines: []string{"0.05"}}, 1)
	require.ErrorIs(t, err, sh.ErrAborted)
}

func TestParsePeriods(t *testing.T) {
	periods, err := parsePeriods(nil, []int64{10, 30})
	require.NoError(t, err)
	require.Equal(t, []int64{10, 30}, periods)
	periods, err = parsePeriods([]string{"5", "70"}, nil)
	require.NoError(t, err)
	require.Equal(t, []int64{5, 70}, periods)
	_, err = parsePeriods([]string{"0"}, nil)
	require.Error(t, err)
}

func TestRecordSeries(t *testing.T) {
	rec := &host.TelemetryRecord{
		Experiment: host.Experiment{PeriodMs: 10},
		Motors:     []host.Samples{{Values: []int64{1, 2}}, {Values: []int64{3}}},
	}
	series := recordSeries(rec)
	require.Len(t, series, 2)
	require.Equal(t, "motor 1", series[1].Label)
	require.Equal(t, []float64{0, 10}, series[0].X)
}
