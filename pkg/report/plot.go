// Package report renders step response telemetry.
package report

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/robotalks/stepresp/pkg/host"
)

// PNG plots series into an image file.
type PNG struct {
	Path   string
	XLabel string
	YLabel string
	Width  vg.Length
	Height vg.Length
}

// NewPNG creates a PNG plotter with the default labels and size.
func NewPNG(path string) *PNG {
	return &PNG{
		Path:   path,
		XLabel: "Time (ms)",
		YLabel: "Position (counts)",
		Width:  8 * vg.Inch,
		Height: 6 * vg.Inch,
	}
}

// ConsumeSeries implements host.SeriesConsumer.
func (p *PNG) ConsumeSeries(title string, series []host.Series) error {
	plt := plot.New()
	plt.Title.Text = title
	plt.X.Label.Text = p.XLabel
	plt.Y.Label.Text = p.YLabel
	plt.Add(plotter.NewGrid())
	for n, s := range series {
		if len(s.X) != len(s.Y) {
			return errors.Errorf("series %q has %d x and %d y values", s.Label, len(s.X), len(s.Y))
		}
		if len(s.X) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(s.X))
		for i := range s.X {
			pts[i].X, pts[i].Y = s.X[i], s.Y[i]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "series %q", s.Label)
		}
		line.Color = plotutil.Color(n)
		line.Width = vg.Points(1.5)
		plt.Add(line)
		plt.Legend.Add(s.Label, line)
	}
	plt.Legend.Top = false
	if dir := filepath.Dir(p.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create plot directory")
		}
	}
	if err := plt.Save(p.Width, p.Height, p.Path); err != nil {
		return errors.Wrapf(err, "save %s", p.Path)
	}
	return nil
}
