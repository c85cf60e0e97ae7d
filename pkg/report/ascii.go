package report

import (
	"fmt"
	"io"

	"github.com/guptarohit/asciigraph"

	"github.com/robotalks/stepresp/pkg/host"
)

// ASCII draws series as a terminal graph.
type ASCII struct {
	Out    io.Writer
	Width  int
	Height int
}

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Blue, asciigraph.Red, asciigraph.Green, asciigraph.Yellow, asciigraph.Magenta, asciigraph.Cyan,
}

// ConsumeSeries implements host.SeriesConsumer.
func (a *ASCII) ConsumeSeries(title string, series []host.Series) error {
	var data [][]float64
	var colors []asciigraph.AnsiColor
	for n, s := range series {
		if len(s.Y) == 0 {
			continue
		}
		data = append(data, s.Y)
		colors = append(colors, seriesColors[n%len(seriesColors)])
	}
	if len(data) == 0 {
		_, err := fmt.Fprintf(a.Out, "%s: no samples\n", title)
		return err
	}
	opts := []asciigraph.Option{asciigraph.Caption(title), asciigraph.SeriesColors(colors...)}
	if a.Width > 0 {
		opts = append(opts, asciigraph.Width(a.Width))
	}
	if a.Height > 0 {
		opts = append(opts, asciigraph.Height(a.Height))
	}
	_, err := fmt.Fprintln(a.Out, asciigraph.PlotMany(data, opts...))
	return err
}
