package report

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/robotalks/stepresp/pkg/host"
)

// CSV writes series in long format: series,time_ms,value.
type CSV struct {
	Path string
}

// WriteSeries writes series to w.
func WriteSeries(w io.Writer, series []host.Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"series", "time_ms", "value"}); err != nil {
		return err
	}
	for _, s := range series {
		rows := lo.Map(s.Y, func(y float64, i int) []string {
			return []string{
				s.Label,
				strconv.FormatFloat(s.X[i], 'f', -1, 64),
				strconv.FormatFloat(y, 'f', -1, 64),
			}
		})
		if err := cw.WriteAll(rows); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ConsumeSeries implements host.SeriesConsumer.
func (c *CSV) ConsumeSeries(_ string, series []host.Series) error {
	f, err := os.Create(c.Path)
	if err != nil {
		return errors.Wrapf(err, "create %s", c.Path)
	}
	if err := WriteSeries(f, series); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", c.Path)
	}
	return f.Close()
}

// Consumers passes series to each consumer in order.
type Consumers []host.SeriesConsumer

// ConsumeSeries implements host.SeriesConsumer.
func (c Consumers) ConsumeSeries(title string, series []host.Series) error {
	for _, consumer := range c {
		if err := consumer.ConsumeSeries(title, series); err != nil {
			return err
		}
	}
	return nil
}
