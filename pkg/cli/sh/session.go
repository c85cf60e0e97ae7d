package sh

import (
	"context"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/stepresp/pkg/config"
	"github.com/robotalks/stepresp/pkg/host"
	"github.com/robotalks/stepresp/pkg/link"
	"github.com/robotalks/stepresp/pkg/telemetry"
)

// Session is an initialized board with the records taken so far.
type Session struct {
	URL     string
	Link    io.ReadWriteCloser
	Driver  *host.Driver
	Queue   *telemetry.Queue
	Station string
	Records []*host.TelemetryRecord
}

// Open opens the link of conf, initializes the board and connects the
// MQTT publisher when configured.
func Open(ctx context.Context, conf *config.Config, echo func(string)) (*Session, error) {
	rw, err := link.Open(ctx, conf.Link, conf.LinkOptions())
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", conf.Link)
	}
	s := &Session{
		URL:    conf.Link,
		Link:   rw,
		Driver: host.NewDriver(rw, conf.Host, echo),
	}
	if err := s.Driver.InitBoard(ctx); err != nil {
		rw.Close()
		return nil, errors.Wrap(err, "init board")
	}
	if conf.MQTTURL != "" {
		if s.Queue, err = telemetry.NewQueueFromURL(conf.MQTTURL); err != nil {
			rw.Close()
			return nil, errors.Wrap(err, "mqtt url")
		}
		if err := s.Queue.Connect(ctx); err != nil {
			rw.Close()
			return nil, err
		}
		if s.Station = conf.Station; s.Station == "" {
			s.Station = telemetry.StationID()
		}
	}
	return s, nil
}

// Reinit interrupts and restarts the board.
func (s *Session) Reinit(ctx context.Context) error {
	return s.Driver.InitBoard(ctx)
}

// Record keeps recs and publishes them when a broker is connected.
// Publishing failures are logged only.
func (s *Session) Record(ctx context.Context, recs ...*host.TelemetryRecord) {
	for _, rec := range recs {
		s.Records = append(s.Records, rec)
		if s.Queue == nil {
			continue
		}
		if err := s.Queue.Publish(ctx, telemetry.FromRecord(rec, s.Station, time.Now())); err != nil {
			glog.Warningf("publish record: %v", err)
		}
	}
}

// Last returns the latest record, nil when there's none.
func (s *Session) Last() *host.TelemetryRecord {
	if len(s.Records) == 0 {
		return nil
	}
	return s.Records[len(s.Records)-1]
}

// Close closes the link and the broker connection.
func (s *Session) Close() error {
	if s.Queue != nil {
		s.Queue.Close()
	}
	return s.Link.Close()
}
