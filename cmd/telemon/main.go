package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang/glog"

	fx "github.com/robotalks/stepresp/pkg/framework"
	"github.com/robotalks/stepresp/pkg/host"
	"github.com/robotalks/stepresp/pkg/report"
	"github.com/robotalks/stepresp/pkg/telemetry"
)

var (
	mqttURL = "mqtt://localhost:1883/"
	station = "+"
	graph   = true
)

func init() {
	if val := os.Getenv("STEPRESP_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&station, "station", station, "Station to monitor, + for all.")
	flag.BoolVar(&graph, "graph", graph, "Draw an ascii graph of each record.")
}

func show(topic string, rec *telemetry.Record) {
	hr := rec.HostRecord()
	series := make([]host.Series, len(hr.Motors))
	for n := range hr.Motors {
		series[n] = hr.Series(n, "motor "+strconv.Itoa(n))
	}
	title := fmt.Sprintf("%s %s %v", telemetry.StationOf(topic), rec.Time().Format("15:04:05.000"), hr.Experiment)
	consumers := report.Consumers{&report.Table{Out: os.Stdout}}
	if graph {
		consumers = append(consumers, &report.ASCII{Out: os.Stdout, Height: 10, Width: 70})
	}
	if err := consumers.ConsumeSeries(title, series); err != nil {
		glog.Warningf("%s: %v", topic, err)
	}
}

func main() {
	flag.Set("logtostderr", "true")
	flag.Parse()

	q, err := telemetry.NewQueueFromURL(mqttURL)
	if err != nil {
		glog.Exit(err)
	}

	r := fx.NewRunner().HandleSignals()
	r.Go(fx.NamedRun("monitor", fx.RunFunc(func(ctx context.Context) error {
		if err := q.Connect(ctx); err != nil {
			return err
		}
		if err := q.Subscribe(ctx, telemetry.RecordTopic(station), show); err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	})))
	err = r.Wait()
	q.Close()
	glog.Flush()
	os.Exit(fx.ExitCode(err))
}
