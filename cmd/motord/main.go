package main

import (
	"context"
	"flag"
	"net"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/stepresp/pkg/device"
	fx "github.com/robotalks/stepresp/pkg/framework"
	"github.com/robotalks/stepresp/pkg/link"
)

//go-build: CGO_ENABLED=0

var (
	tcpAddr    = ":2000"
	httpAddr   = ""
	wsPath     = "/console"
	configFile = ""
	virtual    = false
	opts       = link.DefaultSimOptions()
)

func init() {
	flag.StringVar(&tcpAddr, "tcp", tcpAddr, "Raw TCP console address, empty to disable.")
	flag.StringVar(&httpAddr, "http", httpAddr, "Websocket console address, empty to disable.")
	flag.StringVar(&wsPath, "ws-path", wsPath, "Websocket console path.")
	flag.StringVar(&configFile, "config", configFile, "YAML file of the simulated board.")
	flag.IntVar(&opts.Device.MotorCount, "motors", opts.Device.MotorCount, "Number of motors.")
	flag.BoolVar(&opts.Device.ResetBarrier, "barrier", opts.Device.ResetBarrier, "Hold the motors between runs.")
	flag.BoolVar(&opts.Device.TimeColumn, "time-column", opts.Device.TimeColumn, "Emit elapsed_ms,value telemetry.")
	flag.DurationVar(&opts.Device.RunDuration, "run", opts.Device.RunDuration, "Run duration of each experiment.")
	flag.BoolVar(&virtual, "virtual", virtual, "Run on virtual time as fast as possible.")
}

func loadConfig() error {
	if configFile == "" {
		return nil
	}
	data, err := os.ReadFile(configFile)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, &opts)
}

func listen(r *fx.Runner, srv *link.Server) error {
	if tcpAddr != "" {
		ln, err := net.Listen("tcp", tcpAddr)
		if err != nil {
			return err
		}
		glog.Infof("console on tcp://%s", ln.Addr())
		r.Go(fx.NamedRun("tcp", fx.RunFunc(func(ctx context.Context) error {
			return srv.ServeTCP(ctx, ln)
		})))
	}
	if httpAddr != "" {
		ln, err := net.Listen("tcp", httpAddr)
		if err != nil {
			return err
		}
		glog.Infof("console on ws://%s%s", ln.Addr(), wsPath)
		r.Go(fx.NamedRun("http", fx.RunFunc(func(ctx context.Context) error {
			return srv.ServeHTTP(ctx, ln, wsPath)
		})))
	}
	return nil
}

func main() {
	flag.Set("logtostderr", "true")
	flag.Parse()
	if err := loadConfig(); err != nil {
		glog.Exitf("load config: %v", err)
	}

	out := &link.Switch{}
	board, err := device.NewBoard(opts.Device, link.SimMotors(opts.Device.MotorCount, opts.Motor), out)
	if err != nil {
		glog.Exitf("create board: %v", err)
	}
	srv := &link.Server{Console: board, Output: out}

	r := fx.NewRunner().HandleSignals()
	if err := listen(r, srv); err != nil {
		glog.Exitf("listen: %v", err)
	}
	if virtual || opts.Virtual {
		r.Go(fx.NamedRun("board", fx.RunFunc(func(ctx context.Context) error {
			return board.Simulate(ctx, clock.NewMock())
		})))
	} else {
		r.Go(fx.NamedRun("board", board))
	}
	err = r.Wait()
	glog.Flush()
	os.Exit(fx.ExitCode(err))
}
