// Package config holds the session configuration shared by the
// stepresp commands.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/stepresp/pkg/host"
	"github.com/robotalks/stepresp/pkg/link"
)

// Config is a session configuration.
type Config struct {
	// File is the optional YAML file loaded by Load.
	File string `yaml:"-"`

	// Link is the board URL, see link.Open.
	Link     string      `yaml:"link"`
	BaudRate int         `yaml:"baud"`
	Host     host.Config `yaml:"host"`

	Gains     Floats `yaml:"gains,flow"`
	Setpoints Ints   `yaml:"setpoints,flow"`
	PeriodMs  int64  `yaml:"period-ms"`
	// Periods is the period sweep in milliseconds.
	Periods Ints `yaml:"periods,flow"`
	// Positions are setpoint pairs of the position tests.
	Positions [][]int64 `yaml:"positions,flow"`
	// RunSeconds is how long the host waits on each experiment.
	RunSeconds float64 `yaml:"run-seconds"`

	OutputDir string `yaml:"output-dir"`

	// MQTTURL enables publishing records, e.g.
	// mqtt://localhost:1883/lab/.
	MQTTURL string `yaml:"mqtt-url"`
	Station string `yaml:"station"`

	Sim link.SimOptions `yaml:"sim"`
}

var defaultConfig = Config{
	Link:       "sim://",
	BaudRate:   link.DefaultBaudRate,
	Host:       host.DefaultConfig(),
	Gains:      Floats{0.05, 0.05},
	Setpoints:  Ints{16000, 16000},
	PeriodMs:   10,
	Periods:    Ints{10, 30, 70},
	Positions:  [][]int64{{2000, -2000}, {-2000, 2000}, {0, 0}},
	RunSeconds: 1,
	OutputDir:  ".",
	Sim:        link.DefaultSimOptions(),
}

func init() {
	if val := os.Getenv("STEPRESP_LINK"); val != "" {
		defaultConfig.Link = val
	}
	if val := os.Getenv("STEPRESP_MQTT_URL"); val != "" {
		defaultConfig.MQTTURL = val
	}
	if val := os.Getenv("STEPRESP_CONFIG"); val != "" {
		defaultConfig.File = val
	}
}

// SetupFlags sets up command line flags of the default config.
func SetupFlags() {
	defaultConfig.SetupFlagSet(flag.CommandLine)
}

// SetupFlagSet registers flags writing into c.
func (c *Config) SetupFlagSet(fs *flag.FlagSet) {
	fs.StringVar(&c.File, "config", c.File, "YAML session file.")
	fs.StringVar(&c.Link, "link", c.Link, "Board URL: serial device, tcp://, ws:// or sim://.")
	fs.IntVar(&c.BaudRate, "baud", c.BaudRate, "Serial baud rate.")
	fs.IntVar(&c.Host.MotorCount, "motors", c.Host.MotorCount, "Number of motors (1 or 2).")
	fs.DurationVar(&c.Host.TokenTimeout, "token-timeout", c.Host.TokenTimeout, "Timeout waiting for a board token.")
	fs.DurationVar(&c.Host.SettleInterval, "settle", c.Host.SettleInterval, "Pause after interrupting the board.")
	fs.Var(&c.Gains, "gains", "Comma separated proportional gains.")
	fs.Var(&c.Setpoints, "setpoints", "Comma separated setpoints in encoder counts.")
	fs.Int64Var(&c.PeriodMs, "period", c.PeriodMs, "Control period in milliseconds.")
	fs.Var(&c.Periods, "periods", "Comma separated periods of the period sweep.")
	fs.Float64Var(&c.RunSeconds, "run", c.RunSeconds, "Seconds to wait on each experiment.")
	fs.StringVar(&c.OutputDir, "out", c.OutputDir, "Directory of plots and CSV files.")
	fs.StringVar(&c.MQTTURL, "mqtt", c.MQTTURL, "MQTT broker URL to publish records.")
	fs.StringVar(&c.Station, "station", c.Station, "Station id in published topics, machine id when empty.")
	fs.BoolVar(&c.Sim.Device.ResetBarrier, "sim-barrier", c.Sim.Device.ResetBarrier, "Simulated board holds motors between runs.")
	fs.BoolVar(&c.Sim.Virtual, "sim-virtual", c.Sim.Virtual, "Simulated board runs on virtual time.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	conf.Gains = append(Floats(nil), defaultConfig.Gains...)
	conf.Setpoints = append(Ints(nil), defaultConfig.Setpoints...)
	conf.Periods = append(Ints(nil), defaultConfig.Periods...)
	return &conf
}

// Load merges File into c. Flags set explicitly in fs win over the
// file.
func (c *Config) Load(fs *flag.FlagSet) error {
	if c.File == "" {
		return nil
	}
	data, err := os.ReadFile(c.File)
	if err != nil {
		return errors.Wrap(err, "read config")
	}
	explicit := make(map[string]string)
	if fs != nil {
		fs.Visit(func(f *flag.Flag) {
			explicit[f.Name] = f.Value.String()
		})
	}
	file := c.File
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "parse %s", file)
	}
	c.File = file
	for name, val := range explicit {
		if err := fs.Set(name, val); err != nil {
			return errors.Wrapf(err, "flag -%s", name)
		}
	}
	return nil
}

// Duration is RunSeconds as a duration.
func (c *Config) Duration() time.Duration {
	return time.Duration(c.RunSeconds * float64(time.Second))
}

// Experiment is the single step experiment configured.
func (c *Config) Experiment() host.Experiment {
	return host.Experiment{
		Gains:     c.Gains,
		Setpoints: c.Setpoints,
		PeriodMs:  c.PeriodMs,
		Duration:  c.Duration(),
	}
}

// LinkOptions are the options to open Link.
func (c *Config) LinkOptions() link.Options {
	opts := link.Options{BaudRate: c.BaudRate, Sim: c.Sim}
	if opts.Sim.Device.MotorCount == 0 || opts.Sim.Device.MotorCount > c.Host.MotorCount {
		opts.Sim.Device.MotorCount = c.Host.MotorCount
	}
	return opts
}

// Floats is a comma separated list flag.
type Floats []float64

// String implements flag.Value.
func (f *Floats) String() string {
	if f == nil {
		return ""
	}
	parts := make([]string, len(*f))
	for n, v := range *f {
		parts[n] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// Set implements flag.Value.
func (f *Floats) Set(s string) error {
	var vals Floats
	for _, part := range splitList(s) {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return err
		}
		vals = append(vals, v)
	}
	*f = vals
	return nil
}

// Ints is a comma separated list flag.
type Ints []int64

// String implements flag.Value.
func (l *Ints) String() string {
	if l == nil {
		return ""
	}
	parts := make([]string, len(*l))
	for n, v := range *l {
		parts[n] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}

// Set implements flag.Value.
func (l *Ints) Set(s string) error {
	var vals Ints
	for _, part := range splitList(s) {
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return err
		}
		vals = append(vals, v)
	}
	*l = vals
	return nil
}

func splitList(s string) []string {
	var parts []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
