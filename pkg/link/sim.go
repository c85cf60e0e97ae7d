package link

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/robotalks/stepresp/pkg/device"
	"github.com/robotalks/stepresp/pkg/sim"
)

// SimOptions configures an in-process simulated board.
type SimOptions struct {
	Device device.Config   `yaml:"device"`
	Motor  sim.MotorConfig `yaml:"motor"`
	// Virtual runs the board on a mock clock as fast as possible
	// instead of in real time.
	Virtual bool `yaml:"virtual"`
}

// DefaultSimOptions returns a real time two motor board.
func DefaultSimOptions() SimOptions {
	return SimOptions{Device: device.DefaultConfig(), Motor: sim.DefaultMotorConfig()}
}

func (o SimOptions) fromQuery(q url.Values) (SimOptions, error) {
	if o.Device.MotorCount == 0 {
		o = DefaultSimOptions()
	}
	if v := q.Get("motors"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return o, errors.Wrapf(err, "invalid motors %q", v)
		}
		o.Device.MotorCount = n
	}
	for key, dst := range map[string]*bool{
		"barrier": &o.Device.ResetBarrier,
		"virtual": &o.Virtual,
		"time":    &o.Device.TimeColumn,
	} {
		if v := q.Get(key); v != "" {
			b, err := parseBool(v)
			if err != nil {
				return o, errors.Wrapf(err, "invalid %s %q", key, v)
			}
			*dst = b
		}
	}
	if v := q.Get("run"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return o, errors.Wrapf(err, "invalid run %q", v)
		}
		o.Device.RunDuration = d
	}
	return o, nil
}

// SimMotors creates simulated motors with inverted encoders.
func SimMotors(count int, cfg sim.MotorConfig) []device.Motor {
	var motors []device.Motor
	for n := 0; n < count; n++ {
		m := sim.NewMotor("m"+strconv.Itoa(n), cfg)
		motors = append(motors, device.Motor{Actuator: m, Sensor: sim.NewEncoder(m, true), Plant: m})
	}
	return motors
}

// rxBuffer holds board output until the host reads it. Writes never
// block, like the receive buffer of a serial port.
type rxBuffer struct {
	lock   sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	closed bool
}

func newRxBuffer() *rxBuffer {
	b := &rxBuffer{}
	b.cond = sync.NewCond(&b.lock)
	return b
}

func (b *rxBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.closed {
		return 0, io.ErrClosedPipe
	}
	b.buf.Write(p)
	b.cond.Broadcast()
	return len(p), nil
}

func (b *rxBuffer) Read(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	for b.buf.Len() == 0 {
		if b.closed {
			return 0, io.EOF
		}
		b.cond.Wait()
	}
	return b.buf.Read(p)
}

func (b *rxBuffer) Reset() {
	b.lock.Lock()
	b.buf.Reset()
	b.lock.Unlock()
}

func (b *rxBuffer) Close() error {
	b.lock.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.lock.Unlock()
	return nil
}

// Sim is a link to a simulated board running in-process.
type Sim struct {
	Board *device.Board

	rx     *rxBuffer
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewSim boots a simulated board and starts running it.
func NewSim(opts SimOptions) (*Sim, error) {
	count := opts.Device.MotorCount
	if count < 1 {
		count = 1
	}
	rx := newRxBuffer()
	board, err := device.NewBoard(opts.Device, SimMotors(count, opts.Motor), rx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sim{Board: board, rx: rx, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		if opts.Virtual {
			board.Simulate(ctx, clock.NewMock())
		} else {
			board.Run(ctx)
		}
	}()
	return s, nil
}

// Read implements io.Reader.
func (s *Sim) Read(p []byte) (int, error) {
	return s.rx.Read(p)
}

// ResetInputBuffer implements InputResetter.
func (s *Sim) ResetInputBuffer() error {
	s.rx.Reset()
	return nil
}

// Write implements io.Writer.
func (s *Sim) Write(p []byte) (int, error) {
	select {
	case <-s.done:
		return 0, io.ErrClosedPipe
	default:
	}
	if err := s.Board.Feed(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close stops the board.
func (s *Sim) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		s.rx.Close()
	})
	return nil
}
