package device

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"

	fx "github.com/robotalks/stepresp/pkg/framework"
	"github.com/robotalks/stepresp/pkg/l0/comm"
)

// Banner is the first line printed by a freshly started program.
const Banner = "stepresp board ready"

// Board hosts the resident program behind a console. An Interrupt
// byte halts the running program and prints diagnostics; a Restart
// byte while halted boots a fresh program.
type Board struct {
	Config        Config
	Motors        []Motor
	Clock         clock.Clock
	NewController ControllerFactory

	out     *comm.LineWriter
	lock    sync.Mutex
	parser  comm.LineParser
	program *Program
	boots   int
}

// NewBoard creates a board writing to w and boots the program.
func NewBoard(cfg Config, motors []Motor, w io.Writer) (*Board, error) {
	b := &Board{
		Config:        cfg,
		Motors:        motors,
		Clock:         clock.New(),
		NewController: NewProportional,
		out:           comm.NewLineWriter(w),
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.boot(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Board) boot() error {
	p, err := NewProgram(b.Config, b.Motors, b.out, b.NewController)
	if err != nil {
		return err
	}
	b.program = p
	b.boots++
	glog.Infof("program booted (%d)", b.boots)
	return b.out.WriteLine(fmt.Sprintf("%s: motors=%d barrier=%v", Banner,
		len(p.Tasks), p.Responder.Config.Plan.ResetBarrier))
}

func (b *Board) halt() error {
	p := b.program
	if p == nil {
		return nil
	}
	b.program = nil
	p.Stop()
	glog.Info("program halted")
	var err error
	for _, line := range strings.Split("halted\n"+p.Diagnostics(), "\n") {
		if werr := b.out.WriteLine(line); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

// Program returns the running program, nil while halted.
func (b *Board) Program() *Program {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.program
}

// Boots returns how many times the program was started.
func (b *Board) Boots() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.boots
}

// Feed processes bytes received from the host.
func (b *Board) Feed(data []byte) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	var err error
	b.parser.ParseAll(data, func(r comm.ParseResult) {
		switch {
		case r.Control == comm.Interrupt:
			err = b.halt()
		case r.Control == comm.Restart:
			if b.program == nil {
				err = b.boot()
			}
		case r.HasLine:
			if b.program == nil {
				return
			}
			if !b.program.Deliver(r.Line) {
				glog.Warningf("input backlog full, dropped %q", r.Line)
			}
		}
	})
	return err
}

// Serve feeds everything read from r until it fails or ctx is done.
func (b *Board) Serve(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if ferr := b.Feed(buf[:n]); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			if os.IsTimeout(err) {
				continue
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Step runs one scheduler pass of the program, if any.
func (b *Board) Step(ctx context.Context, now time.Time) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.program != nil {
		b.program.Step(ctx, now)
	}
}

// Run implements Runnable. It steps the program every Interval of
// the board clock.
func (b *Board) Run(ctx context.Context) error {
	interval := b.Config.Interval
	if interval <= 0 {
		interval = fx.DefaultInterval
	}
	ticker := b.Clock.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.Step(ctx, b.Clock.Now())
		}
	}
}

// Simulate steps the program on a mock clock as fast as possible,
// advancing it by Interval before each pass.
func (b *Board) Simulate(ctx context.Context, mock *clock.Mock) error {
	interval := b.Config.Interval
	if interval <= 0 {
		interval = fx.DefaultInterval
	}
	b.Clock = mock
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		mock.Add(interval)
		b.Step(ctx, mock.Now())
		// let the host side catch up.
		time.Sleep(10 * time.Microsecond)
	}
}
