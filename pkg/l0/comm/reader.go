package comm

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
)

// LineReader reads lines from a stream in the background so that
// waits can be bounded by a timeout and canceled by a context.
type LineReader struct {
	// Echo is called with every line handed out. Optional.
	Echo  func(string)
	Clock clock.Clock

	reader io.Reader
	lines  chan string
	err    error
	lock   sync.Mutex
}

const lineBacklog = 4096

// NewLineReader creates a LineReader and starts reading from r. The
// reader stops when r returns an error other than a timeout.
func NewLineReader(r io.Reader) *LineReader {
	lr := &LineReader{
		Clock:  clock.New(),
		reader: r,
		lines:  make(chan string, lineBacklog),
	}
	go lr.readLoop()
	return lr
}

func (r *LineReader) readLoop() {
	var parser LineParser
	buf := make([]byte, 256)
	defer close(r.lines)
	for {
		n, err := r.reader.Read(buf)
		parser.ParseAll(buf[:n], func(res ParseResult) {
			if res.HasLine {
				r.lines <- res.Line
			}
		})
		if err != nil {
			if os.IsTimeout(err) {
				continue
			}
			r.lock.Lock()
			r.err = err
			r.lock.Unlock()
			glog.V(2).Infof("line reader stopped: %v", err)
			return
		}
	}
}

func (r *LineReader) closedErr() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.err != nil && r.err != io.EOF {
		return &closedError{cause: r.err}
	}
	return ErrClosed
}

type closedError struct {
	cause error
}

func (e *closedError) Error() string        { return ErrClosed.Error() + ": " + e.cause.Error() }
func (e *closedError) Is(target error) bool { return target == ErrClosed }
func (e *closedError) Unwrap() error        { return e.cause }

func (r *LineReader) timer(timeout time.Duration) (<-chan time.Time, func()) {
	if timeout <= 0 {
		return nil, func() {}
	}
	t := r.Clock.Timer(timeout)
	return t.C, func() { t.Stop() }
}

func (r *LineReader) next(ctx context.Context, timeoutCh <-chan time.Time) (string, error) {
	select {
	case line, ok := <-r.lines:
		if !ok {
			return "", r.closedErr()
		}
		if r.Echo != nil {
			r.Echo(line)
		}
		return line, nil
	case <-timeoutCh:
		return "", ErrTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ReadLine returns the next line. A timeout of zero waits forever.
func (r *LineReader) ReadLine(ctx context.Context, timeout time.Duration) (string, error) {
	timeoutCh, stop := r.timer(timeout)
	defer stop()
	return r.next(ctx, timeoutCh)
}

// WaitForToken skips lines until one carries tok. The timeout bounds
// the whole wait. Failures other than cancellation are reported as
// *DesyncError.
func (r *LineReader) WaitForToken(ctx context.Context, tok string, timeout time.Duration) error {
	timeoutCh, stop := r.timer(timeout)
	defer stop()
	var last string
	for {
		line, err := r.next(ctx, timeoutCh)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return &DesyncError{Token: tok, Line: last, Cause: err}
		}
		if MatchToken(line, tok) {
			return nil
		}
		last = line
	}
}

// ReadBlock collects lines until one carries endTok, which is not
// included. The timeout applies to each line. A different token inside
// the block is a *DesyncError.
func (r *LineReader) ReadBlock(ctx context.Context, endTok string, timeout time.Duration) ([]string, error) {
	var lines []string
	for {
		line, err := r.ReadLine(ctx, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return lines, err
			}
			return lines, &DesyncError{Token: endTok, Line: lastOf(lines), Cause: err}
		}
		if MatchToken(line, endTok) {
			return lines, nil
		}
		if IsToken(line) {
			return lines, &DesyncError{Token: endTok, Line: line, Cause: ErrUnexpectedToken}
		}
		lines = append(lines, line)
	}
}

// Discard drops all lines received so far and returns how many.
func (r *LineReader) Discard() int {
	var n int
	for {
		select {
		case line, ok := <-r.lines:
			if !ok {
				return n
			}
			if r.Echo != nil {
				r.Echo(line)
			}
			n++
		default:
			return n
		}
	}
}

func lastOf(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
