// Package link opens byte streams to a board.
package link

import (
	"context"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/websocket"
)

// DefaultBaudRate is the serial speed of the board console.
const DefaultBaudRate = 115200

// Options tunes how a link is opened.
type Options struct {
	BaudRate    int
	DialTimeout time.Duration
	// Sim configures links using the "sim" scheme.
	Sim SimOptions
}

// InputResetter is implemented by links able to discard received but
// unread data.
type InputResetter interface {
	ResetInputBuffer() error
}

// ErrUnsupportedScheme is returned by Open for an unknown URL scheme.
var ErrUnsupportedScheme = errors.New("unsupported link scheme")

// Open connects to a board. Supported forms:
//
//	/dev/ttyACM0 or COM4          serial port
//	serial:///dev/ttyACM0?baud=N  serial port
//	tcp://host:port               raw TCP console
//	ws://host:port/path           websocket console
//	sim://?motors=2&barrier=true  in-process simulated board
func Open(ctx context.Context, rawURL string, opts Options) (io.ReadWriteCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// a plain device path, or a windows drive letter.
		return OpenSerial(rawURL, SerialOptions{BaudRate: baudRate(opts.BaudRate)})
	}
	switch u.Scheme {
	case "serial":
		baud := opts.BaudRate
		if v := u.Query().Get("baud"); v != "" {
			if baud, err = strconv.Atoi(v); err != nil {
				return nil, errors.Wrapf(err, "invalid baud rate %q", v)
			}
		}
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		return OpenSerial(path, SerialOptions{BaudRate: baudRate(baud)})
	case "tcp":
		d := net.Dialer{Timeout: opts.DialTimeout}
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return nil, errors.Wrapf(err, "dial %s", u.Host)
		}
		return conn, nil
	case "ws", "wss":
		origin := "http://localhost/"
		if u.Scheme == "wss" {
			origin = "https://localhost/"
		}
		conn, err := websocket.Dial(rawURL, "", origin)
		if err != nil {
			return nil, errors.Wrapf(err, "dial %s", rawURL)
		}
		return conn, nil
	case "sim":
		simOpts, err := opts.Sim.fromQuery(u.Query())
		if err != nil {
			return nil, err
		}
		return NewSim(simOpts)
	}
	return nil, errors.Wrapf(ErrUnsupportedScheme, "%q", u.Scheme)
}

func baudRate(baud int) int {
	if baud <= 0 {
		return DefaultBaudRate
	}
	return baud
}

// ResetInput discards unread input if the link supports it.
func ResetInput(rw io.ReadWriter) error {
	if r, ok := rw.(InputResetter); ok {
		return r.ResetInputBuffer()
	}
	return nil
}

func parseBool(s string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(s))
}
