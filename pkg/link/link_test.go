package link

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/stepresp/pkg/device"
)

type nopPort struct {
	bytes.Buffer
}

func (p *nopPort) Close() error { return nil }

func TestOpenSerial(t *testing.T) {
	saved := OpenSerial
	defer func() { OpenSerial = saved }()
	var opened []string
	var bauds []int
	OpenSerial = func(path string, options SerialOptions) (io.ReadWriteCloser, error) {
		opened = append(opened, path)
		bauds = append(bauds, options.BaudRate)
		return &nopPort{}, nil
	}
	ctx := context.Background()
	for _, rawURL := range []string{"/dev/ttyACM0", "COM4", "serial:///dev/ttyUSB1?baud=9600"} {
		rw, err := Open(ctx, rawURL, Options{})
		require.NoError(t, err)
		rw.Close()
	}
	require.Equal(t, []string{"/dev/ttyACM0", "COM4", "/dev/ttyUSB1"}, opened)
	require.Equal(t, []int{DefaultBaudRate, DefaultBaudRate, 9600}, bauds)

	_, err := Open(ctx, "serial:///dev/x?baud=fast", Options{})
	require.Error(t, err)
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open(context.Background(), "udp://localhost:1", Options{})
	require.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestSimQuery(t *testing.T) {
	testCases := []struct {
		query   string
		check   func(SimOptions)
		invalid bool
	}{
		{
			query: "",
			check: func(o SimOptions) {
				require.Equal(t, 2, o.Device.MotorCount)
				require.True(t, o.Device.ResetBarrier)
				require.False(t, o.Virtual)
			},
		},
		{
			query: "motors=1&barrier=false&virtual=true&time=1&run=200ms",
			check: func(o SimOptions) {
				require.Equal(t, 1, o.Device.MotorCount)
				require.False(t, o.Device.ResetBarrier)
				require.True(t, o.Virtual)
				require.True(t, o.Device.TimeColumn)
				require.Equal(t, 200*time.Millisecond, o.Device.RunDuration)
			},
		},
		{query: "motors=two", invalid: true},
		{query: "barrier=maybe", invalid: true},
		{query: "run=long", invalid: true},
	}
	for _, tc := range testCases {
		t.Run(tc.query, func(t *testing.T) {
			q, err := url.ParseQuery(tc.query)
			require.NoError(t, err)
			o, err := SimOptions{}.fromQuery(q)
			if tc.invalid {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tc.check(o)
		})
	}
}

func TestSimLink(t *testing.T) {
	rw, err := Open(context.Background(), "sim://?virtual=true&motors=1", Options{})
	require.NoError(t, err)
	defer rw.Close()
	r := bufio.NewReader(rw)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, device.Banner))
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "$a\r\n", line)
	require.NoError(t, rw.Close())
	_, err = rw.Write([]byte("1\r\n"))
	require.Error(t, err)
}

func TestSwitch(t *testing.T) {
	var s Switch
	n, err := s.Write([]byte("dropped"))
	require.NoError(t, err)
	require.Equal(t, 7, n)

	var a, b bytes.Buffer
	s.Attach(&a)
	s.Write([]byte("to a"))
	s.Attach(&b)
	s.Detach(&a)
	s.Write([]byte("to b"))
	s.Detach(&b)
	s.Write([]byte("dropped"))
	require.Equal(t, "to a", a.String())
	require.Equal(t, "to b", b.String())
}

type echoConsole struct {
	out  io.Writer
	lock sync.Mutex
	got  []byte
}

func (c *echoConsole) Serve(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			c.lock.Lock()
			c.got = append(c.got, buf[:n]...)
			c.lock.Unlock()
			c.out.Write(buf[:n])
		}
		if err != nil {
			return err
		}
	}
}

func TestServeTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	out := &Switch{}
	console := &echoConsole{out: out}
	srv := &Server{Console: console, Output: out}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeTCP(ctx, ln) }()

	rw, err := Open(ctx, "tcp://"+ln.Addr().String(), Options{DialTimeout: time.Second})
	require.NoError(t, err)
	defer rw.Close()
	_, err = rw.Write([]byte("ping\r\n"))
	require.NoError(t, err)
	line, err := bufio.NewReader(rw).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "ping\r\n", line)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("server not stopped")
	}
}
