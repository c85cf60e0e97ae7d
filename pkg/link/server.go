package link

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/stepresp/pkg/framework"
)

// Console is the board side of a link.
type Console interface {
	Serve(ctx context.Context, r io.Reader) error
}

// Switch is a writer forwarding to the attached connection. Output is
// dropped while nothing is attached, like a serial port with no host.
type Switch struct {
	lock sync.Mutex
	w    io.Writer
}

// Attach replaces the current connection.
func (s *Switch) Attach(w io.Writer) {
	s.lock.Lock()
	s.w = w
	s.lock.Unlock()
}

// Detach removes w if it is still attached.
func (s *Switch) Detach(w io.Writer) {
	s.lock.Lock()
	if s.w == w {
		s.w = nil
	}
	s.lock.Unlock()
}

// Write implements io.Writer.
func (s *Switch) Write(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.w == nil {
		return len(p), nil
	}
	if _, err := s.w.Write(p); err != nil {
		glog.Warningf("console write: %v", err)
		s.w = nil
	}
	return len(p), nil
}

// Server exposes a console to one host at a time. A new connection
// replaces the previous one.
type Server struct {
	Console Console
	Output  *Switch

	lock    sync.Mutex
	current io.Closer
}

func (s *Server) serveConn(ctx context.Context, conn io.ReadWriteCloser, remote string) {
	s.lock.Lock()
	if s.current != nil {
		s.current.Close()
	}
	s.current = conn
	s.lock.Unlock()

	glog.Infof("host attached from %s", remote)
	s.Output.Attach(conn)
	err := fx.RunWithContextCloser(ctx, conn, func() error {
		return s.Console.Serve(ctx, conn)
	})
	s.Output.Detach(conn)
	glog.Infof("host from %s detached: %v", remote, err)
}

// ServeTCP accepts raw TCP connections on ln.
func (s *Server) ServeTCP(ctx context.Context, ln net.Listener) error {
	return fx.RunWithContextCloser(ctx, ln, func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			go s.serveConn(ctx, conn, conn.RemoteAddr().String())
		}
	})
}

// WebsocketHandler serves the console over websocket.
func (s *Server) WebsocketHandler(ctx context.Context) http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		conn.PayloadType = websocket.BinaryFrame
		s.serveConn(ctx, conn, conn.Request().RemoteAddr)
	})
}

// ServeHTTP serves the websocket console on ln.
func (s *Server) ServeHTTP(ctx context.Context, ln net.Listener, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, s.WebsocketHandler(ctx))
	srv := &http.Server{Handler: mux}
	return fx.RunWithContextCancel(ctx, func() { srv.Close() }, func() error {
		return srv.Serve(ln)
	})
}
