package comm

import (
	"io"
	"sync"
)

// LineWriter writes terminated lines. It is safe for concurrent use.
type LineWriter struct {
	w    io.Writer
	lock sync.Mutex
}

// NewLineWriter wraps w.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// WriteLine writes s followed by LineTerminator.
func (w *LineWriter) WriteLine(s string) error {
	w.lock.Lock()
	defer w.lock.Unlock()
	_, err := io.WriteString(w.w, s+LineTerminator)
	return err
}

// WriteBytes writes raw bytes, e.g. control bytes.
func (w *LineWriter) WriteBytes(p ...byte) error {
	w.lock.Lock()
	defer w.lock.Unlock()
	_, err := w.w.Write(p)
	return err
}
