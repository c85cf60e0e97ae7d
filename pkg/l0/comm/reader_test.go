package comm

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newPipeReader(t *testing.T) (*LineReader, *io.PipeWriter) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })
	return NewLineReader(pr), pw
}

func writeLines(pw *io.PipeWriter, lines ...string) {
	go func() {
		for _, line := range lines {
			io.WriteString(pw, line+LineTerminator)
		}
	}()
}

func TestLineReaderWaitForToken(t *testing.T) {
	r, pw := newPipeReader(t)
	var echoed []string
	r.Echo = func(line string) { echoed = append(echoed, line) }
	writeLines(pw, "booting", "$a")
	require.NoError(t, r.WaitForToken(context.Background(), TokenGain0, time.Second))
	require.Equal(t, []string{"booting", "$a"}, echoed)
}

func TestLineReaderWaitTimeout(t *testing.T) {
	r, pw := newPipeReader(t)
	writeLines(pw, "noise")
	err := r.WaitForToken(context.Background(), TokenGain0, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	var desync *DesyncError
	require.ErrorAs(t, err, &desync)
	require.Equal(t, TokenGain0, desync.Token)
}

func TestLineReaderWaitCanceled(t *testing.T) {
	r, _ := newPipeReader(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.WaitForToken(ctx, TokenGain0, 0)
	require.ErrorIs(t, err, context.Canceled)
	var desync *DesyncError
	require.False(t, errors.As(err, &desync))
}

func TestLineReaderClosed(t *testing.T) {
	r, pw := newPipeReader(t)
	pw.Close()
	err := r.WaitForToken(context.Background(), TokenBegin0, time.Second)
	require.ErrorIs(t, err, ErrClosed)
}

func TestLineReaderReadBlock(t *testing.T) {
	testCases := []struct {
		name   string
		lines  []string
		expect []string
		err    error
	}{
		{"samples", []string{"1", "2", "3", "$g"}, []string{"1", "2", "3"}, nil},
		{"empty block", []string{"$g"}, nil, nil},
		{"stray token", []string{"1", "$h", "2"}, []string{"1"}, ErrUnexpectedToken},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, pw := newPipeReader(t)
			writeLines(pw, tc.lines...)
			lines, err := r.ReadBlock(context.Background(), TokenEnd0, time.Second)
			require.Equalf(t, tc.expect, lines, "%s lines mismatch", tc.name)
			if tc.err == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tc.err)
			}
		})
	}
}

func TestLineReaderDiscard(t *testing.T) {
	r, pw := newPipeReader(t)
	writeLines(pw, "a", "b")
	require.Eventually(t, func() bool { return len(r.lines) == 2 }, time.Second, time.Millisecond)
	require.Equal(t, 2, r.Discard())
	require.Zero(t, r.Discard())
	writeLines(pw, "$a")
	line, err := r.ReadLine(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, "$a", line)
}
