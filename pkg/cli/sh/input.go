package sh

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/robotalks/stepresp/pkg/l0/comm"
)

// LineInput reads operator input, implemented by *ishell.Context.
type LineInput interface {
	ReadLineErr() (string, error)
	Printf(format string, val ...interface{})
}

// ErrAborted is returned when the operator closes the input.
var ErrAborted = errors.New("input aborted")

// ErrReporter is the error side of an *ishell.Context.
type ErrReporter interface {
	Err(err error)
	Stop()
}

// ReportErr prints err, except an aborted prompt which stops the shell
// without an error.
func ReportErr(r ErrReporter, err error) {
	if errors.Is(err, ErrAborted) {
		r.Stop()
		return
	}
	r.Err(err)
}

func readValue(in LineInput, prompt string, parse func(string) error) error {
	for {
		in.Printf("%s: ", prompt)
		line, err := in.ReadLineErr()
		if err != nil {
			return errors.Wrap(ErrAborted, err.Error())
		}
		line = strings.TrimSpace(line)
		if err := parse(line); err != nil {
			in.Printf("invalid number %q, try again\n", line)
			continue
		}
		return nil
	}
}

// ReadFloat asks until a number is entered.
func ReadFloat(in LineInput, prompt string) (v float64, err error) {
	err = readValue(in, prompt, func(s string) (perr error) {
		v, perr = comm.ParseGain(s)
		return
	})
	return
}

// ReadInt asks until an integer is entered.
func ReadInt(in LineInput, prompt string) (v int64, err error) {
	err = readValue(in, prompt, func(s string) (perr error) {
		v, perr = comm.ParseInt(s)
		return
	})
	return
}
