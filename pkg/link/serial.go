package link

import (
	"io"
	"time"

	"github.com/pkg/errors"
	ser "go.bug.st/serial"
)

// SerialOptions configures a serial port.
type SerialOptions struct {
	BaudRate int
	// ReadTimeout makes Read return periodically with no data. Zero
	// blocks.
	ReadTimeout time.Duration
}

// OpenSerial opens a serial port. It's a variable so tests can
// override it.
var OpenSerial = func(path string, options SerialOptions) (io.ReadWriteCloser, error) {
	mode := &ser.Mode{
		BaudRate: options.BaudRate,
		DataBits: 8,
		Parity:   ser.NoParity,
		StopBits: ser.OneStopBit,
	}
	port, err := ser.Open(path, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "open serial %s", path)
	}
	if options.ReadTimeout > 0 {
		if err := port.SetReadTimeout(options.ReadTimeout); err != nil {
			port.Close()
			return nil, errors.Wrapf(err, "serial %s read timeout", path)
		}
	}
	return port, nil
}

// SerialPorts lists the serial ports of the system.
func SerialPorts() ([]string, error) {
	return ser.GetPortsList()
}
