package bridge

import (
	"errors"
	"io"
	"os"
	"sync"

	"go.bug.st/serial"
)

// DefaultBaudRate of the sensor link.
const DefaultBaudRate = 9600

// OpenFunc opens a named port.
type OpenFunc func(name string, baudRate int) (io.ReadCloser, error)

// OpenSerial opens a serial port 8N1 at baudRate.
func OpenSerial(name string, baudRate int) (io.ReadCloser, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	return port, nil
}

// AvailablePorts lists the serial ports present on the system.
func AvailablePorts() []string {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil
	}
	return ports
}

// portHandle makes closing a port idempotent; the port is closed both by the
// session and by the context watcher.
type portHandle struct {
	io.ReadCloser
	once sync.Once
	err  error
}

func (p *portHandle) Close() error {
	p.once.Do(func() {
		p.err = p.ReadCloser.Close()
	})
	return p.err
}

// portClosed reports whether a read error means the port went away rather
// than failed, e.g. the adapter was unplugged.
func portClosed(err error) bool {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		return portErr.Code() == serial.PortClosed
	}
	return errors.Is(err, os.ErrClosed)
}
