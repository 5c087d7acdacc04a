// Package serialio opens the serial ports the logger talks to and
// hides the driver behind a small Port interface so tests can swap in
// in-memory transports.
package serialio

import (
	"io"

	"github.com/golang/glog"
	"github.com/tarm/serial"
)

// DefaultBaud is used when a line config leaves the baud rate unset.
const DefaultBaud = 115200

// Port is a duplex byte transport. Reads block until at least one
// byte is available.
type Port interface {
	io.ReadWriteCloser
}

// Config describes one serial line.
type Config struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// Open opens the serial line described by c. Failure to open the
// device is a hardware fault: the caller should treat it as fatal.
func Open(c Config) (Port, error) {
	baud := c.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	port, err := serial.OpenPort(&serial.Config{Name: c.Device, Baud: baud})
	if err != nil {
		return nil, err
	}
	glog.Infof("opened %s at %d baud", c.Device, baud)
	return port, nil
}
