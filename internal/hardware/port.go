package hardware

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Port abstracts the serial connection for testing.
type Port interface {
	io.ReadWriteCloser
}

// DefaultBaudRate matches the common Arduino sketch configuration.
const DefaultBaudRate = 9600

// bootDelay gives the board time to reset after the port opens.
// Most Arduino clones reboot when DTR toggles on open.
const bootDelay = 2 * time.Second

// OpenSerial opens the named serial port at the given baud rate and
// waits for the board to finish booting.
func OpenSerial(name string, baudRate int) (Port, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	mode := &serial.Mode{BaudRate: baudRate}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	if err := p.SetReadTimeout(time.Second); err != nil {
		p.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}
	time.Sleep(bootDelay)
	return p, nil
}

// ListPorts returns the names of serial ports present on the system.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
