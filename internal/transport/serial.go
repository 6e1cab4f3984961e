package transport

import (
	"context"
	"fmt"
	"sync"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/nerrad567/nebula-core/internal/robot"
)

// Port is the part of an open serial port the connector writes to.
// serial.Port satisfies it.
type Port interface {
	Write(p []byte) (int, error)
	Drain() error
	Close() error
}

// OpenFunc opens a serial device at the given baud rate.
type OpenFunc func(name string, baudRate int) (Port, error)

func openSerial(name string, baudRate int) (Port, error) {
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

// serialEntry owns the open port for one robot. writeMu serialises writes;
// mu guards port and closed and is never held across a write, so close can
// release the device while a write is stuck on it.
type serialEntry struct {
	writeMu sync.Mutex

	mu     sync.Mutex
	port   Port
	closed bool
}

// SerialConnector writes newline-terminated JSON to one cached port per robot.
type SerialConnector struct {
	open OpenFunc

	entries map[string]*serialEntry
	mu      sync.Mutex

	logger Logger
}

// NewSerialConnector creates a serial connector.
func NewSerialConnector() *SerialConnector {
	return &SerialConnector{
		open:    openSerial,
		entries: make(map[string]*serialEntry),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the connector.
func (c *SerialConnector) SetLogger(logger Logger) {
	c.logger = logger
}

// Protocol implements Connector.
func (c *SerialConnector) Protocol() robot.Protocol {
	return robot.ProtocolSerial
}

// Deliver implements Connector. Writes do not observe ctx; the dispatcher
// abandons a write that outlives its attempt timeout.
func (c *SerialConnector) Deliver(_ context.Context, r *robot.Config, payload map[string]any) bool {
	body, err := encode(payload)
	if err != nil {
		c.logger.Warn("serial delivery failed", "robot_id", r.ID, "error", err)
		return false
	}
	body = append(body, '\n')

	entry := c.entry(r.ID)
	entry.writeMu.Lock()
	defer entry.writeMu.Unlock()

	port, err := entry.acquire(c.open, r)
	if err != nil {
		c.logger.Warn("serial open failed", "robot_id", r.ID, "port", r.SerialPort, "error", err)
		return false
	}

	if err := writeAll(port, body); err != nil {
		c.logger.Warn("serial write failed", "robot_id", r.ID, "port", r.SerialPort, "error", err)
		entry.drop(port)
		return false
	}
	return true
}

// acquire returns the entry's port, opening it on first use.
func (e *serialEntry) acquire(open OpenFunc, r *robot.Config) (Port, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	if e.port == nil {
		port, err := open(r.SerialPort, r.SerialBaudRate)
		if err != nil {
			return nil, err
		}
		e.port = port
	}
	return e.port, nil
}

// drop closes port if it is still the entry's current port.
func (e *serialEntry) drop(port Port) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.port != port {
		return
	}
	port.Close() //nolint:errcheck // Dropping a failed port
	e.port = nil
}

func writeAll(port Port, data []byte) error {
	for len(data) > 0 {
		n, err := port.Write(data)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("short write with %d bytes left", len(data))
		}
		data = data[n:]
	}
	return port.Drain()
}

func (c *SerialConnector) entry(robotID string) *serialEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[robotID]
	if !ok {
		e = &serialEntry{}
		c.entries[robotID] = e
	}
	return e
}

// Invalidate implements Connector. The port is closed before Invalidate
// returns, which also fails any write still blocked on it, so the next
// Deliver never opens the device while the old handle is live.
func (c *SerialConnector) Invalidate(robotID string) {
	c.mu.Lock()
	e, ok := c.entries[robotID]
	delete(c.entries, robotID)
	c.mu.Unlock()

	if ok {
		e.close()
	}
}

// Close implements Connector.
func (c *SerialConnector) Close() error {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*serialEntry)
	c.mu.Unlock()

	for _, e := range entries {
		e.close()
	}
	return nil
}

func (e *serialEntry) close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	if e.port != nil {
		e.port.Close() //nolint:errcheck // Releasing the device
		e.port = nil
	}
}

// PortInfo describes a serial device present on the host.
type PortInfo struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// ListPorts enumerates the serial devices on this host.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		info := PortInfo{
			Name:        d.Name,
			Description: d.Product,
			IsUSB:       d.IsUSB,
		}
		if d.IsUSB {
			info.VID = d.VID
			info.PID = d.PID
			info.SerialNumber = d.SerialNumber
		}
		if info.Description == "" {
			info.Description = "n/a"
		}
		ports = append(ports, info)
	}
	return ports, nil
}
