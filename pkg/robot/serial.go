package robot

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// SerialPorter is the minimal port surface the serial controller needs.
// It lets tests drive the protocol without hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// PortOptions describes the serial link to the control board.
type PortOptions struct {
	BaudRate    int           `json:"baud_rate"`
	ReadTimeout time.Duration `json:"read_timeout"`
}

// Normalize applies defaults for unset values.
func (o PortOptions) Normalize() PortOptions {
	if o.BaudRate <= 0 {
		o.BaudRate = 115200
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 100 * time.Millisecond
	}
	return o
}

// SerialController implements Capabilities over a line-oriented ASCII protocol:
//
//	P <axis> <deg>      position move      -> OK
//	V <axis> <deg/s>    velocity move      -> OK
//	M <axis> POS|VEL    control mode       -> OK
//	E <axis>            encoder read       -> OK <deg>
//
// Failures are answered with "ERR <message>".
type SerialController struct {
	port   SerialPorter
	reader *bufio.Reader

	mu     sync.Mutex // one request in flight
	closed bool
}

// OpenSerial opens the control board at path (e.g. "/dev/ttyUSB0").
func OpenSerial(path string, opts PortOptions) (*SerialController, error) {
	opts = opts.Normalize()

	port, err := serial.Open(path, &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", path, err)
	}
	if err := port.SetReadTimeout(opts.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return NewSerialController(port), nil
}

// NewSerialController wraps an already-open port.
func NewSerialController(port SerialPorter) *SerialController {
	return &SerialController{
		port:   port,
		reader: bufio.NewReader(port),
	}
}

// PositionMove implements PositionController.
func (s *SerialController) PositionMove(j Joint, deg float64) error {
	_, err := s.request(j, "P %d %s", int(j), formatFloat(deg))
	return err
}

// VelocityMove implements VelocityController.
func (s *SerialController) VelocityMove(j Joint, degPerSec float64) error {
	_, err := s.request(j, "V %d %s", int(j), formatFloat(degPerSec))
	return err
}

// SetControlMode implements ModeController.
func (s *SerialController) SetControlMode(j Joint, m Mode) error {
	arg := "POS"
	if m == ModeVelocity {
		arg = "VEL"
	}
	_, err := s.request(j, "M %d %s", int(j), arg)
	return err
}

// Encoder implements EncoderReader.
func (s *SerialController) Encoder(j Joint) (float64, error) {
	reply, err := s.request(j, "E %d", int(j))
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(reply, 64)
	if err != nil {
		return 0, fmt.Errorf("parse encoder %q: %w", reply, err)
	}
	return v, nil
}

// Close closes the port.
func (s *SerialController) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.port.Close()
}

// request writes one command line and returns the payload after "OK".
func (s *SerialController) request(j Joint, format string, args ...any) (string, error) {
	if !validJoint(j) {
		return "", ErrUnknownJoint
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}

	line := fmt.Sprintf(format, args...) + "\n"
	if _, err := io.WriteString(s.port, line); err != nil {
		return "", fmt.Errorf("write %q: %w", strings.TrimSpace(line), err)
	}

	reply, err := s.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	reply = strings.TrimSpace(reply)

	switch {
	case reply == "OK":
		return "", nil
	case strings.HasPrefix(reply, "OK "):
		return strings.TrimPrefix(reply, "OK "), nil
	case strings.HasPrefix(reply, "ERR"):
		return "", fmt.Errorf("board: %s", strings.TrimSpace(strings.TrimPrefix(reply, "ERR")))
	default:
		return "", fmt.Errorf("unexpected reply %q", reply)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
