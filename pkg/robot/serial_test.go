package robot

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBoardPort answers each written command line from a scripted handler.
type fakeBoardPort struct {
	lines  []string
	out    bytes.Buffer
	reply  func(line string) string
	closed bool
}

func (p *fakeBoardPort) Write(b []byte) (int, error) {
	line := strings.TrimSpace(string(b))
	p.lines = append(p.lines, line)
	p.out.WriteString(p.reply(line) + "\n")
	return len(b), nil
}

func (p *fakeBoardPort) Read(b []byte) (int, error) {
	return p.out.Read(b)
}

func (p *fakeBoardPort) Close() error {
	p.closed = true
	return nil
}

func okBoard(line string) string {
	if strings.HasPrefix(line, "E ") {
		return "OK 1.2500"
	}
	return "OK"
}

func TestSerialController_CommandLines(t *testing.T) {
	port := &fakeBoardPort{reply: okBoard}
	c := NewSerialController(port)

	require.NoError(t, c.SetControlMode(NeckYaw, ModeVelocity))
	require.NoError(t, c.VelocityMove(NeckYaw, -2.5))
	require.NoError(t, c.PositionMove(EyeYaw, 10))
	require.NoError(t, c.SetControlMode(EyeTilt, ModePosition))

	assert.Equal(t, []string{
		"M 2 VEL",
		"V 2 -2.5000",
		"P 4 10.0000",
		"M 3 POS",
	}, port.lines)
}

func TestSerialController_Encoder(t *testing.T) {
	port := &fakeBoardPort{reply: okBoard}
	c := NewSerialController(port)

	v, err := c.Encoder(EyeTilt)
	require.NoError(t, err)
	assert.InDelta(t, 1.25, v, 1e-9)
	assert.Equal(t, []string{"E 3"}, port.lines)
}

func TestSerialController_BoardError(t *testing.T) {
	port := &fakeBoardPort{reply: func(string) string { return "ERR axis disabled" }}
	c := NewSerialController(port)

	err := c.PositionMove(EyeYaw, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "axis disabled")
}

func TestSerialController_UnexpectedReply(t *testing.T) {
	port := &fakeBoardPort{reply: func(string) string { return "???" }}
	c := NewSerialController(port)

	_, err := c.Encoder(EyeYaw)
	require.Error(t, err)
}

func TestSerialController_UnknownJoint(t *testing.T) {
	port := &fakeBoardPort{reply: okBoard}
	c := NewSerialController(port)

	err := c.PositionMove(Joint(1), 0)
	assert.True(t, errors.Is(err, ErrUnknownJoint))
	assert.Empty(t, port.lines)
}

func TestSerialController_Close(t *testing.T) {
	port := &fakeBoardPort{reply: okBoard}
	c := NewSerialController(port)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, port.closed)

	err := c.VelocityMove(NeckPitch, 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPortOptions_Normalize(t *testing.T) {
	opts := PortOptions{}.Normalize()
	assert.Equal(t, 115200, opts.BaudRate)
	assert.NotZero(t, opts.ReadTimeout)

	custom := PortOptions{BaudRate: 57600}.Normalize()
	assert.Equal(t, 57600, custom.BaudRate, fmt.Sprintf("%+v", custom))
}
