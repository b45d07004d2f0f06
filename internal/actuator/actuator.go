// Package actuator drives the droid's body (eye LEDs, dome motors) over a
// serial link.
//
// Commands are one JSON object per line, for example
//
//	{"device":"eye","action":"talk"}
//
// Signalling is fire-and-forget: [Controller.Signal] never blocks the
// consumer loop, and every write or connection failure is logged and
// swallowed. A failed write closes the port; the next command reopens it,
// subject to a backoff so a missing device is not reopened on every word.
package actuator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.bug.st/serial"
)

// Command is one instruction for a body device.
type Command struct {
	Device string `json:"device"`
	Action string `json:"action"`
}

// String returns "device:action".
func (c Command) String() string { return c.Device + ":" + c.Action }

// Commands sent around speech output.
var (
	EyeTalk   = Command{Device: "eye", Action: "talk"}
	EyeSilent = Command{Device: "eye", Action: "silent"}
)

// Signaler accepts body commands without blocking.
type Signaler interface {
	Signal(cmd Command)
}

// Nop is a [Signaler] for droids without a body.
type Nop struct{}

// Signal implements [Signaler] and does nothing.
func (Nop) Signal(Command) {}

// Opener opens the serial port. [SerialOpener] is the production opener.
type Opener func(port string, baud int) (io.WriteCloser, error)

// SerialOpener opens port at baud, 8N1, through go.bug.st/serial.
func SerialOpener(port string, baud int) (io.WriteCloser, error) {
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Result statuses reported to [Config.OnResult].
const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusDropped = "dropped"
)

// Default controller parameters.
const (
	defaultBaud       = 115200
	defaultQueueSize  = 16
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// Config configures a [Controller].
type Config struct {
	// Port is the serial device, e.g. /dev/rfcomm0.
	Port string

	// Baud defaults to 115200 if zero.
	Baud int

	// Open defaults to [SerialOpener].
	Open Opener

	// QueueSize bounds pending commands. Signals beyond it are dropped.
	// Defaults to 16 if zero.
	QueueSize int

	// Backoff is the initial wait after a failed open before trying again.
	// Doubles on every consecutive failure up to MaxBackoff. Defaults to 1s
	// and 30s.
	Backoff    time.Duration
	MaxBackoff time.Duration

	// OnResult is called from the controller goroutine after each command.
	// May be nil.
	OnResult func(cmd Command, status string)

	// Now defaults to time.Now.
	Now func() time.Time
}

// Controller is a [Signaler] writing to a serial port from its own
// goroutine. Call [Controller.Run] to start delivery.
type Controller struct {
	cfg  Config
	cmds chan Command

	// Owned by the Run goroutine.
	port     io.WriteCloser
	backoff  time.Duration
	nextOpen time.Time
}

var _ Signaler = (*Controller)(nil)

// New returns a controller for cfg. No port is opened until the first
// command is delivered.
func New(cfg Config) *Controller {
	if cfg.Baud <= 0 {
		cfg.Baud = defaultBaud
	}
	if cfg.Open == nil {
		cfg.Open = SerialOpener
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Controller{
		cfg:     cfg,
		cmds:    make(chan Command, cfg.QueueSize),
		backoff: cfg.Backoff,
	}
}

// Signal queues cmd for delivery. If the queue is full the command is
// dropped.
func (c *Controller) Signal(cmd Command) {
	select {
	case c.cmds <- cmd:
	default:
		slog.Warn("actuator: queue full, dropping command", "cmd", cmd.String())
		c.report(cmd, StatusDropped)
	}
}

// Run delivers queued commands until ctx is cancelled, then closes the port.
// It always returns nil; delivery failures never end the loop.
func (c *Controller) Run(ctx context.Context) error {
	defer c.closePort()
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-c.cmds:
			if err := c.deliver(cmd); err != nil {
				slog.Warn("actuator: command failed", "cmd", cmd.String(), "err", err)
				c.report(cmd, StatusFailed)
				continue
			}
			slog.Debug("actuator: command sent", "cmd", cmd.String())
			c.report(cmd, StatusSent)
		}
	}
}

func (c *Controller) deliver(cmd Command) error {
	if c.port == nil {
		if err := c.open(); err != nil {
			return err
		}
	}
	line, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("actuator: encode: %w", err)
	}
	if _, err := c.port.Write(append(line, '\n')); err != nil {
		c.closePort()
		return fmt.Errorf("actuator: write %s: %w", c.cfg.Port, err)
	}
	return nil
}

func (c *Controller) open() error {
	now := c.cfg.Now()
	if now.Before(c.nextOpen) {
		return fmt.Errorf("actuator: %s unavailable, retry in %s", c.cfg.Port, c.nextOpen.Sub(now).Round(time.Millisecond))
	}
	port, err := c.cfg.Open(c.cfg.Port, c.cfg.Baud)
	if err != nil {
		c.nextOpen = now.Add(c.backoff)
		c.backoff = min(c.backoff*2, c.cfg.MaxBackoff)
		return fmt.Errorf("actuator: open %s: %w", c.cfg.Port, err)
	}
	slog.Info("actuator: connected", "port", c.cfg.Port, "baud", c.cfg.Baud)
	c.port = port
	c.backoff = c.cfg.Backoff
	c.nextOpen = time.Time{}
	return nil
}

func (c *Controller) closePort() {
	if c.port == nil {
		return
	}
	if err := c.port.Close(); err != nil {
		slog.Debug("actuator: close port", "err", err)
	}
	c.port = nil
}

func (c *Controller) report(cmd Command, status string) {
	if c.cfg.OnResult != nil {
		c.cfg.OnResult(cmd, status)
	}
}
