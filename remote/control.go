package remote

import (
	"context"
	"flag"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/antongulenko/golib"
	"github.com/antongulenko/rovertracks/drive"
	evdev "github.com/gvalkov/golang-evdev"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Range of raw axis values delivered by an EventSource
const (
	RawMin = 0
	RawMax = 255
)

// ErrDeviceUnavailable is returned (wrapped) by EventSource.Connect when no input device is present
var ErrDeviceUnavailable = errors.New("input device unavailable")

type Axis int

const (
	AxisX Axis = iota
	AxisY
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

type AxisEvent struct {
	Axis  Axis
	Value int // RawMin..RawMax
}

// EventSource delivers stick movements of a gamepad. Next blocks until the next event,
// an error means that the device is gone and must be closed and connected again.
type EventSource interface {
	Connect() error
	Next(ctx context.Context) (AxisEvent, error)
	Close() error
}

// Robot is what the Control drives, implemented by *robot.Robot
type Robot interface {
	Move(x, y int) error
	Stop() error
}

type AxisConfig struct {
	// Event code of the axis, only used by EvdevSource
	Code int

	// Maps RawMax to -100 and RawMin to 100
	Invert bool

	// Positions within -DeadZone..DeadZone are bound to zero
	DeadZone int
}

var (
	DefaultXAxis = AxisConfig{Code: evdev.ABS_Z, DeadZone: 3}
	DefaultYAxis = AxisConfig{Code: evdev.ABS_RZ, Invert: true, DeadZone: 3}
)

func (a *AxisConfig) RegisterFlags(prefix string, desc string) {
	flag.IntVar(&a.Code, prefix+"Code", a.Code, "Input event code for "+desc)
	flag.BoolVar(&a.Invert, prefix+"Invert", a.Invert, "Invert axis direction of "+desc)
	flag.IntVar(&a.DeadZone, prefix+"DeadZone", a.DeadZone, "Positions around the center that are bound to zero for "+desc)
}

// Position converts a raw axis value to a joystick position in -100..100
func (a *AxisConfig) Position(raw int) int {
	var pos int
	if a.Invert {
		pos = drive.MapBetweenRanges(raw, RawMax, RawMin, drive.JoystickMin, drive.JoystickMax)
	} else {
		pos = drive.MapBetweenRanges(raw, RawMin, RawMax, drive.JoystickMin, drive.JoystickMax)
	}
	if pos >= -a.DeadZone && pos <= a.DeadZone {
		pos = 0
	}
	return drive.Clamp(pos, drive.JoystickMin, drive.JoystickMax)
}

var DefaultControl = Control{
	X:             DefaultXAxis,
	Y:             DefaultYAxis,
	RetryInterval: time.Second,
}

// Control moves a Robot according to the stick of a gamepad. It keeps trying to
// connect the gamepad and stops the robot whenever the gamepad disconnects.
type Control struct {
	Robot  Robot
	Source EventSource

	X, Y          AxisConfig
	RetryInterval time.Duration

	// x in the upper, y in the lower 32 bit. Written by the control loop, read atomically by Position.
	position int64
}

func (c *Control) RegisterFlags() {
	c.X.RegisterFlags("x", "the X axis (turning)")
	c.Y.RegisterFlags("y", "the Y axis (forward/backward)")
	flag.DurationVar(&c.RetryInterval, "retry", c.RetryInterval, "Time between attempts to connect the input device")
}

// Position returns the current joystick position. Safe to call while Run is active.
func (c *Control) Position() (x, y int) {
	pos := atomic.LoadInt64(&c.position)
	return int(int32(pos >> 32)), int(int32(pos))
}

func (c *Control) setPosition(x, y int) {
	atomic.StoreInt64(&c.position, int64(x)<<32|int64(uint32(int32(y))))
}

// Run connects the input device and handles its events until ctx is cancelled.
func (c *Control) Run(ctx context.Context) error {
	if c.Robot == nil || c.Source == nil {
		return errors.New("remote control needs a robot and an event source")
	}
	for c.connect(ctx) {
		c.handleEvents(ctx)
	}
	return nil
}

func (c *Control) connect(ctx context.Context) bool {
	waiting := false
	for ctx.Err() == nil {
		err := c.Source.Connect()
		if err == nil {
			log.Printf("Connected input device %v", c.Source)
			return true
		}
		if !waiting {
			log.Warnf("Waiting for input device: %v", err)
			waiting = true
		} else {
			log.Debugf("Connecting input device failed: %v", err)
		}
		timer := time.NewTimer(c.RetryInterval)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		timer.Stop()
	}
	return false
}

func (c *Control) handleEvents(ctx context.Context) {
	defer func() {
		golib.Printerr(c.Source.Close())
	}()
	for {
		event, err := c.Source.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warnln("Input device disconnected:", err)
			}
			c.setPosition(0, 0)
			if err := c.Robot.Stop(); err != nil {
				log.Errorln("Failed to stop robot:", err)
			}
			return
		}
		if err := c.HandleEvent(event); err != nil {
			log.Errorln("Failed to move robot:", err)
		}
	}
}

// HandleEvent updates one axis and moves the robot to the resulting position
func (c *Control) HandleEvent(event AxisEvent) error {
	x, y := c.Position()
	switch event.Axis {
	case AxisX:
		x = c.X.Position(event.Value)
	case AxisY:
		y = c.Y.Position(event.Value)
	default:
		return fmt.Errorf("Unknown axis %v", event.Axis)
	}
	c.setPosition(x, y)
	log.Debugf("Axis %v: %v -> position (%v, %v)", event.Axis, event.Value, x, y)
	return c.Robot.Move(x, y)
}
