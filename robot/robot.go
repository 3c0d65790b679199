package robot

import (
	"context"
	"flag"
	"fmt"
	"sync"
	"time"

	"github.com/antongulenko/rovertracks/drive"
	"go.uber.org/multierr"
)

// ErrOutOfRange is returned (wrapped) for joystick positions or speeds outside of their range
var ErrOutOfRange = drive.ErrOutOfRange

var DefaultConfig = Config{
	LeftMotor:  1,
	RightMotor: 3,
	StopAtExit: true,
}

type Config struct {
	LeftMotor  int
	RightMotor int

	// Offsets added to the requested speed of each motor, can be used to match
	// the speed of both motors. The result is constrained to 0..255.
	LeftTrim  int
	RightTrim int

	// Swap forward and backward for motors that are wired or mounted the other way around
	InvertLeft  bool
	InvertRight bool

	// Stop all motors when the Robot is closed. Highly recommended to prevent
	// damage to the robot when the program crashes.
	StopAtExit bool
}

func (c *Config) RegisterFlags() {
	flag.IntVar(&c.LeftMotor, "left", c.LeftMotor, "ID of the left motor on the motor driver")
	flag.IntVar(&c.RightMotor, "right", c.RightMotor, "ID of the right motor on the motor driver")
	flag.IntVar(&c.LeftTrim, "leftTrim", c.LeftTrim, "Speed offset of the left motor")
	flag.IntVar(&c.RightTrim, "rightTrim", c.RightTrim, "Speed offset of the right motor")
	flag.BoolVar(&c.InvertLeft, "invertLeft", c.InvertLeft, "Invert the direction of the left motor")
	flag.BoolVar(&c.InvertRight, "invertRight", c.InvertRight, "Invert the direction of the right motor")
	flag.BoolVar(&c.StopAtExit, "stopAtExit", c.StopAtExit, "Stop all motors on program exit")
}

type WheelState struct {
	Speed     uint8
	Direction Direction
}

func (s WheelState) String() string {
	return fmt.Sprintf("%v (%v)", s.Speed, s.Direction)
}

type wheel struct {
	name   string
	motor  Motor
	trim   int
	invert bool
	state  WheelState
}

// Applies the trim offset and constrains the result to 0..255
func (w *wheel) setSpeed(speed int) error {
	if err := drive.CheckRange(w.name+" motor speed", speed, MinSpeed, MaxSpeed); err != nil {
		return err
	}
	return w.setRawSpeed(uint8(drive.Clamp(speed+w.trim, MinSpeed, MaxSpeed)))
}

func (w *wheel) setRawSpeed(speed uint8) error {
	if err := w.motor.SetSpeed(speed); err != nil {
		return err
	}
	w.state.Speed = speed
	return nil
}

// The state keeps the requested direction, the motor receives the inverted one
func (w *wheel) run(dir Direction) error {
	motorDir := dir
	if w.invert {
		switch dir {
		case Forward:
			motorDir = Backward
		case Backward:
			motorDir = Forward
		}
	}
	if err := w.motor.Run(motorDir); err != nil {
		return err
	}
	w.state.Direction = dir
	return nil
}

// Signed speed: the sign selects the direction
func (w *wheel) drive(speed int) error {
	dir := Forward
	if speed < 0 {
		dir = Backward
		speed = -speed
	}
	if err := w.setSpeed(speed); err != nil {
		return err
	}
	return w.run(dir)
}

func (w *wheel) release() error {
	err := w.run(Release)
	return multierr.Append(err, w.setRawSpeed(0))
}

// Robot commands the two wheels of a differential drive. All methods are safe for
// concurrent use, every command sets both wheels without other commands interleaving.
type Robot struct {
	mu         sync.Mutex
	left       wheel
	right      wheel
	stopAtExit bool
}

// New resolves both motors from the driver and starts with the motors released.
func New(cfg Config, driver MotorDriver) (*Robot, error) {
	if cfg.LeftMotor == cfg.RightMotor {
		return nil, fmt.Errorf("Left and right motor must be different (both are %v)", cfg.LeftMotor)
	}
	left, err := driver.Motor(cfg.LeftMotor)
	if err != nil {
		return nil, err
	}
	right, err := driver.Motor(cfg.RightMotor)
	if err != nil {
		return nil, err
	}
	r := &Robot{
		left:       wheel{name: "left", motor: left, trim: cfg.LeftTrim, invert: cfg.InvertLeft},
		right:      wheel{name: "right", motor: right, trim: cfg.RightTrim, invert: cfg.InvertRight},
		stopAtExit: cfg.StopAtExit,
	}
	if err := r.Stop(); err != nil {
		return nil, err
	}
	return r, nil
}

// Move drives according to a joystick position, x and y must be within -100..100.
// The center position (0, 0) sets both speeds to zero without touching the directions.
func (r *Robot) Move(x, y int) error {
	left, right, err := drive.JoystickToDiff(x, y, -MaxSpeed, MaxSpeed)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if x == 0 && y == 0 {
		return multierr.Append(r.left.setRawSpeed(0), r.right.setRawSpeed(0))
	}
	if err := r.left.drive(left); err != nil {
		return err
	}
	return r.right.drive(right)
}

// Forward moves forward with the given speed (0..255). With a positive duration, it
// blocks for that time and stops afterwards, otherwise the motors keep running.
func (r *Robot) Forward(ctx context.Context, speed int, duration time.Duration) error {
	return r.maneuver(ctx, speed, Forward, Forward, duration)
}

// Backward moves backward, see Forward.
func (r *Robot) Backward(ctx context.Context, speed int, duration time.Duration) error {
	return r.maneuver(ctx, speed, Backward, Backward, duration)
}

// Right spins to the right in place, see Forward.
func (r *Robot) Right(ctx context.Context, speed int, duration time.Duration) error {
	return r.maneuver(ctx, speed, Forward, Backward, duration)
}

// Left spins to the left in place, see Forward.
func (r *Robot) Left(ctx context.Context, speed int, duration time.Duration) error {
	return r.maneuver(ctx, speed, Backward, Forward, duration)
}

func (r *Robot) maneuver(ctx context.Context, speed int, leftDir, rightDir Direction, duration time.Duration) error {
	if err := drive.CheckRange("speed", speed, MinSpeed, MaxSpeed); err != nil {
		return err
	}
	if err := r.set(speed, leftDir, rightDir); err != nil {
		return multierr.Append(err, r.Stop())
	}
	if duration <= 0 {
		return nil
	}

	// The lock is not held while waiting, so Stop() can always get through
	timer := time.NewTimer(duration)
	defer timer.Stop()
	var err error
	select {
	case <-timer.C:
	case <-ctx.Done():
		err = ctx.Err()
	}
	return multierr.Append(err, r.Stop())
}

func (r *Robot) set(speed int, leftDir, rightDir Direction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.left.setSpeed(speed); err != nil {
		return err
	}
	if err := r.right.setSpeed(speed); err != nil {
		return err
	}
	if err := r.left.run(leftDir); err != nil {
		return err
	}
	return r.right.run(rightDir)
}

// Stop releases both motors. Both motors are released even if one of them fails.
func (r *Robot) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return multierr.Append(r.left.release(), r.right.release())
}

// State returns the last speed and direction successfully sent to each motor
func (r *Robot) State() (left, right WheelState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.left.state, r.right.state
}

// Close stops the motors, unless the robot was configured without StopAtExit
func (r *Robot) Close() error {
	if r.stopAtExit {
		return r.Stop()
	}
	return nil
}

// Guard runs fn and stops the robot on every way out of fn, including panics.
func Guard(r *Robot, fn func(r *Robot) error) (err error) {
	defer func() {
		err = multierr.Append(err, r.Stop())
	}()
	return fn(r)
}
