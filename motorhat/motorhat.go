// Adafruit DC & Stepper Motor HAT: PCA9685 PWM controller driving two TB6612 H-bridges
// https://learn.adafruit.com/adafruit-dc-and-stepper-motor-hat-for-raspberry-pi
package motorhat

import (
	"fmt"

	"github.com/antongulenko/rovertracks/bus"
	"github.com/antongulenko/rovertracks/pca9685"
	"github.com/antongulenko/rovertracks/robot"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultAddress   = byte(0x60)
	DefaultFrequency = 1600
	NumMotors        = 4
)

// PCA9685 channels connected to one H-bridge channel
type motorPins struct {
	pwm, in1, in2 int
}

// Index 0 is motor M1
var pinLayout = [NumMotors]motorPins{
	{pwm: 8, in1: 10, in2: 9},
	{pwm: 13, in1: 11, in2: 12},
	{pwm: 2, in1: 4, in2: 3},
	{pwm: 7, in1: 5, in2: 6},
}

type MotorHat struct {
	Frequency float64
	pwm       pca9685.Device
}

func New(b bus.I2cBus, addr byte) *MotorHat {
	return &MotorHat{
		Frequency: DefaultFrequency,
		pwm: pca9685.Device{
			Bus:  b,
			Addr: addr,
		},
	}
}

// Init configures the PWM frequency and turns all outputs off
func (h *MotorHat) Init() error {
	return h.pwm.Init(h.Frequency)
}

// OptimizeUpdate skips I2C writes for unchanged outputs
func (h *MotorHat) OptimizeUpdate(optimize bool) {
	h.pwm.OptimizeUpdate = optimize
}

// Motor returns one of the motors M1..M4
func (h *MotorHat) Motor(id int) (robot.Motor, error) {
	if id < 1 || id > NumMotors {
		return nil, fmt.Errorf("Invalid motor HAT motor %v (must be 1..%v)", id, NumMotors)
	}
	return &Motor{
		id:   id,
		pins: pinLayout[id-1],
		pwm:  &h.pwm,
	}, nil
}

type Motor struct {
	id   int
	pins motorPins
	pwm  *pca9685.Device
}

func (m *Motor) SetSpeed(speed uint8) error {
	log.Debugf("Setting speed of motor M%v to %v", m.id, speed)
	return m.pwm.SetPwm(m.pins.pwm, float64(speed)/robot.MaxSpeed)
}

func (m *Motor) Run(dir robot.Direction) error {
	log.Debugf("Running motor M%v: %v", m.id, dir)
	// The active input is always switched off first, so both inputs are never high together
	switch dir {
	case robot.Forward:
		return m.setInputs(m.pins.in2, m.pins.in1)
	case robot.Backward:
		return m.setInputs(m.pins.in1, m.pins.in2)
	case robot.Release:
		if err := m.pwm.SetPin(m.pins.in1, false); err != nil {
			return err
		}
		return m.pwm.SetPin(m.pins.in2, false)
	default:
		return fmt.Errorf("Invalid motor direction %v", dir)
	}
}

func (m *Motor) setInputs(low, high int) error {
	if err := m.pwm.SetPin(low, false); err != nil {
		return err
	}
	return m.pwm.SetPin(high, true)
}
