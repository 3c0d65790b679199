// http://wiki.seeed.cc/Grove-I2C_Motor_Driver_V1.3/
package groveMotorDriver

import (
	"fmt"
	"sync"

	"github.com/antongulenko/rovertracks/bus"
	"github.com/antongulenko/rovertracks/robot"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultAddress = byte(0x0f)

	// Every I2C command contains 3 bytes
	CommandLength = 3

	// Configuration commands
	Command_SetPWMFrequency = 0x84

	// DC motor commands
	Command_SetMotorSpeed = 0x82 // 2 parameters: 2 byte, 0..255 speed for motor A and B
	Command_SetMotorDir   = 0xaa // 1 parameter: 0x0000bbaa, directions for both motors, 'aa' and 'bb' are Dir* values
	Command_SetMotorA     = 0xa1 // 2 parameters: Dir* value + speed for motor A
	Command_SetMotorB     = 0xa5 // 2 parameters: Dir* value + speed for motor B

	// Parameter for Command_SetPWMFrequency
	// PWM signal Frequency (cycle length = 510, system clock = 16MHz)
	PWM_31372Hz = byte(0x01)
	PWM_3921Hz  = byte(0x02)
	PWM_490Hz   = byte(0x03) // Default
	PWM_122Hz   = byte(0x04)
	PWM_30Hz    = byte(0x05)

	// Parameter for Command_SetMotorDir, Command_SetMotorA and Command_SetMotorB
	DirClockwise     = byte(0x02)
	DirAntiClockwise = byte(0x01)
	DirStop          = byte(0)

	// No-op parameter filler (if less than 3 bytes are required)
	emptyParameter = 0x01

	MotorA = 1
	MotorB = 2
)

func SetPwmFrequency(frequency byte) []byte {
	switch frequency {
	case PWM_31372Hz, PWM_3921Hz, PWM_490Hz, PWM_122Hz, PWM_30Hz:
	default:
		log.Warnf("Invalid PWM motor frequency %02x, using maximum frequency 3921Hz", frequency)
		frequency = PWM_3921Hz
	}
	return []byte{Command_SetPWMFrequency, frequency, emptyParameter}
}

func SetMotorDirections(motorA, motorB byte) []byte {
	// Only use 2 bits from each value (Dir* values)
	dir := ((motorB & 0x3) << 2) | (motorA & 0x3)
	return []byte{Command_SetMotorDir, dir, emptyParameter}
}

func SetMotorSpeed(motorA, motorB byte) []byte {
	return []byte{Command_SetMotorSpeed, motorA, motorB}
}

func SetMotorA(speed byte, dir byte) []byte {
	return []byte{Command_SetMotorA, dir & 0x3, speed}
}

func SetMotorB(speed byte, dir byte) []byte {
	return []byte{Command_SetMotorB, dir & 0x3, speed}
}

func directionParameter(dir robot.Direction) (byte, error) {
	switch dir {
	case robot.Forward:
		return DirClockwise, nil
	case robot.Backward:
		return DirAntiClockwise, nil
	case robot.Release:
		return DirStop, nil
	default:
		return 0, fmt.Errorf("Invalid motor direction %v", dir)
	}
}

// Driver offers the two DC motor channels of the board as robot.Motor.
// The board only accepts speed and direction of a motor together, so the last
// value of both is cached.
type Driver struct {
	Bus  bus.I2cBus
	Addr byte

	lock   sync.Mutex
	speeds [2]byte
	dirs   [2]byte
}

func New(b bus.I2cBus, addr byte) *Driver {
	return &Driver{Bus: b, Addr: addr}
}

// Init sets the PWM frequency and stops both motors
func (d *Driver) Init(frequency byte) error {
	log.Printf("Initializing Grove motor driver at %#02x...", d.Addr)
	if err := d.Bus.I2cWrite(d.Addr, SetPwmFrequency(frequency)...); err != nil {
		return err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	d.speeds = [2]byte{}
	d.dirs = [2]byte{DirStop, DirStop}
	if err := d.Bus.I2cWrite(d.Addr, SetMotorSpeed(0, 0)...); err != nil {
		return err
	}
	return d.Bus.I2cWrite(d.Addr, SetMotorDirections(DirStop, DirStop)...)
}

// Motor returns MotorA (1) or MotorB (2)
func (d *Driver) Motor(id int) (robot.Motor, error) {
	if id != MotorA && id != MotorB {
		return nil, fmt.Errorf("Invalid Grove motor driver motor %v (must be %v or %v)", id, MotorA, MotorB)
	}
	return &motor{driver: d, index: id - 1}, nil
}

func (d *Driver) update(index int, speed byte, dir byte) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	var cmd []byte
	if index == 0 {
		cmd = SetMotorA(speed, dir)
	} else {
		cmd = SetMotorB(speed, dir)
	}
	if err := d.Bus.I2cWrite(d.Addr, cmd...); err != nil {
		return err
	}
	d.speeds[index], d.dirs[index] = speed, dir
	return nil
}

func (d *Driver) current(index int) (speed byte, dir byte) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.speeds[index], d.dirs[index]
}

type motor struct {
	driver *Driver
	index  int
}

func (m *motor) SetSpeed(speed uint8) error {
	_, dir := m.driver.current(m.index)
	return m.driver.update(m.index, speed, dir)
}

func (m *motor) Run(dir robot.Direction) error {
	param, err := directionParameter(dir)
	if err != nil {
		return err
	}
	speed, _ := m.driver.current(m.index)
	return m.driver.update(m.index, speed, param)
}
