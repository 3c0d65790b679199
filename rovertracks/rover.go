package rovertracks

import (
	"flag"
	"fmt"

	"github.com/antongulenko/rovertracks/bus"
	"github.com/antongulenko/rovertracks/ft260"
	"github.com/antongulenko/rovertracks/groveMotorDriver"
	"github.com/antongulenko/rovertracks/motorhat"
	"github.com/antongulenko/rovertracks/robot"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

const (
	BusPeriph = "periph"
	BusFt260  = "ft260"
	BusDummy  = "dummy"

	DriverMotorHat = "motorhat"
	DriverGrove    = "grove"
	DriverDummy    = "dummy"
)

var DefaultRover = Rover{
	BusType:         BusPeriph,
	DriverType:      DriverMotorHat,
	I2cFreq:         uint(400),
	I2cRequestQueue: 20,
	MotorHatAddr:    i2c.Addr(motorhat.DefaultAddress),
	MotorHatFreq:    motorhat.DefaultFrequency,
	OptimizeUpdate:  true,
	GroveAddr:       i2c.Addr(groveMotorDriver.DefaultAddress),
	Motors:          robot.DefaultConfig,
	Battery:         DefaultBattery,
}

// Rover connects the I2C bus, the motor driver board and the Robot on top of them.
type Rover struct {
	BusType         string
	DriverType      string
	I2cBus          string // Bus name for periph, "" selects the first bus
	I2cFreq         uint   // kHz
	UsbDevice       string
	I2cRequestQueue int
	NoI2cSequencer  bool

	MotorHatAddr   i2c.Addr
	MotorHatFreq   float64
	OptimizeUpdate bool
	GroveAddr      i2c.Addr

	Motors  robot.Config
	Battery Battery

	bus       bus.I2cBusCloser
	sequencer *bus.Sequencer
	robot     *robot.Robot
}

func (r *Rover) RegisterFlags() {
	flag.StringVar(&r.BusType, "bus", r.BusType, fmt.Sprintf("I2C bus implementation, one of: %v, %v, %v", BusPeriph, BusFt260, BusDummy))
	flag.StringVar(&r.DriverType, "driver", r.DriverType, fmt.Sprintf("Motor driver board, one of: %v, %v, %v", DriverMotorHat, DriverGrove, DriverDummy))
	flag.StringVar(&r.I2cBus, "i2c", r.I2cBus, "Name of the I2C bus, for example /dev/i2c-1 (periph bus only)")
	flag.UintVar(&r.I2cFreq, "freq", r.I2cFreq, "The I2C bus frequency in kHz")
	flag.StringVar(&r.UsbDevice, "dev", r.UsbDevice, "Specify a USB path for FT260")
	flag.IntVar(&r.I2cRequestQueue, "i2c-queue", r.I2cRequestQueue, "Queue size for sequencing I2C requests")
	flag.BoolVar(&r.NoI2cSequencer, "no-i2c-sequencer", r.NoI2cSequencer, "Disable the extra goroutine for sequencing I2C commands")
	flag.Var(&r.MotorHatAddr, "motorhat", "I2C address of the motor HAT")
	flag.Float64Var(&r.MotorHatFreq, "pwmFreq", r.MotorHatFreq, "PWM frequency of the motor HAT")
	flag.BoolVar(&r.OptimizeUpdate, "optimizePwm", r.OptimizeUpdate, "Only write changed PWM values to the motor HAT")
	flag.Var(&r.GroveAddr, "grove", "I2C address of the Grove motor driver")
	r.Motors.RegisterFlags()
	r.Battery.RegisterFlags()
}

// Setup opens the bus, initializes the motor driver and creates the Robot.
// Cleanup must be called afterwards, also when Setup fails.
func (r *Rover) Setup() error {
	if r.bus != nil {
		return fmt.Errorf("Rover is already set up")
	}
	b, err := r.openBus()
	if err != nil {
		return err
	}
	r.bus = b
	if !r.NoI2cSequencer {
		r.sequencer = bus.NewSequencer(b, r.I2cRequestQueue)
	}
	driver, err := r.openDriver()
	if err != nil {
		return err
	}
	rob, err := robot.New(r.Motors, driver)
	if err != nil {
		return err
	}
	r.robot = rob
	if r.Battery.Enabled {
		if err := r.Battery.Init(r.Bus()); err != nil {
			return err
		}
	}
	log.Printf("Successfully initialized %v bus and %v motor driver", r.BusType, r.DriverType)
	return nil
}

func (r *Rover) openBus() (bus.I2cBusCloser, error) {
	switch r.BusType {
	case BusPeriph:
		return bus.OpenPeriphBus(r.I2cBus, physic.Frequency(r.I2cFreq)*physic.KiloHertz)
	case BusFt260:
		return (&ft260.Ft260Driver{Path: r.UsbDevice, I2cClock: r.I2cFreq}).Open()
	case BusDummy:
		log.Println("Dummy bus: not using any I2C peripherals")
		return new(bus.DummyBus), nil
	default:
		return nil, fmt.Errorf("Unknown bus type %q", r.BusType)
	}
}

func (r *Rover) openDriver() (robot.MotorDriver, error) {
	switch r.DriverType {
	case DriverMotorHat:
		hat := motorhat.New(r.Bus(), byte(r.MotorHatAddr))
		hat.Frequency = r.MotorHatFreq
		hat.OptimizeUpdate(r.OptimizeUpdate)
		return hat, hat.Init()
	case DriverGrove:
		driver := groveMotorDriver.New(r.Bus(), byte(r.GroveAddr))
		return driver, driver.Init(groveMotorDriver.PWM_3921Hz)
	case DriverDummy:
		log.Println("Dummy motor driver: only printing motor commands")
		return DummyDriver{}, nil
	default:
		return nil, fmt.Errorf("Unknown motor driver %q", r.DriverType)
	}
}

// Bus returns the sequenced bus, or the plain bus with NoI2cSequencer
func (r *Rover) Bus() bus.I2cBus {
	if r.sequencer != nil {
		return r.sequencer
	}
	return r.bus
}

func (r *Rover) Robot() *robot.Robot {
	return r.robot
}

// ReadBattery returns the battery voltage and the charge in 0..1
func (r *Rover) ReadBattery() (float64, float64, error) {
	if !r.Battery.Enabled {
		return 0, 0, fmt.Errorf("Battery measurement is disabled")
	}
	volt, err := r.Battery.Voltage(r.Bus())
	if err != nil {
		return 0, 0, err
	}
	return volt, r.Battery.Percentage(volt), nil
}

// Cleanup closes the robot (stopping the motors), the sequencer and the bus
func (r *Rover) Cleanup() error {
	var err error
	if r.robot != nil {
		err = multierr.Append(err, r.robot.Close())
		r.robot = nil
	}
	if r.sequencer != nil {
		r.sequencer.Close()
		r.sequencer = nil
	}
	if r.bus != nil {
		err = multierr.Append(err, r.bus.Close())
		r.bus = nil
	}
	return err
}
