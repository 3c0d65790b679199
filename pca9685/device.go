package pca9685

import (
	"fmt"
	"sync"
	"time"

	"github.com/antongulenko/rovertracks/bus"
	log "github.com/sirupsen/logrus"
)

// Time for the oscillator to stabilize after leaving SLEEP mode (datasheet: 500us)
const oscillatorStartup = 5 * time.Millisecond

// Device is a PCA9685 chip on an I2C bus
type Device struct {
	Bus  bus.I2cBus
	Addr byte

	// Skip writing channel values that are already deployed
	OptimizeUpdate bool

	lock    sync.Mutex
	current [NUM_CHANNELS][BYTE_PER_OUTPUT]byte
	known   [NUM_CHANNELS]bool
}

// Init sets the PWM frequency, enables register auto increment and turns all channels off.
func (d *Device) Init(frequency float64) error {
	if !ValidFrequency(frequency) {
		return fmt.Errorf("PWM frequency %v out of range (%v - %v)", frequency, FREQ_MIN, FREQ_MAX)
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	prescale := Prescaler(frequency)
	log.Printf("Initializing PWM driver at %#02x with %vHz (prescale %#02x)...", d.Addr, frequency, prescale)

	// The prescaler can only be written in SLEEP mode
	writes := [][]byte{
		{MODE1, MODE1_SLEEP | MODE1_ALLCALL},
		{PRE_SCALE, prescale},
		{MODE2, MODE2_OUTDRV},
		{MODE1, MODE1_ALLCALL | MODE1_AI},
	}
	for _, data := range writes {
		if err := d.Bus.I2cWrite(d.Addr, data...); err != nil {
			return err
		}
	}
	time.Sleep(oscillatorStartup)
	if err := d.Bus.I2cWrite(d.Addr, MODE1, MODE1_RESTART|MODE1_ALLCALL|MODE1_AI); err != nil {
		return err
	}

	off := make([]byte, BYTE_PER_OUTPUT+1)
	off[0] = ALL_LEDS
	FullValuesInto(false, off[1:])
	if err := d.Bus.I2cWrite(d.Addr, off...); err != nil {
		return err
	}
	for i := range d.known {
		d.current[i] = [BYTE_PER_OUTPUT]byte{off[1], off[2], off[3], off[4]}
		d.known[i] = true
	}
	return nil
}

// SetPwm sets the duty cycle (0..1) of a channel. 0 turns the channel fully off.
func (d *Device) SetPwm(channel int, onTime float64) error {
	if onTime < 0 || onTime > 1 {
		return fmt.Errorf("Invalid PWM duty cycle %v (must be 0..1)", onTime)
	}
	var values [BYTE_PER_OUTPUT]byte
	if onTime == 0 {
		FullValuesInto(false, values[:])
	} else {
		ValuesInto(onTime, values[:])
	}
	return d.set(channel, values)
}

// SetPin uses a channel as digital output
func (d *Device) SetPin(channel int, on bool) error {
	var values [BYTE_PER_OUTPUT]byte
	FullValuesInto(on, values[:])
	return d.set(channel, values)
}

func (d *Device) set(channel int, values [BYTE_PER_OUTPUT]byte) error {
	if channel < 0 || channel >= NUM_CHANNELS {
		return fmt.Errorf("Invalid PCA9685 channel %v (must be 0..%v)", channel, NUM_CHANNELS-1)
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.OptimizeUpdate && d.known[channel] && d.current[channel] == values {
		return nil
	}
	data := append([]byte{ChannelRegister(channel)}, values[:]...)
	if err := d.Bus.I2cWrite(d.Addr, data...); err != nil {
		d.known[channel] = false
		return err
	}
	d.current[channel] = values
	d.known[channel] = true
	return nil
}
