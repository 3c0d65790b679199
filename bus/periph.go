package bus

import (
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// PeriphBus is a native I2C bus of the host, for example /dev/i2c-1 on a Raspberry Pi.
type PeriphBus struct {
	bus i2c.BusCloser
}

// OpenPeriphBus opens the I2C bus with the given name ("" selects the first one).
// If freq is not zero, the bus speed is changed.
func OpenPeriphBus(name string, freq physic.Frequency) (*PeriphBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, err
	}
	if freq != 0 {
		if err := b.SetSpeed(freq); err != nil {
			log.Warnf("Failed to set speed of I2C bus %v to %v: %v", b, freq, err)
		}
	}
	log.Printf("Opened I2C bus %v", b)
	return &PeriphBus{bus: b}, nil
}

func (b *PeriphBus) String() string {
	return b.bus.String()
}

func (b *PeriphBus) I2cWrite(addr byte, data ...byte) error {
	return b.bus.Tx(uint16(addr), data, nil)
}

func (b *PeriphBus) I2cRead(addr byte, data []byte) error {
	return b.bus.Tx(uint16(addr), nil, data)
}

func (b *PeriphBus) I2cWriteRead(addr byte, out, in []byte) error {
	return b.bus.Tx(uint16(addr), out, in)
}

func (b *PeriphBus) I2cGet(addr byte, registerAddr byte, size int) ([]byte, error) {
	data := make([]byte, size)
	if err := b.bus.Tx(uint16(addr), []byte{registerAddr}, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (b *PeriphBus) Close() error {
	return b.bus.Close()
}
