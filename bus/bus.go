package bus

import log "github.com/sirupsen/logrus"

const (
	// Valid 7-bit addresses, excluding the reserved ones
	I2cScanFirst = byte(0x08)
	I2cScanLast  = byte(0x77)
)

// I2cBus is implemented by everything that can talk to I2C slaves.
// Addresses are 7-bit.
type I2cBus interface {
	I2cWrite(addr byte, data ...byte) error
	I2cRead(addr byte, data []byte) error

	// Write, then read after a repeated start condition
	I2cWriteRead(addr byte, out, in []byte) error

	// Read size bytes starting at the given register
	I2cGet(addr byte, registerAddr byte, size int) ([]byte, error)
}

// I2cBusCloser is a bus that holds a device or file open
type I2cBusCloser interface {
	I2cBus
	Close() error
}

// I2cScan returns the addresses of all slaves that acknowledge a one-byte read.
func I2cScan(bus I2cBus) ([]byte, error) {
	var result []byte
	buf := make([]byte, 1)
	for addr := I2cScanFirst; addr <= I2cScanLast; addr++ {
		if err := bus.I2cRead(addr, buf); err == nil {
			result = append(result, addr)
		} else {
			log.Debugf("I2C scan: no response from %#02x: %v", addr, err)
		}
	}
	return result, nil
}
