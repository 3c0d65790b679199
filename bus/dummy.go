package bus

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

type Transfer struct {
	Addr byte
	Data []byte
}

// DummyBus does not talk to any hardware. Writes are logged and remembered,
// reads return zeros.
type DummyBus struct {
	lock   sync.Mutex
	writes []Transfer
}

func (b *DummyBus) record(addr byte, data []byte) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.writes = append(b.writes, Transfer{Addr: addr, Data: append([]byte(nil), data...)})
	log.Debugf("Dummy I2C write to %#02x: %#v", addr, data)
}

// Writes returns all data written so far and forgets it.
func (b *DummyBus) Writes() []Transfer {
	b.lock.Lock()
	defer b.lock.Unlock()
	res := b.writes
	b.writes = nil
	return res
}

func (b *DummyBus) I2cWrite(addr byte, data ...byte) error {
	b.record(addr, data)
	return nil
}

func (b *DummyBus) I2cRead(addr byte, data []byte) error {
	for i := range data {
		data[i] = 0
	}
	return nil
}

func (b *DummyBus) I2cWriteRead(addr byte, out, in []byte) error {
	b.record(addr, out)
	return b.I2cRead(addr, in)
}

func (b *DummyBus) I2cGet(addr byte, registerAddr byte, size int) ([]byte, error) {
	return make([]byte, size), nil
}

func (b *DummyBus) Close() error {
	return nil
}
