package bus

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Acknowledges reads only from the given addresses
type scanBus struct {
	DummyBus
	present map[byte]bool
}

func (b *scanBus) I2cRead(addr byte, data []byte) error {
	if !b.present[addr] {
		return errors.New("no ack")
	}
	return nil
}

func TestI2cScan(t *testing.T) {
	a := assert.New(t)
	b := &scanBus{present: map[byte]bool{0x0f: true, 0x60: true, 0x70: true, 0x03: true, 0x7a: true}}
	found, err := I2cScan(b)
	a.NoError(err)
	a.Equal([]byte{0x0f, 0x60, 0x70}, found)
}

func TestDummyBus(t *testing.T) {
	a := assert.New(t)
	var b DummyBus
	a.NoError(b.I2cWrite(0x60, 1, 2, 3))
	in := []byte{5, 5}
	a.NoError(b.I2cWriteRead(0x61, []byte{9}, in))
	a.Equal([]byte{0, 0}, in)
	a.Equal([]Transfer{{0x60, []byte{1, 2, 3}}, {0x61, []byte{9}}}, b.Writes())
	a.Empty(b.Writes())

	data, err := b.I2cGet(0x60, 4, 3)
	a.NoError(err)
	a.Equal([]byte{0, 0, 0}, data)
}

func TestSequencer(t *testing.T) {
	a := assert.New(t)
	var b DummyBus
	s := NewSequencer(&b, 2)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a.NoError(s.I2cWrite(byte(0x40+i), byte(i)))
		}(i)
	}
	wg.Wait()
	writes := b.Writes()
	a.Len(writes, 10)
	for _, w := range writes {
		a.Equal(w.Addr-0x40, w.Data[0])
	}

	data, err := s.I2cGet(0x40, 0, 2)
	a.NoError(err)
	a.Equal([]byte{0, 0}, data)
	read := []byte{1}
	a.NoError(s.I2cRead(0x40, read))
	a.Equal([]byte{0}, read)
	a.NoError(s.I2cWriteRead(0x40, []byte{3}, read))

	a.Error(s.I2cRequest(&I2cRequest{Type: 99}))

	s.Close()
	s.Close()
	a.Equal(ErrSequencerClosed, s.I2cWrite(0x40, 1))
}
