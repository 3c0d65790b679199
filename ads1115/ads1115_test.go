package ads1115

import (
	"testing"

	"github.com/antongulenko/rovertracks/bus"
	"github.com/stretchr/testify/assert"
)

type registerBus struct {
	bus.DummyBus
	value []byte
}

func (b *registerBus) I2cRead(addr byte, data []byte) error {
	copy(data, b.value)
	return nil
}

func (b *registerBus) I2cGet(addr byte, registerAddr byte, size int) ([]byte, error) {
	return append([]byte(nil), b.value...), nil
}

func TestRegisters(t *testing.T) {
	a := assert.New(t)
	a.Equal(byte(0), REG_CONVERSION)
	a.Equal(byte(1), REG_CONFIG)
	a.Equal(byte(3), REG_HI_THRESH)
	a.Equal(uint16(0x1000), CONFIG_MUX_03)
	a.Equal(uint16(0x7000), CONFIG_MUX_3GND)
	a.Equal(uint16(0x0400), CONFIG_PGA_2V)
	a.Equal(uint16(0x0080), CONFIG_DR_128)
}

func TestReadWrite(t *testing.T) {
	a := assert.New(t)
	b := &registerBus{value: []byte{0x80, 0x01}}
	a.NoError(WriteRegister(b, ADDR_GND, REG_CONFIG, 0x8583))
	a.Equal([]bus.Transfer{{Addr: ADDR_GND, Data: []byte{REG_CONFIG, 0x85, 0x83}}}, b.Writes())

	v, err := ReadRegister(b, ADDR_GND, REG_CONVERSION)
	a.NoError(err)
	a.Equal(int16(-32767), v)

	b.value = []byte{0x12, 0x34}
	v, err = ReadRegisterDirectly(b, ADDR_GND)
	a.NoError(err)
	a.Equal(int16(0x1234), v)

	b.value = []byte{0x12}
	_, err = ReadRegister(b, ADDR_GND, REG_CONVERSION)
	a.Error(err)
}

func TestVoltPerLsb(t *testing.T) {
	a := assert.New(t)
	a.Equal(CONVERT_6V, VoltPerLsb(CONFIG_MUX_03|CONFIG_PGA_6V|CONFIG_DR_32))
	a.Equal(CONVERT_2V, VoltPerLsb(CONFIG_PGA_2V|CONFIG_OS))
	a.Equal(CONVERT_0_25V, VoltPerLsb(CONFIG_PGA_0_25V3))
	a.InDelta(6.144, 32768*VoltPerLsb(CONFIG_PGA_6V), 1e-9)
}
