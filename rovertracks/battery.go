package rovertracks

import (
	"flag"

	"github.com/antongulenko/rovertracks/ads1115"
	"github.com/antongulenko/rovertracks/bus"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
)

// Measure diff AIN0 to AIN3 continuously in 0..6V, comparator disabled
const batteryAdcConfig = ads1115.CONFIG_MUX_03 | ads1115.CONFIG_DR_32 | ads1115.CONFIG_PGA_6V | ads1115.CONFIG_COMP_QUE_OFF

var DefaultBattery = Battery{
	Addr:    i2c.Addr(ads1115.ADDR_GND),
	Min:     4.4,
	Max:     6,
	Divider: 1,
}

// Battery measures the battery voltage with an ADS1115 ADC
type Battery struct {
	Enabled  bool
	Addr     i2c.Addr
	Min, Max float64

	// Ratio between battery voltage and ADC input voltage
	Divider float64
}

func (b *Battery) RegisterFlags() {
	flag.BoolVar(&b.Enabled, "battery", b.Enabled, "Measure the battery voltage with an ADS1115")
	flag.Var(&b.Addr, "batteryAddr", "I2C address of the ADS1115 battery ADC")
	flag.Float64Var(&b.Min, "batteryMin", b.Min, "Voltage of the empty battery")
	flag.Float64Var(&b.Max, "batteryMax", b.Max, "Voltage of the full battery")
	flag.Float64Var(&b.Divider, "batteryDivider", b.Divider, "Voltage divider ratio in front of the ADC")
}

func (b *Battery) Init(i2cBus bus.I2cBus) error {
	addr := byte(b.Addr)
	log.Printf("Initializing ADC device at %#02x...", addr)
	err := ads1115.WriteRegister(i2cBus, addr, ads1115.REG_CONFIG, batteryAdcConfig)
	if err == nil {
		// Configure the address of the register to be read by future reads
		err = i2cBus.I2cWrite(addr, ads1115.REG_CONVERSION)
	}
	return err
}

func (b *Battery) Voltage(i2cBus bus.I2cBus) (float64, error) {
	val, err := ads1115.ReadRegisterDirectly(i2cBus, byte(b.Addr))
	if err != nil {
		return 0, err
	}
	return float64(val) * ads1115.VoltPerLsb(batteryAdcConfig) * b.Divider, nil
}

// Percentage returns the battery charge in 0..1, linear between Min and Max
func (b *Battery) Percentage(voltage float64) float64 {
	if voltage <= b.Min {
		return 0
	}
	if voltage >= b.Max {
		return 1
	}
	return (voltage - b.Min) / (b.Max - b.Min)
}
