// 16-channel, 12-bit PWM controller, used on the Adafruit DC & Stepper Motor HAT
// https://www.nxp.com/docs/en/data-sheet/PCA9685.pdf
package pca9685

import (
	"fmt"
	"math"
)

const (
	MODE1 = byte(iota)
	MODE2

	// The I2C addresses are stored in the 7 MSBs. Addresses must be left-shifted once.
	SUBADR1
	SUBADR2
	SUBADR3
	ALLCALLADR

	// Every channel has 4 registers: ON_L, ON_H, OFF_L, OFF_H. See ChannelRegister().
	// Default: all zero, except for FULL_OFF_BIT in OFF_H.
	LED0_ON_L
	LED0_ON_H
	LED0_OFF_L
	LED0_OFF_H

	LED0 = LED0_ON_L
)

const (
	ALL_ON_L = byte(0xFA + iota)
	ALL_ON_H
	ALL_OFF_L
	ALL_OFF_H
	PRE_SCALE // Only settable in SLEEP mode. Default value: 0x30
	TEST_MODE

	ALL_LEDS = ALL_ON_L
)

// Default values all zero, except ALLCALL and SLEEP
const (
	MODE1_ALLCALL = byte(1 << iota) // 1: Respond to ALLCALL address
	MODE1_SUB3                      // 1: Respond to SUB3 address
	MODE1_SUB2                      // 1: Respond to SUB2 address
	MODE1_SUB1                      // 1: Respond to SUB1 address
	MODE1_SLEEP                     // 0: normal mode 1: oscillator off, low power mode
	MODE1_AI                        // 1: Register auto increment
	MODE1_EXTCLK                    // 1: use EXTCLK pin as clock source
	MODE1_RESTART                   // Write 1: wake up from SLEEP and restart all PWM channels
)

// Default values all zero, except OUTDRV
const (
	MODE2_OUTNE0 = byte(1 << iota) // (only for OUTNE1=0) 0: outputs off 1: [on if OUTDRV=1, high-impedance if OUTDRV=0]
	MODE2_OUTNE1                   // 1: high impedance 0: see OUTNE0

	MODE2_OUTDRV // 0: outputs are open drain 1: outputs are totem pole
	MODE2_OCH    // 0: output change on STOP 1: output change on ACK
	MODE2_INVRT  // 1: invert output logic
)

const (
	ADDRESS     = byte(0x40) // All address pins low
	ADDRESS_MAX = byte(0x7F)

	DEFAULT_ALLCALL_ADDRESS = byte(0x70)

	NUM_CHANNELS     = 16
	BYTE_PER_OUTPUT  = 4
	TIMER_MAX        = 4095
	TIMER_RESOLUTION = TIMER_MAX + 1

	FULL_ON_BIT  = 0x10 // bit 4 of LEDn_ON_H.
	FULL_OFF_BIT = 0x10 // bit 4 of LEDn_OFF_H. Takes precedence over the FULL_ON_BIT.

	FREQ_MIN          = 23.84185791
	FREQ_MAX          = 1525.87890625
	FREQ_MIN_PRESALE  = byte(0xFF)
	FREQ_MAX_PRESCALE = byte(0x03) // Minimum value asserted by hardware

	INTERNAL_OSCILLATOR = 25000000 // 25 MHz
)

// ChannelRegister returns the address of the first register (ON_L) of a channel
func ChannelRegister(channel int) byte {
	return LED0 + byte(channel)*BYTE_PER_OUTPUT
}

func ValuesInto(onTime float64, target []byte) {
	ValuesDelayedInto(0, onTime, target)
}

// Target byte slice is suitable to write into a channel register or ALL_LEDS
func ValuesDelayedInto(delayTime, onTime float64, target []byte) {
	target[0], target[1], target[2], target[3] = ValuesDelayed(delayTime, onTime)
}

func Values(onTime float64) (byte, byte, byte, byte) {
	return ValuesDelayed(0, onTime)
}

// delay and onTime must be in [0; 1]
func ValuesDelayed(delayTime, onTime float64) (onL, onH, offL, offH byte) {
	if delayTime < 0 || delayTime > 1 || onTime < 0 || onTime > 1 {
		panic(fmt.Sprintf("Invalid timer values delay=%v onTime=%v", delayTime, onTime))
	}
	delayCount := round(delayTime*TIMER_RESOLUTION - 1)
	onCount := round(onTime * TIMER_RESOLUTION) // Added to delayCount, so no -1 correction here
	if delayTime == 0 {
		delayCount = 0
		if onCount > 0 {
			onCount-- // Apply -1 correction since delayCount is zero
		}
	}
	if onTime == 0 {
		onCount = 0
	}

	on := delayCount
	off := on + onCount
	if off > TIMER_RESOLUTION {
		// The delay pushes the end of the on-time into the next PWM cycle
		off -= TIMER_RESOLUTION
	}
	onL, onH = byte(on), byte(on>>8)
	offL, offH = byte(off), byte(off>>8)
	return
}

func round(f float64) int {
	return int(math.Floor(f + .5))
}

func FullValuesInto(on bool, target []byte) {
	target[0], target[1], target[2], target[3] = FullValues(on)
}

func FullValues(on bool) (byte, byte, byte, byte) {
	if on {
		return 0, FULL_ON_BIT, 0, 0
	}
	return 0, 0, 0, FULL_OFF_BIT
}

func PrescalerExternalClock(externalOscillator float64, frequency float64) byte {
	v := externalOscillator / (float64(TIMER_RESOLUTION) * frequency)
	return byte(round(v)) - 1
}

// ValidFrequency accepts frequencies slightly above FREQ_MAX, as long as they still
// round to the minimum prescale value.
func ValidFrequency(frequency float64) bool {
	if frequency < FREQ_MIN {
		return false
	}
	v := INTERNAL_OSCILLATOR / (float64(TIMER_RESOLUTION) * frequency)
	return round(v)-1 >= int(FREQ_MAX_PRESCALE)
}

func Prescaler(frequency float64) byte {
	return PrescalerExternalClock(INTERNAL_OSCILLATOR, frequency)
}
