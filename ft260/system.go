package ft260

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

const (
	ReportID_ChipCode      = 0xA0 // Feature In
	ReportID_SystemSetting = 0xA1 // Feature In/Out

	I2cClockMin = 60   // kHz
	I2cClockMax = 3400 // kHz
)

// Requests for ReportID_SystemSetting Feature Out
const (
	SetSystemSetting_Clock       = 0x01 // Clock...MHz
	SetSystemSetting_I2CReset    = 0x20 // <empty>
	SetSystemSetting_I2CSetClock = 0x22 // LSB+MSB of the I2C clock in kHz
)

const (
	Clock12MHz = byte(0)
	Clock24MHz = byte(1)
	Clock48MHz = byte(2)
)

func ClockString(clock byte) string {
	switch clock {
	case Clock12MHz:
		return "12MHz"
	case Clock24MHz:
		return "24MHz"
	case Clock48MHz:
		return "48MHz"
	default:
		return fmt.Sprintf("unknown clock %v", clock)
	}
}

// Result of ReportID_ChipCode Feature In
type ReportChipCode struct {
	ChipCode uint32 // 02600200
	// 8 reserved byte
}

func (r *ReportChipCode) ReportID() byte {
	return ReportID_ChipCode
}

func (r *ReportChipCode) ReportLen() int {
	return 12
}

func (r *ReportChipCode) Unmarshall(b []byte) error {
	r.ChipCode = uint32(b[0])<<24 + uint32(b[1])<<16 + uint32(b[2])<<8 + uint32(b[3])
	return nil
}

// Result of ReportID_SystemSetting Feature In. Only the leading fields are decoded,
// the GPIO, UART and interrupt configuration is not used here.
type ReportSystemStatus struct {
	ChipMode    byte // Bit 0: DCNF0, Bit 1: DCNF1
	Clock       byte // Clock...MHz
	Suspended   bool
	PowerStatus bool // Device ready
	I2CEnable   bool
}

func (r *ReportSystemStatus) ReportID() byte {
	return ReportID_SystemSetting
}

func (r *ReportSystemStatus) ReportLen() int {
	// The report has 19 byte, but the device returns an error for shorter buffers
	return 24
}

func (r *ReportSystemStatus) Unmarshall(b []byte) (err error) {
	r.ChipMode = b[0]
	r.Clock = b[1]
	r.Suspended = readBool(b, 2, &err)
	r.PowerStatus = readBool(b, 3, &err)
	r.I2CEnable = readBool(b, 4, &err)
	return
}

func readBool(b []byte, index int, e *error) bool {
	if *e == nil {
		switch b[index] {
		case 0:
			return false
		case 1:
			return true
		default:
			*e = fmt.Errorf("Expected 0 or 1 for byte at index %v, but got %02x", index, b[index])
		}
	}
	return false
}

// ReportID_SystemSetting Feature Out
type SetSystemStatus struct {
	Request byte
	Value   uint16
}

func (r *SetSystemStatus) ReportID() byte {
	return ReportID_SystemSetting
}

func (r *SetSystemStatus) ReportLen() int {
	switch r.Request {
	case SetSystemSetting_I2CReset:
		return 1
	case SetSystemSetting_Clock:
		return 2
	default:
		return 3
	}
}

func (r *SetSystemStatus) Marshall(b []byte) error {
	b[0] = r.Request
	switch r.Request {
	case SetSystemSetting_I2CReset:
		// No payload
	case SetSystemSetting_Clock:
		if r.Value > uint16(Clock48MHz) {
			return fmt.Errorf("Invalid FT260 clock setting: %v", r.Value)
		}
		b[1] = byte(r.Value)
	case SetSystemSetting_I2CSetClock:
		if r.Value < I2cClockMin || r.Value > I2cClockMax {
			return fmt.Errorf("I2C clock must be within %v..%v kHz, got %v", I2cClockMin, I2cClockMax, r.Value)
		}
		b[1], b[2] = byte(r.Value), byte(r.Value>>8)
	default:
		return fmt.Errorf("Unsupported system setting request ID: %#02x", r.Request)
	}
	return nil
}

func (f *Ft260) setI2cClock(kHz uint) error {
	if kHz > I2cClockMax {
		return fmt.Errorf("I2C clock must be within %v..%v kHz, got %v", I2cClockMin, I2cClockMax, kHz)
	}
	if err := f.setFeature(&SetSystemStatus{Request: SetSystemSetting_I2CSetClock, Value: uint16(kHz)}); err != nil {
		return err
	}
	var status ReportI2cStatus
	if err := f.getFeature(&status); err != nil {
		return err
	}
	log.Printf("FT260 I2C clock set to %v kHz", status.BusSpeed)
	return nil
}

// SetI2cClock configures the I2C clock in kHz
func (f *Ft260) SetI2cClock(kHz uint) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.setI2cClock(kHz)
}

// ResetI2c resets the I2C controller, for example after a lost arbitration
func (f *Ft260) ResetI2c() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.setFeature(&SetSystemStatus{Request: SetSystemSetting_I2CReset})
}
