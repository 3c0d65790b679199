package ft260

import (
	"errors"
	"fmt"
	"time"
)

const (
	ReportID_I2CStatus    = 0xC0 // Feature In
	ReportID_I2CRead      = 0xC2 // Output
	ReportID_I2CInOut     = 0xD0 // 0xD0 - 0xDE, Input, Output
	ReportID_I2CInOut_Max = 0xDE

	// Max size of I2C payload in one report: (1 + Report ID - 0xD0) * 4 byte
	I2CMaxPayload = (1 + ReportID_I2CInOut_Max - ReportID_I2CInOut) * 4

	I2CMaxRead = 0xFFFF
)

const (
	I2C_MasterNone      = 0x0
	I2C_MasterStart     = 0x2
	I2C_MasterRepStart  = 0x3
	I2C_MasterStop      = 0x4
	I2C_MasterStartStop = 0x6
)

const (
	I2C_StatusControllerBusy = byte(1 << iota)
	I2C_StatusError
	I2C_StatusNoSlaveAck
	I2C_StatusNoDataAck
	I2C_StatusArbitrationLost
	I2C_StatusControllerIdle
	I2C_StatusBusBusy
)

var (
	ErrNoAck           = errors.New("ft260: I2C slave did not acknowledge")
	ErrArbitrationLost = errors.New("ft260: I2C arbitration lost")
)

func I2cMasterCodeString(code byte) string {
	switch code {
	case I2C_MasterNone:
		return "Nothing"
	case I2C_MasterStart:
		return "Start"
	case I2C_MasterRepStart:
		return "Repeated Start"
	case I2C_MasterStop:
		return "Stop"
	case I2C_MasterStartStop:
		return "Start + Stop"
	case I2C_MasterRepStart | I2C_MasterStop:
		return "Repeated Start + Stop"
	default:
		return fmt.Sprintf("Unknown I2C Master code %v", code)
	}
}

// Result of ReportID_I2CStatus Feature In
type ReportI2cStatus struct {
	BusStatus byte   // Bitmask of I2C_Status...
	BusSpeed  uint16 // kHz
	// 1 reserved
}

func (r *ReportI2cStatus) ReportID() byte {
	return ReportID_I2CStatus
}

func (r *ReportI2cStatus) ReportLen() int {
	return 4
}

func (r *ReportI2cStatus) Unmarshall(b []byte) error {
	r.BusStatus = b[0]
	r.BusSpeed = uint16(b[1]) + uint16(b[2])<<8
	return nil
}

func (r *ReportI2cStatus) Busy() bool {
	return r.BusStatus&I2C_StatusControllerBusy != 0
}

// Err translates the error bits of the last transaction
func (r *ReportI2cStatus) Err() error {
	status := r.BusStatus
	switch {
	case status&I2C_StatusError == 0:
		return nil
	case status&I2C_StatusNoSlaveAck != 0:
		return fmt.Errorf("%w to its address (status %#02x)", ErrNoAck, status)
	case status&I2C_StatusNoDataAck != 0:
		return fmt.Errorf("%w a data byte (status %#02x)", ErrNoAck, status)
	case status&I2C_StatusArbitrationLost != 0:
		return fmt.Errorf("%w (status %#02x)", ErrArbitrationLost, status)
	default:
		return fmt.Errorf("ft260: I2C error (status %#02x)", status)
	}
}

// Data of ReportID_I2CRead Interrupt Out
type OperationI2cRead struct {
	SlaveAddr byte   // 0..127
	Condition byte   // I2C_Master...
	Len       uint16 // data length (little endian)
}

func (r *OperationI2cRead) ReportID() byte {
	return ReportID_I2CRead
}

func (r *OperationI2cRead) ReportLen() int {
	return 4
}

func (r *OperationI2cRead) Marshall(b []byte) error {
	if r.SlaveAddr&0x80 != 0 {
		return fmt.Errorf("Invalid I2C slave address: %02x", r.SlaveAddr)
	}
	b[0] = r.SlaveAddr
	b[1] = r.Condition
	b[2], b[3] = byte(r.Len), byte(r.Len>>8)
	return nil
}

// Data of ReportID_I2CInOut Interrupt Out
type OperationI2cWrite struct {
	SlaveAddr byte // 0..127
	Condition byte // I2C_Master...
	// 1 byte payload len
	Payload []byte
}

// Every report ID has a fixed size, the smallest fitting one is used
func (r *OperationI2cWrite) ReportID() byte {
	if len(r.Payload) == 0 {
		return ReportID_I2CInOut
	}
	return ReportID_I2CInOut + byte((len(r.Payload)-1)/4)
}

func (r *OperationI2cWrite) ReportLen() int {
	return 3 + int(r.ReportID()-ReportID_I2CInOut+1)*4
}

func (r *OperationI2cWrite) Marshall(b []byte) error {
	if len(r.Payload) > I2CMaxPayload {
		return fmt.Errorf("Payload len %v exceeds maximum size of %v", len(r.Payload), I2CMaxPayload)
	}
	if r.SlaveAddr&0x80 != 0 {
		return fmt.Errorf("Invalid I2C slave address: %02x", r.SlaveAddr)
	}
	b[0] = r.SlaveAddr
	b[1] = r.Condition
	b[2] = byte(len(r.Payload))
	copy(b[3:], r.Payload)
	return nil
}

// Data of ReportID_I2CInOut Interrupt In
type OperationI2cInput struct {
	// 1 byte payload length
	Data []byte
}

func (r *OperationI2cInput) ReportID() byte {
	return ReportID_I2CInOut
}

// Minimum length, the actual length varies with the report ID
func (r *OperationI2cInput) ReportLen() int {
	return 1
}

func (r *OperationI2cInput) Unmarshall(d []byte) error {
	l := int(d[0])
	if l > I2CMaxPayload || len(d) < l+1 {
		return fmt.Errorf("Short I2C read (%v, needed at least %v)", len(d), l+1)
	}
	r.Data = append(r.Data[:0], d[1:1+l]...)
	return nil
}

// Splits data into chunks that fit into one output report. The conditions frame the
// chunks into one I2C transaction. The stop condition is omitted when stop is false.
func i2cSplitTransaction(stop bool, data []byte) ([][]byte, []byte) {
	if len(data) == 0 {
		return nil, nil
	}
	var payload [][]byte
	var conditions []byte
	for start := 0; start < len(data); start += I2CMaxPayload {
		end := min(start+I2CMaxPayload, len(data))
		payload = append(payload, data[start:end])
		conditions = append(conditions, I2C_MasterNone)
	}
	conditions[0] = I2C_MasterStart
	if stop {
		conditions[len(conditions)-1] |= I2C_MasterStop
	}
	return payload, conditions
}

func (f *Ft260) i2cStatus() (ReportI2cStatus, error) {
	var status ReportI2cStatus
	err := f.getFeature(&status)
	return status, err
}

// Returns the error of a finished transaction, nil while the controller is still busy
func (f *Ft260) checkI2cStatus() error {
	status, err := f.i2cStatus()
	if err != nil || status.Busy() {
		return err
	}
	return status.Err()
}

// Waits until the controller finished the last transaction and returns its error
func (f *Ft260) waitI2cDone() error {
	deadline := time.Now().Add(f.ReadTimeout)
	for {
		status, err := f.i2cStatus()
		if err != nil {
			return err
		}
		if !status.Busy() {
			return status.Err()
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("ft260: I2C controller still busy after %v (status %#02x)", f.ReadTimeout, status.BusStatus)
		}
		time.Sleep(time.Millisecond)
	}
}

func (f *Ft260) writeTransaction(addr byte, stop bool, data []byte) error {
	if len(data) == 0 {
		return errors.New("ft260: empty I2C write")
	}
	payload, conditions := i2cSplitTransaction(stop, data)
	for i, chunk := range payload {
		err := f.write(&OperationI2cWrite{
			SlaveAddr: addr,
			Condition: conditions[i],
			Payload:   chunk,
		})
		if err != nil {
			return err
		}
	}
	return f.waitI2cDone()
}

func (f *Ft260) readTransaction(addr byte, condition byte, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if len(buf) > I2CMaxRead {
		return fmt.Errorf("ft260: I2C read of %v byte exceeds maximum of %v", len(buf), I2CMaxRead)
	}
	if err := f.dropStaleReports(); err != nil {
		return err
	}
	err := f.write(&OperationI2cRead{
		SlaveAddr: addr,
		Condition: condition,
		Len:       uint16(len(buf)),
	})
	if err != nil {
		return err
	}
	received := 0
	var input OperationI2cInput
	for received < len(buf) {
		// A missing slave sends no input reports, the status reports the missing ACK early
		if err := f.read(&input, ReportID_I2CInOut, ReportID_I2CInOut_Max, f.checkI2cStatus); err != nil {
			return err
		}
		if received+len(input.Data) > len(buf) {
			return fmt.Errorf("ft260: received %v byte from %#02x, requested %v", received+len(input.Data), addr, len(buf))
		}
		received += copy(buf[received:], input.Data)
	}
	return nil
}

func (f *Ft260) I2cWrite(addr byte, data ...byte) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.isClosed() {
		return ErrClosed
	}
	return f.writeTransaction(addr, true, data)
}

func (f *Ft260) I2cRead(addr byte, buf []byte) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.isClosed() {
		return ErrClosed
	}
	return f.readTransaction(addr, I2C_MasterStartStop, buf)
}

// I2cWriteRead writes out without a stop condition and reads with a repeated start
func (f *Ft260) I2cWriteRead(addr byte, out []byte, in []byte) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.isClosed() {
		return ErrClosed
	}
	if err := f.writeTransaction(addr, false, out); err != nil {
		return err
	}
	return f.readTransaction(addr, I2C_MasterRepStart|I2C_MasterStop, in)
}

func (f *Ft260) I2cGet(addr byte, registerAddr byte, size int) ([]byte, error) {
	buf := make([]byte, size)
	err := f.I2cWriteRead(addr, []byte{registerAddr}, buf)
	return buf, err
}
