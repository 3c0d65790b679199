package ft260

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/antongulenko/hid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_i2c_split_transactions(t *testing.T) {
	a := assert.New(t)
	test := func(stop bool, data []byte, expectedPayload [][]byte, expectedConditions []byte) {
		payload, conditions := i2cSplitTransaction(stop, data)
		a.Equal(expectedPayload, payload, "Payload differs")
		a.Equal(expectedConditions, conditions, "Conditions differ")
	}

	test(true, nil, nil, nil)
	test(false, nil, nil, nil)
	test(true, []byte{}, nil, nil)
	test(false, []byte{}, nil, nil)

	test(true, []byte{44}, [][]byte{[]byte{44}}, []byte{I2C_MasterStartStop})
	test(false, []byte{44}, [][]byte{[]byte{44}}, []byte{I2C_MasterStart})

	data := make([]byte, 130)
	for i := byte(0); i < byte(len(data)); i++ {
		data[i] = i + 10
	}

	// 59 byte
	test(true, data[:59], [][]byte{data[:59]}, []byte{I2C_MasterStartStop})
	test(false, data[:59], [][]byte{data[:59]}, []byte{I2C_MasterStart})

	// 60 byte
	test(true, data[:60], [][]byte{data[:60]}, []byte{I2C_MasterStartStop})
	test(false, data[:60], [][]byte{data[:60]}, []byte{I2C_MasterStart})

	// 61 byte
	test(true, data[:61], [][]byte{data[:60], data[60:61]}, []byte{I2C_MasterStart, I2C_MasterStop})
	test(false, data[:61], [][]byte{data[:60], data[60:61]}, []byte{I2C_MasterStart, I2C_MasterNone})

	// 119 byte
	test(true, data[:119], [][]byte{data[:60], data[60:119]}, []byte{I2C_MasterStart, I2C_MasterStop})
	test(false, data[:119], [][]byte{data[:60], data[60:119]}, []byte{I2C_MasterStart, I2C_MasterNone})

	// 120 byte
	test(true, data[:120], [][]byte{data[:60], data[60:120]}, []byte{I2C_MasterStart, I2C_MasterStop})
	test(false, data[:120], [][]byte{data[:60], data[60:120]}, []byte{I2C_MasterStart, I2C_MasterNone})

	// 121 byte
	test(true, data[:121], [][]byte{data[:60], data[60:120], data[120:121]}, []byte{I2C_MasterStart, I2C_MasterNone, I2C_MasterStop})
	test(false, data[:121], [][]byte{data[:60], data[60:120], data[120:121]}, []byte{I2C_MasterStart, I2C_MasterNone, I2C_MasterNone})

	// 130 byte
	test(true, data, [][]byte{data[:60], data[60:120], data[120:]}, []byte{I2C_MasterStart, I2C_MasterNone, I2C_MasterStop})
	test(false, data, [][]byte{data[:60], data[60:120], data[120:]}, []byte{I2C_MasterStart, I2C_MasterNone, I2C_MasterNone})
}

// Answers every read request with the queued input reports
type fakeHid struct {
	lock      sync.Mutex
	written   [][]byte
	features  [][]byte
	responses [][]byte
	input     [][]byte

	status    byte
	busSpeed  uint16
	i2cEnable byte

	reading          bool
	closed           bool
	closedDuringRead bool
	blockingRead     bool
}

func newFakeHid() *fakeHid {
	return &fakeHid{
		status:    I2C_StatusControllerIdle,
		busSpeed:  100,
		i2cEnable: 1,
	}
}

func (d *fakeHid) DoWrite(b []byte, feature bool) (int, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return 0, hid.ErrDeviceClosed
	}
	data := append([]byte(nil), b...)
	if feature {
		d.features = append(d.features, data)
		if b[0] == ReportID_SystemSetting && b[1] == SetSystemSetting_I2CSetClock {
			d.busSpeed = uint16(b[2]) + uint16(b[3])<<8
		}
		return len(b), nil
	}
	d.written = append(d.written, data)
	if b[0] == ReportID_I2CRead {
		d.input = append(d.input, d.responses...)
		d.responses = nil
	}
	return len(b), nil
}

func (d *fakeHid) DoRead(b []byte, feature bool, timeout time.Duration) (int, error) {
	d.lock.Lock()
	if d.closed {
		d.lock.Unlock()
		return 0, hid.ErrDeviceClosed
	}
	if feature {
		defer d.lock.Unlock()
		var data []byte
		switch b[0] {
		case ReportID_ChipCode:
			data = []byte{ReportID_ChipCode, 0x02, 0x60, 0x02, 0x00}
		case ReportID_SystemSetting:
			data = []byte{ReportID_SystemSetting, 1, Clock48MHz, 0, 1, d.i2cEnable}
		case ReportID_I2CStatus:
			data = []byte{ReportID_I2CStatus, d.status, byte(d.busSpeed), byte(d.busSpeed >> 8), 0}
		default:
			return 0, errors.New("unknown feature report")
		}
		for i := range b {
			b[i] = 0
		}
		copy(b, data)
		return len(b), nil
	}
	if timeout <= 0 {
		d.blockingRead = true
		d.lock.Unlock()
		return 0, errors.New("read without timeout")
	}
	if len(d.input) > 0 {
		data := d.input[0]
		d.input = d.input[1:]
		d.lock.Unlock()
		return copy(b, data), nil
	}
	d.reading = true
	d.lock.Unlock()
	time.Sleep(timeout)
	d.lock.Lock()
	d.reading = false
	d.lock.Unlock()
	return 0, nil
}

func (d *fakeHid) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.reading {
		d.closedDuringRead = true
	}
	d.closed = true
	return nil
}

func (d *fakeHid) respond(reports ...[]byte) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.responses = append(d.responses, reports...)
}

func (d *fakeHid) setStatus(status byte) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.status = status
}

func (d *fakeHid) writes() [][]byte {
	d.lock.Lock()
	defer d.lock.Unlock()
	res := d.written
	d.written = nil
	return res
}

func (d *fakeHid) featureWrites() [][]byte {
	d.lock.Lock()
	defer d.lock.Unlock()
	res := d.features
	d.features = nil
	return res
}

func newTestFt260() (*Ft260, *fakeHid) {
	dev := newFakeHid()
	f := newFt260(dev)
	f.ReadTimeout = 200 * time.Millisecond
	return f, dev
}

func Test_i2c_write(t *testing.T) {
	a := assert.New(t)
	f, dev := newTestFt260()
	defer f.Close()

	a.NoError(f.I2cWrite(0x60, 1, 2, 3))
	a.Equal([][]byte{{ReportID_I2CInOut, 0x60, I2C_MasterStartStop, 3, 1, 2, 3, 0}}, dev.writes())

	a.NoError(f.I2cWrite(0x60, 1, 2, 3, 4, 5))
	a.Equal([][]byte{{ReportID_I2CInOut + 1, 0x60, I2C_MasterStartStop, 5, 1, 2, 3, 4, 5, 0, 0, 0}}, dev.writes())

	data := make([]byte, 61)
	a.NoError(f.I2cWrite(0x10, data...))
	written := dev.writes()
	if a.Len(written, 2) {
		a.Len(written[0], 64)
		a.Equal([]byte{ReportID_I2CInOut_Max, 0x10, I2C_MasterStart, 60}, written[0][:4])
		a.Equal([]byte{ReportID_I2CInOut, 0x10, I2C_MasterStop, 1, 0, 0, 0, 0}, written[1])
	}

	a.Error(f.I2cWrite(0x60))
	a.Error(f.I2cWrite(0x80, 1))
	a.Empty(dev.writes())
}

func Test_i2c_read(t *testing.T) {
	a := assert.New(t)
	f, dev := newTestFt260()
	defer f.Close()

	dev.respond([]byte{ReportID_I2CInOut, 3, 7, 8, 9, 0})
	buf := make([]byte, 3)
	a.NoError(f.I2cRead(0x48, buf))
	a.Equal([]byte{7, 8, 9}, buf)
	a.Equal([][]byte{{ReportID_I2CRead, 0x48, I2C_MasterStartStop, 3, 0}}, dev.writes())

	// Data split over multiple input reports
	dev.respond([]byte{ReportID_I2CInOut, 2, 1, 2, 0, 0}, []byte{ReportID_I2CInOut, 3, 3, 4, 5, 0})
	buf = make([]byte, 5)
	a.NoError(f.I2cRead(0x48, buf))
	a.Equal([]byte{1, 2, 3, 4, 5}, buf)
	dev.writes()

	dev.respond([]byte{ReportID_I2CInOut, 2, 0xaa, 0xbb, 0, 0})
	data, err := f.I2cGet(0x48, 0x05, 2)
	a.NoError(err)
	a.Equal([]byte{0xaa, 0xbb}, data)
	a.Equal([][]byte{
		{ReportID_I2CInOut, 0x48, I2C_MasterStart, 1, 0x05, 0, 0, 0},
		{ReportID_I2CRead, 0x48, I2C_MasterRepStart | I2C_MasterStop, 2, 0},
	}, dev.writes())
}

func Test_i2c_read_errors(t *testing.T) {
	a := assert.New(t)
	f, dev := newTestFt260()
	defer f.Close()

	// No response from the slave
	a.Error(f.I2cRead(0x48, make([]byte, 1)))

	dev.respond([]byte{0xA1, 1, 1})
	a.Error(f.I2cRead(0x48, make([]byte, 1)))

	dev.respond([]byte{ReportID_I2CInOut, 4, 1, 2, 3, 4})
	a.Error(f.I2cRead(0x48, make([]byte, 2)))

	dev.respond([]byte{ReportID_I2CInOut, 8, 1})
	a.Error(f.I2cRead(0x48, make([]byte, 8)))

	a.NoError(f.I2cRead(0x48, nil))
}

func Test_i2c_closed(t *testing.T) {
	a := assert.New(t)
	f, dev := newTestFt260()
	a.NoError(f.Close())
	a.NoError(f.Close())
	a.Equal(ErrClosed, f.I2cWrite(0x60, 1))
	a.Equal(ErrClosed, f.I2cRead(0x60, make([]byte, 1)))
	a.Empty(dev.writes())
}

func Test_i2c_master_codes(t *testing.T) {
	a := assert.New(t)
	a.Equal("Start + Stop", I2cMasterCodeString(I2C_MasterStartStop))
	a.Equal("Repeated Start + Stop", I2cMasterCodeString(I2C_MasterRepStart|I2C_MasterStop))
	a.Equal("Unknown I2C Master code 1", I2cMasterCodeString(1))
}

func Test_i2c_no_ack(t *testing.T) {
	a := assert.New(t)
	f, dev := newTestFt260()
	defer f.Close()
	f.ReadTimeout = 5 * time.Second

	dev.setStatus(I2C_StatusControllerIdle | I2C_StatusError | I2C_StatusNoSlaveAck)
	start := time.Now()
	a.ErrorIs(f.I2cRead(0x30, make([]byte, 1)), ErrNoAck)
	a.ErrorIs(f.I2cWrite(0x30, 1), ErrNoAck)
	a.Less(time.Since(start), time.Second)

	dev.setStatus(I2C_StatusControllerIdle | I2C_StatusError | I2C_StatusNoDataAck)
	a.ErrorIs(f.I2cWrite(0x30, 1, 2), ErrNoAck)

	dev.setStatus(I2C_StatusControllerIdle | I2C_StatusError | I2C_StatusArbitrationLost)
	a.ErrorIs(f.I2cWrite(0x30, 1), ErrArbitrationLost)

	dev.setStatus(I2C_StatusControllerIdle | I2C_StatusError)
	a.EqualError(f.I2cWrite(0x30, 1), "ft260: I2C error (status 0x22)")

	dev.setStatus(I2C_StatusControllerIdle)
	a.NoError(f.I2cWrite(0x30, 1))
}

func Test_i2c_busy(t *testing.T) {
	a := assert.New(t)
	f, dev := newTestFt260()
	defer f.Close()
	f.ReadTimeout = 50 * time.Millisecond

	dev.setStatus(I2C_StatusControllerBusy | I2C_StatusBusBusy)
	a.Error(f.I2cWrite(0x30, 1))

	// A busy controller does not abort a pending read
	dev.respond([]byte{ReportID_I2CInOut, 1, 42, 0, 0})
	buf := make([]byte, 1)
	a.NoError(f.I2cRead(0x30, buf))
	a.Equal([]byte{42}, buf)
}

func Test_i2c_close_during_read(t *testing.T) {
	a := assert.New(t)
	f, dev := newTestFt260()
	f.ReadTimeout = 5 * time.Second

	result := make(chan error, 1)
	go func() {
		result <- f.I2cRead(0x48, make([]byte, 1))
	}()
	time.Sleep(50 * time.Millisecond)
	a.NoError(f.Close())

	select {
	case err := <-result:
		a.Equal(ErrClosed, err)
	case <-time.After(time.Second):
		a.Fail("I2C read was not stopped by Close")
	}
	dev.lock.Lock()
	defer dev.lock.Unlock()
	a.True(dev.closed)
	a.False(dev.closedDuringRead, "Device closed while a read was pending")
	a.False(dev.blockingRead, "Read without timeout")
}

func Test_init(t *testing.T) {
	a := assert.New(t)
	f, dev := newTestFt260()
	require.NoError(t, f.init(400))
	a.Equal([][]byte{{ReportID_SystemSetting, SetSystemSetting_I2CSetClock, 0x90, 0x01}}, dev.featureWrites())
	status, err := f.SystemStatus()
	a.NoError(err)
	a.Equal(ReportSystemStatus{ChipMode: 1, Clock: Clock48MHz, PowerStatus: true, I2CEnable: true}, status)

	// Keep the clock of the chip
	a.NoError(f.init(0))
	a.Empty(dev.featureWrites())

	a.Error(f.init(5000))
	a.Error(f.SetI2cClock(20))
	a.Empty(dev.featureWrites())

	a.NoError(f.ResetI2c())
	a.Equal([][]byte{{ReportID_SystemSetting, SetSystemSetting_I2CReset}}, dev.featureWrites())

	dev.i2cEnable = 0
	a.Error(f.init(0))

	a.NoError(f.Close())
	a.Equal(ErrClosed, f.init(0))
	a.Equal(ErrClosed, f.ResetI2c())
}

func Test_system_reports(t *testing.T) {
	a := assert.New(t)

	var status ReportSystemStatus
	a.Error(status.Unmarshall([]byte{0, 0, 2, 0, 1}))
	a.NoError(status.Unmarshall([]byte{3, Clock12MHz, 1, 1, 0}))
	a.Equal(ReportSystemStatus{ChipMode: 3, Suspended: true, PowerStatus: true}, status)

	var chip ReportChipCode
	a.NoError(chip.Unmarshall([]byte{0x02, 0x60, 0x02, 0x00}))
	a.Equal(uint32(0x02600200), chip.ChipCode)

	test := func(set SetSystemStatus, expected []byte) {
		b := make([]byte, set.ReportLen())
		if expected == nil {
			a.Error(set.Marshall(b))
		} else {
			a.NoError(set.Marshall(b))
			a.Equal(expected, b)
		}
	}
	test(SetSystemStatus{Request: SetSystemSetting_I2CSetClock, Value: 100}, []byte{SetSystemSetting_I2CSetClock, 100, 0})
	test(SetSystemStatus{Request: SetSystemSetting_I2CSetClock, Value: 3400}, []byte{SetSystemSetting_I2CSetClock, 0x48, 0x0d})
	test(SetSystemStatus{Request: SetSystemSetting_I2CSetClock, Value: 59}, nil)
	test(SetSystemStatus{Request: SetSystemSetting_Clock, Value: uint16(Clock24MHz)}, []byte{SetSystemSetting_Clock, Clock24MHz})
	test(SetSystemStatus{Request: SetSystemSetting_Clock, Value: 3}, nil)
	test(SetSystemStatus{Request: SetSystemSetting_I2CReset}, []byte{SetSystemSetting_I2CReset})
	test(SetSystemStatus{Request: 0x41}, nil)

	a.Equal("48MHz", ClockString(Clock48MHz))
	a.Equal("unknown clock 7", ClockString(7))
}

func Test_open_missing_device(t *testing.T) {
	a := assert.New(t)
	f, err := (&Ft260Driver{Path: "/dev/hidraw-missing"}).Open()
	a.Error(err)
	a.Nil(f)
}
