// FTDI FT260 USB to I2C bridge, accessed through HID reports
// https://www.ftdichip.com/Support/Documents/AppNotes/AN_394_User_Guide_for_FT260.pdf
package ft260

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/antongulenko/golib"
	"github.com/antongulenko/hid"
	log "github.com/sirupsen/logrus"
)

const (
	FTDIVendorId   = 0x0403
	FT260ProductId = 0x6030

	DefaultReadTimeout = 500 * time.Millisecond

	// Largest HID report of the FT260, including the report ID
	maxReportSize = 64

	// Upper bound for one blocking HID read. Close() waits at most this long for a running transaction.
	pollInterval = 20 * time.Millisecond
)

var ErrClosed = errors.New("ft260: device closed")

type Ft260Driver struct {
	Vendor  uint16
	Product uint16

	// Selects one of multiple connected devices. Empty: use the first device.
	Path string

	// I2C clock in kHz (60..3400). 0 keeps the current setting of the chip.
	I2cClock uint
}

func (d *Ft260Driver) Open() (*Ft260, error) {
	if !hid.Supported() {
		return nil, errors.New("USB HID devices are not supported on this platform (cgo is required)")
	}
	info, err := d.find()
	if err != nil {
		return nil, err
	}
	dev, err := openHidDevice(info)
	if err != nil {
		return nil, err
	}
	f := newFt260(dev)
	if err := f.init(d.I2cClock); err != nil {
		golib.Printerr(f.Close())
		return nil, err
	}
	return f, nil
}

func (d *Ft260Driver) find() (hid.DeviceInfo, error) {
	vendor, product := d.Vendor, d.Product
	if vendor == 0 {
		vendor = FTDIVendorId
	}
	if product == 0 {
		product = FT260ProductId
	}
	devices := hid.Enumerate(vendor, product)
	if d.Path != "" {
		var selected []hid.DeviceInfo
		for _, info := range devices {
			if info.Path == d.Path {
				selected = append(selected, info)
			}
		}
		devices = selected
	}
	if len(devices) == 0 {
		return hid.DeviceInfo{}, fmt.Errorf("No USB HID device found with vendorID=%04x productID=%04x path=%q", vendor, product, d.Path)
	}
	if len(devices) > 1 {
		log.Warnf("Multiple devices connected with vendorID=%04x productID=%04x, using first", vendor, product)
	}
	info := devices[0]
	log.Printf("Opening USB HID device %v (USB %v): %v (%04x) from %v (%04x), Release %v",
		info.Path, info.Interface, info.Product, info.ProductID, info.Manufacturer, info.VendorID, info.Release)
	return info, nil
}

func Open() (*Ft260, error) {
	return (&Ft260Driver{}).Open()
}

type ReportIn interface {
	Unmarshall(data []byte) error
	ReportID() byte
	ReportLen() int
}

type ReportOut interface {
	Marshall(data []byte) error
	ReportID() byte
	ReportLen() int
}

// Subset of *hid.Device. A timeout of 0 blocks until a report arrives, so the
// Ft260 always passes a positive timeout.
type hidDevice interface {
	DoWrite(b []byte, featureReport bool) (int, error)
	DoRead(b []byte, featureReport bool, timeout time.Duration) (int, error)
	Close() error
}

// Ft260 implements bus.I2cBus. Every access to the HID device happens while holding
// the lock, including Close, so the device is never closed during a pending read.
type Ft260 struct {
	ReadTimeout time.Duration

	dev       hidDevice
	lock      sync.Mutex
	closing   chan struct{}
	closeOnce sync.Once
}

func newFt260(dev hidDevice) *Ft260 {
	return &Ft260{
		ReadTimeout: DefaultReadTimeout,
		dev:         dev,
		closing:     make(chan struct{}),
	}
}

func (f *Ft260) init(i2cClock uint) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	var chip ReportChipCode
	if err := f.getFeature(&chip); err != nil {
		return err
	}
	var status ReportSystemStatus
	if err := f.getFeature(&status); err != nil {
		return err
	}
	log.Printf("FT260 chip code %08x, chip mode %v, clock %v, I2C enabled: %v", chip.ChipCode, status.ChipMode, ClockString(status.Clock), status.I2CEnable)
	if !status.I2CEnable {
		return errors.New("ft260: I2C is disabled by the DCNF pins of the chip")
	}
	if i2cClock != 0 {
		return f.setI2cClock(i2cClock)
	}
	return nil
}

// Close stops running transactions within pollInterval and closes the HID device
func (f *Ft260) Close() (err error) {
	f.closeOnce.Do(func() {
		close(f.closing)
		f.lock.Lock()
		defer f.lock.Unlock()
		err = f.dev.Close()
	})
	return
}

func (f *Ft260) isClosed() bool {
	select {
	case <-f.closing:
		return true
	default:
		return false
	}
}

func (f *Ft260) String() string {
	return "FT260"
}

func (f *Ft260) marshall(report ReportOut) ([]byte, error) {
	data := make([]byte, report.ReportLen()+1)
	data[0] = report.ReportID()
	err := report.Marshall(data[1:])
	return data, err
}

func (f *Ft260) write(report ReportOut) error {
	return f.doWrite(report, false)
}

func (f *Ft260) setFeature(report ReportOut) error {
	return f.doWrite(report, true)
}

func (f *Ft260) doWrite(report ReportOut, feature bool) error {
	if f.isClosed() {
		return ErrClosed
	}
	data, err := f.marshall(report)
	if err != nil {
		return err
	}
	n, err := f.dev.DoWrite(data, feature)
	if err == nil && n != len(data) {
		err = fmt.Errorf("ft260: wrong write len (%v instead of %v)", n, len(data))
	}
	return err
}

func (f *Ft260) getFeature(report ReportIn) error {
	if f.isClosed() {
		return ErrClosed
	}
	data := make([]byte, report.ReportLen()+1)
	data[0] = report.ReportID()
	n, err := f.dev.DoRead(data, true, pollInterval)
	if err != nil {
		return err
	}
	if n < len(data) {
		return fmt.Errorf("ft260: wrong feature report len %#02x (%v instead of %v)", report.ReportID(), n, len(data))
	}
	if data[0] != report.ReportID() {
		return fmt.Errorf("Unexpected report id %#02x (expected %#02x)", data[0], report.ReportID())
	}
	return report.Unmarshall(data[1:])
}

// Waits for the next input report. Between short reads, check is called and can abort the wait.
func (f *Ft260) readInput(check func() error) ([]byte, error) {
	deadline := time.Now().Add(f.ReadTimeout)
	buf := make([]byte, maxReportSize)
	for {
		if f.isClosed() {
			return nil, ErrClosed
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("ft260: no input report received within %v", f.ReadTimeout)
		}
		n, err := f.readReport(buf, min(remaining, pollInterval))
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return buf[:n], nil
		}
		if check != nil {
			if err := check(); err != nil {
				return nil, err
			}
		}
	}
}

// Returns 0 when no input report arrived within the timeout
func (f *Ft260) readReport(buf []byte, timeout time.Duration) (int, error) {
	n, err := f.dev.DoRead(buf, false, timeout)
	if errors.Is(err, hid.ErrTimeout) {
		return 0, nil
	}
	return n, err
}

// Reports with a variable ID in the range minID..maxID
func (f *Ft260) read(report ReportIn, minID, maxID byte, check func() error) error {
	data, err := f.readInput(check)
	if err != nil {
		return err
	}
	if data[0] < minID || data[0] > maxID {
		return fmt.Errorf("Unexpected report id %#02x (expected %#02x - %#02x)", data[0], minID, maxID)
	}
	if len(data)-1 < report.ReportLen() {
		return fmt.Errorf("ft260: short report %#02x (%v byte, expected at least %v)", data[0], len(data)-1, report.ReportLen())
	}
	return report.Unmarshall(data[1:])
}

// Discard input reports left over from earlier, failed transactions
func (f *Ft260) dropStaleReports() error {
	buf := make([]byte, maxReportSize)
	for {
		n, err := f.readReport(buf, time.Millisecond)
		if err != nil || n <= 0 {
			return err
		}
		log.Debugf("FT260: dropping stale input report %#02x (%v byte)", buf[0], n)
	}
}

// SystemStatus queries the chip configuration
func (f *Ft260) SystemStatus() (ReportSystemStatus, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	var status ReportSystemStatus
	err := f.getFeature(&status)
	return status, err
}
