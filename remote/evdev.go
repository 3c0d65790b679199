package remote

import (
	"context"
	"fmt"
	"strings"

	evdev "github.com/gvalkov/golang-evdev"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const DefaultGamepadName = "gamepad"

// EvdevSource reads absolute axis events from a Linux input device (/dev/input/event*).
type EvdevSource struct {
	// Device name, compared case-insensitively
	Name         string
	XCode, YCode int

	// evdev.ListInputDevices by default
	ListDevices func(devglob ...string) ([]*evdev.InputDevice, error)

	dev    *evdev.InputDevice
	reader *eventReader
}

func NewEvdevSource(name string, x, y AxisConfig) *EvdevSource {
	return &EvdevSource{
		Name:  name,
		XCode: x.Code,
		YCode: y.Code,
	}
}

func (s *EvdevSource) String() string {
	if s.dev != nil {
		return fmt.Sprintf("%v (%v)", s.dev.Name, s.dev.Fn)
	}
	return fmt.Sprintf("evdev device %q", s.Name)
}

func (s *EvdevSource) Connect() error {
	if s.reader != nil {
		return errors.New("evdev source already connected")
	}
	list := s.ListDevices
	if list == nil {
		list = evdev.ListInputDevices
	}
	devices, err := list()
	if err != nil {
		return errors.Wrap(ErrDeviceUnavailable, err.Error())
	}
	for _, dev := range devices {
		if s.dev == nil && strings.EqualFold(dev.Name, s.Name) {
			s.dev = dev
		} else if dev.File != nil {
			dev.File.Close()
		}
	}
	if s.dev == nil {
		return errors.Wrapf(ErrDeviceUnavailable, "no input device named %q", s.Name)
	}
	log.Println("Opened input device", s.dev)
	dev := s.dev
	s.reader = startEventReader(dev.ReadOne, dev.File.Close)
	return nil
}

func (s *EvdevSource) Next(ctx context.Context) (AxisEvent, error) {
	if s.reader == nil {
		return AxisEvent{}, errors.Wrap(ErrDeviceUnavailable, "evdev source not connected")
	}
	for {
		ev, err := s.reader.next(ctx)
		if err != nil {
			return AxisEvent{}, err
		}
		if ev.Type != evdev.EV_ABS {
			continue
		}
		switch int(ev.Code) {
		case s.XCode:
			return AxisEvent{Axis: AxisX, Value: int(ev.Value)}, nil
		case s.YCode:
			return AxisEvent{Axis: AxisY, Value: int(ev.Value)}, nil
		}
	}
}

func (s *EvdevSource) Close() error {
	var err error
	if s.reader != nil {
		err = s.reader.close()
	}
	s.reader = nil
	s.dev = nil
	return err
}

type readResult struct {
	event *evdev.InputEvent
	err   error
}

// Reads events in a goroutine, so that waiting for them can be cancelled.
// The goroutine ends after the device is closed and the blocking read fails.
type eventReader struct {
	results     chan readResult
	closed      chan struct{}
	closeDevice func() error
}

func startEventReader(read func() (*evdev.InputEvent, error), closeDevice func() error) *eventReader {
	r := &eventReader{
		results:     make(chan readResult),
		closed:      make(chan struct{}),
		closeDevice: closeDevice,
	}
	go r.readEvents(read)
	return r
}

func (r *eventReader) readEvents(read func() (*evdev.InputEvent, error)) {
	for {
		ev, err := read()
		select {
		case r.results <- readResult{ev, err}:
		case <-r.closed:
			return
		}
		if err != nil {
			return
		}
	}
}

func (r *eventReader) next(ctx context.Context) (*evdev.InputEvent, error) {
	select {
	case res := <-r.results:
		if res.err == nil && res.event == nil {
			return nil, errors.New("empty input event")
		}
		return res.event, res.err
	case <-r.closed:
		return nil, errors.New("input device closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *eventReader) close() error {
	close(r.closed)
	return r.closeDevice()
}
