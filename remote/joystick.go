package remote

import (
	"context"
	"fmt"

	"github.com/antongulenko/rovertracks/drive"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/splace/joysticks"
)

// JoystickSource reads one stick of a device of the Linux joystick API (/dev/input/js*).
// The opened device is kept across Connect calls until it is unplugged, because the
// joystick API offers no way to close it.
type JoystickSource struct {
	Index int
	Hat   uint8

	// joysticks.Connect by default
	Open func(index int) *joysticks.HID

	js        *joysticks.HID
	moved     chan joysticks.Event
	done      chan struct{} // Closed when the device stops delivering events
	connected bool
	pending   []AxisEvent
}

func NewJoystickSource(index int, hat uint8) *JoystickSource {
	return &JoystickSource{Index: index, Hat: hat}
}

func (s *JoystickSource) String() string {
	return fmt.Sprintf("joystick %v (stick %v)", s.Index, s.Hat)
}

func (s *JoystickSource) Connect() error {
	if s.connected {
		return errors.New("joystick source already connected")
	}
	if s.js == nil {
		open := s.Open
		if open == nil {
			open = joysticks.Connect
		}
		js := open(s.Index)
		if js == nil {
			return errors.Wrapf(ErrDeviceUnavailable, "failed to open joystick with index %v", s.Index)
		}
		log.Printf("Opened joystick index %v (%v buttons, %v axes)", s.Index, len(js.Buttons), len(js.HatAxes))
		s.js = js
	}
	if !s.js.HatExists(s.Hat) {
		return errors.Wrapf(ErrDeviceUnavailable, "stick %v does not exist on joystick %v", s.Hat, s.Index)
	}
	if s.done == nil {
		// OnMove must be registered before the events are distributed
		s.moved = s.js.OnMove(s.Hat)
		done := make(chan struct{})
		s.done = done
		go func(js *joysticks.HID) {
			defer close(done)
			js.ParcelOutEvents()
		}(s.js)
	}
	s.connected = true
	s.pending = nil
	return nil
}

// Next splits every stick movement into an X and a Y event
func (s *JoystickSource) Next(ctx context.Context) (AxisEvent, error) {
	if !s.connected {
		return AxisEvent{}, errors.Wrap(ErrDeviceUnavailable, "joystick not connected")
	}
	if len(s.pending) == 0 {
		select {
		case event := <-s.moved:
			coords, ok := event.(joysticks.CoordsEvent)
			if !ok {
				return AxisEvent{}, fmt.Errorf("Unexpected joystick event %T", event)
			}
			s.pending = coordsToAxisEvents(coords.X, coords.Y)
		case <-s.done:
			return AxisEvent{}, errors.Wrapf(ErrDeviceUnavailable, "joystick %v disconnected", s.Index)
		case <-ctx.Done():
			return AxisEvent{}, ctx.Err()
		}
	}
	event := s.pending[0]
	s.pending = s.pending[1:]
	return event, nil
}

// Close keeps the device open, unless it was unplugged. The next Connect then opens it again.
func (s *JoystickSource) Close() error {
	s.connected = false
	s.pending = nil
	if s.done != nil {
		select {
		case <-s.done:
			s.js, s.moved, s.done = nil, nil, nil
		default:
		}
	}
	return nil
}

func coordsToAxisEvents(x, y float32) []AxisEvent {
	return []AxisEvent{
		{Axis: AxisX, Value: coordToRaw(x)},
		{Axis: AxisY, Value: coordToRaw(y)},
	}
}

// Stick coordinates in -1..1 are converted to RawMin..RawMax
func coordToRaw(v float32) int {
	raw := drive.MapBetweenRangesFloat(float64(v), -1, 1, RawMin, RawMax+1)
	return drive.Clamp(int(raw), RawMin, RawMax)
}
