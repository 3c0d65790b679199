package drive

import (
	"math"

	"github.com/pkg/errors"
)

const (
	// Joystick positions are percentages of the stick deflection
	JoystickMin = -100
	JoystickMax = 100
)

// ErrOutOfRange is returned (wrapped) when a caller passes a value outside of its documented range.
// Nothing is clamped silently.
var ErrOutOfRange = errors.New("value out of range")

// CheckRange returns a wrapped ErrOutOfRange if val is not within [min, max].
func CheckRange(name string, val, min, max int) error {
	if val < min || val > max {
		return errors.Wrapf(ErrOutOfRange, "%v must be within %v..%v, got %v", name, min, max, val)
	}
	return nil
}

// JoystickToDiff converts a joystick position into speeds for the left and right wheel
// of a differential drive.
//
// x and y must be within -100..100: -100 means stick fully left (or back), 0 means
// center, 100 means stick fully right (or forward). The result is scaled onto
// minSpeed..maxSpeed. Pushing the stick to the right makes the left wheel lead,
// so the robot turns right.
func JoystickToDiff(x, y, minSpeed, maxSpeed int) (left, right int, err error) {
	if err = CheckRange("joystick x", x, JoystickMin, JoystickMax); err != nil {
		return
	}
	if err = CheckRange("joystick y", y, JoystickMin, JoystickMax); err != nil {
		return
	}
	if x == 0 && y == 0 {
		return 0, 0, nil
	}
	rawLeft, rawRight := joystickToRawDiff(float64(x), float64(y))
	left = int(MapBetweenRangesFloat(rawLeft, JoystickMin, JoystickMax, float64(minSpeed), float64(maxSpeed)))
	right = int(MapBetweenRangesFloat(rawRight, JoystickMin, JoystickMax, float64(minSpeed), float64(maxSpeed)))
	return
}

// Returns both wheel speeds in -100..100. Must not be called with x == y == 0.
func joystickToRawDiff(x, y float64) (rawLeft, rawRight float64) {
	// The angle between the stick vector and the x axis indicates how sharp the turn is:
	// 0 deg -> coefficient -1 (spin), 45 deg -> 0, 90 deg -> 1 (straight)
	z := math.Sqrt(x*x + y*y)
	angle := math.Acos(math.Abs(x)/z) * 180 / math.Pi
	tcoeff := -1 + (angle/90)*2
	turn := tcoeff * math.Abs(math.Abs(y)-math.Abs(x))
	turn = math.Round(turn*100) / 100

	// The dominant axis gives the movement of the leading wheel
	mov := math.Max(math.Abs(x), math.Abs(y))

	if (x >= 0 && y >= 0) || (x < 0 && y < 0) {
		rawLeft, rawRight = mov, turn
	} else {
		rawLeft, rawRight = turn, mov
	}

	// Stick pulled back: reverse polarity
	if y < 0 {
		rawLeft, rawRight = -rawLeft, -rawRight
	}
	return
}
