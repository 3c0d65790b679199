package drive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type P struct {
	l, r int
}

func TestJoystickToDiff(t *testing.T) {
	a := assert.New(t)
	test := func(x, y, expectL, expectR int) {
		l, r, err := JoystickToDiff(x, y, -255, 255)
		a.NoError(err)
		a.Equal(P{expectL, expectR}, P{l, r}, "x=%v y=%v", x, y)
	}

	// Dead stick
	test(0, 0, 0, 0)

	// Straight forward/backward
	test(0, 100, 255, 255)
	test(0, -100, -255, -255)
	test(0, 1, 2, 2)
	test(0, -1, -3, -3)

	// Spin in place
	test(100, 0, 255, -255)
	test(-100, 0, -255, 255)
	test(1, 0, 2, -3)

	// Diagonals: one wheel full power, the other one stands still
	test(100, 100, 255, 0)
	test(-100, 100, 0, 255)
	test(100, -100, 0, -255)
	test(-100, -100, -255, 0)

	// Slight turn right / left
	test(50, 100, 255, 52)
	test(100, 50, 255, -53)
	test(-50, 100, 52, 255)
	test(30, 40, 102, 4)
	test(-30, 40, 4, 102)
	test(10, 20, 51, 10)

	// Backwards
	test(50, -100, -53, -255)
	test(30, -40, -5, -102)
}

func TestJoystickToDiffPercentRange(t *testing.T) {
	a := assert.New(t)
	test := func(x, y, expectL, expectR int) {
		l, r, err := JoystickToDiff(x, y, -100, 100)
		a.NoError(err)
		a.Equal(P{expectL, expectR}, P{l, r}, "x=%v y=%v", x, y)
	}
	test(0, 0, 0, 0)
	test(100, 0, 100, -100)
	test(0, 100, 100, 100)
	test(50, 100, 100, 20)
	test(100, 50, 100, -21)
	test(30, -40, -2, -40)
}

func TestJoystickToDiffDeadStick(t *testing.T) {
	a := assert.New(t)
	for _, rng := range []P{{-255, 255}, {-100, 100}, {-1, 1}, {-4096, 4096}} {
		l, r, err := JoystickToDiff(0, 0, rng.l, rng.r)
		a.NoError(err)
		a.Equal(P{0, 0}, P{l, r})
	}
}

func TestJoystickToDiffBounds(t *testing.T) {
	a := assert.New(t)
	for _, rng := range []P{{-255, 255}, {-100, 100}, {-1000, 1000}} {
		for x := -100; x <= 100; x++ {
			for y := -100; y <= 100; y++ {
				l, r, err := JoystickToDiff(x, y, rng.l, rng.r)
				if !a.NoError(err) {
					return
				}
				if !a.True(l >= rng.l && l <= rng.r && r >= rng.l && r <= rng.r,
					"x=%v y=%v range=%v: left %v right %v out of range", x, y, rng, l, r) {
					return
				}
			}
		}
	}
}

func TestJoystickToDiffReverseSymmetry(t *testing.T) {
	// Flipping y reverses both wheels and swaps their roles. Floor division
	// makes the results differ by at most one.
	a := assert.New(t)
	abs := func(v int) int {
		if v < 0 {
			return -v
		}
		return v
	}
	for x := -100; x <= 100; x += 5 {
		for y := 0; y <= 100; y += 5 {
			l1, r1, err1 := JoystickToDiff(x, y, -255, 255)
			l2, r2, err2 := JoystickToDiff(x, -y, -255, 255)
			a.NoError(err1)
			a.NoError(err2)
			a.True(abs(l1+r2) <= 1, "x=%v y=%v: %v vs %v", x, y, P{l1, r1}, P{l2, r2})
			a.True(abs(r1+l2) <= 1, "x=%v y=%v: %v vs %v", x, y, P{l1, r1}, P{l2, r2})
		}
	}
}

func TestJoystickToDiffQuadrants(t *testing.T) {
	a := assert.New(t)
	l1, r1, _ := JoystickToDiff(100, 0, -255, 255)
	l2, r2, _ := JoystickToDiff(0, 100, -255, 255)
	a.NotEqual(P{l1, r1}, P{l2, r2})

	// Pushing right makes the left wheel lead, pushing left the right wheel
	l, r, _ := JoystickToDiff(60, 100, -255, 255)
	a.True(l > r, "right turn: left %v right %v", l, r)
	l, r, _ = JoystickToDiff(-60, 100, -255, 255)
	a.True(r > l, "left turn: left %v right %v", l, r)
}

func TestJoystickToDiffOutOfRange(t *testing.T) {
	a := assert.New(t)
	test := func(x, y int) {
		_, _, err := JoystickToDiff(x, y, -255, 255)
		a.Error(err)
		a.True(errors.Is(err, ErrOutOfRange), "unexpected error %v", err)
	}
	test(101, 0)
	test(-101, 0)
	test(0, 101)
	test(0, -101)
	test(200, -200)
}
