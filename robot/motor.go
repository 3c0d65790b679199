package robot

import "fmt"

type Direction int

const (
	Release Direction = iota
	Forward
	Backward
)

func (d Direction) String() string {
	switch d {
	case Release:
		return "release"
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

const (
	MinSpeed = 0
	MaxSpeed = 255
)

// Motor is one DC motor channel of a motor driver board.
// Implementations either succeed or return an error, the Robot does not retry.
type Motor interface {
	SetSpeed(speed uint8) error
	Run(dir Direction) error
}

// MotorDriver gives access to the motors of a driver board by their ID.
type MotorDriver interface {
	Motor(id int) (Motor, error)
}
