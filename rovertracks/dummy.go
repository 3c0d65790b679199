package rovertracks

import (
	"github.com/antongulenko/rovertracks/robot"
	log "github.com/sirupsen/logrus"
)

// DummyDriver accepts every motor ID and only logs the motor commands
type DummyDriver struct{}

func (DummyDriver) Motor(id int) (robot.Motor, error) {
	return dummyMotor(id), nil
}

type dummyMotor int

func (m dummyMotor) SetSpeed(speed uint8) error {
	log.Printf("Motor %v: speed %v", int(m), speed)
	return nil
}

func (m dummyMotor) Run(dir robot.Direction) error {
	log.Printf("Motor %v: %v", int(m), dir)
	return nil
}
