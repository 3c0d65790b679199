package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/antongulenko/golib"
	"github.com/antongulenko/rovertracks/remote"
	"github.com/antongulenko/rovertracks/rovertracks"
	log "github.com/sirupsen/logrus"
)

const (
	sourceEvdev    = "evdev"
	sourceJoystick = "joystick"
)

type daemon struct {
	rover   rovertracks.Rover
	control remote.Control

	source        string
	gamepadName   string
	joystickIndex int
	joystickStick int

	batteryInterval time.Duration
	batteryWarning  float64
}

func main() {
	d := daemon{
		rover:           rovertracks.DefaultRover,
		control:         remote.DefaultControl,
		source:          sourceEvdev,
		gamepadName:     remote.DefaultGamepadName,
		joystickIndex:   1,
		joystickStick:   1,
		batteryInterval: 30 * time.Second,
		batteryWarning:  0.2,
	}
	d.registerFlags()
	golib.RegisterFlags(golib.FlagsAll)
	flag.Parse()
	golib.ConfigureLogging()
	golib.Checkerr(d.run())
}

func (d *daemon) registerFlags() {
	d.rover.RegisterFlags()
	d.control.RegisterFlags()
	flag.StringVar(&d.source, "source", d.source, fmt.Sprintf("Input device type, one of: %v, %v", sourceEvdev, sourceJoystick))
	flag.StringVar(&d.gamepadName, "gamepad", d.gamepadName, "Name of the evdev input device")
	flag.IntVar(&d.joystickIndex, "js", d.joystickIndex, "Joystick device index")
	flag.IntVar(&d.joystickStick, "stick", d.joystickStick, "Index of the joystick stick used for driving")
	flag.DurationVar(&d.batteryInterval, "batteryInterval", d.batteryInterval, "Time between battery measurements (with -battery)")
	flag.Float64Var(&d.batteryWarning, "batteryWarning", d.batteryWarning, "Battery charge (0..1) below which warnings are logged")
}

func (d *daemon) eventSource() (remote.EventSource, error) {
	switch d.source {
	case sourceEvdev:
		return remote.NewEvdevSource(d.gamepadName, d.control.X, d.control.Y), nil
	case sourceJoystick:
		return remote.NewJoystickSource(d.joystickIndex, uint8(d.joystickStick)), nil
	default:
		return nil, fmt.Errorf("Unknown input device type %q", d.source)
	}
}

func (d *daemon) run() error {
	ctx, cancel := context.WithCancel(context.Background())

	// "Clean" shutdown with Ctrl-C signal: stop the control loop, then the motors
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	var cleanupOnce sync.Once
	cleanup := func() {
		cleanupOnce.Do(func() {
			cancel()
			golib.Printerr(d.rover.Cleanup())
		})
	}
	defer cleanup()
	go func() {
		fmt.Println("Received signal", <-c)
		cancel()
		fmt.Println("Received second signal", <-c)
		cleanup()
		os.Exit(1)
	}()

	source, err := d.eventSource()
	if err != nil {
		return err
	}
	if err := d.rover.Setup(); err != nil {
		return err
	}
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()
	if d.rover.Battery.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.batteryLoop(ctx)
		}()
	}
	d.control.Robot = d.rover.Robot()
	d.control.Source = source
	return d.control.Run(ctx)
}

func (d *daemon) batteryLoop(ctx context.Context) {
	ticker := time.NewTicker(d.batteryInterval)
	defer ticker.Stop()
	for {
		volt, charge, err := d.rover.ReadBattery()
		if err != nil {
			log.Errorln("Error querying battery voltage:", err)
		} else if charge < d.batteryWarning {
			log.Warnf("Battery low: %.2f%% (%.2fV)", charge*100, volt)
		} else {
			log.Printf("Battery: %.2f%% (%.2fV)", charge*100, volt)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
