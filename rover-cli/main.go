package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/antongulenko/golib"
	"github.com/antongulenko/rovertracks/bus"
	"github.com/antongulenko/rovertracks/robot"
	"github.com/antongulenko/rovertracks/rovertracks"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

type commandFunc func(ctx context.Context, r *robot.Robot) error

var (
	rover    = rovertracks.DefaultRover
	command  = "scan"
	speed    = 150
	duration = time.Second
	posX     = 0
	posY     = 0
	commands = map[string]commandFunc{
		"none":     func(context.Context, *robot.Robot) error { return nil },
		"scan":     scan,
		"battery":  readBattery,
		"forward":  maneuver((*robot.Robot).Forward),
		"backward": maneuver((*robot.Robot).Backward),
		"left":     maneuver((*robot.Robot).Left),
		"right":    maneuver((*robot.Robot).Right),
		"move":     move,
		"stop":     stop,
	}
)

func main() {
	rover.RegisterFlags()
	flag.StringVar(&command, "c", command, fmt.Sprintf("Command to execute, one of: %v", commandNames()))
	flag.IntVar(&speed, "speed", speed, "Motor speed (0..255) for forward, backward, left and right")
	flag.DurationVar(&duration, "duration", duration, "Duration of forward, backward, left and right. 0 keeps the motors running (see -stopAtExit)")
	flag.IntVar(&posX, "x", posX, "Joystick X position (-100..100) for move")
	flag.IntVar(&posY, "y", posY, "Joystick Y position (-100..100) for move")
	golib.RegisterLogFlags()
	flag.Parse()
	golib.ConfigureLogging()
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}
	golib.Checkerr(doMain())
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func doMain() error {
	commandFunc, ok := commands[command]
	if !ok {
		return fmt.Errorf("Unknown command %v, available commands: %v", command, commandNames())
	}

	// A signal cancels a running maneuver, which then stops the motors
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		fmt.Println("Received signal", <-c)
		cancel()
	}()

	err := rover.Setup()
	if err == nil {
		run := func(r *robot.Robot) error {
			return commandFunc(ctx, r)
		}
		if rover.Motors.StopAtExit {
			err = robot.Guard(rover.Robot(), run)
		} else {
			err = run(rover.Robot())
		}
	}
	return multierr.Append(err, rover.Cleanup())
}

func scan(context.Context, *robot.Robot) error {
	slaves, err := bus.I2cScan(rover.Bus())
	if err != nil {
		return err
	}
	log.Printf("Scanned slaves: %#02v", slaves)
	return nil
}

func readBattery(context.Context, *robot.Robot) error {
	volt, charge, err := rover.ReadBattery()
	if err != nil {
		return err
	}
	log.Printf("Battery percentage: %.2f%% (%.2fV)", charge*100, volt)
	return nil
}

func maneuver(f func(*robot.Robot, context.Context, int, time.Duration) error) commandFunc {
	return func(ctx context.Context, r *robot.Robot) error {
		log.Printf("Running motors with speed %v for %v", speed, duration)
		err := f(r, ctx, speed, duration)
		if err == nil && duration <= 0 && !rover.Motors.StopAtExit {
			left, right := r.State()
			log.Printf("Motors keep running: left %v, right %v", left, right)
		}
		return err
	}
}

func move(ctx context.Context, r *robot.Robot) error {
	if err := r.Move(posX, posY); err != nil {
		return err
	}
	left, right := r.State()
	log.Printf("Moved to (%v, %v): left %v, right %v", posX, posY, left, right)
	if duration > 0 {
		select {
		case <-time.After(duration):
		case <-ctx.Done():
		}
	}
	return nil
}

func stop(_ context.Context, r *robot.Robot) error {
	return r.Stop()
}
