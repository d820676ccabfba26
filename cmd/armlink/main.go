package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Config string `short:"c" long:"config" description:"Configuration file, .json or .yaml (default: armlink.json)"`

	Dashboard DashboardCommand `command:"dashboard" alias:"ui" description:"Connect to the arm controller and drive it from the terminal"`
	Serve     ServeCommand     `command:"serve" description:"Run the arm controller (simulated or on a Feetech bus)"`
	Ports     PortsCommand     `command:"ports" description:"Scan serial ports for arms and pick the controller port"`
	Calibrate CalibrateCommand `command:"calibrate" description:"Record the range of motion of each joint"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "armlink - console and reference controller for a 4-DOF robot arm"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
