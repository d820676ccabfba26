package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gwillem/armlink/pkg/controller"
)

type ServeCommand struct {
	Sim    bool   `long:"sim" description:"Simulate the arm instead of driving servos"`
	Port   string `short:"p" long:"port" description:"Serial port (overrides the config)"`
	Listen string `short:"l" long:"listen" description:"Listen address (overrides the config)"`
}

func (c *ServeCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var act controller.Actuator
	if c.Sim {
		act = controller.NewSimArm(nil)
		logger.Info("simulated arm")
	} else {
		if !cfg.Controller.IsCalibrated() {
			return fmt.Errorf("arm not calibrated, run 'armlink calibrate' first")
		}
		port := c.Port
		if port == "" {
			port = cfg.Controller.SerialPort
		}
		if port, err = choosePort(port); err != nil {
			return err
		}
		servo, err := controller.NewServoArm(ctx, port, cfg.Controller.Calibration)
		if err != nil {
			return fmt.Errorf("open arm on %s: %w", port, err)
		}
		defer func() {
			// zeroing and inversion from the console survive restarts
			cfg.Controller.SerialPort = port
			cfg.Controller.Calibration = servo.Calibration()
			if err := cfg.SaveTo(opts.Config); err != nil {
				logger.Error("save calibration", "err", err)
			}
		}()
		act = servo
		logger.Info("servo arm", "port", port)
	}
	defer act.Close()

	listen := c.Listen
	if listen == "" {
		listen = cfg.Controller.Listen
	}
	srv := controller.NewServer(act,
		controller.WithStatusInterval(cfg.Controller.StatusInterval()),
		controller.WithLogger(logger),
	)
	return srv.ListenAndServe(ctx, listen)
}
