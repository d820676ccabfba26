package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type PortsCommand struct {
	Save bool `long:"save" description:"Identify an arm and store its port in the config"`
}

func (c *PortsCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("armlink port scan"))
	fmt.Println(dimStyle.Render(fmt.Sprintf("STS bus at %s baud", humanize.Comma(busBaudRate))))
	fmt.Println()

	ports, err := candidatePorts()
	if err != nil {
		return err
	}

	var arms []armInfo
	rows := make([][]string, 0, len(ports))
	for _, port := range ports {
		info, err := scanPort(port)
		if err != nil {
			rows = append(rows, []string{port, "-", err.Error()})
			continue
		}
		verdict := "not an arm"
		if isArm(info.servos) {
			verdict = "arm"
			arms = append(arms, info)
		} else {
			info.bus.Close()
		}
		rows = append(rows, []string{port, humanize.Comma(int64(len(info.servos))), verdict})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Port", "Servos", "").
		Rows(rows...)
	fmt.Println(t.Render())
	fmt.Println()

	if len(arms) == 0 {
		fmt.Println("No arms found. Make sure the arm is connected and powered on.")
		return nil
	}
	if !c.Save {
		for _, a := range arms {
			a.bus.Close()
		}
		fmt.Println("Run " + headerStyle.Render("armlink ports --save") + " to store the port.")
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	chosen := ""
	for _, arm := range arms {
		if chosen != "" {
			arm.bus.Close()
			continue
		}
		fmt.Printf("  Wiggling arm on %s...\n", arm.port)
		if err := wiggle(arm); err != nil {
			fmt.Fprintf(os.Stderr, "  %v\n", err)
		}
		arm.bus.Close()

		use := false
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Use the arm on %s?", arm.port)).
					Description("The arm that just wiggled").
					Value(&use),
			),
		)
		if err := form.Run(); err != nil {
			return err
		}
		if use {
			chosen = arm.port
		}
	}
	if chosen == "" {
		fmt.Println("No arm selected.")
		return nil
	}

	cfg.Controller.SerialPort = chosen
	if err := cfg.SaveTo(opts.Config); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Controller port %s saved to %s", chosen, opts.Config)))
	if !cfg.Controller.IsCalibrated() {
		fmt.Println("Next: " + subHeaderStyle.Render("armlink calibrate"))
	}
	return nil
}
