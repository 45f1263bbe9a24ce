package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/bnema/waycomp/internal/compositor"
	"github.com/bnema/waycomp/internal/config"
	"github.com/bnema/waycomp/internal/evdev"
	"github.com/bnema/waycomp/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var watchLines int

var watchCmd = &cobra.Command{
	Use:   "watch [device]",
	Short: "Show the notifications one input device produces",
	Long: `Open one input device and show the seat notifications it produces after
normalization: coalesced motion, buttons, keys, axes and touch points.
Without an argument the device is picked from a list.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVarP(&watchLines, "lines", "n", ui.DefaultWatchLines, "Notifications kept on screen")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	var path string
	if len(args) == 1 {
		path = args[0]
	} else {
		rows, err := ui.ProbeDevices(cfg.Evdev.Devices)
		if err != nil {
			return err
		}
		if path, err = ui.SelectDevice(rows); err != nil {
			return err
		}
	}

	transform, err := compositor.ParseTransform(cfg.Output.Transform)
	if err != nil {
		return err
	}
	// Absolute devices map onto an output the size of the configured one.
	output := compositor.NewOutput(cfg.Output.Name, compositor.Mode{
		Width:  cfg.Output.Width,
		Height: cfg.Output.Height,
	}, cfg.Output.Scale, transform)

	events := make(chan tea.Msg, 256)
	seat := ui.NewEventLog(func(msg tea.Msg) {
		select {
		case events <- msg:
		default:
		}
	})

	dev, err := evdev.Open(seat, output, path)
	if err != nil {
		return err
	}
	if m, ok := cfg.Evdev.CalibrationMatrices()[dev.Name]; ok {
		dev.SetCalibration(m)
	}

	program := tea.NewProgram(ui.NewWatchModel(fmt.Sprintf("%s (%s) [%s]", dev.Name, path, dev.Caps), watchLines))

	// Events are processed on the reader goroutine; the seat only queues
	// messages, which the forwarder hands to the program.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			batch, err := dev.Read()
			if err != nil {
				if !errors.Is(err, os.ErrClosed) {
					program.Send(ui.DeviceGoneMsg{Err: err})
				}
				return
			}
			dev.ProcessEvents(batch)
		}
	}()
	go func() {
		for msg := range events {
			program.Send(msg)
		}
	}()

	final, err := program.Run()

	if f := dev.File(); f != nil {
		f.Close()
	}
	<-readerDone
	dev.Destroy()
	close(events)

	if err != nil {
		return err
	}
	if m, ok := final.(ui.WatchModel); ok && m.Err() != nil {
		return fmt.Errorf("device %s stopped: %w", path, m.Err())
	}
	return nil
}
