package ui

import (
	"fmt"
	"path/filepath"

	"github.com/bnema/waycomp/internal/evdev"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// DeviceRow is one probed input device.
type DeviceRow struct {
	Path     string
	Name     string
	Caps     evdev.Capability
	Touchpad bool
	Err      error
}

// Usable reports whether the device would be attached to a seat.
func (r DeviceRow) Usable() bool {
	return r.Err == nil && r.Caps != 0
}

// Label is the text shown for the device in selection lists.
func (r DeviceRow) Label() string {
	return fmt.Sprintf("%s (%s) [%s]", r.Name, filepath.Base(r.Path), r.Caps)
}

func (r DeviceRow) kind() string {
	switch {
	case r.Err != nil:
		return ""
	case r.Touchpad:
		return "touchpad"
	default:
		return "fallback"
	}
}

// ProbeDevices describes every device matching glob. Devices that cannot be
// opened or are not handled still get a row carrying the error.
func ProbeDevices(glob string) ([]DeviceRow, error) {
	paths, err := filepath.Glob(glob)
	if err != nil {
		return nil, fmt.Errorf("bad device glob %q: %w", glob, err)
	}

	rows := make([]DeviceRow, 0, len(paths))
	for _, p := range paths {
		row := DeviceRow{Path: p}
		info, err := evdev.Probe(p)
		if err != nil {
			row.Err = err
			rows = append(rows, row)
			continue
		}
		row.Name = info.Name
		row.Touchpad = evdev.IsTouchpad(info)
		row.Caps, row.Err = evdev.Classify(info)
		rows = append(rows, row)
	}
	return rows, nil
}

// DeviceTable renders rows as a bordered table.
func DeviceTable(rows []DeviceRow) string {
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		cells = append(cells, []string{filepath.Base(r.Path), r.Name, r.Caps.String(), r.kind(), status})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorSubtle)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true).Padding(0, 1)
			case col == 0:
				return lipgloss.NewStyle().Foreground(ColorInfo).Bold(true).Padding(0, 1)
			case col == 4 && rows[row].Err != nil:
				return lipgloss.NewStyle().Foreground(ColorWarning).Padding(0, 1)
			default:
				return lipgloss.NewStyle().Foreground(ColorText).Padding(0, 1)
			}
		}).
		Headers("NODE", "NAME", "CAPABILITIES", "DISPATCH", "STATUS").
		Rows(cells...)
	return t.String()
}

// SelectDevice asks the user to pick one of the usable rows. A single
// candidate is returned without asking.
func SelectDevice(rows []DeviceRow) (string, error) {
	var options []huh.Option[string]
	for _, r := range rows {
		if r.Usable() {
			options = append(options, huh.NewOption(r.Label(), r.Path))
		}
	}
	switch len(options) {
	case 0:
		return "", fmt.Errorf("no usable input devices found")
	case 1:
		return options[0].Value, nil
	}

	var selected string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Input Device").
				Description("Notifications from this device are shown as they arrive").
				Options(options...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("device selection cancelled: %w", err)
	}
	return selected, nil
}
