package cmd

import (
	"fmt"

	"github.com/bnema/waycomp/internal/config"
	"github.com/bnema/waycomp/internal/evdev"
	"github.com/bnema/waycomp/internal/ui"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List input devices and how they would be handled",
	RunE: func(cmd *cobra.Command, args []string) error {
		glob := config.Get().Evdev.Devices
		rows, err := ui.ProbeDevices(glob)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.FormatAppHeader("INPUT DEVICES", glob))
		fmt.Fprintln(out)
		if len(rows) == 0 {
			fmt.Fprintln(out, ui.SubtleStyle.Render("No devices match "+glob))
			return nil
		}
		fmt.Fprintln(out, ui.DeviceTable(rows))

		usable := 0
		for _, r := range rows {
			if r.Usable() {
				usable++
			}
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, ui.SubtleStyle.Render(fmt.Sprintf("%d of %d would attach to a seat", usable, len(rows))))
		if !evdev.HasDACOverride() && usable < len(rows) {
			fmt.Fprintln(out, ui.WarningStyle.Render("Some devices may be hidden by permissions; run as root or join the input group"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
