package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/bnema/waycomp/internal/config"
	"github.com/bnema/waycomp/internal/ui"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage waycomp configuration",
	Long:  `Manage the waycomp configuration file and the console key whitelist.`,
}

func section(w io.Writer, name string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.HeaderStyle.Render("["+name+"]"))
}

func field(w io.Writer, key string, value interface{}) {
	fmt.Fprintf(w, "  %s %v\n", ui.SubtleStyle.Render(key+":"), value)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		w := cmd.OutOrStdout()

		fmt.Fprintln(w, ui.FormatAppHeader("CONFIGURATION", config.GetConfigPath()))

		section(w, "Output")
		field(w, "Name", cfg.Output.Name)
		field(w, "Mode", fmt.Sprintf("%dx%d@%.3fHz", cfg.Output.Width, cfg.Output.Height, float64(cfg.Output.Refresh)/1000))
		field(w, "Scale", cfg.Output.Scale)
		field(w, "Transform", cfg.Output.Transform)

		section(w, "Evdev")
		field(w, "Devices", cfg.Evdev.Devices)
		field(w, "Grab", cfg.Evdev.Grab)
		field(w, "Ignore", orNone(strings.Join(cfg.Evdev.Ignore, ", ")))
		if len(cfg.Evdev.Calibration) > 0 {
			names := make([]string, 0, len(cfg.Evdev.Calibration))
			for name := range cfg.Evdev.Calibration {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				field(w, "Calibration "+name, cfg.Evdev.Calibration[name])
			}
		}

		section(w, "Shell")
		field(w, "Binding Modifier", cfg.Shell.BindingModifier)
		field(w, "Exposay", cfg.Shell.Exposay)
		field(w, "Input Method", orNone(cfg.InputMethod.Path))

		section(w, "Zoom")
		field(w, "Increment", fmt.Sprintf("%.2f", cfg.Zoom.Increment))
		field(w, "Max Level", fmt.Sprintf("%.2f", cfg.Zoom.MaxLevel))

		section(w, "Capture")
		field(w, "Screenshooter", orNone(cfg.Screenshooter.Path))
		field(w, "Recorder File", cfg.Recorder.Filename)

		section(w, "Control")
		field(w, "Socket", orNone(cfg.IPC.Socket))
		field(w, "Console", cfg.Console.Enabled)
		field(w, "Console Address", cfg.Console.Address)
		field(w, "Console Host Key", orNone(cfg.Console.HostKeyPath))
		field(w, "Whitelist Only", cfg.Console.WhitelistOnly)
		field(w, "Whitelisted Keys", len(cfg.Console.Whitelist))

		section(w, "Logging")
		field(w, "Level", orNone(cfg.Logging.LogLevel))
		field(w, "File Logging", cfg.Logging.FileLogging)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file with defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		configPath := config.GetConfigPath()
		if _, err := os.Stat(configPath); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				fmt.Fprintf(w, "Configuration file already exists at: %s\n", configPath)
				fmt.Fprintln(w, "Use --force to overwrite")
				return nil
			}
		}

		if err := config.Save(); err != nil {
			return err
		}

		fmt.Fprintln(w, ui.SuccessStyle.Render("✓ Configuration initialized at: "+configPath))
		fmt.Fprintln(w, ui.FormatControls(
			[2]string{"waycomp config show", "view current settings"},
			[2]string{"waycomp devices", "check which input devices attach"},
		))
		return nil
	},
}

var configSSHCmd = &cobra.Command{
	Use:   "ssh",
	Short: "Manage the console SSH key whitelist",
}

var configSSHListCmd = &cobra.Command{
	Use:   "list",
	Short: "List whitelisted SSH keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		w := cmd.OutOrStdout()

		if len(cfg.Console.Whitelist) == 0 {
			fmt.Fprintln(w, "No SSH keys in whitelist")
		} else {
			fmt.Fprintln(w, "Whitelisted SSH keys:")
			for i, fp := range cfg.Console.Whitelist {
				fmt.Fprintf(w, "%d. %s\n", i+1, fp)
			}
		}
		fmt.Fprintln(w, ui.FormatFlag(cfg.Console.WhitelistOnly, "Whitelist-only mode"))
		return nil
	},
}

var configSSHRemoveCmd = &cobra.Command{
	Use:   "remove <fingerprint>",
	Short: "Remove SSH key from whitelist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.RemoveSSHKeyFromWhitelist(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed SSH key from whitelist: %s\n", args[0])
		return nil
	},
}

var configSSHClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all SSH keys from whitelist",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := config.ClearSSHWhitelist()
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Whitelist is already empty")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d SSH key(s) from whitelist\n", n)
		return nil
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite existing configuration")

	configSSHCmd.AddCommand(configSSHListCmd, configSSHRemoveCmd, configSSHClearCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd, configSSHCmd)
	rootCmd.AddCommand(configCmd)
}
