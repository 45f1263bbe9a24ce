package cmd

import (
	"fmt"

	"github.com/bnema/waycomp/internal/config"
	"github.com/bnema/waycomp/internal/logger"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	socketPath string

	rootCmd = &cobra.Command{
		Use:   "waycomp",
		Short: "waycomp - a headless Wayland compositor core",
		Long: `waycomp runs the core of a Wayland compositor without a display:
evdev input, spring driven view animations, zoom, the window overview,
the input method bridge and wcap screen recording. A control socket and
an optional SSH console expose it while it runs.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

// Execute runs the root command
func Execute() error {
	rootCmd.Version = Version
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $XDG_CONFIG_HOME/waycomp/waycomp.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "Control socket path")
}

// setup loads the configuration and applies the logging settings before
// any command runs.
func setup(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		config.SetConfigPath(configPath)
	}
	if err := config.Init(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg := config.Get()
	level := cfg.Logging.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.FileLogging {
		path, err := logger.EnableFileLogging()
		if err != nil {
			logger.Warnf("File logging disabled: %v", err)
		} else {
			logger.Debugf("Logging to %s", path)
		}
	}
	return nil
}

// controlSocket is the socket the control commands talk to: the flag, then
// the config file, then the runtime directory default.
func controlSocket() string {
	if socketPath != "" {
		return socketPath
	}
	return config.Get().IPC.Socket
}
