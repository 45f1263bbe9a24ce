package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/waycomp/internal/config"
	"github.com/bnema/waycomp/internal/evdev"
	"github.com/bnema/waycomp/internal/logger"
	"github.com/bnema/waycomp/internal/notify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	runNoInput bool
	runConsole bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the compositor core",
	Long: `Run the compositor core on a headless output. Input comes from the evdev
devices matching evdev.devices; use --no-input to run without them. The
control socket accepts the ctl commands while it runs.`,
	RunE: runCompositor,
}

func init() {
	runCmd.Flags().BoolVar(&runNoInput, "no-input", false, "Do not open input devices")
	runCmd.Flags().BoolVar(&runConsole, "console", false, "Start the SSH status console")
	runCmd.Flags().String("devices", "", "Glob of input device nodes")
	runCmd.Flags().Bool("grab", false, "Grab input devices exclusively")

	viper.BindPFlag("evdev.devices", runCmd.Flags().Lookup("devices"))
	viper.BindPFlag("evdev.grab", runCmd.Flags().Lookup("grab"))

	rootCmd.AddCommand(runCmd)
}

func runCompositor(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	if !runNoInput {
		if err := evdev.CheckAccess(cfg.Evdev.Devices); err != nil {
			return fmt.Errorf("input preflight failed: %w\nUse --no-input to run without devices", err)
		}
		if !evdev.HasDACOverride() {
			logger.Debug("Running without CAP_DAC_OVERRIDE; only readable devices are opened")
		}
	}

	rt, err := newRuntime(cfg, runtimeOptions{
		Socket:   controlSocket(),
		NoInput:  runNoInput,
		Console:  runConsole,
		Notifier: notify.Default("waycomp"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.OnChange(rt.reload)
	config.WatchConfig(func(err error) {
		logger.Warnf("Config change ignored: %v", err)
	})

	return rt.serve(ctx, nil)
}
