package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/bnema/waycomp/internal/inject"
	"github.com/spf13/cobra"
)

var (
	injectPath   string
	injectDelay  time.Duration
	injectSettle time.Duration
)

var injectCmd = &cobra.Command{
	Use:   "inject",
	Short: "Send input through virtual uinput devices",
	Long: `Create a virtual pointer or keyboard with uinput and play a short script
on it. A running compositor picks the device up like any other evdev node.`,
}

var injectMouseCmd = &cobra.Command{
	Use:   "mouse <action>...",
	Short: "Play pointer actions",
	Long: `Play pointer actions on a virtual mouse.

Actions:
  move:DX,DY      relative motion
  click:BUTTON    press and release left, right or middle
  press:BUTTON    press only
  release:BUTTON  release only
  wheel:N         vertical wheel steps
  hwheel:N        horizontal wheel steps
  sleep:DURATION  pause, e.g. sleep:200ms`,
	Example: `  waycomp inject mouse move:100,0 click:left wheel:-3`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInject(cmd, args, false)
	},
}

var injectKeyCmd = &cobra.Command{
	Use:   "key <key>...",
	Short: "Tap keys on a virtual keyboard",
	Long: `Tap keys on a virtual keyboard. Keys are evdev names (KEY_A or a) or
numeric codes. keydown:KEY and keyup:KEY hold and release, and sleep:DURATION
pauses.`,
	Example: `  waycomp inject key keydown:leftshift h keyup:leftshift i`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInject(cmd, args, true)
	},
}

func init() {
	injectCmd.PersistentFlags().StringVar(&injectPath, "uinput", inject.DefaultPath, "uinput node")
	injectCmd.PersistentFlags().DurationVar(&injectDelay, "delay", 20*time.Millisecond, "Pause between actions")
	injectCmd.PersistentFlags().DurationVar(&injectSettle, "settle", 500*time.Millisecond, "Wait for the compositor to attach the new device")

	injectCmd.AddCommand(injectMouseCmd, injectKeyCmd)
	rootCmd.AddCommand(injectCmd)
}

func runInject(cmd *cobra.Command, args []string, keys bool) error {
	actions, err := inject.ParseActions(args, keys)
	if err != nil {
		return err
	}
	pointer, keyboard := inject.Needs(actions)
	if !keys && keyboard {
		return fmt.Errorf("%w: key actions belong to inject key", inject.ErrInvalidAction)
	}
	if keys && pointer {
		return fmt.Errorf("%w: pointer actions belong to inject mouse", inject.ErrInvalidAction)
	}

	inj, err := inject.Open(injectPath, pointer, keyboard)
	if err != nil {
		return err
	}
	defer inj.Close()
	inj.SetDelay(injectDelay)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if injectSettle > 0 {
		actions = append([]inject.Action{{Kind: inject.ActionSleep, Duration: injectSettle}}, actions...)
	}
	if err := inj.Run(ctx, actions); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Injected %d action(s)\n", len(args))
	return nil
}
