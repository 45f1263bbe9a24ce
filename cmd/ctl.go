package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/bnema/waycomp/internal/ipc"
	"github.com/bnema/waycomp/internal/ui"
	"github.com/spf13/cobra"
)

var (
	ctlOutput  string
	ctlTimeout time.Duration
)

var ctlCmd = &cobra.Command{
	Use:   "ctl",
	Short: "Control a running compositor",
	Long:  `Send a command to a running compositor over its control socket.`,
}

func ctlCommand(use, short, command string, args cobra.PositionalArgs, build func([]string) (map[string]interface{}, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			var params map[string]interface{}
			if build != nil {
				var err error
				if params, err = build(argv); err != nil {
					return err
				}
			}
			return sendControl(cmd, command, params)
		},
	}
}

func outputArgs([]string) (map[string]interface{}, error) {
	if ctlOutput == "" {
		return nil, nil
	}
	return map[string]interface{}{"output": ctlOutput}, nil
}

func screenshotArgs(argv []string) (map[string]interface{}, error) {
	// The compositor writes the file, so relative paths are resolved here.
	path, err := filepath.Abs(argv[0])
	if err != nil {
		return nil, err
	}
	params := map[string]interface{}{"path": path}
	if ctlOutput != "" {
		params["output"] = ctlOutput
	}
	return params, nil
}

func sendControl(cmd *cobra.Command, command string, params map[string]interface{}) error {
	client, err := ipc.NewClient(controlSocket())
	if err != nil {
		return err
	}
	client.SetTimeout(ctlTimeout)

	reply, err := client.Send(command, params)
	if err != nil {
		return err
	}
	if command == ipc.CommandStatus {
		fmt.Fprintln(cmd.OutOrStdout(), ui.StatusView(reply))
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), ui.ReplyView(command, reply))
	}
	return nil
}

func init() {
	ctlCmd.PersistentFlags().StringVarP(&ctlOutput, "output", "o", "", "Output name (default: the first output)")
	ctlCmd.PersistentFlags().DurationVar(&ctlTimeout, "timeout", 5*time.Second, "Request timeout")

	ctlCmd.AddCommand(
		ctlCommand("status", "Show outputs, seats and views", ipc.CommandStatus, cobra.NoArgs, nil),
		ctlCommand("overview", "Toggle the window overview", ipc.CommandOverview, cobra.NoArgs, nil),
		ctlCommand("zoom-in", "Zoom in on the output under the pointer", ipc.CommandZoomIn, cobra.NoArgs, nil),
		ctlCommand("zoom-out", "Zoom out on the output under the pointer", ipc.CommandZoomOut, cobra.NoArgs, nil),
		ctlCommand("record", "Start or stop recording an output to a wcap file", ipc.CommandRecord, cobra.NoArgs, outputArgs),
		ctlCommand("screenshot <file.png>", "Save the next frame of an output as PNG", ipc.CommandScreenshot, cobra.ExactArgs(1), screenshotArgs),
	)
	rootCmd.AddCommand(ctlCmd)
}
