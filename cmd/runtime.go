package cmd

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/bnema/waycomp/internal/compositor"
	"github.com/bnema/waycomp/internal/config"
	"github.com/bnema/waycomp/internal/console"
	"github.com/bnema/waycomp/internal/evdev"
	"github.com/bnema/waycomp/internal/ipc"
	"github.com/bnema/waycomp/internal/logger"
	"github.com/bnema/waycomp/internal/notify"
	"github.com/bnema/waycomp/internal/screenshot"
	"github.com/bnema/waycomp/internal/shell"
	"github.com/bnema/waycomp/internal/textinput"
	"github.com/bnema/waycomp/internal/zoom"
)

// runtime is one running compositor with everything attached to it.
type runtime struct {
	compositor *compositor.Compositor
	output     *compositor.Output
	seat       *compositor.Seat

	zoom      *zoom.Controller
	shell     *shell.Shell
	textInput *textinput.Backend
	recorder  *screenshot.Recorder
	shooter   *screenshot.Shooter

	control *ipc.Control
	socket  *ipc.SocketServer
	console *console.Server
	input   *evdev.Backend
}

type runtimeOptions struct {
	Socket   string
	NoInput  bool
	Console  bool
	Notifier notify.Notifier
}

func newRuntime(cfg *config.Config, opts runtimeOptions) (*runtime, error) {
	transform, err := compositor.ParseTransform(cfg.Output.Transform)
	if err != nil {
		return nil, err
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard{}
	}

	c := compositor.New(compositor.NewMemoryRenderer(compositor.FormatXRGB8888))
	o := compositor.NewOutput(cfg.Output.Name, compositor.Mode{
		Width:   cfg.Output.Width,
		Height:  cfg.Output.Height,
		Refresh: cfg.Output.Refresh,
	}, cfg.Output.Scale, transform)
	c.AddOutput(o)
	seat := c.CreateSeat("seat0")

	rt := &runtime{compositor: c, output: o, seat: seat}

	rt.zoom = zoom.NewController(c, zoom.Options{
		Increment: cfg.Zoom.Increment,
		MaxLevel:  cfg.Zoom.MaxLevel,
	})
	rt.shooter = screenshot.NewShooter(c, screenshot.Options{
		HelperPath: cfg.Screenshooter.Path,
		Notifier:   opts.Notifier,
	})
	rt.recorder = screenshot.NewRecorder(c, screenshot.RecorderOptions{
		Filename: cfg.Recorder.Filename,
		Notifier: opts.Notifier,
	})
	rt.shell = shell.New(c, shell.Options{
		BindingModifier: compositor.ParseModifier(cfg.Shell.BindingModifier),
		Exposay:         cfg.Shell.Exposay,
		Zoom:            rt.zoom,
		Screenshooter:   rt.shooter,
		Recorder:        rt.recorder,
	})
	rt.textInput = textinput.NewBackend(c, textinput.Options{
		Path:     cfg.InputMethod.Path,
		Notifier: opts.Notifier,
	})

	rt.control = &ipc.Control{
		Compositor: c,
		Shell:      rt.shell,
		Zoom:       rt.zoom,
		Recorder:   rt.recorder,
		Shooter:    rt.shooter,
	}

	socket := opts.Socket
	if socket == "" {
		socket = cfg.IPC.Socket
	}
	if rt.socket, err = ipc.NewSocketServer(socket, rt.control); err != nil {
		return nil, err
	}

	if opts.Console || cfg.Console.Enabled {
		hostKey := cfg.Console.HostKeyPath
		if hostKey == "" {
			hostKey = filepath.Join(filepath.Dir(config.GetConfigPath()), "console_ed25519")
		}
		rt.console = console.New(rt.control, console.Options{
			Address:     cfg.Console.Address,
			HostKeyPath: hostKey,
		})
	}

	if !opts.NoInput {
		rt.input = evdev.NewBackend(c, seat, evdev.Options{
			Glob:        cfg.Evdev.Devices,
			Ignore:      cfg.Evdev.Ignore,
			Calibration: cfg.Evdev.CalibrationMatrices(),
			Grab:        cfg.Evdev.Grab,
		})
	} else {
		// Without devices the seat still gets a pointer so bindings and
		// zoom have something to follow.
		seat.InitPointer()
		seat.InitKeyboard()
	}
	return rt, nil
}

// serve runs the compositor loop until ctx is done, then tears everything
// down. ready, when set, runs on the loop once input is attached.
func (rt *runtime) serve(ctx context.Context, ready func()) error {
	if err := rt.socket.Start(); err != nil {
		return err
	}
	defer rt.socket.Stop()

	if rt.console != nil {
		if err := rt.console.Start(ctx); err != nil {
			return err
		}
		defer rt.console.Stop()
	}

	c := rt.compositor
	c.Loop.Post(func() {
		if rt.input != nil {
			if err := rt.input.Start(ctx); err != nil {
				logger.Errorf("Input disabled: %v", err)
				rt.input = nil
			}
		}
		if ready != nil {
			ready()
		}
	})

	go c.RunFrames(ctx, c.FrameInterval())

	logger.Infof("waycomp running on %s (%dx%d scale %d), control socket %s",
		rt.output.Name, rt.output.Mode.Width, rt.output.Mode.Height, rt.output.Scale, rt.socket.Path())

	err := c.Loop.Run(ctx)

	// The loop has exited, so teardown can touch compositor state directly.
	// Removing the outputs finishes any recording in progress.
	if rt.input != nil {
		rt.input.Stop()
	}
	rt.zoom.Close()
	c.Destroy()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// reload applies the settings that can change while running.
func (rt *runtime) reload(cfg *config.Config) {
	rt.compositor.Loop.Post(func() {
		logger.SetLevel(cfg.Logging.LogLevel)
		logger.Info("Configuration reloaded")
	})
}
