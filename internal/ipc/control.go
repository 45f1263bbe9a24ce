package ipc

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bnema/waycomp/internal/compositor"
	"github.com/bnema/waycomp/internal/screenshot"
	"github.com/bnema/waycomp/internal/shell"
	"github.com/bnema/waycomp/internal/wcap"
	"github.com/bnema/waycomp/internal/zoom"
)

const commandTimeout = 2 * time.Second

// Control runs socket commands against a compositor. Commands execute on
// the compositor loop; nil collaborators make their commands fail.
type Control struct {
	Compositor *compositor.Compositor
	Shell      *shell.Shell
	Zoom       *zoom.Controller
	Recorder   *screenshot.Recorder
	Shooter    *screenshot.Shooter
}

type commandResult struct {
	fields map[string]interface{}
	err    error
}

func (c *Control) HandleCommand(ctx context.Context, command string, args map[string]interface{}) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	done := make(chan commandResult, 1)
	c.Compositor.Loop.Post(func() {
		fields, err := c.run(command, args)
		done <- commandResult{fields, err}
	})

	select {
	case res := <-done:
		return res.fields, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", command, ctx.Err())
	}
}

// run executes on the loop.
func (c *Control) run(command string, args map[string]interface{}) (map[string]interface{}, error) {
	switch command {
	case CommandStatus:
		return c.status(), nil

	case CommandOverview:
		if c.Shell == nil {
			return nil, fmt.Errorf("overview is not available")
		}
		ex := c.Shell.Exposay()
		ex.Toggle(c.seat())
		return map[string]interface{}{"state": ex.State().String()}, nil

	case CommandZoomIn, CommandZoomOut:
		seat := c.seat()
		if c.Zoom == nil || seat == nil || seat.Pointer == nil {
			return nil, fmt.Errorf("zoom is not available")
		}
		if command == CommandZoomIn {
			c.Zoom.ZoomIn(seat)
		} else {
			c.Zoom.ZoomOut(seat)
		}
		o := c.Compositor.OutputAt(seat.Pointer.X, seat.Pointer.Y)
		if o == nil {
			return map[string]interface{}{}, nil
		}
		return map[string]interface{}{"output": o.Name, "level": c.Zoom.Output(o).Level}, nil

	case CommandRecord:
		if c.Recorder == nil {
			return nil, fmt.Errorf("recorder is not available")
		}
		o, err := c.output(args)
		if err != nil {
			return nil, err
		}
		wasRecording := c.Recorder.Recording(o)
		if err := c.Recorder.Toggle(o); err != nil {
			return nil, err
		}
		return map[string]interface{}{"output": o.Name, "recording": !wasRecording}, nil

	case CommandScreenshot:
		return c.screenshot(args)

	default:
		return nil, fmt.Errorf("unknown command %q", command)
	}
}

func (c *Control) seat() *compositor.Seat {
	seats := c.Compositor.Seats()
	if len(seats) == 0 {
		return nil
	}
	return seats[0]
}

func (c *Control) output(args map[string]interface{}) (*compositor.Output, error) {
	name, _ := args["output"].(string)
	if name == "" {
		if o := c.Compositor.DefaultOutput(); o != nil {
			return o, nil
		}
		return nil, fmt.Errorf("no outputs")
	}
	for _, o := range c.Compositor.Outputs() {
		if o.Name == name {
			return o, nil
		}
	}
	return nil, fmt.Errorf("unknown output %q", name)
}

func (c *Control) screenshot(args map[string]interface{}) (map[string]interface{}, error) {
	if c.Shooter == nil {
		return nil, fmt.Errorf("screenshots are not available")
	}
	path, _ := args["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("screenshot needs a path")
	}
	o, err := c.output(args)
	if err != nil {
		return nil, err
	}

	buf := screenshot.NewBuffer(o)
	err = c.Shooter.Shoot(o, buf, func() {
		if err := savePNG(path, buf); err != nil {
			ipcLog.Error("failed to save screenshot", "path", path, "err", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"output": o.Name, "path": path}, nil
}

func savePNG(path string, buf *screenshot.Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := wcap.EncodeImage(f, buf.Image(), "png"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (c *Control) status() map[string]interface{} {
	var outputs []interface{}
	for _, o := range c.Compositor.Outputs() {
		entry := map[string]interface{}{
			"name":      o.Name,
			"width":     o.Width,
			"height":    o.Height,
			"scale":     o.Scale,
			"transform": o.Transform.String(),
		}
		if level, active := o.ZoomLevel(); active {
			entry["zoom"] = level
		}
		if c.Recorder != nil {
			entry["recording"] = c.Recorder.Recording(o)
		}
		outputs = append(outputs, entry)
	}

	out := map[string]interface{}{
		"outputs": outputs,
		"seats":   len(c.Compositor.Seats()),
		"views":   len(c.Compositor.Views()),
	}
	if c.Shell != nil {
		out["overview"] = c.Shell.Exposay().State().String()
	}
	return out
}
