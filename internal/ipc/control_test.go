package ipc

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/waycomp/internal/compositor"
	"github.com/bnema/waycomp/internal/screenshot"
	"github.com/bnema/waycomp/internal/shell"
	"github.com/bnema/waycomp/internal/zoom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type controlScene struct {
	control *Control
	output  *compositor.Output
	client  *Client
}

func newControlScene(t *testing.T) *controlScene {
	t.Helper()

	r := compositor.NewMemoryRenderer(compositor.FormatXRGB8888)
	c := compositor.New(r)
	o := compositor.NewOutput("headless", compositor.Mode{Width: 64, Height: 48}, 1, compositor.TransformNormal)
	c.AddOutput(o)
	fb := r.Framebuffer(o)
	for i := range fb {
		fb[i] = 0x00336699
	}

	seat := c.CreateSeat("seat0")
	seat.InitPointer()
	seat.InitKeyboard()

	z := zoom.NewController(c, zoom.Options{})
	control := &Control{
		Compositor: c,
		Shell:      shell.New(c, shell.Options{Exposay: true, Zoom: z}),
		Zoom:       z,
		Recorder:   screenshot.NewRecorder(c, screenshot.RecorderOptions{Filename: filepath.Join(t.TempDir(), "capture.wcap")}),
		Shooter:    screenshot.NewShooter(c, screenshot.Options{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	server := startServer(t, control, nil)
	client, err := NewClient(server.Path())
	require.NoError(t, err)
	return &controlScene{control: control, output: o, client: client}
}

func TestControlStatus(t *testing.T) {
	s := newControlScene(t)

	status, err := s.client.Status()
	require.NoError(t, err)

	assert.Equal(t, float64(1), status["seats"])
	assert.Equal(t, float64(0), status["views"])
	assert.Equal(t, "inactive", status["overview"])

	outputs, ok := status["outputs"].([]interface{})
	require.True(t, ok)
	require.Len(t, outputs, 1)
	out := outputs[0].(map[string]interface{})
	assert.Equal(t, "headless", out["name"])
	assert.Equal(t, float64(64), out["width"])
	assert.Equal(t, "normal", out["transform"])
	assert.Equal(t, false, out["recording"])
	assert.NotContains(t, out, "zoom")
}

func TestControlOverview(t *testing.T) {
	s := newControlScene(t)

	reply, err := s.client.Send(CommandOverview, nil)
	require.NoError(t, err)
	assert.Equal(t, "overview", reply["state"])

	reply, err = s.client.Send(CommandOverview, nil)
	require.NoError(t, err)
	assert.Equal(t, "inactive", reply["state"])
}

func TestControlZoom(t *testing.T) {
	s := newControlScene(t)

	reply, err := s.client.Send(CommandZoomIn, nil)
	require.NoError(t, err)
	assert.Equal(t, "headless", reply["output"])
	assert.InDelta(t, zoom.DefaultIncrement, reply["level"], 1e-9)

	reply, err = s.client.Send(CommandZoomOut, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0, reply["level"], 1e-9)
}

func TestControlRecord(t *testing.T) {
	s := newControlScene(t)

	reply, err := s.client.Send(CommandRecord, nil)
	require.NoError(t, err)
	assert.Equal(t, true, reply["recording"])

	status, err := s.client.Status()
	require.NoError(t, err)
	out := status["outputs"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, true, out["recording"])

	reply, err = s.client.Send(CommandRecord, map[string]interface{}{"output": "headless"})
	require.NoError(t, err)
	assert.Equal(t, false, reply["recording"])

	_, err = s.client.Send(CommandRecord, map[string]interface{}{"output": "DP-9"})
	assert.EqualError(t, err, `server error: unknown output "DP-9"`)
}

func TestControlScreenshot(t *testing.T) {
	s := newControlScene(t)
	path := filepath.Join(t.TempDir(), "shot.png")

	_, err := s.client.Send(CommandScreenshot, nil)
	assert.EqualError(t, err, "server error: screenshot needs a path")

	reply, err := s.client.Send(CommandScreenshot, map[string]interface{}{"path": path})
	require.NoError(t, err)
	assert.Equal(t, path, reply["path"])

	s.control.Compositor.Loop.Post(func() { s.output.Repaint(16) })

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	// The file is written before the notification, so wait for the loop to
	// go idle before reading it.
	idle := make(chan struct{})
	s.control.Compositor.Loop.Post(func() { close(idle) })
	<-idle

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	r, g, b, _ := img.At(3, 3).RGBA()
	assert.Equal(t, []uint32{0x33, 0x66, 0x99}, []uint32{r >> 8, g >> 8, b >> 8})
}

func TestControlUnknownCommand(t *testing.T) {
	s := newControlScene(t)

	_, err := s.client.Send("reboot", nil)
	assert.EqualError(t, err, `server error: unknown command "reboot"`)
}

func TestControlMissingCollaborators(t *testing.T) {
	c := compositor.New(compositor.NewMemoryRenderer(compositor.FormatXRGB8888))
	control := &Control{Compositor: c}

	tests := []struct {
		command string
		want    string
	}{
		{CommandOverview, "overview is not available"},
		{CommandZoomIn, "zoom is not available"},
		{CommandRecord, "recorder is not available"},
		{CommandScreenshot, "screenshots are not available"},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			_, err := control.run(tt.command, nil)
			assert.EqualError(t, err, tt.want)
		})
	}

	status, err := control.run(CommandStatus, nil)
	require.NoError(t, err)
	assert.NotContains(t, status, "overview")
}

func TestControlTimeout(t *testing.T) {
	c := compositor.New(compositor.NewMemoryRenderer(compositor.FormatXRGB8888))
	control := &Control{Compositor: c}

	// Nothing runs the loop.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := control.HandleCommand(ctx, CommandStatus, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
