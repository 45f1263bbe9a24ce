package cmd

import (
	"bytes"
	"context"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/waycomp/internal/config"
	"github.com/bnema/waycomp/internal/ipc"
	"github.com/bnema/waycomp/internal/wcap"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with args against a throwaway config
// file unless args name one.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	viper.Reset()
	t.Cleanup(func() {
		configPath, socketPath, logLevel = "", "", ""
		ctlOutput = ""
		wcapFormat, wcapStep = "png", 1
		configInitCmd.Flags().Set("force", "false")
		config.SetConfigPath("")
		config.Set(nil)
		viper.Reset()
	})

	if len(args) == 0 || args[0] != "--config" {
		args = append([]string{"--config", filepath.Join(t.TempDir(), "waycomp.toml")}, args...)
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "waycomp "+Version)
	assert.Contains(t, out, "commit: ")
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "waycomp.toml")

	out, err := executeCommand(t, "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration initialized at: "+path)
	assert.FileExists(t, path)

	out, err = executeCommand(t, "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	out, err = executeCommand(t, "--config", path, "config", "init", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration initialized")

	out, err = executeCommand(t, "--config", path, "config", "show")
	require.NoError(t, err)
	for _, want := range []string{"[Output]", "headless", "1024x640", "[Evdev]", "/dev/input/event*", "[Zoom]", "0.07", "capture.wcap"} {
		assert.Contains(t, out, want)
	}
}

func TestConfigSSHWhitelist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waycomp.toml")
	require.NoError(t, afero.WriteFile(afero.NewOsFs(), path, []byte(`
[console]
whitelist = ["SHA256:one", "SHA256:two"]
whitelist_only = true
`), 0644))

	out, err := executeCommand(t, "--config", path, "config", "ssh", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "1. SHA256:one")
	assert.Contains(t, out, "2. SHA256:two")

	out, err = executeCommand(t, "--config", path, "config", "ssh", "remove", "SHA256:one")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed SSH key from whitelist: SHA256:one")

	_, err = executeCommand(t, "--config", path, "config", "ssh", "remove", "SHA256:one")
	assert.Error(t, err)

	out, err = executeCommand(t, "--config", path, "config", "ssh", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 1 SSH key(s)")

	out, err = executeCommand(t, "--config", path, "config", "ssh", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No SSH keys in whitelist")
}

// writeCapture records three 4x2 frames into the memory filesystem.
func writeCapture(t *testing.T, mem afero.Fs, name string) {
	t.Helper()
	f, err := mem.Create(name)
	require.NoError(t, err)
	defer f.Close()

	enc, err := wcap.NewEncoder(f, wcap.FormatXRGB8888, 4, 2)
	require.NoError(t, err)

	full := wcap.Rect{X1: 0, Y1: 0, X2: 4, Y2: 2}
	solid := func(c uint32) []uint32 {
		px := make([]uint32, 8)
		for i := range px {
			px[i] = c
		}
		return px
	}
	require.NoError(t, enc.WriteFrame(100, []wcap.Rect{full}, [][]uint32{solid(0x00ff0000)}))
	require.NoError(t, enc.WriteFrame(116, []wcap.Rect{full}, [][]uint32{solid(0x0000ff00)}))
	require.NoError(t, enc.WriteFrame(132, nil, nil))
	require.NoError(t, enc.Flush())
}

func useMemFs(t *testing.T) afero.Fs {
	t.Helper()
	mem := afero.NewMemMapFs()
	prev := fs
	fs = mem
	t.Cleanup(func() { fs = prev })
	return mem
}

func TestWcapCommand(t *testing.T) {
	mem := useMemFs(t)
	writeCapture(t, mem, "/capture.wcap")

	out, err := executeCommand(t, "wcap", "/capture.wcap", "/frames")
	require.NoError(t, err)
	assert.Contains(t, out, "4x2")
	assert.Contains(t, out, "3 images")
	assert.Contains(t, out, "32ms")

	for _, name := range []string{"frame-00000.png", "frame-00001.png", "frame-00002.png"} {
		ok, err := afero.Exists(mem, "/frames/"+name)
		require.NoError(t, err)
		assert.True(t, ok, name)
	}

	f, err := mem.Open("/frames/frame-00001.png")
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	r, g, b, _ := img.At(3, 1).RGBA()
	assert.Equal(t, []uint32{0, 0xffff, 0}, []uint32{r, g, b})
}

func TestWcapCommandStep(t *testing.T) {
	mem := useMemFs(t)
	writeCapture(t, mem, "/capture.wcap")

	summary, err := decodeWcap("/capture.wcap", "/bmp", "bmp", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Frames)
	assert.Equal(t, 2, summary.Written)
	assert.Equal(t, 32*time.Millisecond, summary.Duration)
	assert.NotZero(t, summary.Bytes)

	ok, _ := afero.Exists(mem, "/bmp/frame-00002.bmp")
	assert.True(t, ok)
	ok, _ = afero.Exists(mem, "/bmp/frame-00001.bmp")
	assert.False(t, ok)
}

func TestWcapCommandErrors(t *testing.T) {
	mem := useMemFs(t)
	writeCapture(t, mem, "/capture.wcap")
	require.NoError(t, afero.WriteFile(mem, "/junk.wcap", []byte("not a capture"), 0644))

	_, err := decodeWcap("/capture.wcap", "/out", "gif", 1)
	assert.ErrorContains(t, err, "unknown image format")

	_, err = decodeWcap("/missing.wcap", "/out", "png", 1)
	assert.Error(t, err)

	_, err = decodeWcap("/junk.wcap", "/out", "png", 1)
	assert.ErrorContains(t, err, "/junk.wcap")
}

func TestInjectRejectsMixedScripts(t *testing.T) {
	_, err := executeCommand(t, "inject", "mouse", "key:a")
	assert.ErrorContains(t, err, "belong to inject key")

	_, err = executeCommand(t, "inject", "key", "move:1,1")
	assert.ErrorContains(t, err, "belong to inject mouse")

	_, err = executeCommand(t, "inject", "mouse", "fly:1")
	assert.ErrorContains(t, err, "unknown verb")
}

func TestCtlAgainstSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "ctl.sock")
	server, err := ipc.NewSocketServer(sock, ipc.HandlerFunc(func(_ context.Context, command string, args map[string]interface{}) (map[string]interface{}, error) {
		switch command {
		case ipc.CommandRecord:
			return map[string]interface{}{"output": args["output"], "recording": true}, nil
		case ipc.CommandScreenshot:
			return map[string]interface{}{"path": args["path"]}, nil
		}
		return map[string]interface{}{"command": command}, nil
	}))
	require.NoError(t, err)
	require.NoError(t, server.Start())
	t.Cleanup(server.Stop)

	out, err := executeCommand(t, "--socket", sock, "ctl", "record", "-o", "HDMI-A-1")
	require.NoError(t, err)
	assert.Contains(t, out, "HDMI-A-1")
	assert.Contains(t, out, "recording")
	assert.Contains(t, out, "true")

	out, err = executeCommand(t, "--socket", sock, "ctl", "screenshot", "shot.png")
	require.NoError(t, err)
	abs, err := filepath.Abs("shot.png")
	require.NoError(t, err)
	assert.Contains(t, out, abs)
}

func TestCtlNotRunning(t *testing.T) {
	_, err := executeCommand(t, "--socket", filepath.Join(t.TempDir(), "none.sock"), "ctl", "status")
	assert.ErrorIs(t, err, ipc.ErrNotRunning)
}

func TestRuntimeServe(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "waycomp.sock")

	cfg := config.DefaultConfig
	cfg.InputMethod.Path = ""
	cfg.Screenshooter.Path = ""
	cfg.Recorder.Filename = filepath.Join(dir, "capture.wcap")

	rt, err := newRuntime(&cfg, runtimeOptions{Socket: sock, NoInput: true})
	require.NoError(t, err)
	assert.Nil(t, rt.input)
	assert.Nil(t, rt.console)

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- rt.serve(ctx, func() { close(ready) }) }()

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("compositor did not start")
	}

	out, err := executeCommand(t, "--socket", sock, "ctl", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "1 seat(s), 0 view(s), overview inactive")
	assert.Contains(t, out, "headless")
	assert.Contains(t, out, "1024x640")

	out, err = executeCommand(t, "--socket", sock, "ctl", "zoom-in")
	require.NoError(t, err)
	assert.Contains(t, out, "zoom-in")

	out, err = executeCommand(t, "--socket", sock, "ctl", "record")
	require.NoError(t, err)
	assert.Contains(t, out, "true")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("compositor did not stop")
	}
	assert.FileExists(t, cfg.Recorder.Filename)
}
