package compositor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/bnema/waycomp/internal/logger"
)

// Process is a helper program started by the compositor.
type Process struct {
	PID    int
	Path   string
	Client *Client

	cmd *exec.Cmd
}

// Terminate asks a running helper to exit. Processes not started by an
// ExecLauncher are left alone.
func (p *Process) Terminate() error {
	if p == nil || p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("terminate %s: %w", p.Path, err)
	}
	return nil
}

// ExitFunc is called on the loop after a launched process exits.
type ExitFunc func(p *Process, status int)

// Launcher starts helper clients such as the input method or the
// screenshot tool.
type Launcher interface {
	Launch(path string, onExit ExitFunc) (*Process, error)
}

// ExecLauncher runs helpers with os/exec and reaps them on a goroutine,
// handing the exit back to the compositor loop.
type ExecLauncher struct {
	Compositor *Compositor
	Env        []string
}

func (l *ExecLauncher) Launch(path string, onExit ExitFunc) (*Process, error) {
	cmd := exec.Command(path)
	cmd.Env = append(os.Environ(), l.Env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch %s: %w", path, err)
	}

	proc := &Process{
		PID:    cmd.Process.Pid,
		Path:   path,
		Client: l.Compositor.NewClient(cmd.Process.Pid),
		cmd:    cmd,
	}
	logger.Debug("launched helper", "path", path, "pid", proc.PID)

	go func() {
		status := 0
		if err := cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				status = exitErr.ExitCode()
			} else {
				status = -1
			}
		}
		l.Compositor.Loop.Post(func() {
			proc.Client.Destroy()
			if onExit != nil {
				onExit(proc, status)
			}
		})
	}()

	return proc, nil
}
