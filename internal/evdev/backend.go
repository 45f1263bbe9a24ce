package evdev

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bnema/waycomp/internal/compositor"
	"github.com/bnema/waycomp/internal/logger"
	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"
)

// DefaultGlob matches every event node.
const DefaultGlob = "/dev/input/event*"

// Options configure a Backend.
type Options struct {
	Glob string
	// Ignore lists device name substrings to skip, compared case-insensitively.
	Ignore []string
	// Calibration maps device names to absolute calibration matrices. Names
	// match case-insensitively.
	Calibration map[string][6]float64
	// Grab takes devices exclusively with EVIOCGRAB.
	Grab bool
}

// Backend feeds every matching device into a seat. Its methods run on the
// compositor loop; device readers and the hot-plug monitor only post to it.
type Backend struct {
	compositor *compositor.Compositor
	seat       *compositor.Seat
	opts       Options

	devices map[string]*Device
	ignored map[string]bool
	leds    *compositor.Listener[compositor.LED]

	monitor *DeviceMonitor
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewBackend returns a backend attaching devices to seat.
func NewBackend(c *compositor.Compositor, seat *compositor.Seat, opts Options) *Backend {
	if opts.Glob == "" {
		opts.Glob = DefaultGlob
	}
	return &Backend{
		compositor: c,
		seat:       seat,
		opts:       opts,
		devices:    make(map[string]*Device),
		ignored:    make(map[string]bool),
	}
}

// Start opens every device present, sends the initial keyboard focus and
// begins watching for hot-plug.
func (b *Backend) Start(ctx context.Context) error {
	if err := CheckAccess(b.opts.Glob); err != nil {
		return err
	}

	b.ctx, b.cancel = context.WithCancel(ctx)

	paths, err := filepath.Glob(b.opts.Glob)
	if err != nil {
		return err
	}
	for _, p := range paths {
		b.addDevice(p)
	}

	b.leds = b.seat.LEDsChanged.Add(func(leds compositor.LED) {
		for _, d := range b.devices {
			d.UpdateLEDs(leds)
		}
	})

	NotifyKeyboardFocus(b.seat, b.Devices())

	b.monitor = NewDeviceMonitor(filepath.Dir(b.opts.Glob))
	err = b.monitor.Start(b.ctx, func(change DeviceChange) {
		b.compositor.Loop.Post(func() { b.handleChange(change) })
	})
	if err != nil {
		logger.Warnf("Hot-plug disabled: %v", err)
		b.monitor = nil
	}

	logger.Infof("evdev backend started with %d devices (%d ignored)", len(b.devices), len(b.ignored))
	return nil
}

func (b *Backend) handleChange(change DeviceChange) {
	if b.ctx == nil || b.ctx.Err() != nil {
		return
	}
	matched, _ := filepath.Match(b.opts.Glob, change.Path)
	if !matched {
		return
	}
	switch change.Type {
	case DeviceAdded:
		delete(b.ignored, change.Path)
		b.addDevice(change.Path)
	case DeviceRemoved:
		delete(b.ignored, change.Path)
		b.removeDevice(change.Path)
	}
}

func (b *Backend) calibration(name string) ([6]float64, bool) {
	if m, ok := b.opts.Calibration[name]; ok {
		return m, true
	}
	for n, m := range b.opts.Calibration {
		if strings.EqualFold(n, name) {
			return m, true
		}
	}
	return [6]float64{}, false
}

func (b *Backend) isIgnored(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range b.opts.Ignore {
		if pattern != "" && strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

func (b *Backend) addDevice(path string) {
	if _, exists := b.devices[path]; exists || b.ignored[path] {
		return
	}

	d, err := Open(b.seat, b.compositor.DefaultOutput(), path)
	if err != nil {
		b.ignored[path] = true
		if errors.Is(err, ErrUnhandledDevice) {
			logger.Debugf("Device %s not handled: %v", path, err)
		} else {
			logger.Warnf("Failed to add device %s: %v", path, err)
		}
		return
	}

	if b.isIgnored(d.Name) {
		logger.Debugf("Ignoring device %s (%s)", d.Name, path)
		b.ignored[path] = true
		d.Destroy()
		return
	}

	if m, ok := b.calibration(d.Name); ok {
		d.SetCalibration(m)
		logger.Debugf("Applied calibration to %s: %v", d.Name, m)
	}

	if b.opts.Grab {
		if err := d.input.Grab(); err != nil {
			logger.Warnf("Failed to grab device %s (%s): %v", d.Name, path, err)
		}
	}

	b.devices[path] = d
	go b.read(d, d.input)

	logger.Infof("Added input device: %s (%s) caps=%s", d.Name, path, d.Caps)
}

func (b *Backend) removeDevice(path string) {
	d, exists := b.devices[path]
	if !exists {
		return
	}
	delete(b.devices, path)
	d.Destroy()
	logger.Infof("Removed input device: %s", path)
}

// read runs on its own goroutine until the node is closed or fails.
func (b *Backend) read(d *Device, input *evdev.InputDevice) {
	for {
		events, err := input.Read()
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			if errors.Is(err, os.ErrClosed) || b.ctx.Err() != nil {
				return
			}
			b.compositor.Loop.Post(func() {
				logger.Warnf("device %s died: %v", d.Path, err)
				if b.devices[d.Path] == d {
					b.removeDevice(d.Path)
				}
			})
			return
		}
		if len(events) == 0 {
			continue
		}

		b.compositor.Loop.Post(func() {
			if b.devices[d.Path] == d {
				d.ProcessEvents(events)
			}
		})
	}
}

// Devices returns the attached devices ordered by path.
func (b *Backend) Devices() []*Device {
	out := make([]*Device, 0, len(b.devices))
	for _, d := range b.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Stop closes every device, which ends the readers. Call it from the loop
// goroutine or after the loop has exited.
func (b *Backend) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.monitor != nil {
		b.monitor.Stop()
	}
	if b.leds != nil {
		b.leds.Remove()
	}
	for path := range b.devices {
		b.removeDevice(path)
	}
	logger.Info("evdev backend stopped")
}
