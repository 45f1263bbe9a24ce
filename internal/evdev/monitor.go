package evdev

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/waycomp/internal/logger"
	"github.com/fsnotify/fsnotify"
)

// DeviceChange represents a device node appearing or going away.
type DeviceChange struct {
	Type   DeviceChangeType
	Path   string
	Device string // node name, e.g. "event0"
}

type DeviceChangeType int

const (
	DeviceAdded DeviceChangeType = iota
	DeviceRemoved
)

func (t DeviceChangeType) String() string {
	if t == DeviceRemoved {
		return "removed"
	}
	return "added"
}

// DeviceMonitor watches an input directory for event nodes.
type DeviceMonitor struct {
	inputDir string
	// settle delays added notifications so udev can fix permissions first.
	settle time.Duration

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewDeviceMonitor returns a monitor for dir, /dev/input when empty.
func NewDeviceMonitor(dir string) *DeviceMonitor {
	if dir == "" {
		dir = "/dev/input"
	}
	return &DeviceMonitor{
		inputDir: dir,
		settle:   100 * time.Millisecond,
	}
}

// Start calls callback from the monitor goroutine for every change until
// ctx is done or Stop is called.
func (dm *DeviceMonitor) Start(ctx context.Context, callback func(DeviceChange)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dm.inputDir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dm.inputDir, err)
	}

	ctx, dm.cancel = context.WithCancel(ctx)
	dm.watcher = watcher
	dm.done = make(chan struct{})

	go dm.watch(ctx, callback)

	logger.Debugf("Device monitor watching %s", dm.inputDir)
	return nil
}

// Stop asks the monitor goroutine to exit. Done is closed once it has.
func (dm *DeviceMonitor) Stop() {
	if dm.cancel == nil {
		return
	}
	dm.cancel()
	dm.cancel = nil
	logger.Debug("Device monitor stopped")
}

// Done is closed when the monitor goroutine has exited.
func (dm *DeviceMonitor) Done() <-chan struct{} {
	return dm.done
}

func (dm *DeviceMonitor) watch(ctx context.Context, callback func(DeviceChange)) {
	defer close(dm.done)
	defer dm.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-dm.watcher.Events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			if !isEventNode(name) {
				continue
			}

			change := DeviceChange{Path: event.Name, Device: name}
			switch {
			case event.Op&fsnotify.Create != 0:
				change.Type = DeviceAdded
				select {
				case <-ctx.Done():
					return
				case <-time.After(dm.settle):
				}
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				change.Type = DeviceRemoved
			default:
				continue
			}
			logger.Debugf("Device %s: %s", change.Type, name)
			callback(change)

		case err, ok := <-dm.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("Device monitor error: %v", err)
		}
	}
}

func isEventNode(name string) bool {
	return strings.HasPrefix(name, "event")
}

// ListCurrentDevices returns the event nodes present now.
func (dm *DeviceMonitor) ListCurrentDevices() []string {
	var devices []string

	entries, err := os.ReadDir(dm.inputDir)
	if err != nil {
		logger.Warnf("Failed to read input directory: %v", err)
		return devices
	}

	for _, entry := range entries {
		if !entry.IsDir() && isEventNode(entry.Name()) {
			devices = append(devices, filepath.Join(dm.inputDir, entry.Name()))
		}
	}
	return devices
}
