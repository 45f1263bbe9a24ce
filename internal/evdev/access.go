package evdev

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/syndtr/gocapability/capability"
	"golang.org/x/sys/unix"
)

// ErrNoAccess means no input device node can be opened by this process.
var ErrNoAccess = errors.New("no readable input devices")

// HasDACOverride reports whether the process may open device nodes
// regardless of their permissions.
func HasDACOverride() bool {
	if os.Geteuid() == 0 {
		return true
	}
	caps, err := capability.NewPid2(0)
	if err != nil {
		return false
	}
	if err := caps.Load(); err != nil {
		return false
	}
	return caps.Get(capability.EFFECTIVE, capability.CAP_DAC_OVERRIDE)
}

// CheckAccess verifies that at least one node matching glob is readable.
func CheckAccess(glob string) error {
	if HasDACOverride() {
		return nil
	}

	paths, err := filepath.Glob(glob)
	if err != nil {
		return fmt.Errorf("bad device glob %q: %w", glob, err)
	}
	for _, p := range paths {
		if unix.Access(p, unix.R_OK) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w matching %s (run as root or join the input group)", ErrNoAccess, glob)
}
