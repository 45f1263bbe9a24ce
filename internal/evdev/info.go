package evdev

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/bnema/waycomp/internal/compositor"
	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"
)

// AbsInfo mirrors struct input_absinfo.
type AbsInfo struct {
	Value      int32
	Min        int32
	Max        int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// Info is the static description of a device used to classify it.
type Info struct {
	Path string
	Name string
	Phys string

	// Events maps event types to the codes the device reports.
	Events map[int][]int
	// Abs holds axis ranges for the EV_ABS codes.
	Abs map[int]AbsInfo
}

// HasEvent reports whether the device reports event type typ at all.
func (i Info) HasEvent(typ int) bool {
	_, ok := i.Events[typ]
	return ok
}

// Has reports whether code is set for event type typ.
func (i Info) Has(typ, code int) bool {
	for _, c := range i.Events[typ] {
		if c == code {
			return true
		}
	}
	return false
}

func (i Info) absAxis(code int) (AbsInfo, bool) {
	if !i.Has(evdev.EV_ABS, code) {
		return AbsInfo{}, false
	}
	return i.Abs[code], true
}

// Classify returns the capabilities a device described by info would get,
// without attaching it anywhere.
func Classify(info Info) (Capability, error) {
	d, err := NewDevice(discardSeat{}, nil, info)
	if err != nil {
		return 0, err
	}
	caps := d.Caps
	d.Destroy()
	return caps, nil
}

// IsTouchpad reports whether info selects the touchpad dispatch.
func IsTouchpad(info Info) bool {
	hasAbs := info.Has(evdev.EV_ABS, evdev.ABS_X) || info.Has(evdev.EV_ABS, evdev.ABS_Y) ||
		info.Has(evdev.EV_ABS, evdev.ABS_MT_POSITION_X)
	return hasAbs && info.Has(evdev.EV_KEY, evdev.BTN_TOOL_FINGER) && !info.Has(evdev.EV_KEY, evdev.BTN_TOOL_PEN)
}

func infoFromInput(dev *evdev.InputDevice) (Info, error) {
	info := Info{
		Path:   dev.Fn,
		Name:   dev.Name,
		Phys:   dev.Phys,
		Events: dev.CapabilitiesFlat,
		Abs:    make(map[int]AbsInfo),
	}
	if info.Events == nil {
		info.Events = make(map[int][]int)
	}
	for _, code := range info.Events[evdev.EV_ABS] {
		a, err := readAbsInfo(dev.File, code)
		if err != nil {
			return info, fmt.Errorf("read abs info %d for %s: %w", code, dev.Fn, err)
		}
		info.Abs[code] = a
	}
	return info, nil
}

// Probe opens path and returns its description without attaching it.
func Probe(path string) (Info, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer dev.File.Close()
	return infoFromInput(dev)
}

// ioctl request encoding, as the kernel's _IOC macro.
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocRead = 2
)

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr(dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift)
}

// EVIOCGABS(abs) = _IOR('E', 0x40 + abs, struct input_absinfo)
func eviocgabs(code int) uintptr {
	return ioc(iocRead, 'E', uint32(0x40+code), uint32(unsafe.Sizeof(AbsInfo{})))
}

// EVIOCGKEY(len) = _IOC(_IOC_READ, 'E', 0x18, len)
func eviocgkey(size int) uintptr {
	return ioc(iocRead, 'E', 0x18, uint32(size))
}

func ioctl(f *os.File, req uintptr, arg unsafe.Pointer) error {
	conn, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var errno unix.Errno
	err = conn.Control(func(fd uintptr) {
		_, _, errno = unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	})
	if err != nil {
		return err
	}
	if errno != 0 {
		return errno
	}
	return nil
}

func readAbsInfo(f *os.File, code int) (AbsInfo, error) {
	var a AbsInfo
	if err := ioctl(f, eviocgabs(code), unsafe.Pointer(&a)); err != nil {
		return AbsInfo{}, err
	}
	return a, nil
}

// keyStateSize is the EVIOCGKEY bitmask length, one bit per key code.
const keyStateSize = (evdev.KEY_MAX + 1 + 7) / 8

func readKeyState(f *os.File) ([]byte, error) {
	buf := make([]byte, keyStateSize)
	if err := ioctl(f, eviocgkey(len(buf)), unsafe.Pointer(&buf[0])); err != nil {
		return nil, err
	}
	return buf, nil
}

// discardSeat lets Classify run the configuration without a real seat.
type discardSeat struct{}

func (discardSeat) NotifyMotion(uint32, float64, float64) {}
func (discardSeat) NotifyMotionAbsolute(uint32, float64, float64) {}
func (discardSeat) NotifyButton(uint32, uint32, compositor.ButtonState) {}
func (discardSeat) NotifyAxis(uint32, compositor.Axis, float64) {}
func (discardSeat) NotifyKey(uint32, uint32, compositor.KeyState) {}
func (discardSeat) NotifyTouch(uint32, int32, float64, float64, compositor.TouchType) {}
func (discardSeat) InitPointer() {}
func (discardSeat) InitKeyboard() {}
func (discardSeat) InitTouch() {}
func (discardSeat) ReleasePointer() {}
func (discardSeat) ReleaseKeyboard() {}
func (discardSeat) ReleaseTouch() {}
func (discardSeat) KeyboardDeviceCount() int { return 0 }
func (discardSeat) NotifyKeyboardFocusIn([]uint32) {}
