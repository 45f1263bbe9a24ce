package evdev

import (
	"encoding/binary"
	"io"

	"github.com/bnema/waycomp/internal/compositor"
	"github.com/bnema/waycomp/internal/logger"
	evdev "github.com/gvalkov/golang-evdev"
)

// rawEvent is struct input_event on 64-bit kernels.
type rawEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

var ledMap = []struct {
	led  compositor.LED
	code uint16
}{
	{compositor.LEDNumLock, evdev.LED_NUML},
	{compositor.LEDCapsLock, evdev.LED_CAPSL},
	{compositor.LEDScrollLock, evdev.LED_SCROLLL},
}

// UpdateLEDs writes the lock indicator state to keyboard devices.
func (d *Device) UpdateLEDs(leds compositor.LED) {
	if d.Caps&CapKeyboard == 0 || d.leds == nil {
		return
	}

	events := make([]rawEvent, 0, len(ledMap)+1)
	for _, m := range ledMap {
		var v int32
		if leds&m.led != 0 {
			v = 1
		}
		events = append(events, rawEvent{Type: evdev.EV_LED, Code: m.code, Value: v})
	}
	events = append(events, rawEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT})

	// Keyboards without LEDs reject the write; that is fine.
	if err := binary.Write(d.leds, binary.NativeEndian, events); err != nil {
		logger.Debugf("led update on %s: %v", d.Path, err)
	}
}

func closeLEDs(w io.Writer) {
	if c, ok := w.(io.Closer); ok {
		c.Close()
	}
}

// NotifyKeyboardFocus collects the keys held on every device and hands them
// to seat as the new keyboard focus state.
func NotifyKeyboardFocus(seat Seat, devices []*Device) {
	if seat.KeyboardDeviceCount() <= 0 {
		return
	}

	all := make([]byte, keyStateSize)
	for _, d := range devices {
		if d.keyState == nil {
			continue
		}
		bits, err := d.keyState()
		if err != nil {
			logger.Warnf("failed to get keys for device %s: %v", d.Path, err)
			continue
		}
		for i := 0; i < len(bits) && i < len(all); i++ {
			all[i] |= bits[i]
		}
	}

	var keys []uint32
	for i := 0; i < len(all)*8; i++ {
		if all[i>>3]&(1<<(i&7)) != 0 {
			keys = append(keys, uint32(i))
		}
	}
	seat.NotifyKeyboardFocusIn(keys)
}
