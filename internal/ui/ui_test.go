package ui

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bnema/waycomp/internal/compositor"
	"github.com/bnema/waycomp/internal/evdev"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatControl(t *testing.T) {
	got := FormatControl("q", "Quit")
	assert.Contains(t, got, "q")
	assert.Contains(t, got, "Quit")

	both := FormatControls([2]string{"c", "Clear"}, [2]string{"q", "Quit"})
	assert.Contains(t, both, "Clear")
	assert.Contains(t, both, "Quit")
}

func TestStatusView(t *testing.T) {
	status := map[string]interface{}{
		"seats":    float64(1),
		"views":    float64(3),
		"overview": "inactive",
		"outputs": []interface{}{
			map[string]interface{}{
				"name": "headless", "width": float64(640), "height": float64(480),
				"scale": float64(2), "transform": "90", "zoom": 0.07, "recording": true,
			},
		},
	}

	out := StatusView(status)
	for _, want := range []string{"1 seat(s)", "3 view(s)", "overview inactive", "headless", "640x480", "0.07", "recording"} {
		assert.Contains(t, out, want)
	}

	empty := StatusView(map[string]interface{}{})
	assert.Contains(t, empty, "No outputs")
	assert.Contains(t, empty, "overview disabled")
}

func TestReplyView(t *testing.T) {
	out := ReplyView("zoom-in", map[string]interface{}{"output": "headless", "level": 0.14})
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "zoom-in")
	assert.Contains(t, lines[1], "level:")
	assert.Contains(t, lines[1], "0.14")
	assert.Contains(t, lines[2], "headless")
}

func TestDeviceRows(t *testing.T) {
	rows := []DeviceRow{
		{Path: "/dev/input/event3", Name: "Mouse", Caps: evdev.CapPointer},
		{Path: "/dev/input/event4", Name: "Pad", Caps: evdev.CapPointer, Touchpad: true},
		{Path: "/dev/input/event5", Name: "Lid switch", Err: evdev.ErrUnhandledDevice},
	}

	assert.True(t, rows[0].Usable())
	assert.False(t, rows[2].Usable())
	assert.Equal(t, "Mouse (event3) [pointer]", rows[0].Label())

	table := DeviceTable(rows)
	for _, want := range []string{"event3", "Mouse", "fallback", "touchpad", "unhandled input device"} {
		assert.Contains(t, table, want)
	}
}

func TestSelectDeviceWithoutChoice(t *testing.T) {
	_, err := SelectDevice([]DeviceRow{{Path: "/dev/input/event9", Err: errors.New("busy")}})
	assert.Error(t, err)

	path, err := SelectDevice([]DeviceRow{
		{Path: "/dev/input/event1", Caps: evdev.CapKeyboard},
		{Path: "/dev/input/event2", Err: errors.New("busy")},
	})
	require.NoError(t, err)
	assert.Equal(t, "/dev/input/event1", path)
}

func TestProbeDevices(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "event0"), []byte("not a device"), 0600))

	rows, err := ProbeDevices(filepath.Join(dir, "event*"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Error(t, rows[0].Err)
	assert.False(t, rows[0].Usable())

	_, err = ProbeDevices("[")
	assert.Error(t, err)
}

func TestEventLog(t *testing.T) {
	var got []EventMsg
	log := NewEventLog(func(msg tea.Msg) { got = append(got, msg.(EventMsg)) })

	log.InitKeyboard()
	assert.Equal(t, 1, log.KeyboardDeviceCount())
	log.NotifyMotion(10, 1.5, -2)
	log.NotifyButton(11, 0x110, compositor.ButtonPressed)
	log.NotifyKey(12, 30, compositor.KeyReleased)
	log.NotifyKeyboardFocusIn([]uint32{29, 30})
	log.ReleaseKeyboard()
	assert.Equal(t, 0, log.KeyboardDeviceCount())

	require.Len(t, got, 6)
	assert.Equal(t, EventMsg{Time: 10, Kind: "motion", Detail: "dx=1.50 dy=-2.00"}, got[1])
	assert.Equal(t, EventMsg{Time: 11, Kind: "button", Detail: "0x110 pressed"}, got[2])
	assert.Equal(t, EventMsg{Time: 12, Kind: "key", Detail: "30 released"}, got[3])
	assert.Equal(t, "2 key(s) down", got[4].Detail)
}

func TestWatchModel(t *testing.T) {
	var m tea.Model = NewWatchModel("Test Mouse", 2)
	assert.Contains(t, m.View(), "waiting for input")

	for i := uint32(1); i <= 3; i++ {
		m, _ = m.Update(EventMsg{Time: i, Kind: "motion", Detail: "dx=1.00 dy=0.00"})
	}
	m, _ = m.Update(EventMsg{Time: 4, Kind: "button", Detail: "0x110 pressed"})

	w := m.(WatchModel)
	require.Len(t, w.Events(), 2)
	assert.Equal(t, uint32(3), w.Events()[0].Time)
	assert.Equal(t, 3, w.Count("motion"))
	assert.Equal(t, 1, w.Count("button"))
	assert.Contains(t, w.View(), "0x110 pressed")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	w = m.(WatchModel)
	assert.Empty(t, w.Events())
	assert.Equal(t, 0, w.Count("motion"))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	gone := errors.New("no such device")
	m, cmd = m.Update(DeviceGoneMsg{Err: gone})
	require.NotNil(t, cmd)
	assert.ErrorIs(t, m.(WatchModel).Err(), gone)
}
