package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bnema/waycomp/internal/compositor"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// DefaultWatchLines is how many notifications the watch view keeps.
const DefaultWatchLines = 20

// EventMsg is one normalized notification produced by a device.
type EventMsg struct {
	Time   uint32
	Kind   string
	Detail string
}

// DeviceGoneMsg ends the watch when the device stops delivering events.
type DeviceGoneMsg struct {
	Err error
}

// EventLog is a seat that turns every notification into an EventMsg and
// hands it to send. It lets a single device be watched without a
// compositor.
type EventLog struct {
	send      func(tea.Msg)
	keyboards int
}

// NewEventLog returns a seat forwarding notifications to send, which is
// usually (*tea.Program).Send.
func NewEventLog(send func(tea.Msg)) *EventLog {
	return &EventLog{send: send}
}

func (l *EventLog) emit(time uint32, kind, format string, args ...interface{}) {
	l.send(EventMsg{Time: time, Kind: kind, Detail: fmt.Sprintf(format, args...)})
}

func (l *EventLog) NotifyMotion(time uint32, dx, dy float64) {
	l.emit(time, "motion", "dx=%.2f dy=%.2f", dx, dy)
}

func (l *EventLog) NotifyMotionAbsolute(time uint32, x, y float64) {
	l.emit(time, "absolute", "x=%.1f y=%.1f", x, y)
}

func (l *EventLog) NotifyButton(time, button uint32, state compositor.ButtonState) {
	l.emit(time, "button", "%#x %s", button, state)
}

func (l *EventLog) NotifyAxis(time uint32, axis compositor.Axis, value float64) {
	l.emit(time, "axis", "%s %.2f", axis, value)
}

func (l *EventLog) NotifyKey(time, key uint32, state compositor.KeyState) {
	l.emit(time, "key", "%d %s", key, state)
}

func (l *EventLog) NotifyTouch(time uint32, id int32, x, y float64, typ compositor.TouchType) {
	l.emit(time, "touch", "%s id=%d x=%.1f y=%.1f", typ, id, x, y)
}

func (l *EventLog) InitPointer()    { l.emit(0, "seat", "pointer attached") }
func (l *EventLog) InitTouch()      { l.emit(0, "seat", "touch attached") }
func (l *EventLog) ReleasePointer() { l.emit(0, "seat", "pointer released") }
func (l *EventLog) ReleaseTouch()   { l.emit(0, "seat", "touch released") }

func (l *EventLog) InitKeyboard() {
	l.keyboards++
	l.emit(0, "seat", "keyboard attached")
}

func (l *EventLog) ReleaseKeyboard() {
	l.keyboards--
	l.emit(0, "seat", "keyboard released")
}

func (l *EventLog) KeyboardDeviceCount() int {
	return l.keyboards
}

func (l *EventLog) NotifyKeyboardFocusIn(keys []uint32) {
	l.emit(0, "focus", "%d key(s) down", len(keys))
}

// WatchModel shows the latest notifications of one device.
type WatchModel struct {
	title   string
	max     int
	events  []EventMsg
	counts  map[string]int
	spinner spinner.Model
	err     error
	width   int
}

// NewWatchModel returns a model titled with the watched device.
func NewWatchModel(title string, lines int) WatchModel {
	if lines <= 0 {
		lines = DefaultWatchLines
	}
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"},
		FPS:    time.Second / 10,
	}
	s.Style = SpinnerStyle
	return WatchModel{
		title:   title,
		max:     lines,
		counts:  make(map[string]int),
		spinner: s,
	}
}

// Events returns the notifications currently shown, oldest first.
func (m WatchModel) Events() []EventMsg {
	return m.events
}

// Count returns how many notifications of kind arrived since the last clear.
func (m WatchModel) Count(kind string) int {
	return m.counts[kind]
}

// Err returns why the device went away, if it did.
func (m WatchModel) Err() error {
	return m.err
}

func (m WatchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "c":
			m.events = nil
			m.counts = make(map[string]int)
		}
	case EventMsg:
		m.counts[msg.Kind]++
		m.events = append(m.events, msg)
		if len(m.events) > m.max {
			m.events = m.events[len(m.events)-m.max:]
		}
	case DeviceGoneMsg:
		m.err = msg.Err
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m WatchModel) View() string {
	var b strings.Builder
	b.WriteString(FormatAppHeader("WATCH", m.title))
	b.WriteString("\n\n")

	if len(m.events) == 0 {
		b.WriteString(m.spinner.View() + " " + SubtleStyle.Render("waiting for input..."))
		b.WriteString("\n")
	}
	for _, ev := range m.events {
		b.WriteString(fmt.Sprintf("%s %s %s\n",
			SubtleStyle.Render(fmt.Sprintf("%10d", ev.Time)),
			InfoStyle.Render(fmt.Sprintf("%-8s", ev.Kind)),
			TextStyle.Render(ev.Detail)))
	}

	if len(m.counts) > 0 {
		kinds := make([]string, 0, len(m.counts))
		for k := range m.counts {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		parts := make([]string, 0, len(kinds))
		for _, k := range kinds {
			parts = append(parts, fmt.Sprintf("%s %d", k, m.counts[k]))
		}
		b.WriteString("\n" + SubtleStyle.Render(strings.Join(parts, " · ")) + "\n")
	}

	b.WriteString("\n" + FormatControls([2]string{"c", "Clear"}, [2]string{"q", "Quit"}))
	return b.String()
}
