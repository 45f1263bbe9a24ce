package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// StatusView renders the reply of the status command. Values arrive decoded
// from the control socket, so numbers are float64.
func StatusView(status map[string]interface{}) string {
	var b strings.Builder

	overview, _ := status["overview"].(string)
	if overview == "" {
		overview = "disabled"
	}
	b.WriteString(FormatAppHeader("STATUS", fmt.Sprintf("%s seat(s), %s view(s), overview %s",
		number(status["seats"]), number(status["views"]), overview)))
	b.WriteString("\n\n")

	outputs, _ := status["outputs"].([]interface{})
	if len(outputs) == 0 {
		b.WriteString(SubtleStyle.Render("No outputs"))
		return b.String()
	}

	rows := make([][]string, 0, len(outputs))
	for _, entry := range outputs {
		o, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		zoom := "-"
		if level, ok := o["zoom"].(float64); ok {
			zoom = fmt.Sprintf("%.2f", level)
		}
		recorder := FormatFlag(false, "idle")
		if recording, _ := o["recording"].(bool); recording {
			recorder = FormatFlag(true, "recording")
		}
		rows = append(rows, []string{
			fmt.Sprint(o["name"]),
			fmt.Sprintf("%sx%s", number(o["width"]), number(o["height"])),
			number(o["scale"]),
			fmt.Sprint(o["transform"]),
			zoom,
			recorder,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorSubtle)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Foreground(ColorText).Padding(0, 1)
		}).
		Headers("OUTPUT", "SIZE", "SCALE", "TRANSFORM", "ZOOM", "RECORDER").
		Rows(rows...)
	b.WriteString(t.String())
	return b.String()
}

// ReplyView renders the fields of any other command reply, sorted by key.
func ReplyView(command string, fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := []string{SuccessStyle.Render("✓ " + command)}
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("  %s %s", SubtleStyle.Render(k+":"), TextStyle.Render(value(fields[k]))))
	}
	return strings.Join(lines, "\n")
}

func number(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%g", f)
	}
	if v == nil {
		return "0"
	}
	return fmt.Sprint(v)
}

func value(v interface{}) string {
	switch v := v.(type) {
	case float64:
		return fmt.Sprintf("%g", v)
	case nil:
		return "-"
	default:
		return fmt.Sprint(v)
	}
}
