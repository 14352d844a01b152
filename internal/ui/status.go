package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/airctrl/airctrl/internal/client"
)

// fieldLabels maps well-known firmware field names to friendly labels.
// Unknown fields are rendered with their raw name so nothing the
// device reports is ever hidden.
var fieldLabels = map[string]string{
	"pwr":       "Power",
	"mode":      "Mode",
	"om":        "Fan speed",
	"pm25":      "PM2.5",
	"iaql":      "Allergen index",
	"aqit":      "Air quality index",
	"tvoc":      "TVOC",
	"rh":        "Humidity",
	"rhset":     "Target humidity",
	"temp":      "Temperature",
	"func":      "Function",
	"wl":        "Water level",
	"aqil":      "Light brightness",
	"uil":       "Display backlight",
	"ddp":       "Preferred index",
	"cl":        "Child lock",
	"dt":        "Timer",
	"dtrs":      "Timer remaining",
	"fltsts0":   "Pre-filter",
	"fltsts1":   "HEPA filter",
	"fltsts2":   "Carbon filter",
	"wicksts":   "Wick",
	"err":       "Error code",
	"name":      "Name",
	"type":      "Type",
	"modelid":   "Model",
	"swversion": "Firmware",
}

// priorityFields are rendered first, in this order, before the rest of
// the snapshot in lexical order.
var priorityFields = []string{"name", "modelid", "pwr", "mode", "om", "pm25", "iaql", "rh", "temp"}

// RenderStatus formats a status snapshot as a bordered key/value
// table.
func RenderStatus(title string, status client.DeviceStatus) string {
	var rows []string
	seen := make(map[string]bool)

	for _, key := range priorityFields {
		if _, ok := status[key]; ok {
			rows = append(rows, renderField(key, status))
			seen[key] = true
		}
	}
	for _, key := range status.SortedKeys() {
		if !seen[key] {
			rows = append(rows, renderField(key, status))
		}
	}

	table := BorderStyle.Render(strings.Join(rows, "\n"))
	return TitleStyle.Render(title) + "\n" + table
}

// renderField formats one label/value pair with a fixed-width label
// column.
func renderField(key string, status client.DeviceStatus) string {
	label, ok := fieldLabels[key]
	if !ok {
		label = key
	}

	value, _ := status.String(key)
	styled := ValueStyle.Render(formatValue(key, value))

	return lipgloss.JoinHorizontal(lipgloss.Top,
		LabelStyle.Width(18).Render(label),
		styled,
	)
}

// formatValue rewrites a handful of enum-ish values for readability.
func formatValue(key, value string) string {
	switch key {
	case "pwr":
		if value == "1" {
			return OnStyle.Render("on")
		}
		return OffStyle.Render("off")
	case "cl":
		if value == "true" {
			return "locked"
		}
		return "unlocked"
	case "mode":
		switch value {
		case "P":
			return "auto"
		case "A":
			return "allergen"
		case "S":
			return "sleep"
		case "M":
			return "manual"
		case "B":
			return "bacteria"
		case "N":
			return "night"
		}
	case "om":
		switch value {
		case "s":
			return "silent"
		case "t":
			return "turbo"
		}
	case "rh", "rhset":
		return value + "%"
	}
	return value
}

// RenderError formats an error for CLI output.
func RenderError(err error) string {
	return ErrorStyle.Render(fmt.Sprintf("Error: %v", err))
}
