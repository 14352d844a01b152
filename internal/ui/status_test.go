package ui

import (
	"strings"
	"testing"

	"github.com/airctrl/airctrl/internal/client"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  string
	}{
		{"mode", "P", "auto"},
		{"mode", "S", "sleep"},
		{"mode", "M", "manual"},
		{"mode", "X", "X"},
		{"om", "s", "silent"},
		{"om", "t", "turbo"},
		{"om", "2", "2"},
		{"rh", "47", "47%"},
		{"rhset", "60", "60%"},
		{"cl", "true", "locked"},
		{"cl", "false", "unlocked"},
		{"pm25", "12", "12"},
	}

	for _, tt := range tests {
		got := formatValue(tt.key, tt.value)
		if got != tt.want {
			t.Errorf("formatValue(%q, %q) = %q, want %q", tt.key, tt.value, got, tt.want)
		}
	}
}

func TestRenderStatusIncludesAllFields(t *testing.T) {
	status := client.DeviceStatus{
		"pwr":  "1",
		"mode": "P",
		"pm25": float64(9),
		"zz9":  "mystery",
	}

	out := RenderStatus("living room", status)

	for _, want := range []string{"living room", "Power", "Mode", "auto", "PM2.5", "9"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderStatus output missing %q:\n%s", want, out)
		}
	}

	// Unknown fields show up under their raw name.
	if !strings.Contains(out, "zz9") || !strings.Contains(out, "mystery") {
		t.Errorf("RenderStatus dropped unknown field:\n%s", out)
	}
}

func TestRenderStatusFieldOrder(t *testing.T) {
	status := client.DeviceStatus{
		"aqil": float64(50),
		"pwr":  "1",
		"pm25": float64(3),
	}

	out := RenderStatus("device", status)

	power := strings.Index(out, "Power")
	pm := strings.Index(out, "PM2.5")
	light := strings.Index(out, "Light brightness")
	if power < 0 || pm < 0 || light < 0 {
		t.Fatalf("expected all labels in output:\n%s", out)
	}
	if !(power < pm && pm < light) {
		t.Errorf("priority fields out of order (Power=%d, PM2.5=%d, Light=%d)", power, pm, light)
	}
}
