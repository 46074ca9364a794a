package ui

import (
	"strings"
	"testing"

	"github.com/alfredjeanlab/gatewatch/internal/model"
)

func TestRenderStatus(t *testing.T) {
	for _, tc := range []struct {
		status model.Status
		code   string
	}{
		{model.StatusGray, "250"},
		{model.StatusBlue, "33"},
		{model.StatusGreen, "34"},
		{model.StatusYellow, "220"},
		{model.StatusRed, "160"},
	} {
		got := RenderStatus(tc.status, "A12")
		if !strings.Contains(got, "38;5;"+tc.code+"m") || !strings.Contains(got, "A12") {
			t.Errorf("RenderStatus(%s) = %q", tc.status, got)
		}
	}
}

func TestForceNoColor(t *testing.T) {
	defer func() { noColor = false }()
	ForceNoColor()
	if got := RenderStatus(model.StatusGreen, "A12"); got != "A12" {
		t.Errorf("RenderStatus with no color = %q", got)
	}
	if got := RenderAccent("x"); got != "x" {
		t.Errorf("RenderAccent with no color = %q", got)
	}
}

func TestShouldUseColor(t *testing.T) {
	for _, tc := range []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"NO_COLOR wins", map[string]string{"NO_COLOR": "1", "CLICOLOR_FORCE": "1"}, false},
		{"CLICOLOR_FORCE", map[string]string{"CLICOLOR_FORCE": "1"}, true},
		{"CLICOLOR=0", map[string]string{"CLICOLOR": "0"}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", "")
			t.Setenv("CLICOLOR_FORCE", "")
			t.Setenv("CLICOLOR", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if got := ShouldUseColor(); got != tc.want {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tc.want)
			}
		})
	}
}
