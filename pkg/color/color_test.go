package color_test

import (
	"irvm/pkg/color"
	"strings"
	"testing"
)

func TestColorize(t *testing.T) {
	defer color.EnableColor(color.IsColorEnabled())

	color.EnableColor(false)
	if got := color.RedText("ret"); got != "ret" {
		t.Errorf("expected plain text without color, got %q", got)
	}
	if got := color.Error("boom"); got != "boom" {
		t.Errorf("expected plain message, got %q", got)
	}

	color.EnableColor(true)
	got := color.CyanText("%entry")
	if !strings.Contains(got, "%entry") || !strings.Contains(got, "\x1b[") {
		t.Errorf("expected escape sequence around text, got %q", got)
	}
	if got := color.BoldText("main"); !strings.HasPrefix(got, "\x1b[") {
		t.Errorf("expected bold sequence, got %q", got)
	}
}
