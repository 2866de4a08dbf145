package sysutil

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSetLogLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{" warn ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		SetLogLevel(tc.in)
		if got := zerolog.GlobalLevel(); got != tc.want {
			t.Errorf("SetLogLevel(%q): global level = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty("", "  ", "x", "y"); got != "x" {
		t.Errorf("FirstNonEmpty = %q, want %q", got, "x")
	}
	if got := FirstNonEmpty("", "   "); got != "" {
		t.Errorf("FirstNonEmpty all-empty = %q, want empty", got)
	}
	if got := FirstNonEmpty(); got != "" {
		t.Errorf("FirstNonEmpty no args = %q, want empty", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("Truncate short = %q", got)
	}
	if got := Truncate("hello world", 5); got != "hello…" {
		t.Errorf("Truncate cut = %q", got)
	}
	if got := Truncate("héllö wörld", 5); got != "héllö…" {
		t.Errorf("Truncate multibyte = %q", got)
	}
	if got := Truncate("x", 0); got != "" {
		t.Errorf("Truncate zero = %q", got)
	}
}
