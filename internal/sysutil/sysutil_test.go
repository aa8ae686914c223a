package sysutil

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSetLogLevel(t *testing.T) {
	orig := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(orig) })

	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel}, // case + trim
		{"warning", zerolog.WarnLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"verbose", zerolog.InfoLevel}, // unknown -> info
	}

	for _, tc := range cases {
		SetLogLevel(tc.in)
		if got := zerolog.GlobalLevel(); got != tc.want {
			t.Fatalf("SetLogLevel(%q) -> %v; want %v", tc.in, got, tc.want)
		}
	}
}

func TestIsTruthy(t *testing.T) {
	trues := []string{"1", "true", "Yes", " ON ", "y"}
	falses := []string{"", "0", "off", "nope", "   "}

	for _, v := range trues {
		if !IsTruthy(v) {
			t.Fatalf("IsTruthy(%q) = false; want true", v)
		}
	}
	for _, v := range falses {
		if IsTruthy(v) {
			t.Fatalf("IsTruthy(%q) = true; want false", v)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty(); got != "" {
		t.Fatalf("FirstNonEmpty() = %q; want empty", got)
	}
	if got := FirstNonEmpty("", "   "); got != "" {
		t.Fatalf("FirstNonEmpty(blanks) = %q; want empty", got)
	}
	// whitespace-only entries are skipped but winners keep their spacing
	if got := FirstNonEmpty("\t", " user-42 "); got != " user-42 " {
		t.Fatalf("FirstNonEmpty = %q", got)
	}
	if got := FirstNonEmpty("header", "context"); got != "header" {
		t.Fatalf("FirstNonEmpty = %q; want header", got)
	}
}
