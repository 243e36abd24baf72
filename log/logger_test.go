package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	specs := []struct {
		in     string
		exp    Level
		expErr bool
	}{
		{"debug", Debug, false},
		{"INFO", Info, false},
		{"", Notice, false},
		{"warn", Warning, false},
		{"error", Error, false},
		{"loud", Notice, true},
	}

	for specIndex, spec := range specs {
		level, err := ParseLevel(spec.in)
		if spec.expErr != (err != nil) {
			t.Fatalf("[spec %d] expected error %t; got %v", specIndex, spec.expErr, err)
		}
		if level != spec.exp {
			t.Fatalf("[spec %d] expected level %d; got %d", specIndex, spec.exp, level)
		}
	}
}

func TestSinkAndLevel(t *testing.T) {
	var buf bytes.Buffer
	SetSink(&buf)
	defer func() {
		SetSink(os.Stdout)
		SetLevel(Notice)
	}()
	SetLevel(Warning)

	logger := New("test")
	logger.Info("hidden")
	logger.Warning("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected info message to be filtered; got %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "[test]") {
		t.Fatalf("expected warning tagged with module; got %q", out)
	}
}
