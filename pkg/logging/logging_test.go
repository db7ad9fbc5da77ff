package logging

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestWarnErrIncludesErrorAndFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })

	WarnErr("version check failed", errors.New("timeout"), "url", "https://example.invalid")

	out := buf.String()
	for _, want := range []string{"level=WARN", "version check failed", "error=timeout", "url=https://example.invalid"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}

func TestDebugHiddenUnlessVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetVerbose(false)
	})

	Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug output written at default level: %q", buf.String())
	}

	SetVerbose(true)
	Debug("shown", "op", "add")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("debug output missing after SetVerbose(true): %q", buf.String())
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetVerbose(false)
	})

	if err := SetLevel("info"); err != nil {
		t.Fatalf("SetLevel(info): %v", err)
	}
	Info("visible")
	Debug("invisible")
	out := buf.String()
	if !strings.Contains(out, "visible") || strings.Contains(out, "invisible") {
		t.Errorf("unexpected output at info level: %q", out)
	}

	if err := SetLevel("loud"); err == nil {
		t.Error("SetLevel accepted an unknown level")
	}
}
