package runlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func capture(t *testing.T) *strings.Builder {
	t.Helper()
	var sb strings.Builder
	old := Logf
	SetLogger(func(format string, v ...interface{}) {
		fmt.Fprintf(&sb, format+"\n", v...)
	})
	t.Cleanup(func() { Logf = old })
	return &sb
}

func TestRunSuccess(t *testing.T) {
	sb := capture(t)
	err := Run("align", func() error { return nil })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := sb.String()
	if !strings.Contains(out, "stage align: starting") || !strings.Contains(out, "stage align: done") {
		t.Errorf("transcript missing stage markers:\n%s", out)
	}
}

func TestRunError(t *testing.T) {
	sb := capture(t)
	sentinel := errors.New("mismatched bucket counts")
	err := Run("align", func() error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Fatalf("Run error not wrapped: %v", err)
	}
	if !strings.Contains(sb.String(), "stage align: failed: mismatched bucket counts") {
		t.Errorf("failure not logged:\n%s", sb.String())
	}
}

func TestRunRecoversPanicWithStack(t *testing.T) {
	sb := capture(t)
	err := Run("trend", func() error { panic("singular system") })
	if err == nil {
		t.Fatal("panic not converted to error")
	}
	out := sb.String()
	if !strings.Contains(out, "FATAL in trend: singular system") {
		t.Errorf("panic message missing:\n%s", out)
	}
	if !strings.Contains(out, "stack trace:") || !strings.Contains(out, "goroutine") {
		t.Errorf("stack trace missing:\n%s", out)
	}
}

func TestTranscriptWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	tr, err := NewTranscript(dir)
	if err != nil {
		t.Fatalf("NewTranscript: %v", err)
	}
	Logf("departure colony: %s", "Macquarie Island")
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(tr.Path())
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if !strings.Contains(string(data), "departure colony: Macquarie Island") {
		t.Errorf("transcript missing logged line:\n%s", data)
	}
}
