package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestStandardLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(
		WithOutput(&buf),
		WithLevel(LevelDebug),
	)

	for _, tc := range []struct {
		log   func(string, ...interface{})
		level string
	}{
		{logger.Debug, "[DEBUG]"},
		{logger.Info, "[INFO]"},
		{logger.Warn, "[WARN]"},
		{logger.Error, "[ERROR]"},
	} {
		tc.log("block %d loaded", 7)
		if !strings.Contains(buf.String(), tc.level) || !strings.Contains(buf.String(), "block 7 loaded") {
			t.Errorf("Expected %s line, got: %s", tc.level, buf.String())
		}
		buf.Reset()
	}

	logger.SetLevel(LevelError)
	logger.Info("This info message should not appear")
	logger.Error("This error message should appear")
	output := buf.String()
	if strings.Contains(output, "should not appear") || !strings.Contains(output, "should appear") {
		t.Errorf("Level filtering failed, got: %s", output)
	}
	if logger.GetLevel() != LevelError {
		t.Errorf("GetLevel failed, expected LevelError, got: %v", logger.GetLevel())
	}
}

func TestFieldsAreSorted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(
		WithOutput(&buf),
		WithInitialFields(map[string]interface{}{"component": "matrix"}),
	)

	logger.WithFields(map[string]interface{}{
		"block_row": 2,
		"block_col": 3,
	}).Error("Failed to load block")

	output := buf.String()
	want := " block_col=3 block_row=2 component=matrix Failed to load block"
	if !strings.Contains(output, want) {
		t.Errorf("Expected %q in output, got: %s", want, output)
	}
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewStandardLogger(WithOutput(&buf))
	parent.WithField("source", "mmap").Info("child")
	buf.Reset()

	parent.Info("parent")
	if strings.Contains(buf.String(), "source=") {
		t.Errorf("Parent logger picked up child fields: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"":        LevelInfo,
		"Info":    LevelInfo,
		"warning": LevelWarn,
		"ERROR":   LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Errorf("Expected an error for an unknown level")
	}
}

func TestDefaultLogger(t *testing.T) {
	originalLogger := defaultLogger
	defer func() {
		defaultLogger = originalLogger
	}()

	var buf bytes.Buffer
	SetDefaultLogger(NewStandardLogger(
		WithOutput(&buf),
		WithLevel(LevelInfo),
	))

	WithField("global", true).Info("Global with field")
	output := buf.String()
	if !strings.Contains(output, "[INFO]") || !strings.Contains(output, "global=true") {
		t.Errorf("Global logging with field failed, got: %s", output)
	}
}
