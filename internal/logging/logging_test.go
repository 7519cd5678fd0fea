package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	t.Parallel()

	logger, err := New("warn", "json")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("warn should be enabled")
	}

	if _, err := New("debug", ""); err != nil {
		t.Fatalf("console logger: %v", err)
	}
}

func TestNew_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := New("loud", "console"); err == nil {
		t.Fatalf("want error for unknown level")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Fatalf("want error for unknown format")
	}
}
