package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level   string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"WARN", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"chatty", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, atom, err := New(tt.level)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if atom.Level() != tt.want {
				t.Errorf("level = %v, want %v", atom.Level(), tt.want)
			}
			if !logger.Core().Enabled(tt.want) {
				t.Errorf("logger not enabled at %v", tt.want)
			}
		})
	}
}

func TestNew_AtomicLevelIsLive(t *testing.T) {
	logger, atom, err := New("error")
	if err != nil {
		t.Fatal(err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info enabled at error level")
	}
	atom.SetLevel(zapcore.DebugLevel)
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("SetLevel did not take effect")
	}
}

func TestNamed_Nil(t *testing.T) {
	l := Named(nil, "api")
	if l == nil {
		t.Fatal("Named(nil) returned nil")
	}
	l.Info("discarded")
}
