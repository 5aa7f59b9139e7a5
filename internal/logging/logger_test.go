package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		env, level string
		probe      zapcore.Level
		want       bool
	}{
		{"production", "error", zap.WarnLevel, false},
		{"production", "debug", zap.DebugLevel, true},
		{"development", "warn", zap.InfoLevel, false},
		{"development", "", zap.DebugLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			logger, err := New(tt.env, tt.level)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := logger.Core().Enabled(tt.probe); got != tt.want {
				t.Errorf("Enabled(%s) = %v, want %v", tt.probe, got, tt.want)
			}
		})
	}
}
