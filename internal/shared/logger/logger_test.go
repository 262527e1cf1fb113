package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		level   string
		enabled zapcore.Level
		wantErr bool
	}{
		{"local defaults to debug", "local", "", zapcore.DebugLevel, false},
		{"prod defaults to info", "prod", "", zapcore.InfoLevel, false},
		{"explicit level", "prod", "warn", zapcore.WarnLevel, false},
		{"invalid level", "prod", "loud", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New("bet-service", tt.env, tt.level)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			core := l.Core()
			if !core.Enabled(tt.enabled) {
				t.Errorf("%s should be enabled", tt.enabled)
			}
			if tt.enabled > zapcore.DebugLevel && core.Enabled(tt.enabled-1) {
				t.Errorf("%s should be disabled", tt.enabled-1)
			}
		})
	}
}
