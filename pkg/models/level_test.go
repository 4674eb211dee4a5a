package models

import (
	"errors"
	"testing"
)

func TestValidateMonthlyHelperDay(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		day     int
		wantErr bool
	}{
		{"enabled day 1", true, 1, false},
		{"enabled day 31", true, 31, false},
		{"enabled day 0", true, 0, true},
		{"disabled day 0", false, 0, false},
		{"day 32", false, 32, true},
		{"negative day", true, -1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultLevelConfig("g1")
			cfg.MonthlyHelper.Enabled = tt.enabled
			cfg.MonthlyHelper.DayOfMonth = tt.day

			err := cfg.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}
