package metrics

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatEuro(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0.00 €"},
		{"800", "800.00 €"},
		{"1000", "1,000.00 €"},
		{"1234567.891", "1,234,567.89 €"},
		{"-200.5", "-200.50 €"},
		{"-0.001", "0.00 €"},
		{"999999.999", "1,000,000.00 €"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := FormatEuro(decimal.RequireFromString(tt.in)); got != tt.want {
				t.Errorf("FormatEuro(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
