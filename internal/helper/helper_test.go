package helper

import (
	"math"
	"testing"
)

func TestFloorToStep(t *testing.T) {
	tests := []struct {
		qty, step, want float64
	}{
		{1.23456, 0.001, 1.234},
		{1.23456, 0.01, 1.23},
		{0.9999, 1, 0},
		{5, 0, 5}, // no step constraint
		{10, 0.1, 10},
	}
	for _, tc := range tests {
		if got := FloorToStep(tc.qty, tc.step); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("FloorToStep(%v, %v) = %v, want %v", tc.qty, tc.step, got, tc.want)
		}
	}
}

func TestCeilToStep(t *testing.T) {
	tests := []struct {
		qty, step, want float64
	}{
		{1.2301, 0.01, 1.24},
		{1.23, 0.01, 1.23},
		{5, 0, 5},
	}
	for _, tc := range tests {
		if got := CeilToStep(tc.qty, tc.step); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("CeilToStep(%v, %v) = %v, want %v", tc.qty, tc.step, got, tc.want)
		}
	}
}

func TestParseStep(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"0.00100000", 0.001},
		{"10.00000000", 10},
		{"", 0},
		{"garbage", 0},
	}
	for _, tc := range tests {
		if got := ParseStep(tc.raw); got != tc.want {
			t.Errorf("ParseStep(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestSymbol(t *testing.T) {
	if got := Symbol("BTC", "USDT"); got != "BTCUSDT" {
		t.Errorf("Symbol = %q, want BTCUSDT", got)
	}
}
