package helper

import (
	"math"
	"strconv"
	"strings"
)

// FloorToStep rounds qty down to the exchange lot step.
func FloorToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	steps := math.Floor(qty/step + 1e-12)
	return steps * step
}

// CeilToStep rounds qty up to the exchange lot step.
func CeilToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	steps := math.Ceil(qty/step - 1e-12)
	return steps * step
}

// ParseStep parses a filter value like "0.00100000" into a float step.
func ParseStep(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// Symbol joins an asset with the quote currency the way the exchange
// names markets ("BTC"+"USDT" => "BTCUSDT").
func Symbol(asset, quote string) string { return asset + quote }
