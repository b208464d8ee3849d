package models

import "time"

// ScoutEvent is an append-only audit record of one pair evaluation:
// the stored threshold and both fresh bridge prices at that instant.
type ScoutEvent struct {
	ID           int64
	PairID       int64
	TargetRatio  float64
	CurrentPrice float64
	OtherPrice   float64
	At           time.Time
}

// CoinValue is one value-tracker snapshot of a non-zero balance,
// converted to the two reference units. Prices are nil when the
// corresponding ticker lookup failed.
type CoinValue struct {
	ID       int64
	Symbol   string
	Balance  float64
	USDPrice *float64
	BTCPrice *float64
	At       time.Time
}
