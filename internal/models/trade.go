package models

// TradeResult describes a filled order.
type TradeResult struct {
	Symbol   string
	Side     string // BUY/SELL
	Price    float64
	Quantity float64
}
