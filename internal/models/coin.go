package models

// Coin is a tradeable asset. The enabled flag is maintained by the
// startup coin-list sync; disabled coins are skipped everywhere.
type Coin struct {
	Symbol  string
	Enabled bool
}

func (c *Coin) String() string { return c.Symbol }
