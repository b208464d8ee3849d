package models

// Pair is an ordered relation between two distinct coins. Ratio holds the
// reference price ratio (from/to, both quoted in the bridge currency) taken
// the last time the position pointed at To; nil until initialized.
type Pair struct {
	ID    int64
	From  *Coin
	To    *Coin
	Ratio *float64
}

func (p *Pair) String() string { return p.From.Symbol + "/" + p.To.Symbol }

// HasRatio reports whether the pair's threshold has been set.
func (p *Pair) HasRatio() bool { return p.Ratio != nil }
