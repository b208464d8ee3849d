package trader

import (
	"context"
	"time"

	"coin_rotator/internal/helper"
	"coin_rotator/internal/models"
	"coin_rotator/pkg/logger"
)

// ScoredPair couples a candidate pair with its fee-adjusted score. Scores
// above zero mean the destination got relatively cheaper by more than the
// round-trip cost.
type ScoredPair struct {
	Pair  *models.Pair
	Score float64
}

// composeFee combines the two legs' fees sequentially: the second fee is
// assessed on an amount already reduced by the first.
func composeFee(feeFrom, feeTo float64) float64 {
	return feeFrom + feeTo - feeFrom*feeTo
}

// computeRatios scores every enabled counterpart of coin against the given
// price snapshot. Each evaluated pair is logged to scout history before
// scoring so the audit trail covers discarded candidates too. Pairs whose
// price or fee is unavailable this cycle are skipped, not failed.
func (t *Trader) computeRatios(
	ctx context.Context,
	coin *models.Coin,
	coinPrice float64,
	tickers map[string]float64,
) ([]ScoredPair, error) {
	pairs, err := t.db.PairsFrom(ctx, coin.Symbol)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredPair, 0, len(pairs))
	for _, pair := range pairs {
		if !pair.To.Enabled {
			continue
		}
		if !pair.HasRatio() {
			// the threshold initializer runs before the first scout
			logger.Error("pair %s has no threshold, skipping (initializer must run first)", pair)
			continue
		}

		optPrice, ok := tickers[helper.Symbol(pair.To.Symbol, t.cfg.Bridge)]
		if !ok {
			logger.Info("skipping scouting... optional coin %s%s not found", pair.To, t.cfg.Bridge)
			continue
		}

		ev := &models.ScoutEvent{
			PairID:       pair.ID,
			TargetRatio:  *pair.Ratio,
			CurrentPrice: coinPrice,
			OtherPrice:   optPrice,
			At:           time.Now().UTC(),
		}
		if err := t.db.LogScout(ctx, ev); err != nil {
			logger.Warn("scout history append failed for %s: %v", pair, err)
		}

		feeFrom, err := t.ex.Fee(ctx, pair.From.Symbol, t.cfg.Bridge, true)
		if err != nil {
			logger.Info("skipping %s, sell fee unavailable: %v", pair, err)
			continue
		}
		feeTo, err := t.ex.Fee(ctx, pair.To.Symbol, t.cfg.Bridge, false)
		if err != nil {
			logger.Info("skipping %s, buy fee unavailable: %v", pair, err)
			continue
		}
		fee := composeFee(feeFrom, feeTo)

		// (current coin)/(optional coin) at the bridge quote
		cross := coinPrice / optPrice

		var score float64
		if t.cfg.UseMargin {
			score = (1-fee)*cross/(*pair.Ratio) - 1 - t.cfg.ScoutMarginPct/100
		} else {
			score = cross - fee*t.cfg.ScoutMultiplier*cross - *pair.Ratio
		}
		scored = append(scored, ScoredPair{Pair: pair, Score: score})
	}
	return scored, nil
}
