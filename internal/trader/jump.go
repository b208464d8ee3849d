package trader

import (
	"context"

	"coin_rotator/internal/models"
	"coin_rotator/pkg/logger"

	"github.com/opentracing/opentracing-go"
)

// jumpToBestCoin picks the strictly-positive top scorer and executes the
// jump. Ties break to the first pair in store enumeration order (pair id).
func (t *Trader) jumpToBestCoin(ctx context.Context, coin *models.Coin, coinPrice float64, tickers map[string]float64) {
	scored, err := t.computeRatios(ctx, coin, coinPrice, tickers)
	if err != nil {
		logger.Error("ratio computation failed for %s: %v", coin, err)
		return
	}

	var best *ScoredPair
	for i := range scored {
		if scored[i].Score <= 0 {
			continue
		}
		if best == nil || scored[i].Score > best.Score {
			best = &scored[i]
		}
	}
	if best == nil {
		return
	}

	logger.Info("will be jumping from %s to %s (score %.6f)", coin, best.Pair.To, best.Score)
	if _, err := t.TransactionThroughBridge(ctx, best.Pair); err != nil {
		logger.Error("jump %s failed: %v", best.Pair, err)
	}
}

// TransactionThroughBridge executes the two-leg jump: sell the source coin
// into the bridge, buy the destination with the proceeds. Single-flight.
//
// Returns (nil, nil) when the jump was abandoned without changing the held
// position: a failed sell leg, or a failed buy leg under the single-attempt
// policy (the next cycle re-scouts; an already-placed sell is a documented
// side effect, not rolled back). The held coin is committed only after the
// buy leg is confirmed, with thresholds recalibrated before returning.
func (t *Trader) TransactionThroughBridge(ctx context.Context, pair *models.Pair) (*models.TradeResult, error) {
	t.execMu.Lock()
	defer t.execMu.Unlock()

	span, ctx := opentracing.StartSpanFromContext(ctx, "jump")
	defer span.Finish()

	bridge := t.cfg.Bridge

	canSell := false
	balance, err := t.ex.CurrencyBalance(ctx, pair.From.Symbol)
	if err != nil {
		return nil, err
	}
	fromPrice, err := t.ex.TickerPrice(ctx, pair.From.Symbol, bridge)
	if err != nil {
		return nil, err
	}
	minNotional, err := t.ex.MinNotional(ctx, pair.From.Symbol, bridge)
	if err != nil {
		return nil, err
	}
	if balance*fromPrice > minNotional {
		canSell = true
	} else {
		logger.Info("skipping sell of %s, balance %.8f below min notional", pair.From, balance)
	}

	if canSell {
		if _, err := t.ex.SellAll(ctx, pair.From.Symbol, bridge); err != nil {
			logger.Info("couldn't sell %s, going back to scouting mode: %v", pair.From, err)
			return nil, nil
		}
	}

	result, err := t.ex.Buy(ctx, pair.To.Symbol, bridge)
	if err != nil {
		logger.Info("couldn't buy %s, going back to scouting mode: %v", pair.To, err)
		return nil, nil
	}

	// Commit. A persistence failure here is unrecoverable: the position on
	// the exchange and the stored position must not diverge.
	if err := t.db.SetCurrentCoin(ctx, pair.To.Symbol); err != nil {
		return nil, err
	}
	t.UpdateThresholds(ctx, pair.To, result.Price)

	t.n.Sendf("jumped %s -> %s @ %.8f %s", pair.From, pair.To, result.Price, bridge)
	return result, nil
}
