package trader

import (
	"context"

	"coin_rotator/internal/helper"
	"coin_rotator/internal/models"
	"coin_rotator/pkg/logger"
)

// BridgeScout deploys idle bridge balance when the held position has
// effectively been liquidated (balance under its minimum notional). It
// buys the first enabled coin that looks like a local optimum: no pair
// out of it scores positive, meaning nothing is currently a better hold.
// The caller persists the returned coin as the new held position.
func (t *Trader) BridgeScout(ctx context.Context) (*models.Coin, error) {
	current, err := t.db.CurrentCoin(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}

	heldBalance, err := t.ex.CurrencyBalance(ctx, current.Symbol)
	if err != nil {
		return nil, err
	}
	heldMin, err := t.ex.MinNotional(ctx, current.Symbol, t.cfg.Bridge)
	if err != nil {
		return nil, err
	}
	if heldBalance > heldMin {
		// still rotating a real position, don't touch bridge funds
		return nil, nil
	}

	bridgeBalance, err := t.ex.CurrencyBalance(ctx, t.cfg.Bridge)
	if err != nil {
		return nil, err
	}
	tickers, err := t.ex.AllTickerPrices(ctx)
	if err != nil {
		return nil, err
	}
	coins, err := t.db.Coins(ctx)
	if err != nil {
		return nil, err
	}

	for _, coin := range coins {
		if !coin.Enabled {
			continue
		}
		price, ok := tickers[helper.Symbol(coin.Symbol, t.cfg.Bridge)]
		if !ok {
			continue
		}

		scored, err := t.computeRatios(ctx, coin, price, tickers)
		if err != nil {
			return nil, err
		}
		positive := false
		for _, sp := range scored {
			if sp.Score > 0 {
				positive = true
				break
			}
		}
		if positive {
			continue
		}

		minNotional, err := t.ex.MinNotional(ctx, coin.Symbol, t.cfg.Bridge)
		if err != nil {
			logger.Warn("bridge scout: min notional for %s unavailable: %v", coin, err)
			continue
		}
		if bridgeBalance <= minNotional {
			continue
		}

		logger.Info("will be buying %s using bridge coin", coin)
		if _, err := t.ex.Buy(ctx, coin.Symbol, t.cfg.Bridge); err != nil {
			logger.Info("couldn't buy %s with bridge coin: %v", coin, err)
			return nil, nil
		}
		return coin, nil
	}
	return nil, nil
}
