package trader

import (
	"context"
	"time"

	"coin_rotator/internal/models"
	"coin_rotator/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Reference units every balance is valued in.
const (
	usdReference = "USDT"
	btcReference = "BTC"
)

// UpdateValues snapshots every non-zero balance in both reference units.
// Lookups are read-only and independent, so coins are processed in
// parallel; a failed price lookup is recorded as a null price, a failed
// balance lookup skips the coin for this run.
func (t *Trader) UpdateValues(ctx context.Context) error {
	now := time.Now().UTC()

	coins, err := t.db.Coins(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLookups)
	for _, coin := range coins {
		g.Go(func() error {
			balance, err := t.ex.CurrencyBalance(gctx, coin.Symbol)
			if err != nil {
				logger.Warn("value snapshot: balance of %s unavailable: %v", coin, err)
				return nil
			}
			if balance == 0 {
				return nil
			}

			cv := &models.CoinValue{
				Symbol:  coin.Symbol,
				Balance: balance,
				At:      now,
			}
			if usd, err := t.ex.TickerPrice(gctx, coin.Symbol, usdReference); err == nil {
				cv.USDPrice = &usd
			}
			if btc, err := t.ex.TickerPrice(gctx, coin.Symbol, btcReference); err == nil {
				cv.BTCPrice = &btc
			}
			return t.db.SaveCoinValue(gctx, cv)
		})
	}
	return g.Wait()
}
