package trader

import (
	"context"

	"coin_rotator/internal/helper"
	"coin_rotator/internal/models"
	"coin_rotator/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Cap on concurrent per-pair work during bootstrap and value snapshots.
const maxParallelLookups = 10

// InitializeThresholds sets the ratio of every enabled pair that has none
// yet, from a single price snapshot. Idempotent: an already-set ratio is
// never overwritten, so re-running after a partial bootstrap only fills
// the gaps. Pairs whose prices are missing stay unset and are logged.
func (t *Trader) InitializeThresholds(ctx context.Context) error {
	pairs, err := t.db.Pairs(ctx)
	if err != nil {
		return err
	}
	tickers, err := t.ex.AllTickerPrices(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLookups)
	for _, pair := range pairs {
		if pair.HasRatio() {
			continue
		}
		if !pair.From.Enabled || !pair.To.Enabled {
			logger.Info("skipping initialization of %s, coin disabled", pair)
			continue
		}
		g.Go(func() error {
			fromPrice, ok := tickers[helper.Symbol(pair.From.Symbol, t.cfg.Bridge)]
			if !ok {
				logger.Info("skipping initialization, symbol %s%s not found", pair.From, t.cfg.Bridge)
				return nil
			}
			toPrice, ok := tickers[helper.Symbol(pair.To.Symbol, t.cfg.Bridge)]
			if !ok {
				logger.Info("skipping initialization, symbol %s%s not found", pair.To, t.cfg.Bridge)
				return nil
			}
			ratio := fromPrice / toPrice
			if err := t.db.SetPairRatio(gctx, pair.ID, ratio); err != nil {
				return err
			}
			logger.Info("initialized %s with ratio %.8f", pair, ratio)
			return nil
		})
	}
	return g.Wait()
}

// UpdateThresholds recalibrates every pair pointing into the newly held
// coin against its entry price. Runs synchronously inside the jump commit
// so the next scout cycle sees consistent thresholds. Unresolved prices
// leave the existing ratio untouched; failures are logged, never fatal.
func (t *Trader) UpdateThresholds(ctx context.Context, coin *models.Coin, coinPrice float64) {
	if coinPrice <= 0 {
		logger.Info("skipping update... current coin %s%s price unknown", coin, t.cfg.Bridge)
		return
	}
	pairs, err := t.db.PairsTo(ctx, coin.Symbol)
	if err != nil {
		logger.Error("threshold update for %s: %v", coin, err)
		return
	}
	tickers, err := t.ex.AllTickerPrices(ctx)
	if err != nil {
		logger.Error("threshold update for %s: %v", coin, err)
		return
	}

	ratios := make(map[int64]float64, len(pairs))
	for _, pair := range pairs {
		fromPrice, ok := tickers[helper.Symbol(pair.From.Symbol, t.cfg.Bridge)]
		if !ok {
			logger.Info("skipping update for coin %s%s not found", pair.From, t.cfg.Bridge)
			continue
		}
		ratios[pair.ID] = fromPrice / coinPrice
	}
	if err := t.db.UpdateRatios(ctx, ratios); err != nil {
		logger.Error("threshold update for %s: %v", coin, err)
	}
}
