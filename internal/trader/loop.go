package trader

import (
	"context"
	"time"

	"coin_rotator/pkg/logger"
)

// Cadences besides scouting, matching the bot's housekeeping schedule.
const (
	bridgeScoutEvery = time.Minute
	valueSnapEvery   = time.Minute
	scoutPruneEvery  = time.Minute
	valuePruneEvery  = time.Hour
)

// Run drives the scout, bridge-scout, value-tracker and pruning cadences
// until ctx is cancelled. All position mutation happens on this goroutine,
// so cycles never overlap a trade execution.
func (t *Trader) Run(ctx context.Context) {
	scoutTicker := time.NewTicker(t.cfg.ScoutSleepTime)
	bridgeTicker := time.NewTicker(bridgeScoutEvery)
	valueTicker := time.NewTicker(valueSnapEvery)
	scoutPrune := time.NewTicker(scoutPruneEvery)
	valuePrune := time.NewTicker(valuePruneEvery)
	defer func() {
		scoutTicker.Stop()
		bridgeTicker.Stop()
		valueTicker.Stop()
		scoutPrune.Stop()
		valuePrune.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-scoutTicker.C:
			if err := t.Scout(ctx); err != nil {
				logger.Error("scout cycle failed: %v", err)
			}

		case <-bridgeTicker.C:
			coin, err := t.BridgeScout(ctx)
			if err != nil {
				logger.Error("bridge scout failed: %v", err)
				continue
			}
			if coin != nil {
				if err := t.db.SetCurrentCoin(ctx, coin.Symbol); err != nil {
					logger.Error("persisting bridge scout buy of %s: %v", coin, err)
					continue
				}
				t.n.Sendf("bought %s with idle bridge balance", coin)
			}

		case <-valueTicker.C:
			if err := t.UpdateValues(ctx); err != nil {
				logger.Error("value snapshot failed: %v", err)
			}

		case <-scoutPrune.C:
			if err := t.db.PruneScoutHistory(ctx, t.cfg.ScoutHistoryPruneAge); err != nil {
				logger.Error("pruning scout history: %v", err)
			}

		case <-valuePrune.C:
			if err := t.db.PruneValueHistory(ctx, t.cfg.ValueHistoryPruneAge); err != nil {
				logger.Error("pruning value history: %v", err)
			}
		}
	}
}
