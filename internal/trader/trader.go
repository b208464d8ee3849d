package trader

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"coin_rotator/internal/helper"
	"coin_rotator/internal/models"
	"coin_rotator/internal/modules/config"
	"coin_rotator/internal/notify"
	"coin_rotator/pkg/logger"

	"github.com/opentracing/opentracing-go"
)

// Exchange is the connectivity surface the trader consumes. All calls are
// synchronous and may fail; per-asset failures are never fatal to a cycle.
type Exchange interface {
	CurrencyBalance(ctx context.Context, asset string) (float64, error)
	TickerPrice(ctx context.Context, asset, quote string) (float64, error)
	AllTickerPrices(ctx context.Context) (map[string]float64, error)
	MinNotional(ctx context.Context, asset, quote string) (float64, error)
	Fee(ctx context.Context, asset, quote string, buying bool) (float64, error)
	SellAll(ctx context.Context, asset, quote string) (*models.TradeResult, error)
	Buy(ctx context.Context, asset, quote string) (*models.TradeResult, error)
}

// Store is the durable position store consumed by the trader.
type Store interface {
	SetCoins(ctx context.Context, symbols []string) error
	Coins(ctx context.Context) ([]*models.Coin, error)
	Pairs(ctx context.Context) ([]*models.Pair, error)
	PairsFrom(ctx context.Context, symbol string) ([]*models.Pair, error)
	PairsTo(ctx context.Context, symbol string) ([]*models.Pair, error)
	SetPairRatio(ctx context.Context, pairID int64, ratio float64) error
	UpdateRatios(ctx context.Context, ratios map[int64]float64) error
	CurrentCoin(ctx context.Context) (*models.Coin, error)
	SetCurrentCoin(ctx context.Context, symbol string) error
	LogScout(ctx context.Context, ev *models.ScoutEvent) error
	SaveCoinValue(ctx context.Context, cv *models.CoinValue) error
	PruneScoutHistory(ctx context.Context, olderThan time.Duration) error
	PruneValueHistory(ctx context.Context, olderThan time.Duration) error
}

// Trader rotates a single held position between configured coins through
// the bridge currency.
type Trader struct {
	cfg *config.Config
	ex  Exchange
	db  Store
	n   notify.Notifier

	execMu sync.Mutex // at most one in-flight bridge transaction
}

func New(cfg *config.Config, ex Exchange, store Store, n notify.Notifier) *Trader {
	return &Trader{
		cfg: cfg,
		ex:  ex,
		db:  store,
		n:   n,
	}
}

// Initialize syncs the coin list, bootstraps missing thresholds and pins
// the starting coin. Must complete before the first scout cycle.
func (t *Trader) Initialize(ctx context.Context) error {
	if err := t.db.SetCoins(ctx, t.cfg.SupportedCoins); err != nil {
		return err
	}
	if err := t.InitializeThresholds(ctx); err != nil {
		return err
	}
	if err := t.initializeCurrentCoin(ctx); err != nil {
		return err
	}
	t.n.Sendf("started, bridge=%s coins=%v", t.cfg.Bridge, t.cfg.SupportedCoins)
	return nil
}

func (t *Trader) initializeCurrentCoin(ctx context.Context) error {
	current, err := t.db.CurrentCoin(ctx)
	if err != nil {
		return err
	}
	if current != nil {
		logger.Info("resuming with held coin %s", current)
		return nil
	}

	symbol := t.cfg.CurrentCoin
	randomPick := symbol == ""
	if randomPick {
		symbol = t.cfg.SupportedCoins[rand.IntN(len(t.cfg.SupportedCoins))]
	}
	if !t.cfg.Supported(symbol) {
		// process must not proceed with an undefined held position
		return fmt.Errorf("configured initial coin %s is not in the supported list", symbol)
	}

	logger.Info("setting initial coin to %s", symbol)
	if err := t.db.SetCurrentCoin(ctx, symbol); err != nil {
		return err
	}

	if randomPick {
		logger.Info("purchasing %s to begin trading", symbol)
		if _, err := t.ex.Buy(ctx, symbol, t.cfg.Bridge); err != nil {
			return fmt.Errorf("initial purchase of %s: %w", symbol, err)
		}
		logger.Info("ready to start trading")
	}
	return nil
}

// Scout runs one evaluation cycle: snapshot prices once, score every
// counterpart of the held coin and jump when one is worth it.
func (t *Trader) Scout(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "scout")
	defer span.Finish()

	current, err := t.db.CurrentCoin(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("scout invoked with no held coin")
	}

	tickers, err := t.ex.AllTickerPrices(ctx)
	if err != nil {
		logger.Warn("skipping scouting... ticker snapshot unavailable: %v", err)
		return nil
	}

	coinPrice, ok := tickers[helper.Symbol(current.Symbol, t.cfg.Bridge)]
	if !ok {
		logger.Info("skipping scouting... current coin %s%s not found", current, t.cfg.Bridge)
		return nil
	}

	t.jumpToBestCoin(ctx, current, coinPrice, tickers)
	return nil
}
