package trader

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"coin_rotator/internal/models"
	"coin_rotator/internal/modules/config"
	"coin_rotator/internal/notify"
	"coin_rotator/pkg/logger"

	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.InfoLogger = zap.NewNop()
	logger.FatalLogger = zap.NewNop()
	os.Exit(m.Run())
}

var errUnavailable = errors.New("unavailable")

type fakeExchange struct {
	mu          sync.Mutex
	balances    map[string]float64
	prices      map[string]float64 // market symbol -> last price
	fees        map[string]float64 // market symbol -> taker fee
	minNotional map[string]float64

	sellErr error
	buyErr  error
	sells   []string
	buys    []string
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		balances:    make(map[string]float64),
		prices:      make(map[string]float64),
		fees:        make(map[string]float64),
		minNotional: make(map[string]float64),
	}
}

func (f *fakeExchange) CurrencyBalance(_ context.Context, asset string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[asset], nil
}

func (f *fakeExchange) TickerPrice(_ context.Context, asset, quote string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prices[asset+quote]
	if !ok {
		return 0, errUnavailable
	}
	return p, nil
}

func (f *fakeExchange) AllTickerPrices(context.Context) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]float64, len(f.prices))
	for k, v := range f.prices {
		out[k] = v
	}
	return out, nil
}

func (f *fakeExchange) MinNotional(_ context.Context, asset, quote string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.minNotional[asset+quote], nil
}

func (f *fakeExchange) Fee(_ context.Context, asset, quote string, _ bool) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fees[asset+quote], nil
}

func (f *fakeExchange) SellAll(_ context.Context, asset, quote string) (*models.TradeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sellErr != nil {
		return nil, f.sellErr
	}
	qty := f.balances[asset]
	price := f.prices[asset+quote]
	f.balances[quote] += qty * price
	f.balances[asset] = 0
	f.sells = append(f.sells, asset)
	return &models.TradeResult{Symbol: asset + quote, Side: "SELL", Price: price, Quantity: qty}, nil
}

func (f *fakeExchange) Buy(_ context.Context, asset, quote string) (*models.TradeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buyErr != nil {
		return nil, f.buyErr
	}
	price := f.prices[asset+quote]
	qty := f.balances[quote] / price
	f.balances[asset] += qty
	f.balances[quote] = 0
	f.buys = append(f.buys, asset)
	return &models.TradeResult{Symbol: asset + quote, Side: "BUY", Price: price, Quantity: qty}, nil
}

type fakeStore struct {
	mu      sync.Mutex
	coins   []*models.Coin
	pairs   []*models.Pair
	current *models.Coin
	scouts  []*models.ScoutEvent
	values  []*models.CoinValue
}

func (s *fakeStore) SetCoins(_ context.Context, symbols []string) error {
	for _, sym := range symbols {
		if s.coin(sym) == nil {
			s.coins = append(s.coins, &models.Coin{Symbol: sym, Enabled: true})
		}
	}
	return nil
}

func (s *fakeStore) coin(symbol string) *models.Coin {
	for _, c := range s.coins {
		if c.Symbol == symbol {
			return c
		}
	}
	return nil
}

func (s *fakeStore) Coins(context.Context) ([]*models.Coin, error) { return s.coins, nil }

func (s *fakeStore) Pairs(context.Context) ([]*models.Pair, error) { return s.pairs, nil }

func (s *fakeStore) PairsFrom(_ context.Context, symbol string) ([]*models.Pair, error) {
	var out []*models.Pair
	for _, p := range s.pairs {
		if p.From.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) PairsTo(_ context.Context, symbol string) ([]*models.Pair, error) {
	var out []*models.Pair
	for _, p := range s.pairs {
		if p.To.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) SetPairRatio(_ context.Context, pairID int64, ratio float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pairs {
		if p.ID == pairID {
			p.Ratio = &ratio
		}
	}
	return nil
}

func (s *fakeStore) UpdateRatios(ctx context.Context, ratios map[int64]float64) error {
	for id, r := range ratios {
		if err := s.SetPairRatio(ctx, id, r); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeStore) CurrentCoin(context.Context) (*models.Coin, error) { return s.current, nil }

func (s *fakeStore) SetCurrentCoin(_ context.Context, symbol string) error {
	if c := s.coin(symbol); c != nil {
		s.current = c
		return nil
	}
	s.current = &models.Coin{Symbol: symbol, Enabled: true}
	return nil
}

func (s *fakeStore) LogScout(_ context.Context, ev *models.ScoutEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scouts = append(s.scouts, ev)
	return nil
}

func (s *fakeStore) SaveCoinValue(_ context.Context, cv *models.CoinValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, cv)
	return nil
}

func (s *fakeStore) PruneScoutHistory(context.Context, time.Duration) error { return nil }
func (s *fakeStore) PruneValueHistory(context.Context, time.Duration) error { return nil }

func ratio(v float64) *float64 { return &v }

func coin(symbol string) *models.Coin { return &models.Coin{Symbol: symbol, Enabled: true} }

func pair(id int64, from, to *models.Coin, r *float64) *models.Pair {
	return &models.Pair{ID: id, From: from, To: to, Ratio: r}
}

func testConfig() *config.Config {
	cfg := &config.Config{
		Bridge:          "USDT",
		SupportedCoins:  []string{"XXX", "YYY", "ZZZ"},
		ScoutMultiplier: 5,
		ScoutMarginPct:  5,
	}
	return cfg
}

func newTestTrader(cfg *config.Config, ex Exchange, st Store) *Trader {
	return New(cfg, ex, st, notify.NewStdout())
}

func TestInitializeCurrentCoin(t *testing.T) {
	t.Run("configured coin is pinned without a purchase", func(t *testing.T) {
		cfg := testConfig()
		cfg.CurrentCoin = "YYY"
		ex := newFakeExchange()
		st := &fakeStore{coins: []*models.Coin{coin("XXX"), coin("YYY")}}

		tr := newTestTrader(cfg, ex, st)
		if err := tr.initializeCurrentCoin(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if st.current == nil || st.current.Symbol != "YYY" {
			t.Fatalf("current coin = %v, want YYY", st.current)
		}
		if len(ex.buys) != 0 {
			t.Fatalf("no purchase expected for a configured coin, got %v", ex.buys)
		}
	})

	t.Run("unsupported configured coin is fatal", func(t *testing.T) {
		cfg := testConfig()
		cfg.CurrentCoin = "NOPE"
		tr := newTestTrader(cfg, newFakeExchange(), &fakeStore{})
		if err := tr.initializeCurrentCoin(context.Background()); err == nil {
			t.Fatal("expected error for unsupported initial coin")
		}
	})

	t.Run("random pick buys the starting coin", func(t *testing.T) {
		cfg := testConfig()
		ex := newFakeExchange()
		for _, sym := range cfg.SupportedCoins {
			ex.prices[sym+"USDT"] = 10
		}
		ex.balances["USDT"] = 100
		st := &fakeStore{coins: []*models.Coin{coin("XXX"), coin("YYY"), coin("ZZZ")}}

		tr := newTestTrader(cfg, ex, st)
		if err := tr.initializeCurrentCoin(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if st.current == nil {
			t.Fatal("current coin not set")
		}
		if len(ex.buys) != 1 || ex.buys[0] != st.current.Symbol {
			t.Fatalf("expected one purchase of %s, got %v", st.current.Symbol, ex.buys)
		}
	})

	t.Run("existing position is resumed untouched", func(t *testing.T) {
		cfg := testConfig()
		ex := newFakeExchange()
		held := coin("ZZZ")
		st := &fakeStore{coins: []*models.Coin{held}, current: held}

		tr := newTestTrader(cfg, ex, st)
		if err := tr.initializeCurrentCoin(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if st.current != held {
			t.Fatal("held coin changed during resume")
		}
		if len(ex.buys) != 0 {
			t.Fatalf("no purchase expected on resume, got %v", ex.buys)
		}
	})
}
