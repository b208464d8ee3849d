package trader

import (
	"context"
	"math"
	"testing"

	"coin_rotator/internal/models"
)

func TestComposeFee(t *testing.T) {
	if got := composeFee(0, 0); got != 0 {
		t.Fatalf("composeFee(0,0) = %v, want 0", got)
	}

	// sequential composition, not plain addition
	if got, want := composeFee(0.001, 0.001), 0.001+0.001-0.001*0.001; math.Abs(got-want) > 1e-12 {
		t.Fatalf("composeFee(0.001,0.001) = %v, want %v", got, want)
	}

	// monotonically non-decreasing in each argument
	steps := []float64{0, 0.0005, 0.001, 0.01, 0.1, 0.5}
	for _, fixed := range steps {
		prev := -1.0
		for _, v := range steps {
			if got := composeFee(fixed, v); got < prev {
				t.Fatalf("composeFee(%v,%v) = %v decreased below %v", fixed, v, got, prev)
			} else {
				prev = got
			}
		}
		prev = -1.0
		for _, v := range steps {
			if got := composeFee(v, fixed); got < prev {
				t.Fatalf("composeFee(%v,%v) = %v decreased below %v", v, fixed, got, prev)
			} else {
				prev = got
			}
		}
	}
}

func TestComputeRatiosMultiplierMode(t *testing.T) {
	held := coin("XXX")
	other := coin("YYY")

	tests := []struct {
		name        string
		storedRatio float64
		wantScore   float64
	}{
		// cross = 10/8 = 1.25, zero fees
		{"favorable drift", 1.0, 0.25},
		{"unfavorable drift", 1.3, -0.05},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			ex := newFakeExchange()
			ex.prices["XXXUSDT"] = 10
			ex.prices["YYYUSDT"] = 8
			st := &fakeStore{
				coins: []*models.Coin{held, other},
				pairs: []*models.Pair{pair(1, held, other, ratio(tc.storedRatio))},
			}
			tr := newTestTrader(cfg, ex, st)

			tickers, _ := ex.AllTickerPrices(context.Background())
			scored, err := tr.computeRatios(context.Background(), held, 10, tickers)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(scored) != 1 {
				t.Fatalf("len(scored) = %d, want 1", len(scored))
			}
			if math.Abs(scored[0].Score-tc.wantScore) > 1e-9 {
				t.Fatalf("score = %v, want %v", scored[0].Score, tc.wantScore)
			}
		})
	}
}

func TestComputeRatiosMarginMode(t *testing.T) {
	held := coin("XXX")
	other := coin("YYY")

	cfg := testConfig()
	cfg.UseMargin = true
	cfg.ScoutMarginPct = 5
	ex := newFakeExchange()
	ex.prices["XXXUSDT"] = 10
	ex.prices["YYYUSDT"] = 8
	st := &fakeStore{
		coins: []*models.Coin{held, other},
		pairs: []*models.Pair{pair(1, held, other, ratio(1.0))},
	}
	tr := newTestTrader(cfg, ex, st)

	tickers, _ := ex.AllTickerPrices(context.Background())
	scored, err := tr.computeRatios(context.Background(), held, 10, tickers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// (1-0)*1.25/1.0 - 1 - 0.05 = 0.2
	if len(scored) != 1 || math.Abs(scored[0].Score-0.2) > 1e-9 {
		t.Fatalf("scored = %+v, want single score 0.2", scored)
	}
}

func TestComputeRatiosDeterminism(t *testing.T) {
	held := coin("XXX")
	a, b := coin("YYY"), coin("ZZZ")

	cfg := testConfig()
	ex := newFakeExchange()
	ex.prices["XXXUSDT"] = 10
	ex.prices["YYYUSDT"] = 8
	ex.prices["ZZZUSDT"] = 4
	ex.fees["XXXUSDT"] = 0.001
	ex.fees["YYYUSDT"] = 0.001
	ex.fees["ZZZUSDT"] = 0.002
	st := &fakeStore{
		coins: []*models.Coin{held, a, b},
		pairs: []*models.Pair{
			pair(1, held, a, ratio(1.1)),
			pair(2, held, b, ratio(2.2)),
		},
	}
	tr := newTestTrader(cfg, ex, st)
	tickers, _ := ex.AllTickerPrices(context.Background())

	first, err := tr.computeRatios(context.Background(), held, 10, tickers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := tr.computeRatios(context.Background(), held, 10, tickers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("lengths = %d/%d, want 2/2", len(first), len(second))
	}
	for i := range first {
		if first[i].Pair.ID != second[i].Pair.ID || first[i].Score != second[i].Score {
			t.Fatalf("run mismatch at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestComputeRatiosSkipsAndAudits(t *testing.T) {
	held := coin("XXX")
	quoted, unquoted := coin("YYY"), coin("ZZZ")
	disabled := &models.Coin{Symbol: "DDD", Enabled: false}

	cfg := testConfig()
	ex := newFakeExchange()
	ex.prices["XXXUSDT"] = 10
	ex.prices["YYYUSDT"] = 20 // cross 0.5, clearly non-positive score
	st := &fakeStore{
		coins: []*models.Coin{held, quoted, unquoted, disabled},
		pairs: []*models.Pair{
			pair(1, held, quoted, ratio(1.0)),
			pair(2, held, unquoted, ratio(1.0)), // no ticker this cycle
			pair(3, held, disabled, ratio(1.0)),
		},
	}
	tr := newTestTrader(cfg, ex, st)
	tickers, _ := ex.AllTickerPrices(context.Background())

	scored, err := tr.computeRatios(context.Background(), held, 10, tickers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scored) != 1 || scored[0].Pair.ID != 1 {
		t.Fatalf("scored = %+v, want only pair 1", scored)
	}
	if scored[0].Score > 0 {
		t.Fatalf("score = %v, want non-positive", scored[0].Score)
	}

	// the discarded-but-evaluated pair still left an audit record
	if len(st.scouts) != 1 {
		t.Fatalf("len(scouts) = %d, want 1", len(st.scouts))
	}
	ev := st.scouts[0]
	if ev.PairID != 1 || ev.TargetRatio != 1.0 || ev.CurrentPrice != 10 || ev.OtherPrice != 20 {
		t.Fatalf("scout event = %+v", ev)
	}
}

func TestComputeRatiosSkipsUnsetThreshold(t *testing.T) {
	held := coin("XXX")
	other := coin("YYY")

	cfg := testConfig()
	ex := newFakeExchange()
	ex.prices["XXXUSDT"] = 10
	ex.prices["YYYUSDT"] = 8
	st := &fakeStore{
		coins: []*models.Coin{held, other},
		pairs: []*models.Pair{pair(1, held, other, nil)},
	}
	tr := newTestTrader(cfg, ex, st)
	tickers, _ := ex.AllTickerPrices(context.Background())

	scored, err := tr.computeRatios(context.Background(), held, 10, tickers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scored) != 0 {
		t.Fatalf("an unset threshold must not be scorable, got %+v", scored)
	}
}
